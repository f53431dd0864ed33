package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solderbot/internal/safety"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.Motion.AckTimeout)
	assert.Equal(t, 3000.0, cfg.Motion.FeedRate)
	assert.Equal(t, 2.0, cfg.Thermal.Kp)
	assert.Equal(t, 100*time.Millisecond, cfg.Thermal.Period)
	assert.Equal(t, 50.0, cfg.Safety.SmokeThreshold)
	assert.Equal(t, 1280, cfg.Vision.Camera.Width)
	assert.Nil(t, cfg.Vision.Camera.Exposure)
	assert.True(t, cfg.Safety.Simulate)
}

func TestJobsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	got, err := JobsConfig{ExportDir: dir}.Dir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Motion, cfg.Motion)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
motion:
  port: /dev/ttyUSB0
  simulate: false
  ack_timeout: 500ms
thermal:
  kp: 3
  heat_timeout: 10s
safety:
  smoke_threshold: 80
  simulate: false
  zones:
    - id: tray
      name: Tray
      max_speed: 20
      requires_auth: true
      boundary:
        - {x: 0, y: 0}
        - {x: 50, y: 0}
        - {x: 50, y: 50}
vision:
  camera:
    exposure: -6
    gain: 4
  label_region: [10, 20, 110, 60]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Motion.Port)
	assert.False(t, cfg.Motion.Simulate)
	assert.Equal(t, 500*time.Millisecond, cfg.Motion.AckTimeout)
	assert.Equal(t, 115200, cfg.Motion.Baud)
	assert.Equal(t, 3.0, cfg.Thermal.Kp)
	assert.Equal(t, 0.5, cfg.Thermal.Ki)
	assert.Equal(t, 10*time.Second, cfg.Thermal.HeatTimeout)
	assert.Equal(t, 80.0, cfg.Safety.Monitor().SmokeThreshold)
	assert.False(t, cfg.Safety.Simulate)

	require.Len(t, cfg.Safety.Zones, 1)
	assert.Equal(t, "tray", cfg.Safety.Zones[0].ID)
	assert.Len(t, cfg.Safety.Zones[0].Boundary, 3)
	assert.True(t, cfg.Safety.Zones[0].RequiresAuth)

	require.NotNil(t, cfg.Vision.Camera.Exposure)
	assert.Equal(t, -6.0, *cfg.Vision.Camera.Exposure)
	require.NotNil(t, cfg.Vision.Camera.Gain)
	assert.Equal(t, 4.0, *cfg.Vision.Camera.Gain)
	assert.Equal(t, 1280, cfg.Vision.Camera.Width)

	params := cfg.Vision.PipelineParams()
	assert.Equal(t, 100, params.LabelRegion.Dx())
	assert.Equal(t, 40, params.LabelRegion.Dy())
	assert.Equal(t, 100.0, params.FiducialMinArea)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SOLDERBOT_LOG_LEVEL", "warn")
	t.Setenv("SOLDERBOT_MOTION_PORT", "/dev/ttyACM1")
	t.Setenv("SOLDERBOT_API_ADDR", ":9090")
	t.Setenv("SOLDERBOT_REDIS_ADDR", "redis:6379")
	t.Setenv("SOLDERBOT_REDIS_DB", "2")
	t.Setenv("SOLDERBOT_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/dev/ttyACM1", cfg.Motion.Port)
	assert.False(t, cfg.Motion.Simulate)
	assert.Equal(t, ":9090", cfg.API.Addr)
	assert.Equal(t, "redis:6379", cfg.Sinks.Redis.Addr)
	assert.Equal(t, 2, cfg.Sinks.Redis.DB)
	assert.Equal(t, "tcp://broker:1883", cfg.Sinks.MQTT.Broker)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "motion: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero ack timeout", func(c *Config) { c.Motion.AckTimeout = 0 }},
		{"zero feed", func(c *Config) { c.Motion.FeedRate = 0 }},
		{"hardware without port", func(c *Config) { c.Motion.Simulate = false }},
		{"zero thermal period", func(c *Config) { c.Thermal.Period = 0 }},
		{"zero heat timeout", func(c *Config) { c.Thermal.HeatTimeout = 0 }},
		{"zero safety period", func(c *Config) { c.Safety.Period = 0 }},
		{"short label region", func(c *Config) { c.Vision.LabelRegion = []int{1, 2} }},
		{"bad qos", func(c *Config) { c.Sinks.MQTT.QoS = 3 }},
		{"empty fiducial range", func(c *Config) { c.Vision.Params.FiducialMinArea = 2000 }},
		{"degenerate zone", func(c *Config) {
			c.Safety.Zones = append(c.Safety.Zones, safety.Zone{ID: "line", MaxSpeed: 10})
		}},
		{"duplicate zone", func(c *Config) {
			c.Safety.Zones = append(c.Safety.Zones, safety.Rect("workspace", 0, 0, 1, 1, 10))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.API.Addr = ":8181"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8181", loaded.API.Addr)
	assert.Equal(t, cfg.Thermal, loaded.Thermal)
	assert.Equal(t, cfg.Safety.Zones, loaded.Safety.Zones)
}
