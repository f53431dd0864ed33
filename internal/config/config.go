// Package config loads the daemon configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"solderbot/internal/motion"
	"solderbot/internal/pid"
	"solderbot/internal/safety"
	"solderbot/internal/thermal"
	"solderbot/internal/vision"
)

const (
	appDir     = "solderbot"
	configFile = "config.yaml"
	envPrefix  = "SOLDERBOT"
)

// Config is the complete daemon configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Motion   MotionConfig   `yaml:"motion"`
	Thermal  ThermalConfig  `yaml:"thermal"`
	Safety   SafetyConfig   `yaml:"safety"`
	Vision   VisionConfig   `yaml:"vision"`
	API      APIConfig      `yaml:"api"`
	Sinks    SinksConfig    `yaml:"sinks"`
	Programs ProgramsConfig `yaml:"programs"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Service string `yaml:"service"`
}

// MotionConfig selects the motion controller. FeedRate is in mm/min.
type MotionConfig struct {
	Port       string        `yaml:"port"`
	Baud       int           `yaml:"baud"`
	AckTimeout time.Duration `yaml:"ack_timeout"`
	FeedRate   float64       `yaml:"feed_rate"`
	Simulate   bool          `yaml:"simulate"`
}

type ThermalConfig struct {
	pid.Gains      `yaml:",inline"`
	Period         time.Duration `yaml:"period"`
	ReadyTolerance float64       `yaml:"ready_tolerance"`
	HeatTimeout    time.Duration `yaml:"heat_timeout"`
	Simulate       bool          `yaml:"simulate"`
}

// SafetyConfig holds the monitor settings. Simulate feeds the monitor from
// simulated smoke and proximity sensors; there is no hardware driver yet.
type SafetyConfig struct {
	Period           time.Duration `yaml:"period"`
	Simulate         bool          `yaml:"simulate"`
	SmokeEnabled     bool          `yaml:"smoke_enabled"`
	SmokeThreshold   float64       `yaml:"smoke_threshold"`
	ClearanceWarning float64       `yaml:"clearance_warning"`
	Zones            []safety.Zone `yaml:"zones"`
}

// Monitor returns the monitor thresholds.
func (c SafetyConfig) Monitor() safety.Config {
	return safety.Config{
		SmokeEnabled:     c.SmokeEnabled,
		SmokeThreshold:   c.SmokeThreshold,
		ClearanceWarning: c.ClearanceWarning,
	}
}

// VisionConfig holds the camera, its calibration file and the pipeline
// tuning. LabelRegion is x0, y0, x1, y1 in pixels; empty means the whole
// image.
type VisionConfig struct {
	Camera      vision.CameraConfig `yaml:"camera"`
	Calibration string              `yaml:"calibration"`
	Params      vision.Params       `yaml:"params"`
	LabelRegion []int               `yaml:"label_region"`
}

// PipelineParams returns the pipeline tuning with the label region applied.
func (c VisionConfig) PipelineParams() vision.Params {
	p := c.Params
	if len(c.LabelRegion) == 4 {
		r := c.LabelRegion
		p.LabelRegion = image.Rect(r[0], r[1], r[2], r[3])
	}
	return p
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

type SinksConfig struct {
	Redis RedisConfig `yaml:"redis"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// RedisConfig enables the Redis Streams sink when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// LoadFromEnv overrides fields from PREFIX_ADDR, PREFIX_PASSWORD and
// PREFIX_DB.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.DB = n
		}
	}
}

// MQTTConfig enables the telemetry sink when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
}

type ProgramsConfig struct {
	Dir string `yaml:"dir"`
}

// JobsConfig holds the directory job files are imported from and exported
// to. Empty means ~/.config/solderbot/jobs.
type JobsConfig struct {
	ExportDir string `yaml:"export_dir"`
}

// Dir returns the export directory, creating it if needed.
func (c JobsConfig) Dir() (string, error) {
	dir := c.ExportDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(DefaultPath()), "jobs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("jobs directory: %w", err)
	}
	return dir, nil
}

// Default returns the built-in configuration: simulated hardware, one
// 300x300 mm workspace zone and the API on localhost.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json", Service: "solderd"},
		Motion: MotionConfig{
			Baud:       115200,
			AckTimeout: motion.DefaultAckTimeout,
			FeedRate:   3000,
			Simulate:   true,
		},
		Thermal: ThermalConfig{
			Gains:          pid.DefaultGains(),
			Period:         thermal.DefaultPeriod,
			ReadyTolerance: 5,
			HeatTimeout:    30 * time.Second,
			Simulate:       true,
		},
		Safety: SafetyConfig{
			Period:           safety.DefaultPeriod,
			Simulate:         true,
			SmokeEnabled:     true,
			SmokeThreshold:   safety.DefaultSmokeThreshold,
			ClearanceWarning: safety.DefaultClearanceWarning,
			Zones:            []safety.Zone{safety.Rect("workspace", 0, 0, 300, 300, 100)},
		},
		Vision: VisionConfig{
			Camera: vision.DefaultCameraConfig(),
			Params: vision.DefaultParams(),
		},
		API: APIConfig{Addr: "127.0.0.1:8080"},
		Sinks: SinksConfig{
			Redis: RedisConfig{Stream: "solderbot:events", MaxLen: 10000},
			MQTT:  MQTTConfig{ClientID: "solderd", TopicPrefix: "solderbot"},
		},
	}
}

// DefaultPath returns ~/.config/solderbot/config.yaml.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, configFile)
}

// Load reads the configuration at path over the defaults and applies the
// environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.LoadFromEnv(envPrefix)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromEnv applies PREFIX_* overrides to the settings that commonly differ
// between installations.
func (c *Config) LoadFromEnv(prefix string) {
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv(prefix + "_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
	if port := os.Getenv(prefix + "_MOTION_PORT"); port != "" {
		c.Motion.Port = port
		c.Motion.Simulate = false
	}
	if addr := os.Getenv(prefix + "_API_ADDR"); addr != "" {
		c.API.Addr = addr
	}
	c.Sinks.Redis.LoadFromEnv(prefix + "_REDIS")
	c.Sinks.MQTT.LoadFromEnv(prefix + "_MQTT")
}

// Save writes the configuration as YAML, creating the directory.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Motion.AckTimeout <= 0:
		return errors.New("config: motion.ack_timeout must be positive")
	case c.Motion.FeedRate <= 0:
		return errors.New("config: motion.feed_rate must be positive")
	case !c.Motion.Simulate && c.Motion.Port == "":
		return errors.New("config: motion.port is required unless motion.simulate is set")
	case !c.Motion.Simulate && c.Motion.Baud <= 0:
		return errors.New("config: motion.baud must be positive")
	case c.Thermal.Period <= 0:
		return errors.New("config: thermal.period must be positive")
	case c.Thermal.ReadyTolerance < 0:
		return errors.New("config: thermal.ready_tolerance must not be negative")
	case c.Thermal.HeatTimeout <= 0:
		return errors.New("config: thermal.heat_timeout must be positive")
	case c.Safety.Period <= 0:
		return errors.New("config: safety.period must be positive")
	case c.Safety.SmokeThreshold < 0:
		return errors.New("config: safety.smoke_threshold must not be negative")
	case len(c.Vision.LabelRegion) != 0 && len(c.Vision.LabelRegion) != 4:
		return errors.New("config: vision.label_region needs x0, y0, x1, y1")
	case c.Sinks.MQTT.QoS > 2:
		return fmt.Errorf("config: sinks.mqtt.qos %d is not 0, 1 or 2", c.Sinks.MQTT.QoS)
	}

	seen := make(map[string]bool)
	for _, z := range c.Safety.Zones {
		if err := z.Validate(); err != nil {
			return fmt.Errorf("config: zone %q: %w", z.ID, err)
		}
		if seen[z.ID] {
			return fmt.Errorf("config: zone %q listed twice", z.ID)
		}
		seen[z.ID] = true
	}
	if err := c.Vision.Params.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
