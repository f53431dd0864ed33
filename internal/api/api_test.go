package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solderbot/internal/controller"
	"solderbot/internal/job"
	"solderbot/internal/motion"
	"solderbot/internal/pid"
	"solderbot/internal/program"
	"solderbot/internal/safety"
	"solderbot/internal/thermal"
	"solderbot/internal/vision"
	"solderbot/pkg/geometry"
)

type hotSensor struct{}

func (hotSensor) ReadTemperature() (float64, error) { return 350, nil }

type nullHeater struct{}

func (nullHeater) ApplyPower(float64) error { return nil }

type testServer struct {
	ctrl *controller.Controller
	h    http.Handler
	dir  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	loop := thermal.NewLoop(pid.DefaultGains(), hotSensor{}, nullHeater{}, nil, nil)
	loop.Tick()
	mon := safety.NewMonitor(safety.DefaultConfig(), nil, nil)
	require.NoError(t, mon.AddZone(safety.Rect("bench", -10, -10, 300, 300, 1000)))
	programs, err := program.NewStore(filepath.Join(dir, "programs"), nil, nil)
	require.NoError(t, err)

	cfg := controller.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	ctrl := controller.New(cfg, job.NewStore(nil, nil), loop, motion.NewSimulator(nil), mon, nil, nil,
		controller.WithPrograms(programs))

	return &testServer{ctrl: ctrl, h: NewServer(ctrl, dir, nil).Routes(), dir: dir}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func jobDocument() job.Document {
	return job.Document{
		Name:     "controller board",
		Priority: 3,
		Deadline: time.Now().Add(time.Hour),
		PCB: job.PCBDocument{
			Name:   "CTL-1",
			Width:  100,
			Height: 80,
			Fiducials: []geometry.Point2D{
				{X: 0, Y: 0}, {X: 10, Y: 0},
			},
		},
		Points: []job.PointDocument{
			{X: 10, Y: 10, Z: 1, Temperature: 350, DwellTime: 100, Type: "PTH"},
			{X: 20, Y: 20, Z: 1, Temperature: 350, DwellTime: 100, Type: "SMD"},
		},
	}
}

func (ts *testServer) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.ctrl.Wait(ctx))
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)

	w := ts.do(t, http.MethodGet, "/api/v1/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody[map[string]string](t, w), "version")
}

func TestJobLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/jobs", jobDocument())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[jobView](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "waiting", created.Status)
	assert.Equal(t, 2, created.Total)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]jobView](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs?pending=1", nil)
	assert.Len(t, decodeBody[[]jobView](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID+"/offset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/jobs/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	ts.wait(t)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	done := decodeBody[jobView](t, w)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, 2, done.Done)

	w = ts.do(t, http.MethodPost, "/api/v1/jobs/"+created.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/v1/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJob_Invalid(t *testing.T) {
	ts := newTestServer(t)

	doc := jobDocument()
	doc.Points = nil
	w := ts.do(t, http.MethodPost, "/api/v1/jobs", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody[map[string]string](t, w)["error"], "points")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustAndExportImport(t *testing.T) {
	ts := newTestServer(t)
	id := decodeBody[jobView](t, ts.do(t, http.MethodPost, "/api/v1/jobs", jobDocument())).ID

	w := ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/adjust", map[string]float64{"x": 1, "y": 2})
	require.Equal(t, http.StatusOK, w.Code)
	adjusted := decodeBody[jobView](t, w)
	assert.Equal(t, 11.0, adjusted.Points[0].X)
	assert.Equal(t, 12.0, adjusted.Points[0].Y)

	w = ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/export", map[string]string{"path": "copy.sjob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.FileExists(t, filepath.Join(ts.dir, "copy.sjob"))

	w = ts.do(t, http.MethodPost, "/api/v1/jobs/import", map[string]string{"path": "copy.sjob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEqual(t, id, decodeBody[jobView](t, w).ID)

	w = ts.do(t, http.MethodPost, "/api/v1/jobs/import", map[string]string{"path": "board.gbr"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportImport_ConfinedToExportDir(t *testing.T) {
	ts := newTestServer(t)
	id := decodeBody[jobView](t, ts.do(t, http.MethodPost, "/api/v1/jobs", jobDocument())).ID
	outside := filepath.Join(t.TempDir(), "abs.sjob")

	tests := []struct {
		name string
		path string
	}{
		{"parent", "../escaped.sjob"},
		{"nested parent", "sub/../../escaped.sjob"},
		{"absolute", outside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/export", map[string]string{"path": tt.path})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			w = ts.do(t, http.MethodPost, "/api/v1/jobs/import", map[string]string{"path": tt.path})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(ts.dir), "escaped.sjob"))
	assert.NoFileExists(t, outside)

	w := ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.FileExists(t, filepath.Join(ts.dir, id+".sjob"))
}

func TestEmergencyStopEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := decodeBody[jobView](t, ts.do(t, http.MethodPost, "/api/v1/jobs", jobDocument())).ID

	w := ts.do(t, http.MethodPost, "/api/v1/emergency-stop", map[string]string{"reason": "panel"})
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeBody[controller.Status](t, w)
	assert.True(t, st.EmergencyStop)
	assert.Equal(t, "panel", st.StopReason)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/start", nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPut, "/api/v1/thermal/heating", map[string]bool{"enabled": true}).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/emergency-stop/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[controller.Status](t, w).EmergencyStop)

	assert.Equal(t, http.StatusAccepted, ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/start", nil).Code)
	ts.wait(t)
}

func TestThermalEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/v1/thermal/target", map[string]float64{"celsius": 500})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 450.0, decodeBody[thermal.Status](t, w).Target)

	w = ts.do(t, http.MethodPut, "/api/v1/thermal/heating", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[thermal.Status](t, w).HeatingEnabled)
}

func TestMotionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.ctrl.Initialize(context.Background()))

	w := ts.do(t, http.MethodPost, "/api/v1/motion/jog", map[string]float64{"x": 10, "y": 5, "z": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10.0, decodeBody[map[string]float64](t, w)["x"])

	w = ts.do(t, http.MethodPost, "/api/v1/motion/jog", map[string]float64{"x": 500, "y": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/motion/conveyor", map[string]float64{"percent": 40})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestJog_RestrictedZone(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.ctrl.Initialize(context.Background()))

	reflow := safety.Rect("reflow", 100, 100, 150, 150, 500)
	reflow.RequiresAuth = true
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/v1/safety/zones", reflow).Code)

	target := map[string]any{"x": 120, "y": 120, "z": 1, "user": "bob"}
	w := ts.do(t, http.MethodPost, "/api/v1/motion/jog", target)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0.0, ts.ctrl.Motion().Position().X)

	evs := ts.ctrl.Safety().SecurityEvents(time.Time{}, time.Time{})
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, "unauthorized_access", last.Kind)
	assert.Equal(t, "bob", last.User)

	require.Equal(t, http.StatusNoContent,
		ts.do(t, http.MethodPost, "/api/v1/safety/zones/reflow/access", map[string]string{"user": "bob"}).Code)
	w = ts.do(t, http.MethodPost, "/api/v1/motion/jog", target)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 120.0, decodeBody[map[string]float64](t, w)["x"])
}

func TestSafetyEndpoints(t *testing.T) {
	ts := newTestServer(t)

	zone := safety.Rect("tray", 0, 0, 50, 50, 20)
	assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/v1/safety/zones", zone).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/v1/safety/zones", zone).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, http.MethodPost, "/api/v1/safety/zones", safety.Zone{ID: "bad", MaxSpeed: 1}).Code)

	w := ts.do(t, http.MethodGet, "/api/v1/safety/zones", nil)
	assert.Len(t, decodeBody[[]safety.Zone](t, w), 2)

	assert.Equal(t, http.StatusNoContent,
		ts.do(t, http.MethodPost, "/api/v1/safety/zones/tray/access", map[string]string{"user": "op1"}).Code)
	assert.True(t, ts.ctrl.Safety().HasAccess("tray", "op1"))
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/safety/zones/tray/access/op1", nil).Code)
	assert.False(t, ts.ctrl.Safety().HasAccess("tray", "op1"))

	w = ts.do(t, http.MethodPost, "/api/v1/safety/path", map[string]any{
		"start": map[string]float64{"x": 10, "y": 10},
		"end":   map[string]float64{"x": 400, "y": 10},
	})
	require.Equal(t, http.StatusOK, w.Code)
	check := decodeBody[map[string]any](t, w)
	assert.Equal(t, false, check["safe"])
	assert.Equal(t, 20.0, check["max_speed"])

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/safety/zones/tray", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/v1/safety/zones/tray", nil).Code)

	w = ts.do(t, http.MethodGet, "/api/v1/safety/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody[[]safety.SecurityEvent](t, w))

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/safety/events?from=yesterday", nil).Code)

	w = ts.do(t, http.MethodGet, "/api/v1/safety/status", nil)
	assert.True(t, decodeBody[safety.Status](t, w).OK)
}

func TestProgramEndpoints(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.ctrl.Initialize(context.Background()))

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/v1/programs/record/stop", nil).Code)

	pcb := jobDocument().PCB
	w := ts.do(t, http.MethodPost, "/api/v1/programs/record/start", map[string]any{"name": "ctl", "pcb": pcb})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ts.do(t, http.MethodPost, "/api/v1/motion/jog", map[string]float64{"x": 10, "y": 10, "z": 1})
	w = ts.do(t, http.MethodPost, "/api/v1/programs/record/point", map[string]any{"temperature": 340, "dwell_time": 100})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decodeBody[map[string]any](t, w)["points"])

	w = ts.do(t, http.MethodPost, "/api/v1/programs/record/stop", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/programs", nil)
	assert.Equal(t, []string{"ctl"}, decodeBody[[]string](t, w))

	w = ts.do(t, http.MethodGet, "/api/v1/programs/ctl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[program.Program](t, w).Points, 1)

	w = ts.do(t, http.MethodPost, "/api/v1/programs/ctl/play", map[string]int{"priority": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	played := decodeBody[jobView](t, w)
	assert.Equal(t, 4, played.Priority)
	assert.Equal(t, 340.0, played.Points[0].Temperature)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/v1/programs/nope/play", nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/programs/ctl", nil).Code)
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.ctrl.Initialize(context.Background()))
	require.Equal(t, http.StatusOK,
		ts.do(t, http.MethodPost, "/api/v1/motion/jog", map[string]float64{"x": 12, "y": 7, "z": 1}).Code)

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeBody[controller.Status](t, w)
	assert.False(t, st.EmergencyStop)
	assert.Equal(t, 350.0, st.Thermal.Current)
	assert.Equal(t, geometry.NewPoint3D(12, 7, 1), st.Position)

	raw := decodeBody[map[string]any](t, w)
	assert.Equal(t, map[string]any{"x": 12.0, "y": 7.0, "z": 1.0}, raw["position"])
}

type stillCamera struct {
	img image.Image
	err error
}

func (c stillCamera) Read() (image.Image, error) { return c.img, c.err }

func TestCaptureJob(t *testing.T) {
	ts := newTestServer(t)
	id := decodeBody[jobView](t, ts.do(t, http.MethodPost, "/api/v1/jobs", jobDocument())).ID

	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/capture", nil).Code)

	srv := NewServer(ts.ctrl, ts.dir, nil)
	srv.SetCamera(stillCamera{img: image.NewRGBA(image.Rect(0, 0, 64, 48))})
	ts.h = srv.Routes()

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/capture", nil).Code)
	j, err := ts.ctrl.Jobs().Get(id)
	require.NoError(t, err)
	require.NotNil(t, j.PCB.Image)
	assert.Equal(t, 64, j.PCB.Image.Bounds().Dx())

	// detection needs a detector, which this rig does not configure
	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/detect", nil).Code)

	srv.SetCamera(stillCamera{err: errors.New("no frame")})
	assert.Equal(t, http.StatusInternalServerError, ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/capture", nil).Code)
}

type gradedAnalyzer struct {
	result vision.JointAnalysis
	calls  int
}

func (a *gradedAnalyzer) AnalyzeJoint(img image.Image) (vision.JointAnalysis, error) {
	a.calls++
	out := a.result
	out.Annotated = img
	return out, nil
}

type tunableCamera struct {
	stillCamera
	exposure, gain float64
}

func (c *tunableCamera) SetExposure(v float64) error { c.exposure = v; return nil }
func (c *tunableCamera) SetGain(v float64) error     { c.gain = v; return nil }

func TestInspectPoint(t *testing.T) {
	ts := newTestServer(t)
	id := decodeBody[jobView](t, ts.do(t, http.MethodPost, "/api/v1/jobs", jobDocument())).ID
	url := "/api/v1/jobs/" + id + "/points/0/inspect"

	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPost, url, nil).Code)

	analyzer := &gradedAnalyzer{result: vision.JointAnalysis{
		Diameter:     1.0,
		Quality:      0.6,
		VoidFraction: 0.3,
		Defect:       vision.DefectVoid,
	}}
	srv := NewServer(ts.ctrl, ts.dir, nil)
	srv.SetCamera(stillCamera{img: image.NewRGBA(image.Rect(0, 0, 32, 32))})
	ts.h = srv.Routes()
	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPost, url, nil).Code)

	srv.SetJointAnalyzer(analyzer)
	w := ts.do(t, http.MethodPost, url, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[map[string]any](t, w)
	assert.Equal(t, "void", got["defect"])
	assert.Equal(t, false, got["acceptable"])
	assert.Equal(t, 0.0, got["point"])
	assert.NotContains(t, got, "annotated")

	w = ts.do(t, http.MethodPost, url+"?format=png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	decoded, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())

	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/points/9/inspect", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/points/first/inspect", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		ts.do(t, http.MethodPost, "/api/v1/jobs/missing/points/0/inspect", nil).Code)
	assert.Equal(t, 4, analyzer.calls)
}

func TestCameraSettings(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]float64{"exposure": -6}

	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPut, "/api/v1/camera", body).Code)

	srv := NewServer(ts.ctrl, ts.dir, nil)
	srv.SetCamera(stillCamera{})
	ts.h = srv.Routes()
	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPut, "/api/v1/camera", body).Code)

	cam := &tunableCamera{gain: 2}
	srv.SetCamera(cam)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPut, "/api/v1/camera", body).Code)
	assert.Equal(t, -6.0, cam.exposure)
	assert.Equal(t, 2.0, cam.gain)

	assert.Equal(t, http.StatusNoContent,
		ts.do(t, http.MethodPut, "/api/v1/camera", map[string]float64{"gain": 8}).Code)
	assert.Equal(t, -6.0, cam.exposure)
	assert.Equal(t, 8.0, cam.gain)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{job.ErrJobNotFound, http.StatusNotFound},
		{program.ErrNotFound, http.StatusNotFound},
		{job.ErrValidation, http.StatusBadRequest},
		{badRequest(errors.New("bad")), http.StatusBadRequest},
		{job.ErrJobActive, http.StatusConflict},
		{controller.ErrBusy, http.StatusConflict},
		{safety.ErrOutsideZones, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: reflow", safety.ErrUnauthorized), http.StatusForbidden},
		{job.ErrTooFewFiducials, http.StatusUnprocessableEntity},
		{job.ErrNoDetector, http.StatusNotImplemented},
		{errNoCamera, http.StatusNotImplemented},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}
