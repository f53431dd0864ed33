// Package api exposes the controller over HTTP for operator panels and line
// integration.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"solderbot/internal/controller"
	"solderbot/internal/job"
	"solderbot/internal/program"
	"solderbot/internal/safety"
	"solderbot/internal/version"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// errNoCamera is returned by capture when no camera is attached.
var errNoCamera = errors.New("api: no camera attached")

// FrameSource supplies board images for capture.
type FrameSource interface {
	Read() (image.Image, error)
}

// Server serves the operator API.
type Server struct {
	ctrl      *controller.Controller
	camera    FrameSource
	joints    JointAnalyzer
	exportDir string
	logger    *zap.Logger
}

// NewServer creates a server. Import and export paths are confined to
// exportDir.
func NewServer(ctrl *controller.Controller, exportDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ctrl: ctrl, exportDir: exportDir, logger: logger.Named("api")}
}

// SetCamera attaches the frame source used by the capture endpoint.
func (s *Server) SetCamera(camera FrameSource) {
	s.camera = camera
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/status", s.handleStatus)

		r.Post("/emergency-stop", s.handleEmergencyStop)
		r.Post("/emergency-stop/reset", s.handleResetEmergencyStop)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleCreateJob)
			r.Post("/import", s.handleImportJob)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Put("/", s.handleUpdateJob)
				r.Delete("/", s.handleDeleteJob)
				r.Get("/offset", s.handleJobOffset)
				r.Post("/start", s.handleStartJob)
				r.Post("/pause", s.jobAction(s.ctrl.Pause))
				r.Post("/resume", s.jobAction(s.ctrl.Resume))
				r.Post("/abort", s.jobAction(s.ctrl.Abort))
				r.Post("/requeue", s.jobAction(s.ctrl.Jobs().Requeue))
				r.Post("/detect", s.jobAction(s.ctrl.Jobs().DetectSolderPoints))
				r.Post("/validate", s.jobAction(s.ctrl.Jobs().ValidatePoints))
				r.Post("/calibrate", s.jobAction(s.ctrl.Jobs().RequestCalibration))
				r.Post("/adjust", s.handleAdjustJob)
				r.Post("/export", s.handleExportJob)
				r.Post("/capture", s.handleCaptureJob)
				r.Post("/points/{idx}/inspect", s.handleInspectPoint)
			})
		})

		r.Put("/camera", s.handleCameraSettings)

		r.Route("/thermal", func(r chi.Router) {
			r.Get("/", s.handleThermal)
			r.Put("/target", s.handleSetTarget)
			r.Put("/heating", s.handleHeating)
		})

		r.Route("/motion", func(r chi.Router) {
			r.Post("/jog", s.handleJog)
			r.Put("/conveyor", s.handleConveyor)
		})

		r.Route("/safety", func(r chi.Router) {
			r.Get("/status", s.handleSafetyStatus)
			r.Get("/events", s.handleSecurityEvents)
			r.Post("/path", s.handleCheckPath)
			r.Get("/zones", s.handleListZones)
			r.Post("/zones", s.handleAddZone)
			r.Delete("/zones/{zone}", s.handleRemoveZone)
			r.Post("/zones/{zone}/access", s.handleGrantAccess)
			r.Delete("/zones/{zone}/access/{user}", s.handleRevokeAccess)
		})

		r.Route("/programs", func(r chi.Router) {
			r.Get("/", s.handleListPrograms)
			r.Post("/record/start", s.handleRecordStart)
			r.Post("/record/point", s.handleRecordPoint)
			r.Post("/record/clear", s.handleRecordClear)
			r.Post("/record/stop", s.handleRecordStop)
			r.Get("/record", s.handleRecordStatus)
			r.Get("/{name}", s.handleGetProgram)
			r.Delete("/{name}", s.handleDeleteProgram)
			r.Post("/{name}/play", s.handlePlayProgram)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"build_time": version.BuildTime,
		"git_commit": version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, job.ErrJobNotFound),
		errors.Is(err, program.ErrNotFound),
		errors.Is(err, safety.ErrUnknownZone):
		return http.StatusNotFound
	case errors.Is(err, safety.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, job.ErrValidation),
		errors.Is(err, program.ErrInvalid),
		errors.Is(err, job.ErrUnsupportedFormat),
		errors.Is(err, job.ErrPointIndex),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrJobActive),
		errors.Is(err, job.ErrNotActive),
		errors.Is(err, job.ErrInvalidState),
		errors.Is(err, job.ErrEmergencyStopped),
		errors.Is(err, job.ErrStartCancelled),
		errors.Is(err, controller.ErrBusy),
		errors.Is(err, program.ErrRecording),
		errors.Is(err, program.ErrNotRecording),
		errors.Is(err, safety.ErrDuplicateZone):
		return http.StatusConflict
	case errors.Is(err, job.ErrTooFewFiducials),
		errors.Is(err, job.ErrNoCandidates),
		errors.Is(err, job.ErrNoImage),
		errors.Is(err, safety.ErrCollisionRisk),
		errors.Is(err, safety.ErrSpeedLimit),
		errors.Is(err, safety.ErrOutsideZones):
		return http.StatusUnprocessableEntity
	case errors.Is(err, job.ErrNoDetector),
		errors.Is(err, controller.ErrNoPrograms),
		errors.Is(err, errNoCamera),
		errors.Is(err, errNoAnalyzer),
		errors.Is(err, errNoCameraControls):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into out. An empty body leaves out unchanged.
func decode(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return badRequest(err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return badRequest(err)
	}
	return nil
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// isKnown reports whether err maps to a specific status.
func isKnown(err error) bool {
	return errorStatus(err) != http.StatusInternalServerError
}
