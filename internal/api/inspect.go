package api

import (
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/internal/vision"
	"solderbot/pkg/geometry"
)

var (
	errNoAnalyzer       = errors.New("api: no joint analyzer configured")
	errNoCameraControls = errors.New("api: camera has no exposure or gain control")
)

// JointAnalyzer grades a close-up of a single solder joint.
type JointAnalyzer interface {
	AnalyzeJoint(img image.Image) (vision.JointAnalysis, error)
}

// CameraControl is implemented by frame sources with adjustable exposure and
// gain.
type CameraControl interface {
	SetExposure(v float64) error
	SetGain(v float64) error
}

// SetJointAnalyzer attaches the analyzer used by the inspect endpoint.
func (s *Server) SetJointAnalyzer(a JointAnalyzer) {
	s.joints = a
}

type inspectionView struct {
	vision.JointAnalysis
	Point    int              `json:"point"`
	Position geometry.Point3D `json:"position"`
}

// handleInspectPoint captures the joint under the camera, grades it and
// publishes the result against the job point. With ?format=png the
// annotated frame is returned instead of JSON.
func (s *Server) handleInspectPoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	switch {
	case s.camera == nil:
		writeError(w, errNoCamera)
		return
	case s.joints == nil:
		writeError(w, errNoAnalyzer)
		return
	}

	img, err := s.camera.Read()
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := s.joints.AnalyzeJoint(img)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.ctrl.RecordInspection(id, idx, events.JointInspection{
		Defect:     a.Defect.String(),
		Quality:    a.Quality,
		Diameter:   a.Diameter,
		Acceptable: a.Acceptable,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		out := a.Annotated
		if out == nil {
			out = img
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, out); err != nil {
			s.logger.Warn("encode inspection image", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, inspectionView{JointAnalysis: a, Point: rec.Point, Position: rec.Position})
}

type cameraRequest struct {
	Exposure *float64 `json:"exposure"`
	Gain     *float64 `json:"gain"`
}

// handleCameraSettings applies the exposure and gain that are present in the
// request.
func (s *Server) handleCameraSettings(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.camera == nil {
		writeError(w, errNoCamera)
		return
	}
	ctl, ok := s.camera.(CameraControl)
	if !ok {
		writeError(w, errNoCameraControls)
		return
	}
	if req.Exposure != nil {
		if err := ctl.SetExposure(*req.Exposure); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Gain != nil {
		if err := ctl.SetGain(*req.Gain); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
