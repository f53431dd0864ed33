package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"solderbot/internal/safety"
	"solderbot/pkg/geometry"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}
	s.ctrl.EmergencyStop(r.Context(), req.Reason)
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleResetEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ResetEmergencyStop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleThermal(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Thermal().Status())
}

func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Celsius float64 `json:"celsius"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.ctrl.SetTemperature(req.Celsius)
	writeJSON(w, http.StatusOK, s.ctrl.Thermal().Status())
}

func (s *Server) handleHeating(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.EnableHeating(req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Thermal().Status())
}

// jogRequest is a target position and the operator requesting the move.
type jogRequest struct {
	geometry.Point3D
	User string `json:"user"`
}

func (s *Server) handleJog(w http.ResponseWriter, r *http.Request) {
	var req jogRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Jog(r.Context(), req.Point3D, req.User); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Motion().Position())
}

func (s *Server) handleConveyor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent float64 `json:"percent"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.SetConveyorSpeed(r.Context(), req.Percent); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSafetyStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Safety().Status())
}

// handleSecurityEvents lists the security log between the optional RFC 3339
// "from" and "to" query bounds.
func (s *Server) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	evs := s.ctrl.Safety().SecurityEvents(from, to)
	if evs == nil {
		evs = []safety.SecurityEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, badRequest(err)
	}
	return t, nil
}

func (s *Server) handleCheckPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start geometry.Point3D `json:"start"`
		End   geometry.Point3D `json:"end"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	mon := s.ctrl.Safety()
	resp := struct {
		Safe     bool     `json:"safe"`
		Reason   string   `json:"reason,omitempty"`
		MaxSpeed *float64 `json:"max_speed,omitempty"`
	}{Safe: true}
	if err := mon.CheckPath(req.Start, req.End); err != nil {
		resp.Safe = false
		resp.Reason = err.Error()
	}
	if limit, ok := mon.SpeedLimit(req.Start, req.End); ok {
		resp.MaxSpeed = &limit
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Safety().Zones())
}

func (s *Server) handleAddZone(w http.ResponseWriter, r *http.Request) {
	var z safety.Zone
	if err := decode(r, &z); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Safety().AddZone(z); err != nil {
		if !isKnown(err) {
			err = badRequest(err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, z)
}

func (s *Server) handleRemoveZone(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Safety().RemoveZone(chi.URLParam(r, "zone")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Safety().GrantAccess(chi.URLParam(r, "zone"), req.User); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Safety().RevokeAccess(chi.URLParam(r, "zone"), chi.URLParam(r, "user")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
