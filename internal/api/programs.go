package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"solderbot/internal/controller"
	"solderbot/internal/job"
)

func (s *Server) programStore(w http.ResponseWriter) bool {
	if s.ctrl.Programs() == nil {
		writeError(w, controller.ErrNoPrograms)
		return false
	}
	return true
}

func (s *Server) handleListPrograms(w http.ResponseWriter, _ *http.Request) {
	if !s.programStore(w) {
		return
	}
	names, err := s.ctrl.Programs().List()
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	if !s.programStore(w) {
		return
	}
	p, err := s.ctrl.Programs().Load(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	if !s.programStore(w) {
		return
	}
	if err := s.ctrl.Programs().Delete(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayProgram(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Priority int       `json:"priority"`
		Deadline time.Time `json:"deadline"`
	}{Priority: 3}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Deadline.IsZero() {
		req.Deadline = time.Now().Add(24 * time.Hour)
	}
	id, err := s.ctrl.PlayProgram(chi.URLParam(r, "name"), req.Priority, req.Deadline)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusCreated, id)
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string          `json:"name"`
		PCB  job.PCBDocument `json:"pcb"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.StartRecording(req.Name, req.PCB); err != nil {
		writeError(w, err)
		return
	}
	s.handleRecordStatus(w, r)
}

// handleRecordPoint records the current tool position. Missing fields take
// the point defaults.
func (s *Server) handleRecordPoint(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Temperature float64 `json:"temperature"`
		DwellTime   int64   `json:"dwell_time"`
		Type        string  `json:"type"`
	}{
		Temperature: job.DefaultTemperature,
		DwellTime:   job.DefaultDwell.Milliseconds(),
		Type:        job.DefaultKind.String(),
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dwell := time.Duration(req.DwellTime) * time.Millisecond
	if err := s.ctrl.RecordPoint(req.Temperature, dwell, job.ParsePointKind(req.Type)); err != nil {
		writeError(w, err)
		return
	}
	s.handleRecordStatus(w, r)
}

func (s *Server) handleRecordClear(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Recorder().Clear(); err != nil {
		writeError(w, err)
		return
	}
	s.handleRecordStatus(w, r)
}

func (s *Server) handleRecordStop(w http.ResponseWriter, _ *http.Request) {
	p, err := s.ctrl.StopRecording()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleRecordStatus(w http.ResponseWriter, _ *http.Request) {
	recording, points := s.ctrl.Recorder().Recording()
	writeJSON(w, http.StatusOK, map[string]any{"recording": recording, "points": points})
}
