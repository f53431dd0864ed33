package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"solderbot/internal/job"
	"solderbot/pkg/geometry"
)

// jobView is the wire form of a job: the document layout plus the run state.
type jobView struct {
	*job.Document
	Cause string `json:"cause,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

func newJobView(j job.SolderJob) jobView {
	done, total := j.Progress()
	return jobView{Document: job.NewDocument(j), Cause: j.Cause, Done: done, Total: total}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var jobs []job.SolderJob
	if r.URL.Query().Get("pending") != "" {
		jobs = s.ctrl.Jobs().Pending()
	} else {
		jobs = s.ctrl.Jobs().List()
		sort.Slice(jobs, func(a, b int) bool { return jobs[a].Created.Before(jobs[b].Created) })
	}
	out := make([]jobView, len(jobs))
	for i, j := range jobs {
		out[i] = newJobView(j)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var doc job.Document
	if err := decode(r, &doc); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.ctrl.Jobs().Create(doc.Job())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusCreated, id)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.writeJob(w, http.StatusOK, chi.URLParam(r, "id"))
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var doc job.Document
	if err := decode(r, &doc); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Jobs().Update(id, doc.Job()); err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusOK, id)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Jobs().Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ctrl.Start(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusAccepted, id)
}

// jobAction adapts a job operation to a POST handler that returns the job.
func (s *Server) jobAction(op func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := op(id); err != nil {
			writeError(w, err)
			return
		}
		s.writeJob(w, http.StatusOK, id)
	}
}

func (s *Server) handleAdjustJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var offset geometry.Point3D
	if err := decode(r, &offset); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Jobs().AdjustPoints(id, offset); err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusOK, id)
}

func (s *Server) handleJobOffset(w http.ResponseWriter, r *http.Request) {
	offset, err := s.ctrl.Jobs().Offset(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offset)
}

type pathRequest struct {
	Path string `json:"path"`
}

// resolve maps a request path into exportDir. Absolute paths and paths that
// climb out of the directory are rejected.
func (s *Server) resolve(path string) (string, error) {
	if path == "" {
		return "", badRequest(errors.New("path is required"))
	}
	if filepath.IsAbs(path) {
		return "", badRequest(fmt.Errorf("path %q must be relative", path))
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", badRequest(fmt.Errorf("path %q leaves the export directory", path))
	}
	return filepath.Join(s.exportDir, clean), nil
}

func (s *Server) handleImportJob(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	path, err := s.resolve(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.ctrl.Jobs().Import(path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusCreated, id)
}

func (s *Server) handleExportJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req pathRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		req.Path = id + ".sjob"
	}
	path, err := s.resolve(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Jobs().Export(id, path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pathRequest{Path: path})
}

// handleCaptureJob reads a camera frame and attaches it as the board image.
func (s *Server) handleCaptureJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.camera == nil {
		writeError(w, errNoCamera)
		return
	}
	img, err := s.camera.Read()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Jobs().SetImage(id, img); err != nil {
		writeError(w, err)
		return
	}
	s.writeJob(w, http.StatusOK, id)
}

func (s *Server) writeJob(w http.ResponseWriter, status int, id string) {
	j, err := s.ctrl.Jobs().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, newJobView(j))
}
