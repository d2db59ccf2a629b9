package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/asubexec/internal/job"
)

// HealthzResponse is the GET /healthz body.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Jobs          int    `json:"jobs"`
}

// JobView is the JSON shape of one job.
type JobView struct {
	Name  string      `json:"name"`
	Phase string      `json:"phase"`
	Runs  int64       `json:"runs"`
	Last  *RunSummary `json:"last,omitempty"`
}

// RunSummary is the JSON shape of a job's most recent outcome.
type RunSummary struct {
	Status   string    `json:"status"`
	ExitCode int       `json:"exit_code"`
	Warnings int       `json:"warnings"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Error    string    `json:"error,omitempty"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func viewOf(j *job.Job) JobView {
	v := JobView{
		Name:  j.Name,
		Phase: j.Phase().String(),
		Runs:  j.Runs(),
	}
	if last := j.Last(); last != nil {
		summary := RunSummary{
			Status:   string(last.Status),
			ExitCode: last.ExitCode,
			Warnings: len(last.Warnings),
			Started:  last.Started,
			Finished: last.Finished,
		}
		if last.Err != nil {
			summary.Error = last.Err.Error()
		}
		v.Last = &summary
	}
	return v
}

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Jobs:          len(s.jobs.List()),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleListJobs handles GET /v1/jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	all := s.jobs.List()
	views := make([]JobView, 0, len(all))
	for _, j := range all {
		views = append(views, viewOf(j))
	}
	s.writeJSON(w, http.StatusOK, views)
}

// handleGetJob handles GET /v1/jobs/{name}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	j, ok := s.jobs.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(j))
}

// handleTrigger handles POST /v1/jobs/{name}/trigger. Phase one of the
// handoff is non-blocking end to end: 202 means the run was accepted, 409
// means the job is mid-cycle.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := s.jobs.Trigger(name)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "accepted"})
	case errors.Is(err, job.ErrUnknownJob):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, job.ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleJobRuns handles GET /v1/jobs/{name}/runs.
func (s *Server) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.jobs.Get(name); !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be 1..500")
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("run history query failed", "job", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
