package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/asubexec/internal/child"
	"github.com/mattjoyce/asubexec/internal/events"
	"github.com/mattjoyce/asubexec/internal/job"
	"github.com/mattjoyce/asubexec/internal/runlog"
)

type fakeJobs struct {
	jobs       map[string]*job.Job
	triggerErr map[string]error
	triggered  []string
}

func (f *fakeJobs) List() []*job.Job {
	out := make([]*job.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeJobs) Get(name string) (*job.Job, bool) {
	j, ok := f.jobs[name]
	return j, ok
}

func (f *fakeJobs) Trigger(name string) error {
	if err, ok := f.triggerErr[name]; ok {
		return err
	}
	if _, ok := f.jobs[name]; !ok {
		return job.ErrUnknownJob
	}
	f.triggered = append(f.triggered, name)
	return nil
}

type fakeHistory struct {
	runs []runlog.Run
	err  error
}

func (f *fakeHistory) Recent(_ context.Context, _ string, _ int) ([]runlog.Run, error) {
	return f.runs, f.err
}

func testServer(t *testing.T, apiKey string) (*Server, *fakeJobs) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := &fakeJobs{
		jobs: map[string]*job.Job{
			"beam-scan": job.New("beam-scan", child.Spec{Path: "/bin/true", Timeout: time.Second}, nil, logger, nil),
		},
		triggerErr: map[string]error{},
	}
	s := New(Config{Listen: "127.0.0.1:0", APIKey: apiKey}, jobs, &fakeHistory{}, events.NewHub(16), logger)
	return s, jobs
}

func doRequest(s *Server, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	s, _ := testServer(t, "secret")
	rec := doRequest(s, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthzResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if resp.Status != "ok" || resp.Jobs != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAuthEnforcement(t *testing.T) {
	s, _ := testServer(t, "secret")

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"right key", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/v1/jobs", tt.key)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	s, _ := testServer(t, "")
	if rec := doRequest(s, http.MethodGet, "/v1/jobs", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestTriggerSemantics(t *testing.T) {
	s, jobs := testServer(t, "")
	jobs.jobs["busy-job"] = jobs.jobs["beam-scan"]
	jobs.triggerErr["busy-job"] = job.ErrBusy

	tests := []struct {
		path string
		want int
	}{
		{"/v1/jobs/beam-scan/trigger", http.StatusAccepted},
		{"/v1/jobs/busy-job/trigger", http.StatusConflict},
		{"/v1/jobs/missing/trigger", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := doRequest(s, http.MethodPost, tt.path, "")
		if rec.Code != tt.want {
			t.Errorf("POST %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
	if len(jobs.triggered) != 1 || jobs.triggered[0] != "beam-scan" {
		t.Errorf("triggered = %v", jobs.triggered)
	}
}

func TestGetJob(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(s, http.MethodGet, "/v1/jobs/beam-scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var v JobView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("body: %v", err)
	}
	if v.Name != "beam-scan" || v.Phase != "idle" {
		t.Errorf("view = %+v", v)
	}

	if rec := doRequest(s, http.MethodGet, "/v1/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestJobRuns(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := &fakeJobs{jobs: map[string]*job.Job{
		"beam-scan": job.New("beam-scan", child.Spec{Path: "/bin/true", Timeout: time.Second}, nil, logger, nil),
	}}
	history := &fakeHistory{runs: []runlog.Run{{ID: "r1", Job: "beam-scan", Status: "ok"}}}
	s := New(Config{}, jobs, history, events.NewHub(16), logger)

	rec := doRequest(s, http.MethodGet, "/v1/jobs/beam-scan/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var runs []runlog.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("runs = %+v", runs)
	}

	if rec := doRequest(s, http.MethodGet, "/v1/jobs/beam-scan/runs?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestEventsStreamReplaysBuffer(t *testing.T) {
	s, _ := testServer(t, "")
	hub := s.events.(*events.Hub)
	hub.JobCompleted("beam-scan", "ok", 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.HasPrefix(body, "retry: ") {
		t.Errorf("stream missing reconnect hint:\n%s", body)
	}
	if !strings.Contains(body, "id: 1\n") {
		t.Errorf("stream missing event id:\n%s", body)
	}
	if !strings.Contains(body, "event: job.completed") {
		t.Errorf("stream missing event type:\n%s", body)
	}
	if !strings.Contains(body, `"job":"beam-scan"`) {
		t.Errorf("stream missing payload:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
