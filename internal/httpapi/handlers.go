package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/vaakya-labs/anuvadam/internal/document"
	"github.com/vaakya-labs/anuvadam/internal/engine"
	"github.com/vaakya-labs/anuvadam/internal/jobs"
	"github.com/vaakya-labs/anuvadam/internal/persistence"
	"github.com/vaakya-labs/anuvadam/pkg/log"
)

func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engines": s.registry.Names(),
	})
}

type createJobRequest struct {
	Text     string   `json:"text,omitempty"`
	Segments []string `json:"segments,omitempty"`
	Engines  []string `json:"engines"`
	Source   string   `json:"source,omitempty"`
	Target   string   `json:"target,omitempty"`
}

type createJobResponse struct {
	JobID    string   `json:"job_id"`
	Engines  []string `json:"engines"`
	Segments int      `json:"segments"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	segments := req.Segments
	if len(segments) == 0 && strings.TrimSpace(req.Text) != "" {
		segments = document.SplitParagraphs(req.Text)
	}
	if len(segments) == 0 {
		writeError(w, http.StatusBadRequest, "request needs text or segments")
		return
	}

	engines := req.Engines
	if len(engines) == 0 {
		engines = s.registry.Names()
	}

	source, err := s.resolveSource(req.Source, segments)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target := s.defaultTarget
	if req.Target != "" {
		if target, err = language.Parse(req.Target); err != nil {
			writeError(w, http.StatusBadRequest, "invalid target language: "+req.Target)
			return
		}
	}

	job, err := s.orchestrator.Start(r.Context(), jobs.StartRequest{
		Segments: segments,
		Engines:  engines,
		Source:   source,
		Target:   target,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, createJobResponse{
		JobID:    job.ID,
		Engines:  engines,
		Segments: len(segments),
		Source:   source.String(),
		Target:   target.String(),
	})
}

// resolveSource uses the explicit source when given, falls back to
// detection over the segments and finally to the configured default.
// Detection is advisory: a mismatch with an explicit source is logged,
// never rejected.
func (s *Server) resolveSource(explicit string, segments []string) (language.Tag, error) {
	if explicit != "" {
		tag, err := language.Parse(explicit)
		if err != nil {
			return language.Und, err
		}
		if detected := engine.DetectSource(segments); detected != language.Und && detected != tag {
			log.Warn("Detected source language %s differs from requested %s", detected, tag)
		}
		return tag, nil
	}
	if detected := engine.DetectSource(segments); detected != language.Und {
		return detected, nil
	}
	return s.defaultSource, nil
}

type jobSummary struct {
	JobID       string    `json:"job_id"`
	AllComplete bool      `json:"all_complete"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.orchestrator.List()
	ret := make([]jobSummary, 0, len(list))
	for _, job := range list {
		ret = append(ret, jobSummary{
			JobID:       job.ID,
			AllComplete: job.AllComplete(),
			CreatedAt:   job.CreatedAt,
			UpdatedAt:   job.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": ret})
}

type jobStatusResponse struct {
	JobID       string                     `json:"job_id"`
	Source      string                     `json:"source"`
	Target      string                     `json:"target"`
	Segments    int                        `json:"segments"`
	Runs        map[string]*jobs.EngineRun `json:"runs"`
	AllComplete bool                       `json:"all_complete"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, ok := s.orchestrator.Status(id)
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, jobStatusResponse{
			JobID:       job.ID,
			Source:      job.Source.String(),
			Target:      job.Target.String(),
			Segments:    len(job.Segments),
			Runs:        job.Runs,
			AllComplete: job.AllComplete(),
			CreatedAt:   job.CreatedAt,
			UpdatedAt:   job.UpdatedAt,
		})
	case http.MethodDelete:
		if !s.orchestrator.Delete(id) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		writeError(w, http.StatusNotImplemented, "feedback store not configured")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var entry persistence.FeedbackEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		id, err := s.feedback.SaveFeedback(r.Context(), entry)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}
		entries, err := s.feedback.ListFeedback(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"feedback": entries})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engines": s.registry.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
