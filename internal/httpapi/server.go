package httpapi

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/vaakya-labs/anuvadam/internal/engine"
	"github.com/vaakya-labs/anuvadam/internal/jobs"
	"github.com/vaakya-labs/anuvadam/internal/persistence"
)

type feedbackStore interface {
	SaveFeedback(ctx context.Context, entry persistence.FeedbackEntry) (int64, error)
	ListFeedback(ctx context.Context, limit int) ([]persistence.FeedbackEntry, error)
}

type Server struct {
	orchestrator *jobs.Orchestrator
	registry     *engine.Registry
	feedback     feedbackStore

	defaultSource language.Tag
	defaultTarget language.Tag

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithFeedbackStore(store feedbackStore) Option {
	return func(s *Server) {
		s.feedback = store
	}
}

func WithLanguagePair(source, target language.Tag) Option {
	return func(s *Server) {
		s.defaultSource = source
		s.defaultTarget = target
	}
}

func NewServer(orchestrator *jobs.Orchestrator, registry *engine.Registry, opts ...Option) *Server {
	s := &Server{
		orchestrator:  orchestrator,
		registry:      registry,
		defaultSource: language.English,
		defaultTarget: language.Telugu,
		mux:           http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/engines", s.handleEngines)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleJobByID)
	s.mux.HandleFunc("/api/feedback", s.handleFeedback)
	s.mux.HandleFunc("/healthz", s.handleHealth)
}
