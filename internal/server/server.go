// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/e-roy/find-a-flight-school-sub001/internal/authz"
	"github.com/e-roy/find-a-flight-school-sub001/internal/crawl"
	"github.com/e-roy/find-a-flight-school-sub001/internal/dedupe"
	"github.com/e-roy/find-a-flight-school-sub001/internal/facts"
	"github.com/e-roy/find-a-flight-school-sub001/internal/refresh"
	"github.com/e-roy/find-a-flight-school-sub001/internal/school"
	"github.com/e-roy/find-a-flight-school-sub001/internal/seed"
)

// CrawlRunner drains the crawl queue.
type CrawlRunner interface {
	RunBatch(ctx context.Context, limit int) (*crawl.BatchResult, error)
}

// SeedResolver runs one seed resolution pass.
type SeedResolver interface {
	Run(ctx context.Context, limit int) (*seed.Result, error)
}

// Deduper runs one deduplication pass.
type Deduper interface {
	Run(ctx context.Context) (*dedupe.Result, error)
}

// Refresher runs one staleness refresh pass.
type Refresher interface {
	Run(ctx context.Context, limit int) (*refresh.Result, error)
}

// ClaimService handles the ownership claim flow.
type ClaimService interface {
	Request(ctx context.Context, schoolID, email string) error
	Verify(ctx context.Context, schoolID, token string) error
	SubmitFacts(ctx context.Context, schoolID string, payload []byte) (int, error)
}

// Deps carries everything the HTTP layer delegates to.
type Deps struct {
	Policy  *authz.Policy
	Schools school.Store
	Facts   facts.Store
	Queue   crawl.QueueStore

	Crawler  CrawlRunner
	Resolver SeedResolver
	Deduper  Deduper
	Refresh  Refresher
	Claims   ClaimService
}

// Server is the HTTP transport. Handlers delegate to the domain services and
// only translate between wire shapes and the error taxonomy.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router with its middleware stack.
func New(deps Deps) *Server {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Scheduler-Token"},
	}))

	r.Get("/health", s.handleHealth)

	// Pipeline operations need an operator or admin token; refresh may also
	// be invoked by the cron scheduler with its shared token.
	r.Group(func(r chi.Router) {
		r.Use(s.requireOperation(authz.OpRunPipeline, false))
		r.Post("/crawl/enqueue", s.handleCrawlEnqueue)
		r.Post("/crawl/run", s.handleCrawlRun)
		r.Post("/seeds/resolve", s.handleSeedsResolve)
		r.Post("/dedupe/run", s.handleDedupeRun)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.requireOperation(authz.OpRunPipeline, true))
		r.Post("/refresh/run", s.handleRefreshRun)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.requireOperation(authz.OpModerate, false))
		r.Post("/facts/moderate", s.handleFactsModerate)
	})

	// Public read surface and the owner claim flow.
	r.Get("/schools/{id}/facts", s.handleSchoolFacts)
	r.Get("/trust/tier", s.handleTrustTier)
	r.Post("/claims/request", s.handleClaimRequest)
	r.Post("/claims/verify", s.handleClaimVerify)
	r.Post("/claims/edit", s.handleClaimEdit)

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting.
func (s *Server) Handler() http.Handler {
	return s.router
}
