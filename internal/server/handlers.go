package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
	"github.com/e-roy/find-a-flight-school-sub001/internal/trust"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enqueueRequest struct {
	SchoolID string `json:"school_id"`
}

type enqueueResponse struct {
	Entry   *model.CrawlQueueEntry `json:"entry"`
	Created bool                   `json:"created"`
}

func (s *Server) handleCrawlEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeBody(r, &req); err != nil || req.SchoolID == "" {
		writeError(w, resilience.NewValidationError("body requires school_id"))
		return
	}
	if err := validSchoolID(req.SchoolID); err != nil {
		writeError(w, err)
		return
	}

	sc, err := s.deps.Schools.GetByID(r.Context(), req.SchoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sc == nil || sc.Tombstoned() {
		writeError(w, resilience.NewNotFoundError("school", req.SchoolID))
		return
	}
	if sc.Domain == "" {
		writeError(w, resilience.NewValidationError("school %s has no resolved domain", req.SchoolID))
		return
	}

	entry, created, err := s.deps.Queue.Enqueue(r.Context(), sc.ID, sc.Domain, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enqueueResponse{Entry: entry, Created: created})
}

type limitRequest struct {
	Limit int `json:"limit"`
}

// Batch endpoints return 200 with structured per-item errors; only a pass
// that cannot start at all is an error response.

func (s *Server) handleCrawlRun(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, resilience.NewValidationError("invalid request body"))
		return
	}

	res, err := s.deps.Crawler.RunBatch(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSeedsResolve(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, resilience.NewValidationError("invalid request body"))
		return
	}

	res, err := s.deps.Resolver.Run(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDedupeRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Deduper.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefreshRun(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, resilience.NewValidationError("invalid request body"))
		return
	}

	res, err := s.deps.Refresh.Run(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type moderateRequest struct {
	SchoolID string    `json:"school_id"`
	FactKey  string    `json:"fact_key"`
	AsOf     time.Time `json:"as_of"`
	Decision string    `json:"decision"`
}

func (s *Server) handleFactsModerate(w http.ResponseWriter, r *http.Request) {
	var req moderateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, resilience.NewValidationError("invalid request body"))
		return
	}
	if req.SchoolID == "" || req.FactKey == "" || req.AsOf.IsZero() {
		writeError(w, resilience.NewValidationError("body requires school_id, fact_key, and as_of"))
		return
	}
	if err := validSchoolID(req.SchoolID); err != nil {
		writeError(w, err)
		return
	}

	err := s.deps.Facts.Moderate(r.Context(), req.SchoolID, req.FactKey, req.AsOf,
		model.ModerationStatus(req.Decision))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.ModerationStatus(req.Decision))})
}

func (s *Server) handleSchoolFacts(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "id")

	// A malformed id is just a path to nowhere, not a caller error.
	if _, err := uuid.Parse(schoolID); err != nil {
		writeError(w, resilience.NewNotFoundError("school", schoolID))
		return
	}

	sc, err := s.deps.Schools.GetByID(r.Context(), schoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sc == nil {
		writeError(w, resilience.NewNotFoundError("school", schoolID))
		return
	}

	current, err := s.deps.Facts.Current(r.Context(), schoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"school_id": schoolID,
		"facts":     current,
	})
}

func (s *Server) handleTrustTier(w http.ResponseWriter, r *http.Request) {
	velocity, err := optionalScore(r, "velocity")
	if err != nil {
		writeError(w, err)
		return
	}
	reliability, err := optionalScore(r, "reliability")
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"tier": string(trust.Score(velocity, reliability)),
	})
}

// optionalScore parses a [0,1] query parameter, nil when absent.
func optionalScore(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		return nil, resilience.NewValidationError("%s must be a number in [0,1]", name)
	}
	return &f, nil
}

// validSchoolID rejects ids that would fail the store's UUID cast, keeping
// malformed input a 400 rather than a surfaced database error.
func validSchoolID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return resilience.NewValidationError("school_id must be a UUID")
	}
	return nil
}

type claimRequest struct {
	SchoolID string `json:"school_id"`
	Email    string `json:"email"`
}

func (s *Server) handleClaimRequest(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil || req.SchoolID == "" || req.Email == "" {
		writeError(w, resilience.NewValidationError("body requires school_id and email"))
		return
	}
	if err := validSchoolID(req.SchoolID); err != nil {
		writeError(w, err)
		return
	}

	if err := s.deps.Claims.Request(r.Context(), req.SchoolID, req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verification sent"})
}

type claimVerifyRequest struct {
	SchoolID string `json:"school_id"`
	Token    string `json:"token"`
}

func (s *Server) handleClaimVerify(w http.ResponseWriter, r *http.Request) {
	var req claimVerifyRequest
	if err := decodeBody(r, &req); err != nil || req.SchoolID == "" || req.Token == "" {
		writeError(w, resilience.NewValidationError("body requires school_id and token"))
		return
	}
	if err := validSchoolID(req.SchoolID); err != nil {
		writeError(w, err)
		return
	}

	if err := s.deps.Claims.Verify(r.Context(), req.SchoolID, req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.ClaimVerified)})
}

type claimEditRequest struct {
	SchoolID string          `json:"school_id"`
	Facts    json.RawMessage `json:"facts"`
}

func (s *Server) handleClaimEdit(w http.ResponseWriter, r *http.Request) {
	var req claimEditRequest
	if err := decodeBody(r, &req); err != nil || req.SchoolID == "" || len(req.Facts) == 0 {
		writeError(w, resilience.NewValidationError("body requires school_id and facts"))
		return
	}
	if err := validSchoolID(req.SchoolID); err != nil {
		writeError(w, err)
		return
	}

	n, err := s.deps.Claims.SubmitFacts(r.Context(), req.SchoolID, req.Facts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submitted": n,
		"status":    string(model.ModerationPending),
	})
}
