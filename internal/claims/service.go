package claims

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/facts"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
	"github.com/e-roy/find-a-flight-school-sub001/internal/school"
)

// Mailer dispatches verification emails. pkg/mailer provides the production
// implementation.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements the ownership claim flow: request a token, verify it,
// then submit owner edits as CLAIM-provenance facts awaiting moderation.
type Service struct {
	claims     Store
	schools    school.Store
	facts      facts.Store
	normalizer *facts.Normalizer
	mailer     Mailer
	now        func() time.Time
}

// NewService wires the claim service.
func NewService(claims Store, schools school.Store, factStore facts.Store, mailer Mailer) *Service {
	return &Service{
		claims:     claims,
		schools:    schools,
		facts:      factStore,
		normalizer: facts.NewNormalizer(),
		mailer:     mailer,
		now:        time.Now,
	}
}

// Request issues (or rotates) a verification token for the school. The
// requesting email must be on the school's own domain. Email dispatch failure
// is logged, not returned: the token row is already written and the owner can
// re-request.
func (s *Service) Request(ctx context.Context, schoolID, email string) error {
	sc, err := s.schools.GetByID(ctx, schoolID)
	if err != nil {
		return err
	}
	if sc == nil || sc.Tombstoned() {
		return resilience.NewNotFoundError("school", schoolID)
	}
	if sc.Domain == "" {
		return resilience.NewValidationError("school %s has no resolved domain to verify against", schoolID)
	}
	if !emailMatchesDomain(email, sc.Domain) {
		return resilience.NewValidationError("email domain does not match school domain %s", sc.Domain)
	}

	token := uuid.NewString()
	if err := s.claims.Upsert(ctx, schoolID, email, token, s.now().UTC()); err != nil {
		return err
	}

	subject := fmt.Sprintf("Verify your listing for %s", sc.CanonicalName)
	body := fmt.Sprintf("Your verification token is %s. It expires in %s.",
		token, model.ClaimTokenTTL)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		zap.L().Error("claims: verification email dispatch failed",
			zap.String("school_id", schoolID),
			zap.Error(err))
	}
	return nil
}

// Verify consumes a verification token: PENDING -> VERIFIED, once. Expired
// tokens are rejected; re-verifying an already verified claim conflicts.
func (s *Service) Verify(ctx context.Context, schoolID, token string) error {
	claim, err := s.claims.Get(ctx, schoolID)
	if err != nil {
		return err
	}
	if claim == nil {
		return resilience.NewNotFoundError("claim", schoolID)
	}
	if claim.Status == model.ClaimVerified {
		return resilience.NewConflictError("claim for school %s is already verified", schoolID)
	}
	if claim.Token != token {
		return resilience.NewValidationError("verification token does not match")
	}
	if claim.TokenExpired(s.now().UTC()) {
		return resilience.NewValidationError("verification token has expired")
	}

	ok, err := s.claims.MarkVerified(ctx, schoolID, token)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with another verify or a token rotation.
		return resilience.NewConflictError("claim for school %s changed during verification", schoolID)
	}
	return nil
}

// SubmitFacts ingests owner-submitted edits for a verified school. The edits
// enter the fact store as CLAIM provenance, PENDING moderation; nothing is
// publicly visible until approved. Returns the number of fact versions
// written.
func (s *Service) SubmitFacts(ctx context.Context, schoolID string, payload []byte) (int, error) {
	claim, err := s.claims.Get(ctx, schoolID)
	if err != nil {
		return 0, err
	}
	if claim == nil {
		return 0, resilience.NewNotFoundError("claim", schoolID)
	}
	if claim.Status != model.ClaimVerified {
		return 0, resilience.NewConflictError("school %s has no verified claim", schoolID)
	}

	newFacts, err := s.normalizer.Normalize(schoolID, payload, model.ProvenanceClaim, s.now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "claims: normalize owner edits")
	}
	if len(newFacts) == 0 {
		return 0, resilience.NewValidationError("submission contains no recognized facts")
	}

	return s.facts.Append(ctx, newFacts)
}

// emailMatchesDomain checks that the email's host part equals the school's
// domain or a subdomain of it.
func emailMatchesDomain(email, domain string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	host := strings.ToLower(email[at+1:])
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
