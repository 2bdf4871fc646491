// Package verification decides whether professionals and companies are
// trusted enough to take part in introductions and records the verdicts.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"intromarket/internal/accounts/models"
	"intromarket/internal/domainmatch"
	"intromarket/internal/verification/metrics"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	audit "intromarket/pkg/platform/audit"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/requestcontext"
)

const (
	defaultRetryDelay = 500 * time.Millisecond
	systemActor       = "system"
)

// AccountStore is the slice of the account store verification writes to.
type AccountStore interface {
	FindProfessional(ctx context.Context, pid id.ProfessionalID) (*models.Professional, error)
	FindCompany(ctx context.Context, cid id.CompanyID) (*models.Company, error)
	FindCompanyAdmin(ctx context.Context, cid id.CompanyID) (*models.HRPartner, error)
	UpgradeProfessional(ctx context.Context, pid id.ProfessionalID, v models.ProfessionalVerification) (bool, error)
	RecordProfessionalReview(ctx context.Context, pid id.ProfessionalID, r models.ProfessionalReview) (bool, error)
	ApplyCompanyVerification(ctx context.Context, cid id.CompanyID, v models.CompanyVerification) (bool, error)
}

// TxRunner makes a verdict write and its audit event commit together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProfessionalOutcome describes what a LinkedIn verification run did.
type ProfessionalOutcome string

const (
	OutcomeVerified             ProfessionalOutcome = "verified"
	OutcomeAlreadyVerified      ProfessionalOutcome = "already_verified"
	OutcomeManualReviewRequired ProfessionalOutcome = "manual_review_required"
)

type ProfessionalResult struct {
	Status  models.ProfessionalStatus
	Outcome ProfessionalOutcome
}

type CompanyResult struct {
	Verdict       CompanyVerdict
	CompanyStatus models.CompanyStatus
	// Applied is false when the stored status was left alone (PREMIUM).
	Applied bool
}

type Service struct {
	accounts   AccountStore
	prober     Prober
	tx         TxRunner
	matcher    domainmatch.Matcher
	audit      *audit.Emitter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	retryDelay time.Duration
}

type Option func(*Service)

func WithMatcher(m domainmatch.Matcher) Option {
	return func(s *Service) {
		s.matcher = m
	}
}

func WithAuditEmitter(e *audit.Emitter) Option {
	return func(s *Service) {
		s.audit = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRetryDelay sets the wait before the single probe retry.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

func New(accounts AccountStore, prober Prober, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		prober:     prober,
		tx:         tx,
		logger:     slog.Default(),
		tracer:     otel.Tracer("intromarket/verification"),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyProfessional checks the professional's LinkedIn URL and upgrades
// them to at least BASIC on success. Reachability failures are retried once
// and then reported as OutcomeManualReviewRequired rather than an error.
func (s *Service) VerifyProfessional(ctx context.Context, pid id.ProfessionalID, reviewer, notes string) (*ProfessionalResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyProfessional",
		trace.WithAttributes(attribute.String("professional_id", pid.String())))
	defer span.End()

	if reviewer == "" {
		reviewer = systemActor
	}

	prof, err := s.accounts.FindProfessional(ctx, pid)
	if err != nil {
		return nil, s.fail(span, translateNotFound(err, "professional not found"))
	}
	if prof.IsDeleted() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeNotFound, "professional not found"))
	}
	if prof.LinkedInURL == "" {
		return nil, s.fail(span, dErrors.New(dErrors.CodeInvalidFormat, "professional has no linkedin url"))
	}
	if err := ValidateLinkedInURL(prof.LinkedInURL); err != nil {
		s.countOutcome("professional", "invalid_format")
		return nil, s.fail(span, err)
	}

	if err := s.probeWithRetry(ctx, prof.LinkedInURL); err != nil {
		s.logger.WarnContext(ctx, "linkedin probe failed after retry",
			"request_id", requestcontext.RequestID(ctx),
			"professional_id", pid.String(),
			"error", err,
		)
		reviewNote := "linkedin profile unreachable; manual review required"
		if notes != "" {
			reviewNote += ": " + notes
		}
		reason := err.Error()
		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.accounts.RecordProfessionalReview(ctx, pid, models.ProfessionalReview{
				ReviewedAt: requestcontext.Now(ctx),
				ReviewedBy: reviewer,
				Notes:      reviewNote,
			}); err != nil {
				return translateNotFound(err, "professional not found")
			}
			return s.emit(ctx, audit.EventLinkedInManualReview, audit.Event{
				ActorID:  reviewer,
				Subject:  pid.String(),
				Decision: string(OutcomeManualReviewRequired),
				Reason:   reason,
			})
		})
		if err != nil {
			return nil, s.fail(span, err)
		}
		s.countOutcome("professional", string(OutcomeManualReviewRequired))
		span.SetAttributes(attribute.String("outcome", string(OutcomeManualReviewRequired)))
		return &ProfessionalResult{Status: prof.VerificationStatus, Outcome: OutcomeManualReviewRequired}, nil
	}

	if notes == "" {
		notes = "linkedin profile verified"
	}
	var changed bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		changed, err = s.accounts.UpgradeProfessional(ctx, pid, models.ProfessionalVerification{
			Status:     models.ProfessionalBasic,
			VerifiedAt: requestcontext.Now(ctx),
			VerifiedBy: reviewer,
			Notes:      notes,
		})
		if err != nil {
			return translateNotFound(err, "professional not found")
		}
		if !changed {
			return nil
		}
		return s.emit(ctx, audit.EventLinkedInVerified, audit.Event{
			ActorID:  reviewer,
			Subject:  pid.String(),
			Decision: string(models.ProfessionalBasic),
			Reason:   notes,
		})
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	result := &ProfessionalResult{Status: prof.VerificationStatus, Outcome: OutcomeAlreadyVerified}
	if changed {
		result = &ProfessionalResult{Status: models.ProfessionalBasic, Outcome: OutcomeVerified}
	}
	s.countOutcome("professional", string(result.Outcome))
	s.logger.InfoContext(ctx, "professional verification completed",
		"request_id", requestcontext.RequestID(ctx),
		"professional_id", pid.String(),
		"outcome", string(result.Outcome),
		"status", string(result.Status),
	)
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	return result, nil
}

// probeWithRetry allows one retry after a backoff pause. Format errors are
// never retried.
func (s *Service) probeWithRetry(ctx context.Context, url string) error {
	if s.metrics != nil {
		defer s.metrics.ObserveProbe(time.Now())
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryDelay
	policy.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := CheckLinkedIn(ctx, s.prober, url)
		if err != nil && dErrors.HasCode(err, dErrors.CodeInvalidFormat) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, 1), ctx))
}

// VerifyCompany records a domain verdict for the company. PREMIUM companies
// keep their status; the verdict is still returned.
func (s *Service) VerifyCompany(ctx context.Context, cid id.CompanyID, reviewer string) (*CompanyResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyCompany",
		trace.WithAttributes(attribute.String("company_id", cid.String())))
	defer span.End()

	if reviewer == "" {
		reviewer = systemActor
	}

	company, err := s.accounts.FindCompany(ctx, cid)
	if err != nil {
		return nil, s.fail(span, translateNotFound(err, "company not found"))
	}

	var (
		adminEmail string
		hasAdmin   bool
	)
	admin, err := s.accounts.FindCompanyAdmin(ctx, cid)
	switch {
	case err == nil:
		adminEmail, hasAdmin = admin.Email, true
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company admin"))
	}

	verdict := DecideCompany(s.matcher, company.Website, adminEmail, hasAdmin)

	update := models.CompanyVerification{
		VerifiedAt: requestcontext.Now(ctx),
		VerifiedBy: reviewer,
		Notes:      verdict.Reason,
	}
	newStatus := company.VerificationStatus
	switch verdict.Status {
	case CompanyVerdictVerified:
		newStatus = models.CompanyVerified
		update.Status = &newStatus
	case CompanyVerdictUnverified:
		newStatus = models.CompanyUnverified
		update.Status = &newStatus
	}

	action := audit.EventCompanyManualReview
	switch verdict.Status {
	case CompanyVerdictVerified:
		action = audit.EventCompanyVerified
	case CompanyVerdictUnverified:
		action = audit.EventCompanyUnverified
	}

	var applied bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.accounts.ApplyCompanyVerification(ctx, cid, update)
		if err != nil {
			return translateNotFound(err, "company not found")
		}
		return s.emit(ctx, action, audit.Event{
			ActorID:  reviewer,
			Subject:  cid.String(),
			Decision: string(verdict.Status),
			Reason:   verdict.Reason,
		})
	})
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !applied {
		newStatus = company.VerificationStatus
	}

	s.countOutcome("company", string(verdict.Status))
	s.logger.InfoContext(ctx, "company verification completed",
		"request_id", requestcontext.RequestID(ctx),
		"company_id", cid.String(),
		"verdict", string(verdict.Status),
		"applied", applied,
	)
	span.SetAttributes(attribute.String("verdict", string(verdict.Status)))

	return &CompanyResult{Verdict: verdict, CompanyStatus: newStatus, Applied: applied}, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, event audit.Event) error {
	if err := s.audit.Emit(ctx, action, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification audit")
	}
	return nil
}

func (s *Service) countOutcome(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.IncOutcome(kind, outcome)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}

func translateNotFound(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "verification store failure")
}
