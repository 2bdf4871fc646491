// Package service runs the introduction lifecycle: send, view, accept,
// decline and expiry reconciliation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountmodels "intromarket/internal/accounts/models"
	"intromarket/internal/introduction/capacity"
	"intromarket/internal/introduction/metrics"
	"intromarket/internal/introduction/models"
	settingsmodels "intromarket/internal/settings/models"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	audit "intromarket/pkg/platform/audit"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/requestcontext"
)

const (
	DefaultReconcileBatch = 500
	MaxReconcileBatch     = 1000
)

type Store interface {
	capacity.RequestCounter
	Insert(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, rid id.IntroductionID) (*models.Request, error)
	MarkViewed(ctx context.Context, rid id.IntroductionID, at time.Time) (bool, error)
	Respond(ctx context.Context, rid id.IntroductionID, to models.Status, at time.Time, message string) (bool, error)
	ExpireBatch(ctx context.Context, now time.Time, limit int) ([]id.IntroductionID, error)
}

type Accounts interface {
	FindCompany(ctx context.Context, cid id.CompanyID) (*accountmodels.Company, error)
	FindHRPartner(ctx context.Context, hid id.HRPartnerID) (*accountmodels.HRPartner, error)
	FindProfessional(ctx context.Context, pid id.ProfessionalID) (*accountmodels.Professional, error)
	LockProfessional(ctx context.Context, pid id.ProfessionalID) (*accountmodels.Professional, error)
	DebitCredit(ctx context.Context, cid id.CompanyID) (bool, error)
}

type Guard interface {
	CanSend(ctx context.Context, cid id.CompanyID, pid id.ProfessionalID) (capacity.Decision, error)
	Snapshot(ctx context.Context, cid id.CompanyID, pid id.ProfessionalID, now time.Time, maxPending int) (capacity.Snapshot, error)
}

type SettingsProvider interface {
	Current(ctx context.Context) (settingsmodels.Settings, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store    Store
	accounts Accounts
	guard    Guard
	settings SettingsProvider
	tx       TxRunner
	audit    *audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

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

func New(store Store, accounts Accounts, guard Guard, settings SettingsProvider, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		store:    store,
		accounts: accounts,
		guard:    guard,
		settings: settings,
		tx:       tx,
		logger:   slog.Default(),
		tracer:   otel.Tracer("intromarket/introduction"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendCommand carries everything needed to create a request. SentByID is
// the authenticated HR partner.
type SendCommand struct {
	CompanyID      id.CompanyID
	ProfessionalID id.ProfessionalID
	SentByID       id.HRPartnerID
	RoleTitle      string
	Message        string
	MatchScore     *float64
}

func (c *SendCommand) Validate() error {
	c.RoleTitle = strings.TrimSpace(c.RoleTitle)
	c.Message = strings.TrimSpace(c.Message)
	switch {
	case c.CompanyID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "company_id is required")
	case c.ProfessionalID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "professional_id is required")
	case c.SentByID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "sender is required")
	case len(c.RoleTitle) > models.MaxRoleTitleLength:
		return dErrors.New(dErrors.CodeInvalidInput, "role_title is too long")
	case len(c.Message) > models.MaxMessageLength:
		return dErrors.New(dErrors.CodeInvalidInput, "message is too long")
	}
	return nil
}

// Send admits and creates a PENDING request. The admission checks are
// repeated inside the transaction after the recipient row is locked, and
// the credit debit is a conditional write, so concurrent sends can never
// overdraw credits or exceed the recipient's pending limit.
func (s *Service) Send(ctx context.Context, cmd SendCommand) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "introduction.Send")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveSend(time.Now())
	}

	if err := cmd.Validate(); err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("company_id", cmd.CompanyID.String()),
		attribute.String("professional_id", cmd.ProfessionalID.String()),
	)

	company, err := s.accounts.FindCompany(ctx, cmd.CompanyID)
	if err != nil {
		return nil, s.fail(span, translate(err, "company not found"))
	}
	if !company.VerificationStatus.CanSend() {
		return nil, s.fail(span, s.denied(ctx, cmd, dErrors.New(dErrors.CodeCompanyNotVerified,
			"company verification status "+string(company.VerificationStatus)+" cannot send introductions")))
	}

	partner, err := s.accounts.FindHRPartner(ctx, cmd.SentByID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.fail(span, translate(err, "hr partner not found"))
	}
	if partner == nil || partner.CompanyID != cmd.CompanyID {
		return nil, s.fail(span, dErrors.New(dErrors.CodeForbidden, "sender does not act for this company"))
	}

	prof, err := s.accounts.FindProfessional(ctx, cmd.ProfessionalID)
	if err != nil {
		return nil, s.fail(span, translate(err, "professional not found"))
	}
	if prof.IsDeleted() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeNotFound, "professional not found"))
	}

	decision, err := s.guard.CanSend(ctx, cmd.CompanyID, cmd.ProfessionalID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !decision.Allowed {
		return nil, s.fail(span, s.denied(ctx, cmd, decision.Err()))
	}

	limits, err := s.settings.Current(ctx)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings"))
	}

	now := requestcontext.Now(ctx)
	var created *models.Request
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.accounts.LockProfessional(ctx, cmd.ProfessionalID); err != nil {
			return translate(err, "professional not found")
		}
		debited, err := s.accounts.DebitCredit(ctx, cmd.CompanyID)
		if err != nil {
			return translate(err, "company not found")
		}
		if !debited {
			return capacity.Deny(capacity.ReasonInsufficientCredits).Err()
		}
		// The debit proved at least one credit was available.
		snap, err := s.guard.Snapshot(ctx, cmd.CompanyID, cmd.ProfessionalID, now, limits.MaxPendingPerProfessional)
		if err != nil {
			return err
		}
		snap.Credits = 1
		if d := capacity.Evaluate(snap); !d.Allowed {
			return d.Err()
		}

		req, err := models.NewPending(cmd.CompanyID, cmd.ProfessionalID, cmd.SentByID,
			cmd.RoleTitle, cmd.Message, cmd.MatchScore, now, limits.ExpiryWindow())
		if err != nil {
			return err
		}
		if err := s.store.Insert(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store introduction")
		}
		if err := s.audit.Emit(ctx, audit.EventIntroductionSent, audit.Event{
			ActorID:  cmd.SentByID.String(),
			Subject:  req.ID.String(),
			Decision: string(models.StatusPending),
			Reason:   "company " + cmd.CompanyID.String() + " to professional " + cmd.ProfessionalID.String(),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		created = req
		return nil
	})
	if err != nil {
		if isAdmissionDenial(err) {
			err = s.denied(ctx, cmd, err)
		}
		return nil, s.fail(span, err)
	}

	if s.metrics != nil {
		s.metrics.IncSend("sent")
	}
	s.logger.InfoContext(ctx, "introduction sent",
		"request_id", requestcontext.RequestID(ctx),
		"introduction_id", created.ID.String(),
		"company_id", cmd.CompanyID.String(),
		"professional_id", cmd.ProfessionalID.String(),
		"expires_at", created.ExpiresAt,
	)
	span.SetAttributes(attribute.String("introduction_id", created.ID.String()))
	return created, nil
}

// denied records an admission denial and returns err unchanged.
func (s *Service) denied(ctx context.Context, cmd SendCommand, err error) error {
	code := string(dErrors.CodeOf(err))
	if s.metrics != nil {
		s.metrics.IncSend(code)
	}
	s.logger.InfoContext(ctx, "introduction denied",
		"request_id", requestcontext.RequestID(ctx),
		"company_id", cmd.CompanyID.String(),
		"professional_id", cmd.ProfessionalID.String(),
		"reason", code,
	)
	s.audit.EmitBestEffort(ctx, audit.EventIntroductionDenied, audit.Event{
		ActorID:  cmd.SentByID.String(),
		Subject:  cmd.ProfessionalID.String(),
		Decision: "denied",
		Reason:   code,
	})
	return err
}

func isAdmissionDenial(err error) bool {
	for _, code := range []dErrors.Code{
		dErrors.CodeInsufficientCredits,
		dErrors.CodeRecipientAtCapacity,
		dErrors.CodeDuplicateActiveRequest,
	} {
		if dErrors.HasCode(err, code) {
			return true
		}
	}
	return false
}

// MarkViewed records the first view by the recipient. Later calls succeed
// without changing anything.
func (s *Service) MarkViewed(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID) error {
	ctx, span := s.tracer.Start(ctx, "introduction.MarkViewed",
		trace.WithAttributes(attribute.String("introduction_id", rid.String())))
	defer span.End()

	req, err := s.loadForRecipient(ctx, rid, pid)
	if err != nil {
		return s.fail(span, err)
	}
	if req.ViewedByProfessional {
		return nil
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		changed, err := s.store.MarkViewed(ctx, rid, now)
		if err != nil {
			return translate(err, "introduction not found")
		}
		if !changed {
			return nil
		}
		return s.audit.Emit(ctx, audit.EventIntroductionViewed, audit.Event{
			ActorID: pid.String(),
			Subject: rid.String(),
		})
	})
	if err != nil {
		return s.fail(span, err)
	}
	return nil
}

func (s *Service) Accept(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID, message string) error {
	return s.respond(ctx, rid, pid, models.StatusAccepted, message)
}

func (s *Service) Decline(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID, message string) error {
	return s.respond(ctx, rid, pid, models.StatusDeclined, message)
}

// respond performs the recipient's transition. Credits are never refunded.
func (s *Service) respond(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID, to models.Status, message string) error {
	ctx, span := s.tracer.Start(ctx, "introduction.Respond", trace.WithAttributes(
		attribute.String("introduction_id", rid.String()),
		attribute.String("target_status", string(to)),
	))
	defer span.End()

	message = strings.TrimSpace(message)
	if len(message) > models.MaxMessageLength {
		return s.fail(span, dErrors.New(dErrors.CodeInvalidInput, "response message is too long"))
	}

	req, err := s.loadForRecipient(ctx, rid, pid)
	if err != nil {
		return s.fail(span, err)
	}
	now := requestcontext.Now(ctx)
	if err := transitionError(req.EffectiveStatus(now)); err != nil {
		s.countResponse(to, string(dErrors.CodeOf(err)))
		return s.fail(span, err)
	}

	action := audit.EventIntroductionAccepted
	if to == models.StatusDeclined {
		action = audit.EventIntroductionDeclined
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		changed, err := s.store.Respond(ctx, rid, to, now, message)
		if err != nil {
			return translate(err, "introduction not found")
		}
		if !changed {
			return s.lostRace(ctx, rid, now)
		}
		return s.audit.Emit(ctx, action, audit.Event{
			ActorID:  pid.String(),
			Subject:  rid.String(),
			Decision: string(to),
		})
	})
	if err != nil {
		s.countResponse(to, string(dErrors.CodeOf(err)))
		return s.fail(span, err)
	}

	s.countResponse(to, "ok")
	s.logger.InfoContext(ctx, "introduction responded",
		"request_id", requestcontext.RequestID(ctx),
		"introduction_id", rid.String(),
		"status", string(to),
	)
	return nil
}

// lostRace classifies a conditional update that matched no row: someone
// else responded first, or the request expired in between.
func (s *Service) lostRace(ctx context.Context, rid id.IntroductionID, now time.Time) error {
	current, err := s.store.FindByID(ctx, rid)
	if err != nil {
		return translate(err, "introduction not found")
	}
	if err := transitionError(current.EffectiveStatus(now)); err != nil {
		return err
	}
	return dErrors.New(dErrors.CodeAlreadyResponded, "introduction was updated concurrently")
}

func transitionError(effective models.Status) error {
	switch effective {
	case models.StatusPending:
		return nil
	case models.StatusExpired:
		return dErrors.New(dErrors.CodeExpired, "introduction has expired")
	default:
		return dErrors.New(dErrors.CodeAlreadyResponded, "introduction was already "+strings.ToLower(string(effective)))
	}
}

func (s *Service) loadForRecipient(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID) (*models.Request, error) {
	req, err := s.store.FindByID(ctx, rid)
	if err != nil {
		return nil, translate(err, "introduction not found")
	}
	if req.ProfessionalID != pid {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the recipient may act on this introduction")
	}
	return req, nil
}

// ReconcileExpired flips effectively expired PENDING rows to EXPIRED in
// batches of batchSize until none remain, and returns how many it flipped.
// Re-running it flips nothing new.
func (s *Service) ReconcileExpired(ctx context.Context, batchSize int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "introduction.ReconcileExpired")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveReconcile(time.Now())
	}

	switch {
	case batchSize <= 0:
		batchSize = DefaultReconcileBatch
	case batchSize > MaxReconcileBatch:
		return 0, s.fail(span, dErrors.New(dErrors.CodeInvalidInput,
			"batch_size must be at most "+strconv.Itoa(MaxReconcileBatch)))
	}

	now := requestcontext.Now(ctx)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, s.fail(span, dErrors.Wrap(err, dErrors.CodeTimeout, "reconcile interrupted"))
		}
		var flipped []id.IntroductionID
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			ids, err := s.store.ExpireBatch(ctx, now, batchSize)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire introductions")
			}
			if len(ids) == 0 {
				return nil
			}
			if err := s.audit.Emit(ctx, audit.EventIntroductionsExpired, audit.Event{
				ActorID:  "system",
				Subject:  "introductions",
				Decision: string(models.StatusExpired),
				Reason:   strconv.Itoa(len(ids)) + " requests expired",
			}); err != nil {
				return err
			}
			flipped = ids
			return nil
		})
		if err != nil {
			return total, s.fail(span, err)
		}
		total += len(flipped)
		if s.metrics != nil {
			s.metrics.AddExpired(len(flipped))
		}
		if len(flipped) < batchSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("expired", total))
	if total > 0 {
		s.logger.InfoContext(ctx, "introductions expired",
			"request_id", requestcontext.RequestID(ctx),
			"count", total,
		)
	}
	return total, nil
}

func (s *Service) countResponse(to models.Status, outcome string) {
	if s.metrics != nil {
		s.metrics.IncResponse(string(to), outcome)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}

func translate(err error, notFound string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "introduction store failure")
	}
}
