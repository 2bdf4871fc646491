// Package capacity decides whether a company may send another introduction
// to a professional. Decisions are advisory; the send transaction repeats
// them under locks before writing.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intromarket/internal/accounts/models"
	settingsmodels "intromarket/internal/settings/models"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/requestcontext"
)

type DenyReason string

const (
	ReasonInsufficientCredits    DenyReason = "INSUFFICIENT_CREDITS"
	ReasonRecipientAtCapacity    DenyReason = "RECIPIENT_AT_CAPACITY"
	ReasonDuplicateActiveRequest DenyReason = "DUPLICATE_ACTIVE_REQUEST"
)

type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func Admit() Decision { return Decision{Allowed: true} }

func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Err converts a denial into its domain error. Admitted decisions return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonInsufficientCredits:
		return dErrors.New(dErrors.CodeInsufficientCredits, "company has no introduction credits left")
	case ReasonRecipientAtCapacity:
		return dErrors.New(dErrors.CodeRecipientAtCapacity, "professional has reached the pending introduction limit")
	case ReasonDuplicateActiveRequest:
		return dErrors.New(dErrors.CodeDuplicateActiveRequest, "a pending introduction already exists for this professional")
	default:
		return dErrors.New(dErrors.CodeInternal, "unknown deny reason "+string(d.Reason))
	}
}

// Snapshot is the state a decision is derived from.
type Snapshot struct {
	Credits    int
	Pending    int
	MaxPending int
	Duplicate  bool
}

// Evaluate applies the deny reasons in priority order: credits, recipient
// capacity, then duplicate pair.
func Evaluate(s Snapshot) Decision {
	switch {
	case s.Credits <= 0:
		return Deny(ReasonInsufficientCredits)
	case s.Pending >= s.MaxPending:
		return Deny(ReasonRecipientAtCapacity)
	case s.Duplicate:
		return Deny(ReasonDuplicateActiveRequest)
	}
	return Admit()
}

// RequestCounter counts effectively pending requests as of now.
type RequestCounter interface {
	CountPendingForProfessional(ctx context.Context, pid id.ProfessionalID, now time.Time) (int, error)
	HasPendingForPair(ctx context.Context, cid id.CompanyID, pid id.ProfessionalID, now time.Time) (bool, error)
}

type CompanyReader interface {
	FindCompany(ctx context.Context, cid id.CompanyID) (*models.Company, error)
}

type SettingsProvider interface {
	Current(ctx context.Context) (settingsmodels.Settings, error)
}

type Guard struct {
	requests  RequestCounter
	companies CompanyReader
	settings  SettingsProvider
}

func NewGuard(requests RequestCounter, companies CompanyReader, settings SettingsProvider) *Guard {
	return &Guard{requests: requests, companies: companies, settings: settings}
}

// CanSend reads current credits, counts and settings and returns a
// decision. Errors are reserved for lookups that failed.
func (g *Guard) CanSend(ctx context.Context, cid id.CompanyID, pid id.ProfessionalID) (Decision, error) {
	company, err := g.companies.FindCompany(ctx, cid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Decision{}, dErrors.New(dErrors.CodeNotFound, "company not found")
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company")
	}
	if company.IntroductionCredits <= 0 {
		return Deny(ReasonInsufficientCredits), nil
	}
	limits, err := g.settings.Current(ctx)
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read settings")
	}
	snap, err := g.Snapshot(ctx, cid, pid, requestcontext.Now(ctx), limits.MaxPendingPerProfessional)
	if err != nil {
		return Decision{}, err
	}
	snap.Credits = company.IntroductionCredits
	return Evaluate(snap), nil
}

// Snapshot gathers the recipient-side counts as of now. Credits are left
// zero for the caller to fill.
func (g *Guard) Snapshot(ctx context.Context, cid id.CompanyID, pid id.ProfessionalID, now time.Time, maxPending int) (Snapshot, error) {
	pending, err := g.requests.CountPendingForProfessional(ctx, pid, now)
	if err != nil {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending introductions")
	}
	dup, err := g.requests.HasPendingForPair(ctx, cid, pid, now)
	if err != nil {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to check pair %s/%s", cid, pid))
	}
	return Snapshot{
		Pending:    pending,
		MaxPending: maxPending,
		Duplicate:  dup,
	}, nil
}
