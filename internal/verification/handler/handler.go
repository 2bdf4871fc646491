package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"intromarket/internal/verification"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	"intromarket/pkg/platform/httputil"
	"intromarket/pkg/requestcontext"
)

const maxNotesLength = 2000

type Service interface {
	VerifyProfessional(ctx context.Context, pid id.ProfessionalID, reviewer, notes string) (*verification.ProfessionalResult, error)
	VerifyCompany(ctx context.Context, cid id.CompanyID, reviewer string) (*verification.CompanyResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the verification routes; the caller applies the admin guard.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/professionals/{id}/verify", h.HandleVerifyProfessional)
	r.Post("/admin/companies/{id}/verify", h.HandleVerifyCompany)
}

// VerifyRequest is the optional body of both verify endpoints.
type VerifyRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes"`
}

func (r *VerifyRequest) Validate() error {
	r.ReviewerID = strings.TrimSpace(r.ReviewerID)
	r.Notes = strings.TrimSpace(r.Notes)
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeInvalidInput, "notes must be at most 2000 characters")
	}
	return nil
}

type professionalResponse struct {
	ProfessionalID string `json:"professional_id"`
	Status         string `json:"status"`
	Outcome        string `json:"outcome"`
}

type companyResponse struct {
	CompanyID     string `json:"company_id"`
	Verdict       string `json:"verdict"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	StatusApplied bool   `json:"status_applied"`
}

func (h *Handler) HandleVerifyProfessional(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	pid, err := id.ParseProfessionalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.VerifyProfessional(ctx, pid, req.ReviewerID, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "professional verification failed",
			"request_id", requestID,
			"professional_id", pid.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, professionalResponse{
		ProfessionalID: pid.String(),
		Status:         string(res.Status),
		Outcome:        string(res.Outcome),
	})
}

func (h *Handler) HandleVerifyCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cid, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.VerifyCompany(ctx, cid, req.ReviewerID)
	if err != nil {
		h.logger.WarnContext(ctx, "company verification failed",
			"request_id", requestID,
			"company_id", cid.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, companyResponse{
		CompanyID:     cid.String(),
		Verdict:       string(res.Verdict.Status),
		Status:        string(res.CompanyStatus),
		Reason:        res.Verdict.Reason,
		StatusApplied: res.Applied,
	})
}
