package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	accountmodels "intromarket/internal/accounts/models"
	"intromarket/internal/introduction/models"
	"intromarket/internal/introduction/query"
	"intromarket/internal/introduction/service"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	"intromarket/pkg/platform/httputil"
	authmw "intromarket/pkg/platform/middleware/auth"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/requestcontext"
)

type Lifecycle interface {
	Send(ctx context.Context, cmd service.SendCommand) (*models.Request, error)
	MarkViewed(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID) error
	Accept(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID, message string) error
	Decline(ctx context.Context, rid id.IntroductionID, pid id.ProfessionalID, message string) error
	ReconcileExpired(ctx context.Context, batchSize int) (int, error)
}

type Queries interface {
	List(ctx context.Context, scope query.Scope, f query.Filter) (*query.Page, error)
	Counts(ctx context.Context, scope query.Scope) (map[models.Status]int, error)
}

type PartnerDirectory interface {
	FindHRPartner(ctx context.Context, hid id.HRPartnerID) (*accountmodels.HRPartner, error)
}

type Handler struct {
	lifecycle Lifecycle
	queries   Queries
	partners  PartnerDirectory
	logger    *slog.Logger
}

func New(lifecycle Lifecycle, queries Queries, partners PartnerDirectory, logger *slog.Logger) *Handler {
	return &Handler{lifecycle: lifecycle, queries: queries, partners: partners, logger: logger}
}

// Register mounts the actor-facing routes. The caller applies RequireAuth;
// role checks happen here.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireRole(requestcontext.RoleHRPartner))
		r.Post("/introductions", h.HandleSend)
		r.Get("/companies/{id}/introductions", h.HandleListCompany)
		r.Get("/companies/{id}/introductions/counts", h.HandleCountsCompany)
	})
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireRole(requestcontext.RoleProfessional))
		r.Post("/introductions/{id}/view", h.HandleView)
		r.Post("/introductions/{id}/accept", h.HandleAccept)
		r.Post("/introductions/{id}/decline", h.HandleDecline)
		r.Get("/professionals/me/introductions", h.HandleListMine)
		r.Get("/professionals/me/introductions/counts", h.HandleCountsMine)
	})
}

// RegisterAdmin mounts the reconcile trigger; the caller applies the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/introductions/reconcile", h.HandleReconcile)
}

type SendRequest struct {
	CompanyID      string   `json:"company_id"`
	ProfessionalID string   `json:"professional_id"`
	RoleTitle      string   `json:"role_title"`
	Message        string   `json:"message"`
	MatchScore     *float64 `json:"match_score"`

	companyID      id.CompanyID
	professionalID id.ProfessionalID
}

func (r *SendRequest) Validate() error {
	cid, err := id.ParseCompanyID(strings.TrimSpace(r.CompanyID))
	if err != nil {
		return err
	}
	pid, err := id.ParseProfessionalID(strings.TrimSpace(r.ProfessionalID))
	if err != nil {
		return err
	}
	r.companyID, r.professionalID = cid, pid
	return nil
}

type RespondRequest struct {
	Message string `json:"message"`
}

func (r *RespondRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	if len(r.Message) > models.MaxMessageLength {
		return dErrors.New(dErrors.CodeInvalidInput, "message is too long")
	}
	return nil
}

type ReconcileRequest struct {
	BatchSize int `json:"batch_size"`
}

func (r *ReconcileRequest) Validate() error {
	if r.BatchSize < 0 || r.BatchSize > service.MaxReconcileBatch {
		return dErrors.New(dErrors.CodeInvalidInput, "batch_size must be between 1 and 1000")
	}
	return nil
}

type introductionResponse struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	ProfessionalID  string     `json:"professional_id"`
	SentByID        string     `json:"sent_by_id"`
	Status          string     `json:"status"`
	RoleTitle       string     `json:"role_title,omitempty"`
	Message         string     `json:"message,omitempty"`
	MatchScore      *float64   `json:"match_score,omitempty"`
	SentAt          time.Time  `json:"sent_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Viewed          bool       `json:"viewed"`
	ViewedAt        *time.Time `json:"viewed_at,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	ResponseMessage string     `json:"response_message,omitempty"`
	CompanyName     string     `json:"company_name,omitempty"`
	CompanyIndustry string     `json:"company_industry,omitempty"`
	CompanyLocation string     `json:"company_location,omitempty"`
}

type listResponse struct {
	Introductions []introductionResponse `json:"introductions"`
	Total         int                    `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
}

func toResponse(it query.Item) introductionResponse {
	return introductionResponse{
		ID:              it.ID.String(),
		CompanyID:       it.CompanyID.String(),
		ProfessionalID:  it.ProfessionalID.String(),
		SentByID:        it.SentByID.String(),
		Status:          string(it.EffectiveStatus),
		RoleTitle:       it.RoleTitle,
		Message:         it.Message,
		MatchScore:      it.MatchScore,
		SentAt:          it.SentAt,
		ExpiresAt:       it.ExpiresAt,
		Viewed:          it.ViewedByProfessional,
		ViewedAt:        it.ViewedAt,
		RespondedAt:     it.RespondedAt,
		ResponseMessage: it.ResponseMessage,
		CompanyName:     it.CompanyName,
		CompanyIndustry: it.CompanyIndustry,
		CompanyLocation: it.CompanyLocation,
	}
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.lifecycle.Send(ctx, service.SendCommand{
		CompanyID:      req.companyID,
		ProfessionalID: req.professionalID,
		SentByID:       id.HRPartnerID(requestcontext.ActorID(ctx)),
		RoleTitle:      req.RoleTitle,
		Message:        req.Message,
		MatchScore:     req.MatchScore,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "introduction send rejected",
			"request_id", requestID,
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"request_id": created.ID.String(),
		"expires_at": created.ExpiresAt,
	})
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rid, err := id.ParseIntroductionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.lifecycle.MarkViewed(ctx, rid, id.ProfessionalID(requestcontext.ActorID(ctx))); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.handleRespond(w, r, h.lifecycle.Accept)
}

func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	h.handleRespond(w, r, h.lifecycle.Decline)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request,
	respond func(context.Context, id.IntroductionID, id.ProfessionalID, string) error,
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	rid, err := id.ParseIntroductionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RespondRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := respond(ctx, rid, id.ProfessionalID(requestcontext.ActorID(ctx)), req.Message); err != nil {
		h.logger.InfoContext(ctx, "introduction response rejected",
			"request_id", requestID,
			"introduction_id", rid.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	scope := query.ProfessionalScope(id.ProfessionalID(requestcontext.ActorID(r.Context())))
	h.list(w, r, scope)
}

func (h *Handler) HandleCountsMine(w http.ResponseWriter, r *http.Request) {
	scope := query.ProfessionalScope(id.ProfessionalID(requestcontext.ActorID(r.Context())))
	h.counts(w, r, scope)
}

func (h *Handler) HandleListCompany(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.companyScope(w, r)
	if !ok {
		return
	}
	h.list(w, r, scope)
}

func (h *Handler) HandleCountsCompany(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.companyScope(w, r)
	if !ok {
		return
	}
	h.counts(w, r, scope)
}

// companyScope admits HR partners of the company in the path only.
func (h *Handler) companyScope(w http.ResponseWriter, r *http.Request) (query.Scope, bool) {
	ctx := r.Context()
	cid, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return query.Scope{}, false
	}
	partner, err := h.partners.FindHRPartner(ctx, id.HRPartnerID(requestcontext.ActorID(ctx)))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not a member of this company"))
		return query.Scope{}, false
	case err != nil:
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load hr partner"))
		return query.Scope{}, false
	case partner.CompanyID != cid:
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not a member of this company"))
		return query.Scope{}, false
	}
	return query.CompanyScope(cid), true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, scope query.Scope) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.queries.List(r.Context(), scope, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := listResponse{
		Introductions: make([]introductionResponse, 0, len(page.Items)),
		Total:         page.Total,
		Page:          page.Page,
		PageSize:      page.PageSize,
	}
	for _, it := range page.Items {
		out.Introductions = append(out.Introductions, toResponse(it))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) counts(w http.ResponseWriter, r *http.Request, scope query.Scope) {
	counts, err := h.queries.Counts(r.Context(), scope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make(map[string]int, len(counts))
	for st, n := range counts {
		out[string(st)] = n
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"counts": out})
}

// parseFilter reads status (repeatable or comma separated), q, sort, page
// and page_size.
func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	var f query.Filter
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, err := models.ParseStatus(part)
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	f.Search = q.Get("q")
	sort, err := query.ParseSort(q.Get("sort"))
	if err != nil {
		return f, err
	}
	f.Sort = sort
	if f.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = intParam(q.Get("page_size"), "page_size"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a positive integer")
	}
	return n, nil
}

func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReconcileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	n, err := h.lifecycle.ReconcileExpired(ctx, req.BatchSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "reconcile failed",
			"request_id", requestID,
			"expired_before_failure", n,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}
