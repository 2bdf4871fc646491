package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"intromarket/internal/settings/models"
	dErrors "intromarket/pkg/domain-errors"
	"intromarket/pkg/platform/httputil"
	"intromarket/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context) ([]models.Setting, error)
	Update(ctx context.Context, key, value string, expectedVersion int, updatedBy string) (models.Setting, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts settings routes; the caller applies the admin guard.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/settings", h.HandleList)
	r.Put("/admin/settings/{key}", h.HandleUpdate)
}

type settingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

func toResponse(s models.Setting) settingResponse {
	return settingResponse{
		Key:       string(s.Key),
		Value:     s.Value,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		UpdatedBy: s.UpdatedBy,
	}
}

// UpdateRequest is the body of PUT /admin/settings/{key}.
type UpdateRequest struct {
	Value     string `json:"value"`
	Version   int    `json:"version"`
	UpdatedBy string `json:"updated_by"`
}

func (r *UpdateRequest) Validate() error {
	r.Value = strings.TrimSpace(r.Value)
	r.UpdatedBy = strings.TrimSpace(r.UpdatedBy)
	if r.Value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "value is required")
	}
	if r.Version <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "version is required")
	}
	if r.UpdatedBy == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "updated_by is required")
	}
	return nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]settingResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toResponse(row))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"settings": out})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	row, err := h.service.Update(ctx, chi.URLParam(r, "key"), req.Value, req.Version, req.UpdatedBy)
	if err != nil {
		h.logger.WarnContext(ctx, "setting update rejected",
			"request_id", requestID,
			"key", chi.URLParam(r, "key"),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(row))
}
