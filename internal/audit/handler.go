package audit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
	"github.com/meridian-fsm/meridian/internal/shared"
)

// Guard wraps a route with a permission requirement. Wired by the router.
type Guard func(actions ...permission.Action) func(http.Handler) http.Handler

// Handler exposes the compliance read path.
type Handler struct {
	service *Service
	guard   Guard
}

// NewHandler constructs the audit HTTP handler.
func NewHandler(service *Service, guard Guard) *Handler {
	return &Handler{service: service, guard: guard}
}

// MountRoutes registers the audit endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard(permission.AuditView)).Get("/", h.list)
	r.With(h.guard(permission.AuditView)).Get("/export.csv", h.exportCSV)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	f, err := filterFromQuery(r, identity.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	entries, pagination, err := h.service.Query(r.Context(), f, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": pagination,
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	f, err := filterFromQuery(r, identity.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	if _, err := h.service.ExportCSV(r.Context(), f, w); err != nil {
		// Headers are already out; nothing to do beyond truncating the body.
		return
	}
}

func filterFromQuery(r *http.Request, companyID int64) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		CompanyID:  companyID,
		Action:     q.Get("action"),
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resource_id"),
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid user_id: %w", httpx.ErrValidation)
		}
		f.UserID = &id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid from timestamp: %w", httpx.ErrValidation)
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid to timestamp: %w", httpx.ErrValidation)
		}
		f.To = t
	}
	return f, nil
}
