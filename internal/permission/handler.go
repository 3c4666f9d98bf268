package permission

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Guard wraps a route with a permission requirement. Wired by the router.
type Guard func(actions ...Action) func(http.Handler) http.Handler

// Handler serves the permission catalog.
type Handler struct {
	guard Guard
}

// NewHandler builds the catalog handler.
func NewHandler(guard Guard) *Handler {
	return &Handler{guard: guard}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard(RoleView, RoleManage)).Get("/", h.listPermissions)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": Catalog()})
}
