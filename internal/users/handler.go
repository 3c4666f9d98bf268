package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Guard wraps routes with a permission requirement.
type Guard func(actions ...permission.Action) func(http.Handler) http.Handler

// Handler manages user-role assignment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard(permission.UserEdit))
		r.Put("/{userID}/roles/{roleID}", h.assignRole)
		r.Delete("/{userID}/roles/{roleID}", h.removeRole)
		r.Post("/{userID}/grants", h.grantDirect)
	})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID, err := pathIDs(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	isDefault := r.URL.Query().Get("default") == "true"
	if err := h.service.AssignRole(r.Context(), userID, roleID, isDefault); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID, err := pathIDs(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantDirect(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var in struct {
		Action permission.Action `json:"action"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.GrantDirect(r.Context(), userID, in.Action); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathIDs(r *http.Request) (int64, int64, error) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return userID, roleID, nil
}
