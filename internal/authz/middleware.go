package authz

import (
	"log/slog"
	"net/http"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
}

// RequireAny ensures the current user has at least one of the required
// permissions.
func (m Middleware) RequireAny(actions ...permission.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := m.Authorizer.AuthorizeAny(r.Context(), actions...); err != nil {
				m.warn(r, err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(actions ...permission.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := m.Authorizer.AuthorizeAll(r.Context(), actions...); err != nil {
				m.warn(r, err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) warn(r *http.Request, err error) {
	if m.Logger != nil {
		m.Logger.Warn("request denied",
			slog.String("path", r.URL.Path),
			slog.String("reason", denialReason(err)))
	}
}
