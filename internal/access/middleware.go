package access

import (
	"log/slog"
	"net/http"

	"github.com/gescom/gescom/internal/platform/httpx"
	"github.com/gescom/gescom/internal/shared"
)

// Middleware wires the permission gate into HTTP routing.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects the request with 403 unless the actor holds an active
// grant for the module. Mutating routes in every module sit behind this.
func (m Middleware) Require(module Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := shared.ActorFromContext(r.Context())
			if userID == 0 {
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			allowed, err := m.Service.IsAllowed(r.Context(), userID, module)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("access check", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
