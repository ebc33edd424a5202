package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const AdminPasswordHeader = "X-Admin-Password"

// RequireAdmin guards admin routes with a single shared password compared against
// a bcrypt hash. The password may arrive in X-Admin-Password or as the basic-auth
// password. An empty hash disables the routes entirely.
func RequireAdmin(passwordHash string, logger *slog.Logger) Middleware {
	hash := []byte(strings.TrimSpace(passwordHash))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hash) == 0 {
				WriteError(w, http.StatusForbidden, "admin_disabled", "admin api is not configured")
				return
			}
			password := r.Header.Get(AdminPasswordHeader)
			if password == "" {
				if _, p, ok := r.BasicAuth(); ok {
					password = p
				}
			}
			if password == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="meetslot-admin"`)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "admin password required")
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
				logger.Warn("admin auth rejected", "request_id", RequestIDFromContext(r.Context()), "client", clientKey(r))
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid admin password")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
