package authapi

import (
	"context"
	"net/http"
	"strings"

	"chirp/cmd/identity"
)

type ctxKey int

const userKey ctxKey = iota

// UserFrom returns the authenticated account stored by RequireUser.
func UserFrom(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userKey).(identity.User)
	return u, ok
}

// RequireUser authenticates the session cookie, loads the account and makes
// it available via UserFrom. Requests without a valid session get a 401.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(h.cfg.CookieName)
		if err != nil || strings.TrimSpace(c.Value) == "" {
			WriteError(w, http.StatusUnauthorized, "Unauthorized - No token provided")
			return
		}

		userID, err := h.tokens.Verify(c.Value, h.now())
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "Unauthorized - Invalid token")
			return
		}

		user, err := h.store.GetUserByID(r.Context(), userID)
		if err != nil {
			if identity.IsNotFound(err) {
				WriteError(w, http.StatusUnauthorized, "Unauthorized - User not found")
				return
			}
			h.log.Error("auth.middleware.lookup.fail", "err", err, "user_id", userID)
			WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}
