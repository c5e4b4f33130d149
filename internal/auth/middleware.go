package auth

import (
	"context"
	"net/http"
	"strings"

	"smart-scheduler/internal/analytics"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// LocalUserID is the owner used when authentication is disabled.
const LocalUserID = 1

type Middleware struct {
	secret []byte
}

// New returns the bearer-token middleware. An empty secret disables
// authentication and every request runs as LocalUserID.
func New(secret []byte) Middleware {
	return Middleware{secret: secret}
}

func (m Middleware) Enabled() bool { return len(m.secret) > 0 }

func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := LocalUserID
		if m.Enabled() {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}

			var err error
			userID, err = ParseToken(m.secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}

		ctx := WithUserID(r.Context(), userID)
		ctx = analytics.WithUserID(ctx, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}
