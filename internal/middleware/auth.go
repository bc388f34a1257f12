package middleware

import (
	"net/http"
	"strings"

	"swiftmart-be/internal/user"
	"swiftmart-be/internal/utils"
)

// AuthMiddleware parses a bearer token when present and puts the caller's
// identity into the request context. Handlers that require auth reject
// requests with no identity; the webhook and status-update routes pass
// through untouched.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := user.ParseJWT(tokenStr)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := utils.SetUserContext(r.Context(), claims.UserID, claims.Email, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
