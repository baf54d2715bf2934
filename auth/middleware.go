package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"problem-map/errors"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

const (
	RoleUser   = "user"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Middleware rejects requests without a valid "Bearer <token>" Authorization header
// and injects the user identity into the request context.
func Middleware(issuer *TokenIssuer, onReject func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				// Browsers cannot set headers on a websocket handshake
				tokenStr = r.URL.Query().Get("token")
			}
			claims, err := issuer.ValidateToken(tokenStr)
			if err != nil {
				onReject(w, err)
				return
			}
			ctx := WithIdentity(r.Context(), claims.UserID, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, RolesKey, roles)
}

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// RolesFromContext returns the roles carried by the token of the request.
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(RolesKey).([]string)
	return roles
}

func HasRole(ctx context.Context, role string) bool {
	return slices.Contains(RolesFromContext(ctx), role)
}

// RequireRole must run after Middleware. Requests whose token lacks role get ErrForbidden.
func RequireRole(role string, onReject func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasRole(r.Context(), role) {
				onReject(w, fmt.Errorf("%w: role %s required", errors.ErrForbidden, role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
