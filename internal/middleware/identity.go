package middleware

import (
	"context"
	"net/http"
	"strings"

	"keyframe/server/internal/domain"
)

const (
	userIDKey   contextKey = "user_id"
	userPlanKey contextKey = "user_plan"
)

// Identity trusts the upstream gateway to resolve the session and forward the
// caller's identity in headers. Requests without a user are rejected before
// they reach any handler.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			http.Error(w, "missing user identity", http.StatusUnauthorized)
			return
		}
		plan := domain.NormalizePlan(strings.TrimSpace(r.Header.Get("X-User-Plan")))

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, userPlanKey, plan)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user identifier, if present.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// UserPlanFromContext returns the caller's plan, defaulting to free.
func UserPlanFromContext(ctx context.Context) domain.UserPlan {
	if v, ok := ctx.Value(userPlanKey).(domain.UserPlan); ok {
		return v
	}
	return domain.UserPlanFree
}
