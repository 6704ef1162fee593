package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/libs/auth"
)

type actorKey struct{}

// ActorFromContext returns the identity established by a role gatekeeper.
func ActorFromContext(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(booking.Actor)
	return actor, ok
}

// RequireRole is a role gatekeeper: it verifies the bearer token, checks
// the role claim, and places the resulting Actor in the request context.
// Each protected route group gets exactly one role; a patient token never
// opens a doctor route even though both are signed with the same secret.
func RequireRole(next http.Handler, jwtSecret, role string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != role {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		actor := booking.Actor{ID: claims.Sub, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func mustActor(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return actor, ok
}
