package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/handlers"
	"github.com/HammerMeetNail/splitsync/internal/models"
)

// UserResolver loads a user by ID for request authentication.
type UserResolver interface {
	ByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type CurrentUser struct {
	resolver UserResolver
}

func NewCurrentUser(resolver UserResolver) *CurrentUser {
	return &CurrentUser{resolver: resolver}
}

// Apply resolves the X-User-ID header into the request context. Requests
// without the header, or naming an unknown user, pass through without a
// user; handlers decide whether that is acceptable.
func (cu *CurrentUser) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid X-User-ID header")
			return
		}

		user, err := cu.resolver.ByID(r.Context(), userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
	})
}
