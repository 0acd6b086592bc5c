package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/quangtmn/visitreg/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the resolved user in context
	UserContextKey contextKey = "user"
)

// UserRepository interface for resolving the stored operator identity
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	TouchLastSeen(ctx context.Context, id string) error
}

// Authenticate validates the bearer token and injects the resolved user into
// the request context. The stored user row is authoritative for role and
// region assignment; token claims only fill in when the operator has no row
// yet. Requests without a valid token never reach the handler.
func Authenticate(verifier *TokenVerifier, users UserRepository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			user := &models.User{
				ID:         claims.Subject,
				Username:   claims.Username,
				Role:       models.Role(claims.Role),
				RegionCode: claims.RegionCode,
			}
			if users != nil {
				stored, err := users.GetByID(r.Context(), claims.Subject)
				switch {
				case err == nil:
					user = stored
					// Best effort; a failed touch never blocks the request.
					_ = users.TouchLastSeen(r.Context(), stored.ID)
				case !errors.Is(err, models.ErrNotFound):
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access control. Must run after
// Authenticate.
func RequireRole(role models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if user.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts the resolved user from the request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
