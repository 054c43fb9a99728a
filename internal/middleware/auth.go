package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
	"github.com/dealroom/deal-server-go/internal/util"
)

type contextKey string

const CreatorContextKey contextKey = "creator"

func GetCreator(ctx context.Context) *model.Creator {
	if creator, ok := ctx.Value(CreatorContextKey).(*model.Creator); ok {
		return creator
	}
	return nil
}

// AuthMiddleware authenticates creator API calls by sha256 hash of the
// bearer token.
type AuthMiddleware struct {
	creatorRepo repository.CreatorRepository
}

func NewAuthMiddleware(creatorRepo repository.CreatorRepository) *AuthMiddleware {
	return &AuthMiddleware{creatorRepo: creatorRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		creator, err := m.creatorRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if creator == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), CreatorContextKey, creator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
