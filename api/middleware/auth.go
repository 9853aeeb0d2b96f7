package middleware

import (
	"net/http"
	"strings"

	"github.com/atlastravel/backoffice-backend/api/responses"
	"github.com/atlastravel/backoffice-backend/internal/permissions"
	pkgAuth "github.com/atlastravel/backoffice-backend/pkg/auth"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := permissions.Actor{
				ID:                 claims.UserID,
				Email:              claims.Email,
				Role:               claims.Role,
				IsApproved:         claims.IsApproved,
				RegistrationStatus: claims.RegistrationStatus,
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor.ID.String(), string(actor.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
