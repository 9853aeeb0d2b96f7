package middleware

import (
	"context"

	"github.com/atlastravel/backoffice-backend/internal/permissions"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, actor permissions.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the authenticated actor seeded by Auth.
func ActorFromContext(ctx context.Context) (permissions.Actor, bool) {
	if ctx == nil {
		return permissions.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(permissions.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.ID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return string(actor.Role)
	}
	return ""
}
