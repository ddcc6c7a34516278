package services

import "context"

// SystemActor is recorded when a change has no authenticated caller
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the caller identity used for audit entries and events
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller identity stored in ctx, or SystemActor
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
