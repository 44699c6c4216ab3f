package auth

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// Caller identity is carried explicitly through the request context;
// nothing below the middleware reads ambient security state.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// UserIDFromContext is the shorthand for handlers that only need the
// caller's user id to resolve their account.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.UserID, true
}
