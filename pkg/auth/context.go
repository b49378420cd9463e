package auth

import "context"

type identityKey struct{}

// SetIdentity returns a copy of ctx carrying the admitted caller.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller admitted by Middleware, or nil when
// authentication is disabled.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
