package middleware

import (
	"context"

	"github.com/gosuda/boardsync/internal/domain"
)

type contextKey string

const ContextKeyIdentity contextKey = "identity"

// WithIdentity returns ctx carrying ident.
func WithIdentity(ctx context.Context, ident *domain.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, ident)
}

func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	v, ok := ctx.Value(ContextKeyIdentity).(*domain.Identity)
	return v, ok && v != nil
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	ident, ok := IdentityFromContext(ctx)
	if !ok || ident.UserID == "" {
		return "", false
	}
	return ident.UserID, true
}
