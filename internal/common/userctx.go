package common

import (
	"context"
	"strings"
)

// DefaultUserID scopes data when a request carries no identity.
const DefaultUserID = "default"

// UserContext holds the identity resolved from a request's bearer token.
type UserContext struct {
	UserID string
	Email  string
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or DefaultUserID when no user context is present.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil && strings.TrimSpace(uc.UserID) != "" {
		return strings.TrimSpace(uc.UserID)
	}
	return DefaultUserID
}
