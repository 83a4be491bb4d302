package common

import "context"

type ctxKey string

const userIDKey ctxKey = "auth/user-id"

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

const userTierKey ctxKey = "auth/user-tier"

// WithUserTier stores the caller's pricing tier on the provided context.
func WithUserTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, userTierKey, tier)
}

// UserTier extracts the caller's pricing tier from the context if present.
func UserTier(ctx context.Context) (string, bool) {
	v := ctx.Value(userTierKey)
	if v == nil {
		return "", false
	}
	tier, ok := v.(string)
	return tier, ok
}
