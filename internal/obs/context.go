package obs

import "context"

type contextKey int

const routePatternKey contextKey = iota

// WithRoutePattern stores the matched route template (e.g.
// /api/v1/orders/{orderId}/pay) so downstream middleware labels metrics and
// spans with the template, not the raw path.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey, pattern)
}

// RoutePatternFromContext returns the stored route template, or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routePatternKey).(string)
	return pattern
}
