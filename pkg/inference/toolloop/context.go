package toolloop

import (
	"context"

	"github.com/go-go-golems/trai/pkg/steps/ai/gemini"
)

// RequestHook observes every request right before it is sent. round is
// 1-based; the suggestion follow-up round reports followUp=true.
type RequestHook func(ctx context.Context, round int, followUp bool, req *gemini.Request)

type requestHookKey struct{}

// WithRequestHook attaches a request hook to the context.
func WithRequestHook(ctx context.Context, hook RequestHook) context.Context {
	if hook == nil {
		return ctx
	}
	return context.WithValue(ctx, requestHookKey{}, hook)
}

// RequestHookFromContext returns the request hook attached to the context, if any.
func RequestHookFromContext(ctx context.Context) (RequestHook, bool) {
	v := ctx.Value(requestHookKey{})
	if v == nil {
		return nil, false
	}
	h, ok := v.(RequestHook)
	return h, ok && h != nil
}
