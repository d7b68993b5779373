package tools

import "context"

type currentToolCallKey struct{}

// WithCurrentToolCall annotates context with the call being dispatched so handlers
// and sinks can correlate their work with it.
func WithCurrentToolCall(ctx context.Context, call ToolCallRequest) context.Context {
	return context.WithValue(ctx, currentToolCallKey{}, call)
}

// CurrentToolCallFromContext returns the current tool call if available.
func CurrentToolCallFromContext(ctx context.Context) (ToolCallRequest, bool) {
	if ctx == nil {
		return ToolCallRequest{}, false
	}
	call, ok := ctx.Value(currentToolCallKey{}).(ToolCallRequest)
	return call, ok
}
