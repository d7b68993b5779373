package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/trai/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/go-go-golems/trai/pkg/inference/tools")

// Handler executes one validated tool call against the data-access collaborator.
// Returning an error is a handler failure; the dispatcher converts it into a
// DataResult with an error payload.
type Handler interface {
	Handle(ctx context.Context, args Args) (Result, error)
}

type HandlerFunc func(ctx context.Context, args Args) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, args Args) (Result, error) {
	return f(ctx, args)
}

// NewTypedHandler decodes validated arguments into In before calling fn, so
// handlers work on a per-tool struct instead of a loose map.
func NewTypedHandler[In any](fn func(ctx context.Context, in In) (Result, error)) Handler {
	return HandlerFunc(func(ctx context.Context, args Args) (Result, error) {
		var in In
		b, err := json.Marshal(args)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal arguments")
		}
		if err := json.Unmarshal(b, &in); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal arguments")
		}
		return fn(ctx, in)
	})
}

// Dispatcher validates tool calls against a Catalog and routes them to exactly
// one Handler per tool.
type Dispatcher struct {
	catalog  Catalog
	handlers map[string]Handler
	config   ToolConfig
}

type DispatcherOption func(*Dispatcher)

func WithToolConfig(cfg ToolConfig) DispatcherOption {
	return func(d *Dispatcher) { d.config = cfg }
}

func WithHandler(name string, h Handler) DispatcherOption {
	return func(d *Dispatcher) { d.handlers[name] = h }
}

func NewDispatcher(catalog Catalog, opts ...DispatcherOption) (*Dispatcher, error) {
	if catalog == nil {
		return nil, errors.New("dispatcher catalog is nil")
	}
	d := &Dispatcher{
		catalog:  catalog,
		handlers: map[string]Handler{},
		config:   DefaultToolConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	for name := range d.handlers {
		if _, ok := catalog.Lookup(name); !ok {
			return nil, errors.Errorf("handler registered for unknown tool %q", name)
		}
	}
	return d, nil
}

// Register binds a handler to a catalog entry.
func (d *Dispatcher) Register(name string, h Handler) error {
	if _, ok := d.catalog.Lookup(name); !ok {
		return errors.Errorf("tool %q is not in the catalog", name)
	}
	if h == nil {
		return errors.Errorf("nil handler for tool %q", name)
	}
	d.handlers[name] = h
	return nil
}

func (d *Dispatcher) Catalog() Catalog {
	return d.catalog
}

func (d *Dispatcher) Config() ToolConfig {
	return d.config
}

// OfferedTools returns the descriptors sent to the backend: the catalog
// restricted by AllowedTools.
func (d *Dispatcher) OfferedTools() []ToolDescriptor {
	all := d.catalog.Describe()
	if d.config.AllowedTools == nil {
		return all
	}
	ret := make([]ToolDescriptor, 0, len(all))
	for _, td := range all {
		if d.config.IsToolAllowed(td.Name) {
			ret = append(ret, td)
		}
	}
	return ret
}

// Execute validates and runs a single call. It never returns an error: unknown
// tools and bad arguments become ArgumentError, handler failures become a
// DataResult carrying the error.
func (d *Dispatcher) Execute(ctx context.Context, call ToolCallRequest) Outcome {
	start := time.Now()
	result := d.execute(ctx, call)
	o := Outcome{Call: call, Result: result, Duration: time.Since(start)}
	log.Debug().Object("outcome", o).Msg("tools: call dispatched")
	return o
}

func (d *Dispatcher) execute(ctx context.Context, call ToolCallRequest) Result {
	desc, ok := d.catalog.Lookup(call.Name)
	if !ok {
		return ArgumentError{Field: "name", Reason: "unknown tool"}
	}
	if !d.config.IsToolAllowed(call.Name) {
		return ArgumentError{Field: "name", Reason: "tool not allowed"}
	}
	args, argErr := ValidateArgs(desc, call.Args)
	if argErr != nil {
		return *argErr
	}
	h, ok := d.handlers[call.Name]
	if !ok {
		return NewErrorResult(call.Name, errors.Errorf("tool %s has no handler", call.Name))
	}

	ctx = WithCurrentToolCall(ctx, call)
	ctx, span := tracer.Start(ctx, "tool "+call.Name)
	span.SetAttributes(attribute.String("tool.name", call.Name), attribute.String("tool.call_id", call.ID))
	defer span.End()

	publishStart(ctx, call)

	execCtx := ctx
	if d.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.config.ExecutionTimeout)
		defer cancel()
	}

	res, err := runHandler(execCtx, h, args)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Str("call_id", call.ID).Msg("tools: handler failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res = NewErrorResult(call.Name, err)
	}
	if res == nil {
		res = NoAction{}
	}
	if dr, ok := res.(DataResult); ok && dr.Name == "" {
		dr.Name = call.Name
		res = dr
	}
	span.SetAttributes(attribute.String("tool.result", ResultType(res)))
	publishResult(ctx, call, res)
	return res
}

func runHandler(ctx context.Context, h Handler, args Args) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "execution cancelled")
	default:
	}
	return h.Handle(ctx, args)
}

// ExecuteAll dispatches every call of a round, concurrently up to
// MaxParallelTools, and returns once all of them finished. Outcomes are in
// call order regardless of completion order.
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []ToolCallRequest) []Outcome {
	if len(calls) == 0 {
		return nil
	}
	out := make([]Outcome, len(calls))
	if len(calls) == 1 || d.config.MaxParallelTools <= 1 {
		for i, c := range calls {
			out[i] = d.Execute(ctx, c)
		}
		return out
	}

	// Execute never fails, so the group is only used as a bounded barrier.
	var g errgroup.Group
	g.SetLimit(d.config.MaxParallelTools)
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			out[i] = d.Execute(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func publishStart(ctx context.Context, call ToolCallRequest) {
	input := ""
	if len(call.Args) > 0 {
		if b, err := json.Marshal(call.Args); err == nil {
			input = string(b)
		}
	}
	events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(
		events.MetadataFromContext(ctx),
		events.ToolCall{ID: call.ID, Name: call.Name, Input: input},
	))
}

func publishResult(ctx context.Context, call ToolCallRequest, res Result) {
	payload := ""
	if fb, ok := res.Feedback(); ok {
		if b, err := json.Marshal(fb); err == nil {
			payload = string(b)
		} else {
			payload = fmt.Sprintf("%v", fb)
		}
	}
	events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(
		events.MetadataFromContext(ctx),
		events.ToolResult{ID: call.ID, Name: call.Name, Kind: ResultType(res), Result: payload},
	))
}
