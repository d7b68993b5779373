package toolloop

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/trai/pkg/events"
	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/go-go-golems/trai/pkg/prompt"
	"github.com/go-go-golems/trai/pkg/steps/ai/gemini"
	"github.com/go-go-golems/trai/pkg/steps/ai/settings"
	"github.com/go-go-golems/trai/pkg/turns"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/go-go-golems/trai/pkg/inference/toolloop")

// Loop drives the bounded conversation with the backend: stream a round,
// dispatch its tool calls, send data back and repeat.
type Loop struct {
	transport  gemini.Transport
	dispatcher *tools.Dispatcher
	prompt     prompt.Builder
	chat       *settings.ChatSettings
	cfg        LoopConfig

	requestHook RequestHook
	callIDs     func() string
}

type Option func(*Loop)

func New(opts ...Option) *Loop {
	l := &Loop{
		prompt: prompt.NewDefaultBuilder(),
		chat:   settings.NewChatSettings(),
		cfg:    DefaultLoopConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func WithTransport(t gemini.Transport) Option {
	return func(l *Loop) { l.transport = t }
}

func WithDispatcher(d *tools.Dispatcher) Option {
	return func(l *Loop) { l.dispatcher = d }
}

func WithPromptBuilder(b prompt.Builder) Option {
	return func(l *Loop) { l.prompt = b }
}

func WithChatSettings(s *settings.ChatSettings) Option {
	return func(l *Loop) { l.chat = s }
}

func WithLoopConfig(cfg LoopConfig) Option {
	return func(l *Loop) { l.cfg = cfg }
}

func WithRequestHook(h RequestHook) Option {
	return func(l *Loop) { l.requestHook = h }
}

// WithCallIDGenerator sets how IDs are minted for tool calls the backend sent
// without one.
func WithCallIDGenerator(f func() string) Option {
	return func(l *Loop) { l.callIDs = f }
}

// Attachment is one inline binary sent with the user message.
type Attachment struct {
	MimeType string
	Data     []byte
}

// RunRequest is the input of one run. History is the caller-trimmed window of
// earlier turns; it is never modified.
type RunRequest struct {
	Message    string
	Attachment *Attachment
	History    []turns.Turn
	Facts      prompt.ContextualFacts

	// OnTextDelta receives the full text so far every time a fragment arrives.
	OnTextDelta func(text string)
	// OnToolCallStarted is called in call order before a round's calls are dispatched.
	OnToolCallStarted func(name string)
}

// Result is the outcome of a run.
type Result struct {
	RunID           string       `json:"run_id"`
	FinalText       string       `json:"final_text"`
	Suggestions     []Suggestion `json:"suggestions,omitempty"`
	SideEffects     []SideEffect `json:"side_effects,omitempty"`
	ToolsInvoked    []string     `json:"tools_invoked,omitempty"`
	Rounds          int          `json:"rounds"`
	RoundCapReached bool         `json:"round_cap_reached,omitempty"`
	FinishReason    string       `json:"finish_reason,omitempty"`
	Usage           events.Usage `json:"usage"`
	// Turns are the turns this run added to the conversation, starting with
	// the user message.
	Turns []turns.Turn `json:"turns,omitempty"`
}

func (r *Result) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", r.RunID)
	e.Int("rounds", r.Rounds)
	e.Int("text_len", len(r.FinalText))
	e.Strs("tools_invoked", r.ToolsInvoked)
	e.Int("suggestions", len(r.Suggestions))
	e.Int("side_effects", len(r.SideEffects))
	e.Bool("round_cap_reached", r.RoundCapReached)
	e.Str("finish_reason", r.FinishReason)
}

type run struct {
	l      *Loop
	req    RunRequest
	id     string
	md     events.EventMetadata
	logger zerolog.Logger

	system   *gemini.Content
	tools    []gemini.Tool
	gen      *gemini.GenerationConfig
	history  []turns.Turn
	produced []turns.Turn

	state        State
	usage        events.Usage
	finishReason string
	capReached   bool
}

// Run executes one conversation run. A transport failure or cancellation
// ends the run with an error; the partial result accumulated so far is
// returned alongside it.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if l == nil {
		return nil, errors.New("tool loop is nil")
	}
	if l.transport == nil {
		return nil, errors.New("tool loop transport is nil")
	}
	if l.dispatcher == nil {
		return nil, errors.New("tool loop dispatcher is nil")
	}
	if strings.TrimSpace(req.Message) == "" && req.Attachment == nil {
		return nil, errors.New("empty message")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	r := &run{
		l:   l,
		req: req,
		id:  uuid.NewString(),
	}
	model := ""
	if l.chat != nil {
		model = l.chat.Model
	}
	r.md = events.EventMetadata{RunID: r.id, Model: model}
	r.logger = log.With().Str("run_id", r.id).Logger()

	ctx, span := tracer.Start(ctx, "toolloop.run", trace.WithAttributes(attribute.String("run.id", r.id)))
	defer span.End()
	ctx = events.WithMetadata(ctx, r.md)

	system, err := l.prompt.Build(ctx, req.Facts)
	if err != nil {
		recordRun(outcomeFailed, 0, started)
		return nil, errors.Wrap(err, "could not build system instruction")
	}
	r.system = gemini.SystemInstruction(system)
	r.tools = gemini.ToolsFromDescriptors(l.dispatcher.OfferedTools())
	r.gen = gemini.NewGenerationConfig(l.chat)

	userParts := []turns.Part{}
	if req.Message != "" {
		userParts = append(userParts, turns.NewTextPart(req.Message))
	}
	if req.Attachment != nil {
		userParts = append(userParts, turns.NewInlineDataPart(req.Attachment.MimeType, req.Attachment.Data))
	}
	r.history = turns.CloneAll(req.History)
	r.appendTurns(turns.NewUserTurn(userParts...))

	events.PublishEventToContext(ctx, events.NewStartEvent(events.MetadataFromContext(ctx)))
	r.logger.Debug().Int("history", len(req.History)).Int("tools", len(l.dispatcher.OfferedTools())).Msg("toolloop: run started")

	err = r.loop(ctx)
	res := r.result()
	span.SetAttributes(attribute.Int("run.rounds", res.Rounds), attribute.Bool("run.round_cap_reached", res.RoundCapReached))

	if err != nil {
		outcome := outcomeFailed
		switch {
		case ctx.Err() != nil:
			outcome = outcomeCancelled
			err = errors.Wrap(ctx.Err(), "run cancelled")
			events.PublishEventToContext(ctx, events.NewInterruptEvent(events.MetadataFromContext(ctx), res.FinalText))
			r.logger.Debug().Object("result", res).Msg("toolloop: run cancelled")
		case gemini.IsTransportError(err):
			outcome = outcomeTransport
			events.PublishEventToContext(ctx, events.NewErrorEvent(events.MetadataFromContext(ctx), err))
			r.logger.Error().Err(err).Int("round", r.state.Rounds+1).Msg("toolloop: transport failed")
		default:
			events.PublishEventToContext(ctx, events.NewErrorEvent(events.MetadataFromContext(ctx), err))
			r.logger.Error().Err(err).Msg("toolloop: run failed")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordRun(outcome, res.Rounds, started)
		return res, err
	}

	outcome := outcomeCompleted
	if res.RoundCapReached {
		outcome = outcomeRoundCap
	}
	recordRun(outcome, res.Rounds, started)

	md := events.MetadataFromContext(ctx)
	md.StopReason = res.FinishReason
	usage := res.Usage
	md.Usage = &usage
	final := events.NewFinalEvent(md, res.FinalText)
	final.ToolsInvoked = res.ToolsInvoked
	final.Rounds = res.Rounds
	final.ReachedCap = res.RoundCapReached
	final.HasSuggestion = len(res.Suggestions) > 0
	events.PublishEventToContext(ctx, final)
	r.logger.Debug().Object("result", res).Dur("duration", time.Since(started)).Msg("toolloop: run finished")
	return res, nil
}

func (r *run) appendTurns(ts ...turns.Turn) {
	r.history = append(r.history, ts...)
	r.produced = append(r.produced, ts...)
}

func (r *run) result() *Result {
	return &Result{
		RunID:           r.id,
		FinalText:       r.state.Text,
		Suggestions:     r.state.Suggestions,
		SideEffects:     r.state.SideEffects,
		ToolsInvoked:    r.state.ToolsInvoked,
		Rounds:          r.state.Rounds,
		RoundCapReached: r.capReached,
		FinishReason:    r.finishReason,
		Usage:           r.usage,
		Turns:           r.produced,
	}
}

func (r *run) loop(ctx context.Context) error {
	maxRounds := r.l.cfg.maxRounds()
	for {
		round := r.state.Rounds + 1
		rctx := r.roundContext(ctx, round, false)

		streamed, err := r.stream(rctx, round, false, &gemini.Request{
			Contents:          gemini.ContentsFromTurns(r.history),
			Tools:             r.tools,
			SystemInstruction: r.system,
			GenerationConfig:  r.gen,
		})
		if err != nil {
			return err
		}

		modelTurn := streamed.modelTurn()
		outcomes := r.dispatch(rctx, streamed.calls)

		prior := r.state
		r.state = Merge(prior, RoundOutcome{Text: streamed.text, Outcomes: outcomes})
		r.publishRecorded(rctx, prior)
		r.appendTurns(modelTurn)

		// side effects of dispatched calls stay applied even when cancelled
		if err := ctx.Err(); err != nil {
			return err
		}

		responses := responseParts(outcomes)
		feedback := hasFeedback(outcomes)
		r.logger.Debug().
			Int("round", round).
			Int("text_len", len(streamed.text)).
			Int("tool_calls", len(streamed.calls)).
			Bool("feedback", feedback).
			Bool("has_suggestion", r.state.HasSuggestion()).
			Msg("toolloop: round finished")

		switch {
		case r.state.HasSuggestion():
			if streamed.text == "" && r.l.cfg.SuggestionFollowUp {
				return r.followUp(ctx, responses)
			}
			r.closeRound(responses)
			return nil
		case !feedback:
			r.closeRound(responses)
			return nil
		case r.state.Rounds >= maxRounds:
			r.capReached = true
			r.logger.Warn().Int("max_rounds", maxRounds).Int("pending", len(responses)).Msg("toolloop: round cap reached")
			r.closeRound(responses)
			return nil
		}

		r.appendTurns(turns.NewUserTurn(responses...))
	}
}

// closeRound records the answers to the last round's calls without sending
// them, so later runs replay every call paired with its response.
func (r *run) closeRound(responses []turns.Part) {
	if len(responses) == 0 {
		return
	}
	r.appendTurns(turns.NewUserTurn(responses...))
}

// followUp asks for a short message to go with the suggestion card. It offers
// no tools and any call it still makes is ignored.
func (r *run) followUp(ctx context.Context, responses []turns.Part) error {
	round := r.state.Rounds + 1
	rctx := r.roundContext(ctx, round, true)

	parts := append([]turns.Part{}, responses...)
	parts = append(parts, turns.NewTextPart(prompt.FollowUpInstruction))
	r.appendTurns(turns.NewUserTurn(parts...))

	streamed, err := r.stream(rctx, round, true, &gemini.Request{
		Contents:          gemini.ContentsFromTurns(r.history),
		SystemInstruction: r.system,
		GenerationConfig:  r.gen,
	})
	if err != nil {
		return err
	}
	if len(streamed.calls) > 0 {
		r.logger.Debug().Int("ignored", len(streamed.calls)).Msg("toolloop: tool calls in follow-up round ignored")
	}
	r.state = Merge(r.state, RoundOutcome{Text: streamed.text, FollowUp: true})
	r.appendTurns(turns.NewModelTurn(turns.NewTextPart(streamed.text)))
	return nil
}

func (r *run) roundContext(ctx context.Context, round int, followUp bool) context.Context {
	md := r.md
	md.Round = round
	md.FollowUp = followUp
	return events.WithMetadata(ctx, md)
}

type roundStream struct {
	text         string
	calls        []tools.ToolCallRequest
	finishReason string
	skipped      int
}

func (s *roundStream) modelTurn() turns.Turn {
	parts := make([]turns.Part, 0, len(s.calls)+1)
	if s.text != "" {
		parts = append(parts, turns.NewTextPart(s.text))
	}
	for _, c := range s.calls {
		p := turns.NewToolCallPart(c.ID, c.Name, c.Args)
		p.ToolCall.ThoughtSignature = c.ThoughtSignature
		parts = append(parts, p)
	}
	return turns.NewModelTurn(parts...)
}

// stream sends one request and drains its event stream. Text deltas are
// forwarded immediately, tool calls are collected for dispatch.
func (r *run) stream(ctx context.Context, round int, followUp bool, req *gemini.Request) (*roundStream, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "toolloop.round", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.Bool("follow_up", followUp),
	))
	defer span.End()

	if r.l.requestHook != nil {
		r.l.requestHook(ctx, round, followUp, req)
	}
	if h, ok := RequestHookFromContext(ctx); ok {
		h(ctx, round, followUp, req)
	}
	r.logger.Debug().Int("round", round).Bool("follow_up", followUp).Object("request", req).Msg("toolloop: sending request")

	body, err := r.l.transport.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "round %d", round)
	}
	defer func() { _ = body.Close() }()

	var opts []gemini.DecoderOption
	if r.l.callIDs != nil {
		opts = append(opts, gemini.WithCallIDGenerator(r.l.callIDs))
	}
	dec := gemini.NewDecoder(body, opts...)

	rs := &roundStream{}
	var sb strings.Builder
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			span.RecordError(err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &gemini.TransportError{Err: errors.Wrapf(err, "round %d: stream interrupted", round)}
		}

		switch ev.Kind {
		case gemini.StreamEventTextDelta:
			sb.WriteString(ev.Text)
			full := r.state.Text + sb.String()
			if r.req.OnTextDelta != nil {
				r.req.OnTextDelta(full)
			}
			events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(events.MetadataFromContext(ctx), ev.Text, full))
		case gemini.StreamEventToolCall:
			if ev.ToolCall != nil {
				rs.calls = append(rs.calls, *ev.ToolCall)
			}
		case gemini.StreamEventUnparsable:
			rs.skipped++
			r.logger.Warn().Int("round", round).AnErr("reason", ev.Err).Msg("toolloop: skipped undecodable frame")
		case gemini.StreamEventFinish:
			rs.finishReason = ev.FinishReason
			if ev.Usage != nil {
				r.usage.InputTokens += ev.Usage.PromptTokenCount
				r.usage.OutputTokens += ev.Usage.CandidatesTokenCount
				r.usage.ThinkingTokens += ev.Usage.ThoughtsTokenCount
			}
		}
	}
	rs.text = sb.String()
	if rs.finishReason != "" {
		r.finishReason = rs.finishReason
	}
	recordRound(followUp, started, rs.skipped)
	seen, _ := dec.Frames()
	r.logger.Debug().
		Int("round", round).
		Int("frames", seen).
		Int("skipped", rs.skipped).
		Str("model_version", dec.ModelVersion()).
		Msg("toolloop: round streamed")
	span.SetAttributes(attribute.Int("tool_calls", len(rs.calls)), attribute.Int("skipped_frames", rs.skipped))
	return rs, nil
}

// dispatch announces the calls in order and then runs them all before
// returning.
func (r *run) dispatch(ctx context.Context, calls []tools.ToolCallRequest) []tools.Outcome {
	if len(calls) == 0 {
		return nil
	}
	for _, c := range calls {
		if r.req.OnToolCallStarted != nil {
			r.req.OnToolCallStarted(c.Name)
		}
		events.PublishEventToContext(ctx, events.NewToolCallEvent(
			events.MetadataFromContext(ctx),
			events.ToolCall{ID: c.ID, Name: c.Name, Input: argsJSON(c.Args)},
		))
	}

	outcomes := r.l.dispatcher.ExecuteAll(ctx, calls)
	for _, o := range outcomes {
		name := o.Call.Name
		if _, ok := r.l.dispatcher.Catalog().Lookup(name); !ok {
			name = "unknown"
		}
		recordToolCall(name, tools.ResultType(o.Result))
	}
	return outcomes
}

// publishRecorded announces suggestions and side effects added since prior.
func (r *run) publishRecorded(ctx context.Context, prior State) {
	for _, s := range r.state.Suggestions[len(prior.Suggestions):] {
		events.PublishEventToContext(ctx, events.NewSuggestionEvent(events.MetadataFromContext(ctx), string(s.Kind), s.Payload))
	}
	for _, se := range r.state.SideEffects[len(prior.SideEffects):] {
		events.PublishEventToContext(ctx, events.NewSideEffectEvent(events.MetadataFromContext(ctx), se.Kind, se.Value))
	}
}

// responseParts answers every call of a round in call order. Results with
// feedback send it, the others send a status acknowledgement.
func responseParts(outcomes []tools.Outcome) []turns.Part {
	ret := make([]turns.Part, 0, len(outcomes))
	for _, o := range outcomes {
		ret = append(ret, turns.NewToolResultPart(o.Call.ID, o.Call.Name, responsePayload(o.Result)))
	}
	return ret
}

func responsePayload(res tools.Result) map[string]any {
	if res != nil {
		if fb, ok := res.Feedback(); ok {
			return fb
		}
	}
	switch v := res.(type) {
	case tools.DeferredSuggestion:
		return map[string]any{"status": "awaiting_user_confirmation", "kind": string(v.Kind)}
	case tools.SideEffectRecord:
		return map[string]any{"status": "applied", "kind": v.Kind}
	default:
		return map[string]any{"status": "no_action"}
	}
}

// hasFeedback reports whether any result asks for another round.
func hasFeedback(outcomes []tools.Outcome) bool {
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		if _, ok := o.Result.Feedback(); ok {
			return true
		}
	}
	return false
}

func argsJSON(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(b)
}
