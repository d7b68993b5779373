package toolloop

import (
	"context"
	"sync"

	"github.com/go-go-golems/trai/pkg/events"
	"github.com/go-go-golems/trai/pkg/prompt"
	"github.com/go-go-golems/trai/pkg/turns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNil     = errors.New("session is nil")
	ErrSessionLoopNil = errors.New("session loop is nil")
)

// DefaultHistoryWindow is how many trailing turns a Session sends as history.
const DefaultHistoryWindow = 20

// TurnPersister stores the turns a run added to a conversation.
type TurnPersister interface {
	PersistTurns(ctx context.Context, runID string, ts []turns.Turn) error
}

// FactsSource supplies the contextual facts at the start of every run.
type FactsSource func(ctx context.Context) (prompt.ContextualFacts, error)

// Session keeps the rolling history of one conversation and runs every new
// message through a Loop with the session's sinks attached. Runs of a
// session are serialized.
type Session struct {
	Loop *Loop

	// EventSinks are attached to the context of every run.
	EventSinks []events.EventSink
	// Facts is consulted before every run. nil sends empty facts.
	Facts FactsSource
	// Window bounds the history sent with a run. <= 0 uses DefaultHistoryWindow.
	Window int
	// Persister is called best-effort after a successful run.
	Persister TurnPersister

	mu      sync.Mutex
	history []turns.Turn
}

type SessionOption func(*Session)

func NewSession(loop *Loop, opts ...SessionOption) *Session {
	s := &Session{Loop: loop}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func WithEventSinks(sinks ...events.EventSink) SessionOption {
	return func(s *Session) { s.EventSinks = append(s.EventSinks, sinks...) }
}

func WithFacts(f FactsSource) SessionOption {
	return func(s *Session) { s.Facts = f }
}

func WithWindow(n int) SessionOption {
	return func(s *Session) { s.Window = n }
}

func WithPersister(p TurnPersister) SessionOption {
	return func(s *Session) { s.Persister = p }
}

// Send runs one user message. On success the turns of the run are appended
// to the history; a failed or cancelled run leaves the history untouched.
func (s *Session) Send(ctx context.Context, req RunRequest) (*Result, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if s.Loop == nil {
		return nil, ErrSessionLoopNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.EventSinks) > 0 {
		ctx = events.WithEventSinks(ctx, s.EventSinks...)
	}
	if s.Facts != nil {
		facts, err := s.Facts(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "could not load contextual facts")
		}
		req.Facts = facts
	}
	req.History = s.window()

	res, err := s.Loop.Run(ctx, req)
	if err != nil {
		return res, err
	}
	s.history = append(s.history, res.Turns...)
	if s.Persister != nil {
		if err := s.Persister.PersistTurns(ctx, res.RunID, res.Turns); err != nil {
			log.Warn().Err(err).Str("run_id", res.RunID).Msg("toolloop: could not persist turns")
		}
	}
	return res, nil
}

// History returns a copy of the full conversation so far.
func (s *Session) History() []turns.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return turns.CloneAll(s.history)
}

// window returns the trailing turns to send. It never starts on a turn that
// answers tool calls whose request was cut off.
func (s *Session) window() []turns.Turn {
	n := s.Window
	if n <= 0 {
		n = DefaultHistoryWindow
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	for start < len(s.history) && (s.history[start].Role != turns.RoleUser || len(s.history[start].ToolResults()) > 0) {
		start++
	}
	return s.history[start:]
}
