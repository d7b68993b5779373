package toolloop

import (
	"context"
	"testing"

	"github.com/go-go-golems/trai/pkg/coach"
	"github.com/go-go-golems/trai/pkg/events"
	"github.com/go-go-golems/trai/pkg/prompt"
	"github.com/go-go-golems/trai/pkg/turns"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	runIDs []string
	turns  int
	err    error
}

func (p *recordingPersister) PersistTurns(_ context.Context, runID string, ts []turns.Turn) error {
	p.runIDs = append(p.runIDs, runID)
	p.turns += len(ts)
	return p.err
}

func TestSession_CarriesHistoryBetweenRuns(t *testing.T) {
	f := newFixture(t, DefaultLoopConfig(),
		sse(frame(fcall(coach.ToolQueryFoodLog, nil))),
		sse(frame(text("900 kcal so far."))),
		sse(frame(text("Yes, have dinner."))),
	)
	p := &recordingPersister{err: errors.New("disk full")}
	sink := &capturingSink{}
	factsCalls := 0
	s := NewSession(f.loop,
		WithEventSinks(sink),
		WithPersister(p),
		WithFacts(func(context.Context) (prompt.ContextualFacts, error) {
			factsCalls++
			return prompt.ContextualFacts{ProfileSummary: "Goal: maintain."}, nil
		}),
	)

	res, err := s.Send(context.Background(), RunRequest{Message: "How much today?"})
	require.NoError(t, err, "persistence failures are not run failures")
	assert.Equal(t, "900 kcal so far.", res.FinalText)
	require.Len(t, s.History(), 4)

	res, err = s.Send(context.Background(), RunRequest{Message: "Can I eat dinner?"})
	require.NoError(t, err)
	assert.Equal(t, "Yes, have dinner.", res.FinalText)

	reqs := f.transport.Requests()
	require.Len(t, reqs, 3)
	// 4 turns of the first run plus the new message
	assert.Len(t, reqs[2].Contents, 5)
	assert.Equal(t, 2, factsCalls)
	assert.Len(t, p.runIDs, 2)
	assert.Equal(t, 6, p.turns)
	assert.Contains(t, sink.types(), events.EventTypeFinal)
}

func TestSession_FailedRunLeavesHistory(t *testing.T) {
	f := newFixture(t, DefaultLoopConfig(), sse(frame(text("ok"))))
	s := NewSession(f.loop)

	_, err := s.Send(context.Background(), RunRequest{Message: "first"})
	require.NoError(t, err)
	_, err = s.Send(context.Background(), RunRequest{Message: "second"})
	require.Error(t, err)
	assert.Len(t, s.History(), 2)
}

func TestSession_WindowStartsOnAUserMessage(t *testing.T) {
	s := &Session{Window: 3}
	s.history = []turns.Turn{
		turns.NewUserTurn(turns.NewTextPart("q1")),
		turns.NewModelTurn(turns.NewToolCallPart("c1", "get_user_plan", nil)),
		turns.NewUserTurn(turns.NewToolResultPart("c1", "get_user_plan", map[string]any{})),
		turns.NewModelTurn(turns.NewTextPart("a1")),
		turns.NewUserTurn(turns.NewTextPart("q2")),
		turns.NewModelTurn(turns.NewTextPart("a2")),
	}
	w := s.window()
	require.Len(t, w, 2)
	assert.Equal(t, "q2", w[0].Text())

	s.Window = 10
	assert.Len(t, s.window(), 6)
}

func TestSession_Nil(t *testing.T) {
	var s *Session
	_, err := s.Send(context.Background(), RunRequest{Message: "x"})
	assert.ErrorIs(t, err, ErrSessionNil)
	_, err = NewSession(nil).Send(context.Background(), RunRequest{Message: "x"})
	assert.ErrorIs(t, err, ErrSessionLoopNil)
}
