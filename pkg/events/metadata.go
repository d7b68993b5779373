package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Usage is the token accounting reported by the backend for one round.
type Usage struct {
	InputTokens    int `json:"input_tokens" yaml:"input_tokens" mapstructure:"input_tokens"`
	OutputTokens   int `json:"output_tokens" yaml:"output_tokens" mapstructure:"output_tokens"`
	ThinkingTokens int `json:"thinking_tokens,omitempty" yaml:"thinking_tokens,omitempty" mapstructure:"thinking_tokens,omitempty"`
}

// EventMetadata travels with every published event. RunID groups the events of
// one orchestrator run, Round is the 1-based backend round that produced it
// (0 for run-level events).
type EventMetadata struct {
	ID         uuid.UUID              `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	RunID      string                 `json:"run_id,omitempty" yaml:"run_id,omitempty" mapstructure:"run_id"`
	Round      int                    `json:"round,omitempty" yaml:"round,omitempty" mapstructure:"round"`
	FollowUp   bool                   `json:"follow_up,omitempty" yaml:"follow_up,omitempty" mapstructure:"follow_up"`
	Model      string                 `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	StopReason string                 `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty" mapstructure:"stop_reason"`
	Usage      *Usage                 `json:"usage,omitempty" yaml:"usage,omitempty" mapstructure:"usage"`
	Extra      map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.Round > 0 {
		e.Int("round", em.Round)
	}
	if em.FollowUp {
		e.Bool("follow_up", true)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.StopReason != "" {
		e.Str("stop_reason", em.StopReason)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
		if em.Usage.ThinkingTokens > 0 {
			e.Int("thinking_tokens", em.Usage.ThinkingTokens)
		}
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

const ctxKeyMetadata ctxKey = ctxKeyEventSinks + 1

// WithMetadata stores the metadata template used by MetadataFromContext.
func WithMetadata(ctx context.Context, md EventMetadata) context.Context {
	return context.WithValue(ctx, ctxKeyMetadata, md)
}

// MetadataFromContext returns the metadata stored with WithMetadata, stamped
// with a fresh message ID.
func MetadataFromContext(ctx context.Context) EventMetadata {
	md, _ := ctx.Value(ctxKeyMetadata).(EventMetadata)
	md.ID = uuid.New()
	return md
}
