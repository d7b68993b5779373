package toolloop

// LoopConfig bounds one orchestration run.
type LoopConfig struct {
	// MaxRounds caps the backend rounds that may offer tools. The suggestion
	// follow-up round is not counted.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds" mapstructure:"max_rounds"`
	// SuggestionFollowUp asks the backend for a short message when a round
	// produced a suggestion but no text.
	SuggestionFollowUp bool `json:"suggestion_follow_up" yaml:"suggestion_follow_up" mapstructure:"suggestion_follow_up"`
}

const DefaultMaxRounds = 5

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxRounds:          DefaultMaxRounds,
		SuggestionFollowUp: true,
	}
}

func (c LoopConfig) WithMaxRounds(n int) LoopConfig {
	c.MaxRounds = n
	return c
}

func (c LoopConfig) WithSuggestionFollowUp(enabled bool) LoopConfig {
	c.SuggestionFollowUp = enabled
	return c
}

func (c LoopConfig) maxRounds() int {
	if c.MaxRounds <= 0 {
		return DefaultMaxRounds
	}
	return c.MaxRounds
}
