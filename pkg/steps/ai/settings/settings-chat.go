package settings

import (
	"strings"

	"github.com/go-go-golems/trai/pkg/helpers"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// ThinkingEffort is the reasoning budget requested from the backend.
type ThinkingEffort string

const (
	ThinkingEffortDefault ThinkingEffort = ""
	ThinkingEffortMinimal ThinkingEffort = "minimal"
	ThinkingEffortLow     ThinkingEffort = "low"
	ThinkingEffortMedium  ThinkingEffort = "medium"
	ThinkingEffortHigh    ThinkingEffort = "high"
)

func ParseThinkingEffort(s string) (ThinkingEffort, error) {
	switch e := ThinkingEffort(strings.ToLower(strings.TrimSpace(s))); e {
	case ThinkingEffortDefault, ThinkingEffortMinimal, ThinkingEffortLow, ThinkingEffortMedium, ThinkingEffortHigh:
		return e, nil
	}
	return "", errors.Errorf("unknown thinking effort %q", s)
}

type ChatSettings struct {
	Model           string         `yaml:"model,omitempty" mapstructure:"model"`
	Temperature     *float64       `yaml:"temperature,omitempty" mapstructure:"temperature"`
	TopP            *float64       `yaml:"top_p,omitempty" mapstructure:"top_p"`
	MaxOutputTokens *int           `yaml:"max_output_tokens,omitempty" mapstructure:"max_output_tokens"`
	ThinkingEffort  ThinkingEffort `yaml:"thinking_effort,omitempty" mapstructure:"thinking_effort"`
}

const DefaultModel = "gemini-2.5-flash"

// NewChatSettings returns the defaults used by the coach: a short, focused
// reply with low reasoning effort.
func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Model:           DefaultModel,
		Temperature:     helpers.Ptr(0.7),
		TopP:            helpers.Ptr(0.95),
		MaxOutputTokens: helpers.Ptr(2048),
		ThinkingEffort:  ThinkingEffortLow,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

func (s *ChatSettings) Validate() error {
	if s.Model == "" {
		return errors.New("chat settings: model is required")
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		return errors.Errorf("chat settings: temperature %v out of range [0, 2]", *s.Temperature)
	}
	if s.TopP != nil && (*s.TopP <= 0 || *s.TopP > 1) {
		return errors.Errorf("chat settings: top_p %v out of range (0, 1]", *s.TopP)
	}
	if s.MaxOutputTokens != nil && *s.MaxOutputTokens <= 0 {
		return errors.Errorf("chat settings: max_output_tokens must be positive, got %d", *s.MaxOutputTokens)
	}
	if _, err := ParseThinkingEffort(string(s.ThinkingEffort)); err != nil {
		return errors.Wrap(err, "chat settings")
	}
	return nil
}
