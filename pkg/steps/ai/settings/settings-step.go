package settings

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StepSettings bundles everything needed to talk to the backend.
type StepSettings struct {
	Chat   *ChatSettings   `yaml:"chat,omitempty"`
	Client *ClientSettings `yaml:"client,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		Chat:   NewChatSettings(),
		Client: NewClientSettings(),
	}
}

// NewStepSettingsFromYAML decodes settings on top of the defaults, so a file
// only needs to name what it overrides.
func NewStepSettingsFromYAML(r io.Reader) (*StepSettings, error) {
	s := NewStepSettings()
	if err := yaml.NewDecoder(r).Decode(s); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if s.Chat == nil {
		s.Chat = NewChatSettings()
	}
	if s.Client == nil {
		s.Client = NewClientSettings()
	}
	return s, nil
}

// GetMetadata returns the non-secret settings, for event metadata and logs.
func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		metadata["model"] = ss.Chat.Model
		if ss.Chat.Temperature != nil {
			metadata["temperature"] = *ss.Chat.Temperature
		}
		if ss.Chat.TopP != nil {
			metadata["top_p"] = *ss.Chat.TopP
		}
		if ss.Chat.MaxOutputTokens != nil {
			metadata["max_output_tokens"] = *ss.Chat.MaxOutputTokens
		}
		if ss.Chat.ThinkingEffort != "" {
			metadata["thinking_effort"] = string(ss.Chat.ThinkingEffort)
		}
	}

	if ss.Client != nil {
		if ss.Client.BaseURL != "" {
			metadata["base_url"] = ss.Client.BaseURL
		}
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
	}

	return metadata
}

func (ss *StepSettings) Validate() error {
	if ss.Chat == nil {
		return errors.New("missing chat settings")
	}
	if err := ss.Chat.Validate(); err != nil {
		return err
	}
	if ss.Client == nil || ss.Client.APIKey == "" {
		return errors.New("missing api key")
	}
	return nil
}

func (ss *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		Chat:   ss.Chat.Clone(),
		Client: ss.Client.Clone(),
	}
}
