package gemini

import (
	"github.com/go-go-golems/trai/pkg/security"
	"github.com/go-go-golems/trai/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

// NewGenerationConfig maps chat settings onto the wire generationConfig.
func NewGenerationConfig(s *settings.ChatSettings) *GenerationConfig {
	if s == nil {
		return nil
	}
	gc := &GenerationConfig{
		Temperature:     s.Temperature,
		TopP:            s.TopP,
		MaxOutputTokens: s.MaxOutputTokens,
	}
	if s.ThinkingEffort != settings.ThinkingEffortDefault {
		gc.ThinkingConfig = &ThinkingConfig{ThinkingLevel: string(s.ThinkingEffort)}
	}
	return gc
}

// NewClientFromSettings builds the HTTP transport described by ss.
func NewClientFromSettings(ss *settings.StepSettings) (*Client, error) {
	if ss == nil || ss.Client == nil || ss.Chat == nil {
		return nil, errors.New("incomplete settings")
	}
	if ss.Client.APIKey == "" {
		return nil, errors.New("missing api key")
	}
	opts := []ClientOption{WithModel(ss.Chat.Model)}
	if ss.Client.BaseURL != "" {
		policy := security.EndpointPolicy{
			AllowHTTP:  ss.Client.AllowLocalBaseURL,
			AllowLocal: ss.Client.AllowLocalBaseURL,
		}
		if err := security.ValidateEndpoint(ss.Client.BaseURL, policy); err != nil {
			return nil, err
		}
		opts = append(opts, WithBaseURL(ss.Client.BaseURL))
	}
	if ss.Client.Timeout != nil {
		opts = append(opts, WithTimeout(*ss.Client.Timeout))
	}
	if ss.Client.UserAgent != "" {
		opts = append(opts, WithUserAgent(ss.Client.UserAgent))
	}
	return NewClient(ss.Client.APIKey, opts...), nil
}
