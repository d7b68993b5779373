package settings

import (
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	APIKey    string         `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string         `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   *time.Duration `yaml:"-" mapstructure:"timeout"`
	UserAgent string         `yaml:"user_agent,omitempty" mapstructure:"user_agent"`

	// AllowLocalBaseURL accepts plain http and local network base URLs.
	AllowLocalBaseURL bool `yaml:"allow_local_base_url,omitempty" mapstructure:"allow_local_base_url"`
}

// UnmarshalYAML reads timeout as a number of seconds. Fields missing from the
// document keep their current value.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ClientSettings
	a := Alias(*cs)
	if err := value.Decode(&a); err != nil {
		return err
	}
	var aux struct {
		Timeout *int `yaml:"timeout,omitempty"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*cs = ClientSettings(a)
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
	}
}
