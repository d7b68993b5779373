package tools

import "time"

// ToolConfig specifies how tool calls are dispatched within one round.
type ToolConfig struct {
	// MaxParallelTools bounds concurrent handler invocations in a round. <= 1 means sequential.
	MaxParallelTools int           `json:"max_parallel_tools" yaml:"max_parallel_tools"`
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	// AllowedTools restricts which catalog entries are offered and executed. nil means all.
	AllowedTools []string `json:"allowed_tools" yaml:"allowed_tools"`
}

// DefaultToolConfig returns a sensible default configuration
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		MaxParallelTools: 4,
		ExecutionTimeout: 15 * time.Second,
		AllowedTools:     nil,
	}
}

func (tc ToolConfig) WithMaxParallelTools(maxParallel int) ToolConfig {
	tc.MaxParallelTools = maxParallel
	return tc
}

func (tc ToolConfig) WithExecutionTimeout(timeout time.Duration) ToolConfig {
	tc.ExecutionTimeout = timeout
	return tc
}

func (tc ToolConfig) WithAllowedTools(toolNames []string) ToolConfig {
	tc.AllowedTools = toolNames
	return tc
}

// IsToolAllowed checks if a tool is allowed based on the configuration
func (tc *ToolConfig) IsToolAllowed(toolName string) bool {
	if tc.AllowedTools == nil {
		return true
	}

	for _, allowed := range tc.AllowedTools {
		if allowed == toolName {
			return true
		}
	}

	return false
}
