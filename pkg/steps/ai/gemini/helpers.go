package gemini

import "strings"

// IsGeminiModel reports whether model names a Gemini model, with or without
// the "models/" resource prefix.
func IsGeminiModel(model string) bool {
	return strings.HasPrefix(strings.TrimPrefix(model, "models/"), "gemini")
}
