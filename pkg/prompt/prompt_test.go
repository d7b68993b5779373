package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBuilder_RendersFacts(t *testing.T) {
	b := NewDefaultBuilder()
	out, err := b.Build(context.Background(), ContextualFacts{
		ProfileSummary:           "  32yo, goal: lose 5kg  ",
		RecentEntriesSummary:     "Oatmeal for breakfast",
		PendingSuggestionSummary: "Log banana (105 kcal)",
		RememberedFacts:          []string{"vegetarian", "trains on mondays"},
		Now:                      time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Today is Monday, May 6 2024.")
	assert.Contains(t, out, "## Profile\n32yo, goal: lose 5kg\n")
	assert.Contains(t, out, "Oatmeal for breakfast")
	assert.Contains(t, out, "## Awaiting confirmation\nLog banana (105 kcal)")
	assert.Contains(t, out, "- vegetarian\n- trains on mondays")
}

func TestDefaultBuilder_EmptyFacts(t *testing.T) {
	out, err := NewDefaultBuilder().Build(context.Background(), ContextualFacts{})
	require.NoError(t, err)
	assert.Contains(t, out, "No profile information yet.")
	assert.Contains(t, out, "Nothing logged recently.")
	assert.NotContains(t, out, "Awaiting confirmation")
	assert.NotContains(t, out, "Things to remember")
}

func TestNewTemplateBuilder_InvalidTemplate(t *testing.T) {
	_, err := NewTemplateBuilder("{{ .ProfileSummary ")
	assert.Error(t, err)
}

func TestBuilderFunc(t *testing.T) {
	var b Builder = BuilderFunc(func(_ context.Context, f ContextualFacts) (string, error) {
		return "profile=" + f.ProfileSummary, nil
	})
	out, err := b.Build(context.Background(), ContextualFacts{ProfileSummary: "x"})
	require.NoError(t, err)
	assert.Equal(t, "profile=x", out)
}
