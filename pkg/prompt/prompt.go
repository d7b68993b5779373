// Package prompt renders the system instruction sent with every round from the
// user's contextual facts.
package prompt

import (
	"bytes"
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

// ContextualFacts is what the coach knows about the user at the start of a run.
type ContextualFacts struct {
	ProfileSummary           string   `json:"profile_summary" yaml:"profile_summary"`
	RecentEntriesSummary     string   `json:"recent_entries_summary" yaml:"recent_entries_summary"`
	PendingSuggestionSummary string   `json:"pending_suggestion_summary,omitempty" yaml:"pending_suggestion_summary,omitempty"`
	RememberedFacts          []string `json:"remembered_facts,omitempty" yaml:"remembered_facts,omitempty"`
	// Now is the user's local time; zero means time.Now().
	Now time.Time `json:"now,omitempty" yaml:"now,omitempty"`
}

// Builder turns contextual facts into a system instruction.
type Builder interface {
	Build(ctx context.Context, facts ContextualFacts) (string, error)
}

type BuilderFunc func(ctx context.Context, facts ContextualFacts) (string, error)

func (f BuilderFunc) Build(ctx context.Context, facts ContextualFacts) (string, error) {
	return f(ctx, facts)
}

// TemplateBuilder renders a text/template with the sprig function map.
type TemplateBuilder struct {
	tmpl *template.Template
}

func NewTemplateBuilder(text string) (*TemplateBuilder, error) {
	t, err := template.New("system").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse system prompt template")
	}
	return &TemplateBuilder{tmpl: t}, nil
}

func (b *TemplateBuilder) Build(_ context.Context, facts ContextualFacts) (string, error) {
	if facts.Now.IsZero() {
		facts.Now = time.Now()
	}
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, facts); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}

const DefaultTemplate = `You are Trai, a friendly nutrition and fitness coach inside a tracking app.
Today is {{ .Now | date "Monday, January 2 2006" }}.

Use the tools to read or change the user's data instead of guessing. Food
logging, food edits and plan changes are only suggested; the user confirms
them on a card, so never claim they were already saved.
Keep replies short and conversational.

## Profile
{{ .ProfileSummary | default "No profile information yet." | trim }}

## Recent entries
{{ .RecentEntriesSummary | default "Nothing logged recently." | trim }}
{{- with .PendingSuggestionSummary }}

## Awaiting confirmation
{{ . | trim }}
{{- end }}
{{- if .RememberedFacts }}

## Things to remember about the user
{{- range .RememberedFacts }}
- {{ . | trim }}
{{- end }}
{{- end }}`

// FollowUpInstruction asks for the sentence shown next to a suggestion card
// when the model proposed an action without saying anything.
const FollowUpInstruction = "The user will see a card with the suggestion above and can confirm it. " +
	"Write one short sentence explaining it. Do not call any tools."

// NewDefaultBuilder returns the builder for DefaultTemplate.
func NewDefaultBuilder() *TemplateBuilder {
	b, err := NewTemplateBuilder(DefaultTemplate)
	if err != nil {
		panic(err)
	}
	return b
}
