package turns

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PrettyPrinter renders a conversation history in a configurable human-friendly way.
type PrettyPrinter struct {
	IncludeToolDetail bool
	IndentSpaces      int
	MaxTextLines      int // 0 => unlimited
}

// PrintOption configures a PrettyPrinter.
type PrintOption func(*PrettyPrinter)

// WithToolDetail toggles inclusion of tool args/result details.
func WithToolDetail(include bool) PrintOption {
	return func(p *PrettyPrinter) { p.IncludeToolDetail = include }
}

// WithIndent sets the number of spaces used for indentation.
func WithIndent(spaces int) PrintOption { return func(p *PrettyPrinter) { p.IndentSpaces = spaces } }

// WithMaxTextLines limits how many lines of text to print for message bodies (0 = unlimited).
func WithMaxTextLines(n int) PrintOption { return func(p *PrettyPrinter) { p.MaxTextLines = n } }

func NewPrettyPrinter(opts ...PrintOption) *PrettyPrinter {
	p := &PrettyPrinter{
		IncludeToolDetail: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FprintHistory prints every turn using an ephemeral PrettyPrinter configured via options.
func FprintHistory(w io.Writer, history []Turn, opts ...PrintOption) {
	pp := NewPrettyPrinter(opts...)
	for _, t := range history {
		pp.FprintTurn(w, t)
	}
}

// FprintTurn emits a human-readable rendering of a Turn, one line per part.
func (p *PrettyPrinter) FprintTurn(w io.Writer, t Turn) {
	pad := strings.Repeat(" ", p.IndentSpaces)
	head := pad + string(t.Role) + ":"
	for _, part := range t.Parts {
		switch part.Kind {
		case PartKindText:
			p.fprintText(w, head, part.Text)
		case PartKindToolCall:
			if part.ToolCall == nil {
				continue
			}
			if p.IncludeToolDetail {
				fmt.Fprintf(w, "%s tool_call: name=%s args=%s\n", head, part.ToolCall.Name, toOneLineJSON(part.ToolCall.Args))
			} else {
				fmt.Fprintf(w, "%s tool_call: %s\n", head, part.ToolCall.Name)
			}
		case PartKindToolResult:
			if part.ToolResult == nil {
				continue
			}
			if p.IncludeToolDetail {
				fmt.Fprintf(w, "%s tool_result: name=%s result=%s\n", head, part.ToolResult.Name, toOneLineJSON(part.ToolResult.Payload))
			} else {
				fmt.Fprintf(w, "%s tool_result: %s\n", head, part.ToolResult.Name)
			}
		case PartKindInlineData:
			fmt.Fprintf(w, "%s %s\n", head, part.String())
		}
	}
}

func (p *PrettyPrinter) fprintText(w io.Writer, head string, text string) {
	if p.MaxTextLines <= 0 {
		fmt.Fprintf(w, "%s %s\n", head, text)
		return
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= p.MaxTextLines {
		fmt.Fprintf(w, "%s %s\n", head, text)
		return
	}
	trimmed := strings.Join(lines[:p.MaxTextLines], "\n")
	fmt.Fprintf(w, "%s %s\n", head, trimmed)
}

func toOneLineJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	out := string(b)
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.ReplaceAll(out, "\t", " ")
	return out
}
