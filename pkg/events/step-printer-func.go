package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a watermill handler that renders a run for a
// terminal: streamed text as it arrives, tool activity as YAML.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	lastText := ""

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString)
			return err

		case *EventPartialCompletion:
			if isFirst && name != "" {
				isFirst = false
				if _, err = fmt.Fprintf(w, "\n%s: \n", name); err != nil {
					return err
				}
			}
			lastText = p_.Completion
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			return err

		case *EventToolCallExecute:
			v_, err := yaml.Marshal(p_.ToolCall)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "\n[tool] %s", v_)
			return err

		case *EventToolCallExecutionResult:
			v_, err := yaml.Marshal(p_.ToolResult)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "[result] %s", v_)
			return err

		case *EventSuggestion:
			v_, err := yaml.Marshal(map[string]any{"kind": p_.Kind, "payload": p_.Payload})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "\n[suggestion] %s", v_)
			return err

		case *EventSideEffect:
			_, err = fmt.Fprintf(w, "\n[%s] %v\n", p_.Kind, p_.Value)
			return err

		case *EventInterrupt:
			_, err = fmt.Fprintf(w, "\n[interrupted]\n")
			return err

		case *EventFinal:
			if !strings.HasSuffix(lastText, "\n") {
				_, err = fmt.Fprintf(w, "\n")
			}
			return err

		case *EventPartialCompletionStart, *EventToolCall:
		}

		return nil
	}
}
