package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// EventCodec decodes a JSON payload into a concrete Event instance.
type EventCodec func([]byte) (Event, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]EventCodec{}
)

func init() {
	builtins := map[EventType]EventCodec{
		EventTypeStart:                   decodeTyped[EventPartialCompletionStart],
		EventTypePartialCompletion:       decodeTyped[EventPartialCompletion],
		EventTypeToolCall:                decodeTyped[EventToolCall],
		EventTypeToolCallExecute:         decodeTyped[EventToolCallExecute],
		EventTypeToolCallExecutionResult: decodeTyped[EventToolCallExecutionResult],
		EventTypeSuggestion:              decodeTyped[EventSuggestion],
		EventTypeSideEffect:              decodeTyped[EventSideEffect],
		EventTypeError:                   decodeTyped[EventError],
		EventTypeInterrupt:               decodeTyped[EventInterrupt],
		EventTypeFinal:                   decodeTyped[EventFinal],
	}
	for t, dec := range builtins {
		if err := RegisterEventCodec(string(t), dec); err != nil {
			panic(err)
		}
	}
}

// RegisterEventCodec registers a decoder for an event type name, used by
// NewEventFromJson. Every built-in type is registered at init, so it fails for
// those as well as for a type registered twice.
func RegisterEventCodec(typeName string, dec EventCodec) error {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	if _, exists := decoders[typeName]; exists {
		return fmt.Errorf("decoder already registered for type %q", typeName)
	}
	decoders[typeName] = dec
	return nil
}

// RegisterEventFactory registers a decoder based on json.Unmarshal into the
// value returned by factory, which must be a pointer.
func RegisterEventFactory(typeName string, factory func() Event) error {
	return RegisterEventCodec(typeName, func(b []byte) (Event, error) {
		ev := factory()
		if err := json.Unmarshal(b, ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
}

func lookupDecoder(typeName string) EventCodec {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	return decoders[typeName]
}
