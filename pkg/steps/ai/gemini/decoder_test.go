package gemini

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, d *Decoder) []StreamEvent {
	t.Helper()
	var ret []StreamEvent
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return ret
		}
		require.NoError(t, err)
		ret = append(ret, ev)
	}
}

func textOf(evs []StreamEvent) string {
	var sb strings.Builder
	for _, ev := range evs {
		if ev.Kind == StreamEventTextDelta {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func kinds(evs []StreamEvent) []StreamEventKind {
	ret := make([]StreamEventKind, 0, len(evs))
	for _, ev := range evs {
		ret = append(ret, ev.Kind)
	}
	return ret
}

func TestDecoder_TextFrames(t *testing.T) {
	body := `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}

data: {"candidates":[{"content":{"role":"model","parts":[{"text":"lo"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":2,"totalTokenCount":12}}

`
	d := NewDecoder(strings.NewReader(body))
	evs := drain(t, d)

	assert.Equal(t, []StreamEventKind{StreamEventTextDelta, StreamEventTextDelta, StreamEventFinish}, kinds(evs))
	assert.Equal(t, "Hello", textOf(evs))

	fin := evs[len(evs)-1]
	assert.Equal(t, "STOP", fin.FinishReason)
	require.NotNil(t, fin.Usage)
	assert.Equal(t, 12, fin.Usage.TotalTokenCount)

	seen, skipped := d.Frames()
	assert.Equal(t, 2, seen)
	assert.Equal(t, 0, skipped)
}

func TestDecoder_MalformedFrameIsSkipped(t *testing.T) {
	clean := `data: {"candidates":[{"content":{"parts":[{"text":"one "}]}}]}
data: {"candidates":[{"content":{"parts":[{"text":"two"}]}}]}
`
	dirty := `data: {"candidates":[{"content":{"parts":[{"text":"one "}]}}]}
data: {"candidates":[{"content":{"parts":[{"te
data: {"candidates":[{"content":{"parts":[{"text":"two"}]}}]}
`
	cleanEvs := drain(t, NewDecoder(strings.NewReader(clean)))
	d := NewDecoder(strings.NewReader(dirty))
	dirtyEvs := drain(t, d)

	assert.Equal(t, "one two", textOf(dirtyEvs))
	assert.Equal(t, textOf(cleanEvs), textOf(dirtyEvs))

	_, skipped := d.Frames()
	assert.Equal(t, 1, skipped)
	assert.Contains(t, kinds(dirtyEvs), StreamEventUnparsable)
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	body := ": keepalive\r\n" +
		"event: message\r\n" +
		"\r\n" +
		"data: [DONE]\r\n" +
		"data:\r\n" +
		`data:{"candidates":[{"content":{"parts":[{"text":"x"}]}}]}` + "\r\n"

	d := NewDecoder(strings.NewReader(body))
	evs := drain(t, d)
	assert.Equal(t, []StreamEventKind{StreamEventTextDelta, StreamEventFinish}, kinds(evs))
	assert.Equal(t, "x", evs[0].Text)

	seen, skipped := d.Frames()
	assert.Equal(t, 1, seen)
	assert.Equal(t, 0, skipped)
}

func TestDecoder_MetadataOnlyFrame(t *testing.T) {
	body := `data: {"usageMetadata":{"promptTokenCount":3,"totalTokenCount":3}}
data: {"candidates":[{"finishReason":"MAX_TOKENS"}]}
`
	d := NewDecoder(strings.NewReader(body))
	evs := drain(t, d)

	assert.Equal(t, []StreamEventKind{StreamEventUnparsable, StreamEventUnparsable, StreamEventFinish}, kinds(evs))
	assert.Equal(t, "MAX_TOKENS", d.FinishReason())
	require.NotNil(t, d.Usage())
	assert.Equal(t, 3, d.Usage().PromptTokenCount)
}

func TestDecoder_FunctionCalls(t *testing.T) {
	body := `data: {"candidates":[{"content":{"parts":[{"text":"Let me check. "},{"functionCall":{"name":"query_food_log","args":{"date":"2024-05-01"}}},{"functionCall":{"id":"fc-9","name":"get_user_plan"}}]}}]}
`
	n := 0
	d := NewDecoder(strings.NewReader(body), WithCallIDGenerator(func() string {
		n++
		return "gen-" + string(rune('0'+n))
	}))
	evs := drain(t, d)

	require.Equal(t, []StreamEventKind{StreamEventTextDelta, StreamEventToolCall, StreamEventToolCall, StreamEventFinish}, kinds(evs))

	first := evs[1].ToolCall
	require.NotNil(t, first)
	assert.Equal(t, "gen-1", first.ID)
	assert.Equal(t, "query_food_log", first.Name)
	assert.Equal(t, map[string]any{"date": "2024-05-01"}, first.Args)

	second := evs[2].ToolCall
	require.NotNil(t, second)
	assert.Equal(t, "fc-9", second.ID)
	assert.Equal(t, map[string]any{}, second.Args)
}

func TestDecoder_KeepsThoughtSignature(t *testing.T) {
	body := `data: {"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_user_plan"},"thoughtSignature":"c2lnLTE="}]}}]}
`
	evs := drain(t, NewDecoder(strings.NewReader(body)))
	require.Equal(t, StreamEventToolCall, evs[0].Kind)
	assert.Equal(t, "c2lnLTE=", evs[0].ToolCall.ThoughtSignature)
}

func TestDecoder_SkipsThoughtParts(t *testing.T) {
	body := `data: {"candidates":[{"content":{"parts":[{"text":"thinking about it","thought":true},{"text":"Answer"}]}}]}`
	evs := drain(t, NewDecoder(strings.NewReader(body)))
	assert.Equal(t, "Answer", textOf(evs))
}

func TestDecoder_UnterminatedFinalLine(t *testing.T) {
	body := `data: {"candidates":[{"content":{"parts":[{"text":"tail"}]}}]}`
	evs := drain(t, NewDecoder(strings.NewReader(body)))
	assert.Equal(t, "tail", textOf(evs))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecoder_ReadErrorIsReturned(t *testing.T) {
	d := NewDecoder(failingReader{})
	_, err := d.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
