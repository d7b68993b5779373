package gemini

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type StreamEventKind string

const (
	StreamEventTextDelta  StreamEventKind = "text-delta"
	StreamEventToolCall   StreamEventKind = "tool-call"
	StreamEventFinish     StreamEventKind = "finish"
	StreamEventUnparsable StreamEventKind = "unparsable"
)

// StreamEvent is one unit decoded from the backend stream. Which fields are
// set depends on Kind.
type StreamEvent struct {
	Kind         StreamEventKind
	Text         string
	ToolCall     *tools.ToolCallRequest
	FinishReason string
	Usage        *UsageMetadata
	// Err explains why an unparsable frame was skipped.
	Err error
}

func (s StreamEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("kind", string(s.Kind))
	switch s.Kind {
	case StreamEventTextDelta:
		e.Int("text_len", len(s.Text))
	case StreamEventToolCall:
		if s.ToolCall != nil {
			e.Object("tool_call", *s.ToolCall)
		}
	case StreamEventFinish:
		e.Str("finish_reason", s.FinishReason)
		if s.Usage != nil {
			e.Object("usage", *s.Usage)
		}
	case StreamEventUnparsable:
		e.AnErr("reason", s.Err)
	}
}

var _ zerolog.LogObjectMarshaler = StreamEvent{}

var (
	errNoCandidates = errors.New("frame has no candidates[0].content.parts")
	dataPrefix      = []byte("data:")
	doneSentinel    = []byte("[DONE]")
)

// Decoder turns a server-sent event stream into StreamEvents. It reads one
// line at a time and only holds the events of the frame currently being
// emitted, so reading from it is what pulls bytes off the transport.
type Decoder struct {
	r       *bufio.Reader
	pending []StreamEvent
	done    bool

	finishReason string
	usage        *UsageMetadata
	modelVersion string

	frames  int
	skipped int

	newID func() string
}

type DecoderOption func(*Decoder)

// WithCallIDGenerator sets how IDs are assigned to function calls that arrive
// without one.
func WithCallIDGenerator(f func() string) DecoderOption {
	return func(d *Decoder) {
		d.newID = f
	}
}

func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:     bufio.NewReader(r),
		newID: func() string { return "call_" + uuid.NewString() },
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Next returns the next event. Once the underlying reader is exhausted it
// returns a single Finish event carrying the last finish reason and usage, then
// io.EOF. Read errors other than io.EOF are returned as is.
func (d *Decoder) Next() (StreamEvent, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.done {
			return StreamEvent{}, io.EOF
		}

		line, err := d.r.ReadBytes('\n')
		if len(line) > 0 {
			d.decodeLine(line)
		}
		if err != nil {
			if err != io.EOF {
				return StreamEvent{}, err
			}
			d.done = true
			d.pending = append(d.pending, StreamEvent{
				Kind:         StreamEventFinish,
				FinishReason: d.finishReason,
				Usage:        d.usage,
			})
			log.Debug().Int("frames", d.frames).Int("skipped", d.skipped).Str("finish_reason", d.finishReason).Msg("gemini: stream closed")
		}
	}
}

func (d *Decoder) FinishReason() string {
	return d.finishReason
}

func (d *Decoder) Usage() *UsageMetadata {
	return d.usage
}

func (d *Decoder) ModelVersion() string {
	return d.modelVersion
}

// Frames returns how many data frames were seen and how many were skipped.
func (d *Decoder) Frames() (seen int, skipped int) {
	return d.frames, d.skipped
}

func (d *Decoder) decodeLine(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || bytes.Equal(payload, doneSentinel) {
		return
	}
	d.frames++

	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		d.skip(errors.Wrap(err, "invalid frame json"))
		return
	}
	if resp.UsageMetadata != nil {
		d.usage = resp.UsageMetadata
	}
	if resp.ModelVersion != "" {
		d.modelVersion = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		d.finishReason = resp.Candidates[0].FinishReason
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || resp.Candidates[0].Content.Parts == nil {
		d.skip(errNoCandidates)
		return
	}

	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p.FunctionCall != nil:
			if p.FunctionCall.Name == "" {
				continue
			}
			id := p.FunctionCall.ID
			if id == "" {
				id = d.newID()
			}
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			d.pending = append(d.pending, StreamEvent{
				Kind:     StreamEventToolCall,
				ToolCall: &tools.ToolCallRequest{
					ID:               id,
					Name:             p.FunctionCall.Name,
					Args:             args,
					ThoughtSignature: p.ThoughtSignature,
				},
			})
		case p.Thought:
			// reasoning summaries are not part of the visible message
		case p.Text != "":
			d.pending = append(d.pending, StreamEvent{Kind: StreamEventTextDelta, Text: p.Text})
		}
	}
}

func (d *Decoder) skip(err error) {
	d.skipped++
	d.pending = append(d.pending, StreamEvent{Kind: StreamEventUnparsable, Err: err})
}
