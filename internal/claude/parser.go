package claude

import (
	"bufio"
	"encoding/json"
	"io"
)

const defaultBufferSize = 10 * 1024 * 1024

// Parser parses streaming JSON output from Claude CLI.
//
// Each line of stream-json output is one JSON object. The channel returned by
// Parse is closed at EOF or after a read error, which is delivered first as
// an [EventTypeError] event. Malformed lines are skipped.
type Parser interface {
	Parse(reader io.Reader) <-chan Event
}

// DefaultParser implements [Parser] for Claude's stream-json format.
type DefaultParser struct {
	// BufferSize is the maximum size in bytes for a single JSON line.
	// Defaults to 10MB if not set or <= 0.
	BufferSize int
}

// NewParser creates a new [DefaultParser] with default settings.
func NewParser() *DefaultParser {
	return &DefaultParser{BufferSize: defaultBufferSize}
}

// Parse reads streaming JSON from the reader and emits parsed [Event] values.
func (p *DefaultParser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = defaultBufferSize
		}
		initial := 64 * 1024
		if bufSize < initial {
			initial = bufSize
		}
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, initial), bufSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var raw StreamEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
		if err := scanner.Err(); err != nil {
			events <- Event{Type: EventTypeError, Err: err}
		}
	}()

	return events
}

// ParseSingle parses a single JSON line into an [Event]. Unlike
// [Parser.Parse], malformed input is an error.
func ParseSingle(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}

// Transcript accumulates the events of one turn.
type Transcript struct {
	// Text is the assistant text in stream order.
	Text string

	// Result is the final text reported by the result event.
	Result string

	Complete     bool
	IsError      bool
	InputTokens  int
	OutputTokens int

	// Err is set when the stream could not be read to the end.
	Err error
}

// Add folds e into the transcript.
func (t *Transcript) Add(e Event) {
	switch {
	case e.Err != nil:
		t.Err = e.Err
	case e.IsText():
		t.Text += e.Text
	case e.SessionComplete:
		t.Complete = true
		t.Result = e.Result
		t.IsError = e.IsError
		t.InputTokens = e.InputTokens
		t.OutputTokens = e.OutputTokens
	}
}

// Output returns the final text of the turn. The result event's text is
// preferred because it holds the complete final message.
func (t *Transcript) Output() string {
	if t.Result != "" {
		return t.Result
	}
	return t.Text
}
