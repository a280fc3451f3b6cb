// Package claude runs the Claude CLI as a text-generation backend.
//
// The CLI is spawned in print mode with stream-json output; this package
// parses the stream into events and collects the assistant text and token
// usage of a single turn.
//
// Key types:
//   - [Executor]: Interface for running one Claude CLI turn
//   - [Parser]: Interface for parsing streaming JSON output
//   - [Event]: Parsed event with convenience methods for common checks
//
// For testing, use [MockExecutor] which implements [Executor] without spawning
// real processes.
package claude

// StreamEvent represents a raw JSON event from Claude's streaming output.
//
// Most callers should work with [Event] instead. StreamEvent is available via
// [Event.Raw] when the original structure is needed.
type StreamEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message *MessageContent `json:"message,omitempty"`

	// Result, IsError and Usage are only set on result events.
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
}

// MessageContent represents the content of an assistant message.
type MessageContent struct {
	Model   string         `json:"model,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is a single block of an assistant message. Only "text" blocks
// carry content this package uses.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage reports token counts for the turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EventType represents the type of event received from Claude's streaming output.
type EventType string

const (
	// EventTypeSystem indicates a system event, typically session initialization.
	EventTypeSystem EventType = "system"

	// EventTypeAssistant indicates output from Claude.
	EventTypeAssistant EventType = "assistant"

	// EventTypeUser indicates tool results fed back to Claude. Generation
	// turns use no tools, so these are ignored.
	EventTypeUser EventType = "user"

	// EventTypeResult indicates the turn has completed.
	EventTypeResult EventType = "result"

	// EventTypeError is emitted by [Parser] when the stream cannot be read
	// to the end. It never appears in the CLI's own output.
	EventTypeError EventType = "error"
)

// SubtypeInit is the subtype value for system initialization events.
const SubtypeInit = "init"

// Event is a parsed event from Claude's streaming output.
type Event struct {
	// Raw provides access to the original [StreamEvent].
	Raw *StreamEvent

	Type    EventType
	Subtype string

	// Text is the concatenated text blocks of an assistant event.
	Text string

	// SessionStarted is true for system init events.
	SessionStarted bool

	// SessionComplete is true for result events.
	SessionComplete bool

	// Result is the final text of a result event.
	Result string

	// IsError is true when the result event reports a failed turn.
	IsError bool

	InputTokens  int
	OutputTokens int

	// Err is the read error of an [EventTypeError] event.
	Err error
}

// NewEventFromStream creates an [Event] from a raw [StreamEvent].
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{
		Raw:     raw,
		Type:    EventType(raw.Type),
		Subtype: raw.Subtype,
	}

	switch e.Type {
	case EventTypeSystem:
		e.SessionStarted = raw.Subtype == SubtypeInit

	case EventTypeAssistant:
		if raw.Message != nil {
			for _, block := range raw.Message.Content {
				if block.Type == "text" {
					e.Text += block.Text
				}
			}
		}

	case EventTypeResult:
		e.SessionComplete = true
		e.Result = raw.Result
		e.IsError = raw.IsError || (raw.Subtype != "" && raw.Subtype != "success")
		if raw.Usage != nil {
			e.InputTokens = raw.Usage.InputTokens
			e.OutputTokens = raw.Usage.OutputTokens
		}
	}

	return e
}

// IsText returns true if this event contains text content from Claude.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}
