package stream

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Event is one line of an Ollama /api/chat stream. Every field is optional;
// most lines carry only Message, the last one carries Done and the counters.
type Event struct {
	Model      string        `json:"model,omitempty"`
	CreatedAt  string        `json:"created_at,omitempty"`
	Message    *EventMessage `json:"message,omitempty"`
	Done       bool          `json:"done,omitempty"`
	DoneReason string        `json:"done_reason,omitempty"`
	Error      string        `json:"error,omitempty"`

	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// EventMessage is the partial assistant message inside an Event.
// Content is a pointer so a missing field can be told apart from "".
type EventMessage struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Token returns the text increment carried by the event, if any.
func (e *Event) Token() (string, bool) {
	if e.Message == nil || e.Message.Content == nil {
		return "", false
	}
	return *e.Message.Content, true
}

var replacementChar = []byte("\uFFFD")

// DecodeEvent parses a single line. Invalid UTF-8 is replaced with U+FFFD
// before parsing, and a field of the wrong type is left at its zero value
// while the rest of the event is kept. Only a line that is not valid JSON
// is an error.
func DecodeEvent(line []byte) (Event, error) {
	line = bytes.ToValidUTF8(line, replacementChar)

	var ev Event
	err := json.Unmarshal(line, &ev)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		ev.recheckContent(line)
		return ev, nil
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// recheckContent keeps message.content only if it really is a JSON string.
// After a type error encoding/json may have left an allocated but empty
// Content behind.
func (e *Event) recheckContent(line []byte) {
	if e.Message == nil {
		return
	}
	e.Message.Content = nil

	var raw struct {
		Message *struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	_ = json.Unmarshal(line, &raw)
	if raw.Message == nil || len(raw.Message.Content) == 0 || raw.Message.Content[0] != '"' {
		return
	}
	var content string
	if json.Unmarshal(raw.Message.Content, &content) == nil {
		e.Message.Content = &content
	}
}
