package compiler

// Severity of a diagnostic entry.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "severity?"
}

// Message is one diagnostic entry, attributed to a source section and line.
// Entries are never mutated after creation.
type Message struct {
	Severity Severity
	Section  string
	Line     int
	Text     string
}

var noError = Message{Severity: SeverityNone}

// MessageHandler accumulates diagnostics for one compilation unit. It is
// append-only; GetError is the single authority on whether the unit failed.
type MessageHandler struct {
	entries []Message
}

func NewMessageHandler() *MessageHandler {
	return &MessageHandler{}
}

// AddMessage appends one diagnostic entry.
func (mh *MessageHandler) AddMessage(sev Severity, section string, line int, text string) {
	mh.entries = append(mh.entries, Message{Severity: sev, Section: section, Line: line, Text: text})
}

// GetMessages returns a copy of the accumulated entries in emission order.
func (mh *MessageHandler) GetMessages() []Message {
	out := make([]Message, len(mh.entries))
	copy(out, mh.entries)
	return out
}

// GetError returns the first entry with error severity, or the no-error
// sentinel (Severity == SeverityNone) if the unit compiled cleanly.
func (mh *MessageHandler) GetError() Message {
	for _, e := range mh.entries {
		if e.Severity == SeverityError {
			return e
		}
	}
	return noError
}

// HasError reports whether any error entry has been recorded.
func (mh *MessageHandler) HasError() bool {
	return mh.GetError().Severity == SeverityError
}

// Clear resets the handler for an independent compilation unit.
func (mh *MessageHandler) Clear() {
	mh.entries = nil
}
