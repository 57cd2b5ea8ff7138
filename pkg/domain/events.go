package domain

import (
	"encoding/json"
	"time"
)

// EventKind is the closed set of event log entries. The log is append-only
// and mixes UI-presentation and domain events; consumers filter by kind.
type EventKind string

const (
	EventUserMessage   EventKind = "user-message"
	EventAgentMessage  EventKind = "agent-message"
	EventFeedback      EventKind = "feedback"
	EventOptionsShown  EventKind = "options-shown"
	EventOptionChosen  EventKind = "option-chosen"
	EventFeedbackRated EventKind = "feedback-rated"
	EventSessionClosed EventKind = "session-closed"
)

// Event is one entry of a record's event log: a kind tag, a timestamp and a
// kind-specific payload.
type Event struct {
	Kind EventKind       `json:"kind"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessageEventData is the payload for user-message and agent-message events.
type MessageEventData struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// OptionsEventData is the payload for options-shown events.
type OptionsEventData struct {
	Options []string `json:"options"`
}

// ChoiceEventData is the payload for option-chosen events.
type ChoiceEventData struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// FeedbackEventData is the payload for feedback events.
type FeedbackEventData struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// RatingEventData is the payload for feedback-rated events.
type RatingEventData struct {
	Index  int `json:"index"`
	Rating int `json:"rating"`
}

// NewEvent builds an event, marshaling the payload. Marshal failures are
// impossible for the payload types above, so they are swallowed into an
// empty payload rather than propagated.
func NewEvent(kind EventKind, data any) Event {
	ev := Event{Kind: kind, At: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}
