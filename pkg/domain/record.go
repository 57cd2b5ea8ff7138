package domain

import (
	"time"

	"github.com/parley-labs/parley/pkg/script"
)

// Message is one plain transcript message.
type Message struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackContent is a coaching insertion produced by the generator.
type FeedbackContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// FollowUp is an optional message sent on the user's behalf to repair
	// the conversation after the coached mistake.
	FollowUp string `json:"follow_up,omitempty"`
}

// EntryKind tags transcript entries.
type EntryKind string

const (
	EntryMessage  EntryKind = "message"
	EntryFeedback EntryKind = "feedback"
)

// Entry is one transcript element: either a message or an in-conversation
// feedback card. Exactly one payload field is set, per Kind.
type Entry struct {
	Kind      EntryKind        `json:"kind"`
	Message   *Message         `json:"message,omitempty"`
	Feedback  *FeedbackContent `json:"feedback,omitempty"`
	Rating    *int             `json:"rating,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewMessageEntry wraps a message as a transcript entry.
func NewMessageEntry(sender, content string) Entry {
	now := time.Now().UTC()
	return Entry{
		Kind:      EntryMessage,
		Message:   &Message{Sender: sender, Content: content, CreatedAt: now},
		CreatedAt: now,
	}
}

// NewFeedbackEntry wraps feedback content as a transcript entry.
func NewFeedbackEntry(fb FeedbackContent) Entry {
	return Entry{Kind: EntryFeedback, Feedback: &fb, CreatedAt: time.Now().UTC()}
}

// PendingOption is one generated, user-selectable reply together with the
// script position to resume at if it is chosen.
type PendingOption struct {
	Content   string           `json:"content"`
	Objective string           `json:"objective,omitempty"`
	Next      *script.Position `json:"next,omitempty"`
}

// Record is the mutable state of one practice session. Every field is
// mutated only inside a session transaction; stores receive
// transaction-consistent snapshots.
type Record struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	// Agent is the display name of the scripted conversation partner.
	Agent string `json:"agent"`
	// Level names the script this session runs.
	Level string `json:"level"`
	// Seed drives the session's deterministic step randomness.
	Seed int64 `json:"seed"`

	// Position is the current location in the composed script; nil once
	// the script has completed.
	Position *script.Position `json:"position,omitempty"`
	// Pending holds generated reply options awaiting user selection.
	Pending []PendingOption `json:"pending,omitempty"`

	Transcript []Entry `json:"transcript"`
	Events     []Event `json:"events"`

	// Transient UI flags, revealed to waiters mid-transaction.
	AgentTyping       bool `json:"agent_typing"`
	GeneratingOptions bool `json:"generating_options"`
	LoadingFeedback   bool `json:"loading_feedback"`
	Unread            bool `json:"unread"`

	Completed bool `json:"completed"`
	Closed    bool `json:"closed"`

	// LastFeedbackAt is the transcript length at the last coaching
	// insertion; ObjectivesUsed tracks which skills coaching has covered.
	LastFeedbackAt int      `json:"last_feedback_at"`
	ObjectivesUsed []string `json:"objectives_used,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewRecord initializes a session record at the given script position.
func NewRecord(id, userID, agent, level string, seed int64, pos *script.Position) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:          id,
		UserID:      userID,
		Agent:       agent,
		Level:       level,
		Seed:        seed,
		Position:    pos,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Touch bumps the last-updated timestamp.
func (r *Record) Touch() {
	r.LastUpdated = time.Now().UTC()
}

// Messages returns the plain messages of the transcript, in order. Feedback
// entries are skipped; generators receive conversational history only.
func (r *Record) Messages() []Message {
	var out []Message
	for _, e := range r.Transcript {
		if e.Kind == EntryMessage && e.Message != nil {
			out = append(out, *e.Message)
		}
	}
	return out
}

// Clone returns a deep copy, used for commit snapshots and reads outside
// the session lock.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Position = r.Position.Clone()

	if r.Pending != nil {
		cp.Pending = make([]PendingOption, len(r.Pending))
		for i, p := range r.Pending {
			p.Next = p.Next.Clone()
			cp.Pending[i] = p
		}
	}

	cp.Transcript = make([]Entry, len(r.Transcript))
	for i, e := range r.Transcript {
		if e.Message != nil {
			m := *e.Message
			e.Message = &m
		}
		if e.Feedback != nil {
			f := *e.Feedback
			e.Feedback = &f
		}
		if e.Rating != nil {
			v := *e.Rating
			e.Rating = &v
		}
		cp.Transcript[i] = e
	}

	cp.Events = make([]Event, len(r.Events))
	copy(cp.Events, r.Events)

	cp.ObjectivesUsed = append([]string(nil), r.ObjectivesUsed...)
	return &cp
}
