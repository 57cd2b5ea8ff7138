package ports

import (
	"context"

	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/script"
)

// MessageRequest asks the generator for one conversational message.
type MessageRequest struct {
	// Sender is the display name the message is attributed to.
	Sender string
	// Agent is the scripted partner's display name.
	Agent string
	// UserSent is true when the message is produced on the user's behalf
	// (reply options and feedback follow-ups).
	UserSent bool
	// Instructions is the authored payload from the script step.
	Instructions script.Instructions
	// History is the conversation so far, oldest first.
	History []domain.Message
}

// FeedbackRequest asks the generator for a coaching insertion.
type FeedbackRequest struct {
	Agent string
	// Prompt frames the coaching angle for this insertion.
	Prompt string
	// Instructions describe the follow-up message, when one is wanted.
	Instructions script.Instructions
	// History is the portion of the conversation the feedback covers.
	History []domain.Message
}

// Generator is the external content provider boundary. Calls are slow and
// must run outside session locks; failures propagate to the caller and are
// never silently substituted. The engine does not retry.
type Generator interface {
	Message(ctx context.Context, req MessageRequest) (string, error)
	Feedback(ctx context.Context, req FeedbackRequest) (domain.FeedbackContent, error)
}
