package practice

import "github.com/parley-labs/parley/pkg/domain"

// FeedbackPolicy decides when a coaching insertion preempts the next choice
// point. Both thresholds must hold: enough messages since the last coaching
// insertion, and enough distinct objectives exercised to comment on.
type FeedbackPolicy struct {
	// MinMessages is the number of transcript messages since the last
	// coaching insertion before preemption is considered. Zero or negative
	// disables preemption.
	MinMessages int
	// MinObjectivesUsed is how many distinct objectives the user must have
	// exercised before coaching has enough material.
	MinObjectivesUsed int
}

// DefaultFeedbackPolicy mirrors the shipped coaching cadence.
func DefaultFeedbackPolicy() FeedbackPolicy {
	return FeedbackPolicy{MinMessages: 4, MinObjectivesUsed: 3}
}

// ShouldPreempt reports whether a coaching insertion is due for rec.
func (p FeedbackPolicy) ShouldPreempt(rec *domain.Record) bool {
	if p.MinMessages <= 0 {
		return false
	}
	since := len(rec.Messages()) - rec.LastFeedbackAt
	return since > p.MinMessages && len(rec.ObjectivesUsed) >= p.MinObjectivesUsed
}

// preemptPrompt frames the injected coaching insertion.
const preemptPrompt = "Review the recent exchange. Name one thing the user " +
	"did that kept the conversation moving and one habit to adjust, in two " +
	"or three encouraging sentences."
