// Package canned implements the Generator port with authored content only:
// it serves a step's example lines verbatim, falling back to the
// instruction text. Used by the serve command for local runs and demos; a
// real deployment plugs an LLM-backed Generator into the same port.
package canned

import (
	"context"
	"math/rand"
	"sync"

	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/ports"
)

// Generator produces deterministic-ish canned replies.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a canned generator with its own random stream.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) pick(examples []string) (string, bool) {
	if len(examples) == 0 {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return examples[g.rng.Intn(len(examples))], true
}

func (g *Generator) Message(_ context.Context, req ports.MessageRequest) (string, error) {
	if line, ok := g.pick(req.Instructions.Examples); ok {
		return line, nil
	}
	// No authored example: surface the direction itself so the
	// conversation stays inspectable.
	return "(" + req.Instructions.Description + ")", nil
}

func (g *Generator) Feedback(_ context.Context, req ports.FeedbackRequest) (domain.FeedbackContent, error) {
	fb := domain.FeedbackContent{
		Title: "Coach's note",
		Body:  req.Prompt,
	}
	if line, ok := g.pick(req.Instructions.Examples); ok {
		fb.FollowUp = line
	}
	return fb, nil
}
