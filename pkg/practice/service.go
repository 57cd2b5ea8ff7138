package practice

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/parley-labs/parley/internal/logging"
	"github.com/parley-labs/parley/internal/metrics"
	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/levels"
	"github.com/parley-labs/parley/pkg/ports"
	"github.com/parley-labs/parley/pkg/script"
	"github.com/parley-labs/parley/pkg/session"
)

// Service runs practice sessions over the authored levels.
type Service struct {
	levels   *levels.Registry
	registry *session.Registry
	gen      ports.Generator
	policy   FeedbackPolicy
	metrics  *metrics.Metrics
	logger   *slog.Logger
	userName string
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy overrides the coaching preemption policy.
func WithPolicy(p FeedbackPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMetrics wires the Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithUserName sets the display name messages on the user's behalf carry.
func WithUserName(name string) Option {
	return func(s *Service) { s.userName = name }
}

// NewService wires the practice service.
func NewService(lvls *levels.Registry, reg *session.Registry, gen ports.Generator, opts ...Option) *Service {
	s := &Service{
		levels:   lvls,
		registry: reg,
		gen:      gen,
		policy:   DefaultFeedbackPolicy(),
		logger:   logging.NewNop(),
		userName: "You",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Levels returns the level registry, for listing surfaces.
func (s *Service) Levels() *levels.Registry {
	return s.levels
}

// Start creates a session on the named level and drives the script to its
// first choice point. The returned record is the post-advance snapshot.
func (s *Service) Start(ctx context.Context, userID, levelName string) (*domain.Record, error) {
	lvl, err := s.levels.Get(levelName)
	if err != nil {
		return nil, err
	}

	seed := rand.Int63()
	stepper := lvl.Script.Stepper(seed)
	rec := domain.NewRecord(uuid.NewString(), userID, lvl.Agent, lvl.Name, seed, stepper.Init())

	ctrl, err := s.registry.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionCreated()

	if err := s.Advance(ctx, ctrl); err != nil {
		return nil, err
	}
	return ctrl.Read(), nil
}

// Get returns a snapshot of the session record.
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Record, error) {
	ctrl, err := s.registry.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.Read(), nil
}

// List returns all persisted session ids.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.registry.List(ctx)
}

// Resume re-drives the script for a session, picking up where a failed
// generation attempt left off. A no-op when the session is already waiting
// on a selection or completed.
func (s *Service) Resume(ctx context.Context, sessionID string) (*domain.Record, error) {
	ctrl, err := s.registry.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.Advance(ctx, ctrl); err != nil {
		return nil, err
	}
	return ctrl.Read(), nil
}

// Controller exposes the live controller for a session, used by streaming
// surfaces that block on WaitForChange.
func (s *Service) Controller(ctx context.Context, sessionID string) (*session.Controller, error) {
	return s.registry.Load(ctx, sessionID)
}

// SelectOption applies the user's pick: the chosen reply joins the
// transcript, the position moves to the branch successor, and the script
// advances to the next choice point. The record is unchanged when the index
// does not resolve.
func (s *Service) SelectOption(ctx context.Context, sessionID string, index int) (*domain.Record, error) {
	ctrl, err := s.registry.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	err = ctrl.Transaction(ctx, func(tx *session.Tx) error {
		rec := tx.Record()
		if rec.Closed {
			return domain.ErrSessionClosed
		}
		if len(rec.Pending) == 0 {
			return domain.ErrNoPendingOptions
		}
		if index < 0 || index >= len(rec.Pending) {
			return fmt.Errorf("select option %d of %d: %w", index, len(rec.Pending), domain.ErrOptionOutOfRange)
		}

		chosen := rec.Pending[index]
		rec.Transcript = append(rec.Transcript, domain.NewMessageEntry(s.userName, chosen.Content))
		rec.Events = append(rec.Events,
			domain.NewEvent(domain.EventUserMessage, domain.MessageEventData{Sender: s.userName, Content: chosen.Content}),
			domain.NewEvent(domain.EventOptionChosen, domain.ChoiceEventData{Index: index, Content: chosen.Content}),
		)
		if chosen.Objective != "" && !contains(rec.ObjectivesUsed, chosen.Objective) {
			rec.ObjectivesUsed = append(rec.ObjectivesUsed, chosen.Objective)
		}
		rec.Position = chosen.Next
		rec.Pending = nil
		rec.Touch()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.Advance(ctx, ctrl); err != nil {
		return nil, err
	}
	return ctrl.Read(), nil
}

// Rate attaches a rating to a feedback transcript entry.
func (s *Service) Rate(ctx context.Context, sessionID string, entryIndex, rating int) error {
	ctrl, err := s.registry.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	err = ctrl.Transaction(ctx, func(tx *session.Tx) error {
		rec := tx.Record()
		if rec.Closed {
			return domain.ErrSessionClosed
		}
		if entryIndex < 0 || entryIndex >= len(rec.Transcript) {
			return fmt.Errorf("rate entry %d: transcript has %d entries", entryIndex, len(rec.Transcript))
		}
		entry := &rec.Transcript[entryIndex]
		if entry.Kind != domain.EntryFeedback {
			return fmt.Errorf("rate entry %d: not a feedback entry", entryIndex)
		}
		entry.Rating = &rating
		rec.Events = append(rec.Events,
			domain.NewEvent(domain.EventFeedbackRated, domain.RatingEventData{Index: entryIndex, Rating: rating}))
		rec.Touch()
		return nil
	})
	if err != nil {
		return err
	}
	return s.commit(ctx, ctrl)
}

// MarkRead clears the unread flag.
func (s *Service) MarkRead(ctx context.Context, sessionID string) error {
	ctrl, err := s.registry.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	err = ctrl.Transaction(ctx, func(tx *session.Tx) error {
		tx.Record().Unread = false
		return nil
	})
	if err != nil {
		return err
	}
	return s.commit(ctx, ctrl)
}

// Close invalidates the session.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	if err := s.registry.Close(ctx, sessionID); err != nil {
		return err
	}
	s.metrics.SessionClosed()
	return nil
}

// Advance steps the script until it blocks on a user selection, completes,
// or fails. Slow generation always runs outside the session lock; results
// are applied only when the position they were computed for is still
// current.
func (s *Service) Advance(ctx context.Context, ctrl *session.Controller) error {
	for {
		rec := ctrl.Read()
		if rec.Closed {
			return domain.ErrSessionClosed
		}
		if len(rec.Pending) > 0 || rec.Completed {
			return s.commit(ctx, ctrl)
		}

		lvl, err := s.levels.Get(rec.Level)
		if err != nil {
			return err
		}
		step, next, err := lvl.Script.Stepper(rec.Seed).Step(rec.Position)
		if err != nil {
			return fmt.Errorf("session %s at %s: %w", rec.ID, rec.Position, err)
		}

		switch st := step.(type) {
		case script.Complete:
			err = s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
				r.Completed = true
				r.Position = nil
			})
			if err != nil {
				return err
			}
			s.metrics.StepExecuted("complete")
			s.logger.Info("session completed", "session_id", rec.ID)
			return s.commit(ctx, ctrl)

		case script.Directive:
			if err := s.runDirective(ctx, ctrl, rec, st, next); err != nil {
				return err
			}
			s.metrics.StepExecuted("directive")

		case script.Feedback:
			if err := s.runFeedback(ctx, ctrl, rec, st, next); err != nil {
				return err
			}
			s.metrics.StepExecuted("feedback")

		case script.Choice:
			// Coaching preempts choice points only; the script is never
			// interrupted mid-exchange.
			if s.policy.ShouldPreempt(rec) {
				if err := s.insertCoaching(ctx, ctrl, rec); err != nil {
					return err
				}
				continue
			}
			if err := s.runChoice(ctx, ctrl, rec, st); err != nil {
				return err
			}
			s.metrics.StepExecuted("choice")
			return s.commit(ctx, ctrl)

		default:
			return fmt.Errorf("session %s: unhandled step %T: %w", rec.ID, step, script.ErrBadAddress)
		}
	}
}

// runDirective generates one agent message and appends it.
func (s *Service) runDirective(ctx context.Context, ctrl *session.Controller, rec *domain.Record, st script.Directive, next *script.Position) error {
	err := s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		r.AgentTyping = true
	})
	if err != nil {
		return err
	}

	content, err := s.generateMessage(ctx, ports.MessageRequest{
		Sender:       rec.Agent,
		Agent:        rec.Agent,
		Instructions: st.Instructions,
		History:      rec.Messages(),
	})
	if err != nil {
		s.clearFlags(ctx, ctrl)
		return err
	}

	return s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		r.Transcript = append(r.Transcript, domain.NewMessageEntry(r.Agent, content))
		r.Events = append(r.Events,
			domain.NewEvent(domain.EventAgentMessage, domain.MessageEventData{Sender: r.Agent, Content: content}))
		r.Position = next
		r.AgentTyping = false
		r.Unread = true
	})
}

// runChoice fans out generation of every option branch and stores the
// pending set for the user to pick from.
func (s *Service) runChoice(ctx context.Context, ctrl *session.Controller, rec *domain.Record, st script.Choice) error {
	err := s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		r.GeneratingOptions = true
	})
	if err != nil {
		return err
	}

	history := rec.Messages()
	contents := make([]string, len(st.Options))
	g, gctx := errgroup.WithContext(ctx)
	for i, opt := range st.Options {
		i, opt := i, opt
		g.Go(func() error {
			content, err := s.generateMessage(gctx, ports.MessageRequest{
				Sender:       s.userName,
				Agent:        rec.Agent,
				UserSent:     true,
				Instructions: opt.Instructions,
				History:      history,
			})
			if err != nil {
				return err
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.clearFlags(ctx, ctrl)
		return err
	}

	pending := make([]domain.PendingOption, len(st.Options))
	for i, opt := range st.Options {
		pending[i] = domain.PendingOption{
			Content:   contents[i],
			Objective: opt.Instructions.Objective,
			Next:      opt.Next,
		}
	}
	rand.Shuffle(len(pending), func(i, j int) {
		pending[i], pending[j] = pending[j], pending[i]
	})

	return s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		shown := make([]string, len(pending))
		for i, p := range pending {
			shown[i] = p.Content
		}
		r.Pending = pending
		r.Events = append(r.Events,
			domain.NewEvent(domain.EventOptionsShown, domain.OptionsEventData{Options: shown}))
		r.GeneratingOptions = false
	})
}

// runFeedback generates a scripted coaching insertion, plus the optional
// follow-up message sent on the user's behalf.
func (s *Service) runFeedback(ctx context.Context, ctrl *session.Controller, rec *domain.Record, st script.Feedback, next *script.Position) error {
	err := s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		r.LoadingFeedback = true
	})
	if err != nil {
		return err
	}

	fb, err := s.generateFeedback(ctx, ports.FeedbackRequest{
		Agent:        rec.Agent,
		Prompt:       st.Prompt,
		Instructions: st.Instructions,
		History:      rec.Messages(),
	})
	if err != nil {
		s.clearFlags(ctx, ctrl)
		return err
	}

	return s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		s.appendFeedback(r, fb)
		r.Position = next
		r.LoadingFeedback = false
	})
}

// insertCoaching injects a policy-driven coaching insertion ahead of the
// next scripted step. It advances LastFeedbackAt so the policy does not
// retrigger immediately.
func (s *Service) insertCoaching(ctx context.Context, ctrl *session.Controller, rec *domain.Record) error {
	err := s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		r.LoadingFeedback = true
	})
	if err != nil {
		return err
	}

	fb, err := s.generateFeedback(ctx, ports.FeedbackRequest{
		Agent:   rec.Agent,
		Prompt:  preemptPrompt,
		History: rec.Messages(),
	})
	if err != nil {
		s.clearFlags(ctx, ctrl)
		return err
	}

	return s.apply(ctx, ctrl, rec.Position, func(r *domain.Record) {
		s.appendFeedback(r, fb)
		r.LoadingFeedback = false
	})
}

// appendFeedback adds the feedback entry, its event, and the optional
// follow-up message, then moves the coaching watermark.
func (s *Service) appendFeedback(r *domain.Record, fb domain.FeedbackContent) {
	r.Transcript = append(r.Transcript, domain.NewFeedbackEntry(fb))
	r.Events = append(r.Events,
		domain.NewEvent(domain.EventFeedback, domain.FeedbackEventData{Title: fb.Title, Body: fb.Body}))
	if fb.FollowUp != "" {
		r.Transcript = append(r.Transcript, domain.NewMessageEntry(s.userName, fb.FollowUp))
		r.Events = append(r.Events,
			domain.NewEvent(domain.EventUserMessage, domain.MessageEventData{Sender: s.userName, Content: fb.FollowUp}))
	}
	r.LastFeedbackAt = len(r.Messages())
	r.Unread = true
}

// apply runs mutate in a transaction guarded by the stale check: the record
// must still be open and sitting at the position the work was computed for.
func (s *Service) apply(ctx context.Context, ctrl *session.Controller, captured *script.Position, mutate func(*domain.Record)) error {
	return ctrl.Transaction(ctx, func(tx *session.Tx) error {
		rec := tx.Record()
		if rec.Closed {
			s.metrics.StaleApply()
			return domain.ErrSessionClosed
		}
		if !rec.Position.Equal(captured) {
			s.metrics.StaleApply()
			return domain.ErrStaleApply
		}
		mutate(rec)
		rec.Touch()
		return nil
	})
}

// clearFlags resets transient flags after a failed generation so waiters do
// not observe a stuck typing indicator. Best effort; stale state here means
// someone else already moved the record on.
func (s *Service) clearFlags(ctx context.Context, ctrl *session.Controller) {
	_ = ctrl.Transaction(ctx, func(tx *session.Tx) error {
		rec := tx.Record()
		rec.AgentTyping = false
		rec.GeneratingOptions = false
		rec.LoadingFeedback = false
		return nil
	})
}

func (s *Service) generateMessage(ctx context.Context, req ports.MessageRequest) (string, error) {
	start := time.Now()
	content, err := s.gen.Message(ctx, req)
	s.metrics.ObserveGeneration("message", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("generate message: %w", err)
	}
	return content, nil
}

func (s *Service) generateFeedback(ctx context.Context, req ports.FeedbackRequest) (domain.FeedbackContent, error) {
	start := time.Now()
	fb, err := s.gen.Feedback(ctx, req)
	s.metrics.ObserveGeneration("feedback", time.Since(start))
	if err != nil {
		return domain.FeedbackContent{}, fmt.Errorf("generate feedback: %w", err)
	}
	return fb, nil
}

func (s *Service) commit(ctx context.Context, ctrl *session.Controller) error {
	if err := ctrl.Commit(ctx); err != nil {
		s.metrics.CommitFailed()
		return err
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
