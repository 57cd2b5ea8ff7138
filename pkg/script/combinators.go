package script

import (
	"fmt"
	"math/rand"
)

// Sequence runs children in order. When a child ends, the successor is
// rewritten to the next child's first step, so callers never observe an
// intermediate scene end. The last child's end propagates upward.
func Sequence(children ...Machine) Machine {
	return &sequence{children: children}
}

type sequence struct {
	children []Machine
}

func (s *sequence) Init(r *rand.Rand) *Position {
	return s.enter(r, 0)
}

func (s *sequence) enter(r *rand.Rand, i int) *Position {
	if i >= len(s.children) {
		return nil
	}
	return &Position{Kind: frameSeq, Index: i, Child: s.children[i].Init(r)}
}

func (s *sequence) Next(r *rand.Rand, pos *Position) (Step, error) {
	if pos == nil || pos.Kind != frameSeq || pos.Index < 0 || pos.Index >= len(s.children) {
		return nil, fmt.Errorf("sequence: %w", ErrBadAddress)
	}
	step, err := s.children[pos.Index].Next(r, pos.Child)
	if err != nil {
		return nil, err
	}
	return mapStep(step, func(next *Position) *Position {
		if next == nil {
			return s.enter(r, pos.Index+1)
		}
		return &Position{Kind: frameSeq, Index: pos.Index, Child: next}
	}), nil
}

func (s *sequence) validate() error {
	if len(s.children) == 0 {
		return fmt.Errorf("sequence: no children")
	}
	for _, c := range s.children {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Repeat runs child n times back to back. n must be at least 1; Build
// rejects the tree otherwise.
func Repeat(child Machine, n int) Machine {
	return &repeat{child: child, n: n}
}

type repeat struct {
	child Machine
	n     int
}

func (rp *repeat) Init(r *rand.Rand) *Position {
	return &Position{Kind: frameRepeat, Remaining: rp.n - 1, Child: rp.child.Init(r)}
}

func (rp *repeat) Next(r *rand.Rand, pos *Position) (Step, error) {
	if pos == nil || pos.Kind != frameRepeat || pos.Remaining < 0 || pos.Remaining >= rp.n {
		return nil, fmt.Errorf("repeat: %w", ErrBadAddress)
	}
	step, err := rp.child.Next(r, pos.Child)
	if err != nil {
		return nil, err
	}
	return mapStep(step, func(next *Position) *Position {
		if next == nil {
			if pos.Remaining > 0 {
				return &Position{Kind: frameRepeat, Remaining: pos.Remaining - 1, Child: rp.child.Init(r)}
			}
			return nil
		}
		return &Position{Kind: frameRepeat, Remaining: pos.Remaining, Child: next}
	}), nil
}

func (rp *repeat) validate() error {
	if rp.n < 1 {
		return fmt.Errorf("repeat: bound must be at least 1, got %d", rp.n)
	}
	return rp.child.validate()
}

// UnionOption is one candidate branch of a Union combinator. Prob is the
// chance the option is eligible when the union is entered, in [0, 1];
// zero keeps the option authored but never eligible.
type UnionOption struct {
	Machine Machine
	Prob    float64
}

// Opt wraps a machine as a union option with the given eligibility
// probability.
func Opt(m Machine, prob float64) UnionOption {
	return UnionOption{Machine: m, Prob: prob}
}

// Union selects exactly one branch when entered: each option is
// independently eligible with its probability, the selection is uniform
// among eligible options, and the mandatory fallback is used when none is
// eligible. The selection is rolled once at entry and recorded in the
// position, so re-entering (inside a Repeat) re-rolls independently.
func Union(fallback Machine, options ...UnionOption) Machine {
	return &union{fallback: fallback, options: options}
}

type union struct {
	fallback Machine
	options  []UnionOption
}

// fallbackIndex marks the fallback selection in a union frame.
const fallbackIndex = -1

func (u *union) Init(r *rand.Rand) *Position {
	var eligible []int
	for i, opt := range u.options {
		if r.Float64() < opt.Prob {
			eligible = append(eligible, i)
		}
	}
	idx := fallbackIndex
	if len(eligible) > 0 {
		idx = eligible[r.Intn(len(eligible))]
	}
	return &Position{Kind: frameUnion, Index: idx, Child: u.selected(idx).Init(r)}
}

func (u *union) selected(idx int) Machine {
	if idx == fallbackIndex {
		return u.fallback
	}
	return u.options[idx].Machine
}

func (u *union) Next(r *rand.Rand, pos *Position) (Step, error) {
	if pos == nil || pos.Kind != frameUnion || pos.Index < fallbackIndex || pos.Index >= len(u.options) {
		return nil, fmt.Errorf("union: %w", ErrBadAddress)
	}
	step, err := u.selected(pos.Index).Next(r, pos.Child)
	if err != nil {
		return nil, err
	}
	return mapStep(step, func(next *Position) *Position {
		if next == nil {
			return nil
		}
		return &Position{Kind: frameUnion, Index: pos.Index, Child: next}
	}), nil
}

func (u *union) validate() error {
	if u.fallback == nil {
		return fmt.Errorf("union: fallback is mandatory")
	}
	if err := u.fallback.validate(); err != nil {
		return err
	}
	for i, opt := range u.options {
		if opt.Machine == nil {
			return fmt.Errorf("union: option %d has no machine", i)
		}
		if opt.Prob < 0 || opt.Prob > 1 {
			return fmt.Errorf("union: option %d probability %v out of [0, 1]", i, opt.Prob)
		}
		if err := opt.Machine.validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithContext decorates every step the child emits with extra authored
// context. Pure content injection: addressing is forwarded unchanged, so
// the decorator adds no frame to positions.
func WithContext(child Machine, ctx string) Machine {
	return &withContext{child: child, ctx: ctx}
}

type withContext struct {
	child Machine
	ctx   string
}

func (w *withContext) Init(r *rand.Rand) *Position {
	return w.child.Init(r)
}

func (w *withContext) Next(r *rand.Rand, pos *Position) (Step, error) {
	step, err := w.child.Next(r, pos)
	if err != nil {
		return nil, err
	}
	return decorate(step, w.ctx), nil
}

func (w *withContext) validate() error {
	if w.ctx == "" {
		return fmt.Errorf("with-context: empty context")
	}
	return w.child.validate()
}
