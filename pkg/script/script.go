package script

import (
	"fmt"
	"math/rand"
)

// Script is a validated, immutable composed machine shared read-only by all
// sessions. Per-session stepping state lives in a Stepper.
type Script struct {
	root Machine
}

// Build validates the composed tree (scene totality, repeat bounds, union
// shapes) and returns the script. Composition errors are build-time errors:
// a built script never fails structurally at step time.
func Build(root Machine) (*Script, error) {
	if root == nil {
		return nil, fmt.Errorf("build: nil root")
	}
	if err := root.validate(); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return &Script{root: root}, nil
}

// MustBuild is Build for static script definitions known to be well formed.
func MustBuild(root Machine) *Script {
	s, err := Build(root)
	if err != nil {
		panic(err)
	}
	return s
}

// Stepper binds the script to one session's random seed. Stepping is a pure
// function of (script, seed, position): the random stream for each step is
// derived from the position itself, so replaying a stored position yields
// the identical step and successor.
func (s *Script) Stepper(seed int64) *Stepper {
	return &Stepper{script: s, seed: seed}
}

type Stepper struct {
	script *Script
	seed   int64
}

// Init returns the position of the script's first step.
func (st *Stepper) Init() *Position {
	return st.script.root.Init(st.rng(nil))
}

// Step resolves pos into its step and the position to store for the next
// call. For Choice steps the stored position is unchanged: the successor is
// carried per branch and applied when an option is selected. A nil position
// yields the Complete sentinel; callers must not step a session past it.
func (st *Stepper) Step(pos *Position) (Step, *Position, error) {
	if pos == nil {
		return Complete{}, nil, nil
	}
	step, err := st.script.root.Next(st.rng(pos), pos)
	if err != nil {
		return nil, nil, err
	}
	switch sp := step.(type) {
	case Directive:
		return sp, sp.Next, nil
	case Feedback:
		return sp, sp.Next, nil
	case Choice:
		return sp, pos, nil
	default:
		return nil, nil, fmt.Errorf("step at %s: unexpected %T: %w", pos, step, ErrBadAddress)
	}
}

func (st *Stepper) rng(pos *Position) *rand.Rand {
	seed := int64(pos.hash64()) ^ st.seed
	return rand.New(rand.NewSource(seed))
}
