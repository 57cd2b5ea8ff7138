package script

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrBadAddress is returned when a Position does not resolve against the
// script it is stepped with. This indicates corrupt or incompatible stored
// state and is fatal for the session.
var ErrBadAddress = errors.New("position does not resolve against script")

// Machine is the contract shared by scenes and combinators: an enumerable
// state space entered through Init and advanced through Next. Positions
// passed to Next are addressed relative to the machine's own frame, and the
// successor positions embedded in the returned step are already re-addressed
// the same way.
//
// The rand source carries the deterministic stream for the current step;
// implementations must draw all randomness from it.
type Machine interface {
	Init(r *rand.Rand) *Position
	Next(r *rand.Rand, pos *Position) (Step, error)

	// validate is called once by Build over the whole tree.
	validate() error
}

// NodeID is a scene-local node identifier.
type NodeID string

// Transition produces the step for one scene node. It must be total: pure
// data out, no failure path.
type Transition func() Step

// Scene is the smallest named state machine: a closed node set, an initial
// node and a total transition function. Scenes are immutable configuration.
type Scene struct {
	name    string
	initial NodeID
	nodes   map[NodeID]Transition
}

// NewScene builds a scene. Every successor referenced by a node's step must
// be another declared node (via At) or the end sentinel; Build verifies
// this.
func NewScene(name string, initial NodeID, nodes map[NodeID]Transition) *Scene {
	return &Scene{name: name, initial: initial, nodes: nodes}
}

func (s *Scene) Init(r *rand.Rand) *Position {
	return At(s.initial)
}

func (s *Scene) Next(r *rand.Rand, pos *Position) (Step, error) {
	if pos == nil || pos.Kind != frameScene {
		return nil, fmt.Errorf("scene %s: %w", s.name, ErrBadAddress)
	}
	fn, ok := s.nodes[NodeID(pos.Node)]
	if !ok {
		return nil, fmt.Errorf("scene %s: unknown node %q: %w", s.name, pos.Node, ErrBadAddress)
	}
	return fn(), nil
}

func (s *Scene) validate() error {
	if len(s.nodes) == 0 {
		return fmt.Errorf("scene %s: no nodes declared", s.name)
	}
	if _, ok := s.nodes[s.initial]; !ok {
		return fmt.Errorf("scene %s: initial node %q not declared", s.name, s.initial)
	}
	for id, fn := range s.nodes {
		if fn == nil {
			return fmt.Errorf("scene %s: node %q has no transition", s.name, id)
		}
		step := fn()
		if err := s.checkSuccessors(id, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) checkSuccessors(id NodeID, step Step) error {
	check := func(next *Position) error {
		if next == nil {
			return nil
		}
		if next.Kind != frameScene || next.Child != nil {
			return fmt.Errorf("scene %s: node %q: successor must be scene-local", s.name, id)
		}
		if _, ok := s.nodes[NodeID(next.Node)]; !ok {
			return fmt.Errorf("scene %s: node %q: successor %q not declared", s.name, id, next.Node)
		}
		return nil
	}
	switch st := step.(type) {
	case Choice:
		if len(st.Options) == 0 {
			return fmt.Errorf("scene %s: node %q: choice with no options", s.name, id)
		}
		for _, o := range st.Options {
			if err := check(o.Next); err != nil {
				return err
			}
		}
	case Directive:
		return check(st.Next)
	case Feedback:
		return check(st.Next)
	case Complete:
		return fmt.Errorf("scene %s: node %q: scenes must not emit Complete", s.name, id)
	}
	return nil
}
