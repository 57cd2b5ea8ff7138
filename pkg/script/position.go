package script

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Frame kinds used in Position paths.
const (
	frameScene  = "scene"
	frameSeq    = "seq"
	frameRepeat = "repeat"
	frameUnion  = "union"
)

// Position identifies a reachable point in a composed script: a path of
// combinator frames from the root down to a node of the active scene.
// A nil *Position is the end sentinel.
//
// Positions are opaque to callers but serializable, so a session can store
// one and resume later. A Position is only valid for the script that
// produced it.
type Position struct {
	Kind string `json:"kind"`
	// Node is the scene-local node id (Kind == "scene").
	Node string `json:"node,omitempty"`
	// Index is the active child for sequence frames, or the selected
	// option for union frames (-1 means the fallback).
	Index int `json:"index,omitempty"`
	// Remaining is the iteration count left in a repeat frame.
	Remaining int `json:"remaining,omitempty"`
	// Child is the position within the active child machine.
	Child *Position `json:"child,omitempty"`
}

// Equal reports whether two positions denote the same reachable point.
func (p *Position) Equal(other *Position) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Kind != other.Kind || p.Node != other.Node ||
		p.Index != other.Index || p.Remaining != other.Remaining {
		return false
	}
	return p.Child.Equal(other.Child)
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Child = p.Child.Clone()
	return &cp
}

// String renders the frame path, e.g. "seq[2]/repeat(1)/scene:user_ask".
func (p *Position) String() string {
	if p == nil {
		return "<end>"
	}
	var parts []string
	for cur := p; cur != nil; cur = cur.Child {
		switch cur.Kind {
		case frameScene:
			parts = append(parts, "scene:"+cur.Node)
		case frameSeq:
			parts = append(parts, fmt.Sprintf("seq[%d]", cur.Index))
		case frameRepeat:
			parts = append(parts, fmt.Sprintf("repeat(%d)", cur.Remaining))
		case frameUnion:
			parts = append(parts, fmt.Sprintf("union[%d]", cur.Index))
		default:
			parts = append(parts, cur.Kind)
		}
	}
	return strings.Join(parts, "/")
}

// hash64 folds the position path into a 64-bit value. Used to derive the
// deterministic random stream for the step that resolves this position.
func (p *Position) hash64() uint64 {
	h := fnv.New64a()
	for cur := p; cur != nil; cur = cur.Child {
		fmt.Fprintf(h, "%s|%s|%d|%d/", cur.Kind, cur.Node, cur.Index, cur.Remaining)
	}
	return h.Sum64()
}

// At returns a scene-local position for the given node. Scene transition
// functions use it to address their successors.
func At(node NodeID) *Position {
	return &Position{Kind: frameScene, Node: string(node)}
}

// End is the scene-local end sentinel.
func End() *Position { return nil }
