package script_test

import (
	"testing"

	"github.com/parley-labs/parley/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// agentScene is a single-node scene emitting one Directive and ending.
func agentScene(name, desc string) *script.Scene {
	return script.NewScene(name, "say", map[script.NodeID]script.Transition{
		"say": func() script.Step {
			return script.Directive{
				Instructions: script.Instructions{Description: desc},
				Next:         script.End(),
			}
		},
	})
}

// userScene is a single-node scene emitting one Choice with a single
// authored branch and ending.
func userScene(name, desc string) *script.Scene {
	return script.NewScene(name, "ask", map[script.NodeID]script.Transition{
		"ask": func() script.Step {
			return script.Choice{Options: []script.OptionBranch{{
				Instructions: script.Instructions{Description: desc},
				Next:         script.End(),
			}}}
		},
	})
}

// walk drives a stepper to completion, always taking the first option at
// choice points, and returns the visited step descriptions.
func walk(t *testing.T, st *script.Stepper, limit int) []string {
	t.Helper()
	var visited []string
	pos := st.Init()
	for i := 0; i < limit; i++ {
		step, next, err := st.Step(pos)
		require.NoError(t, err)
		switch sp := step.(type) {
		case script.Complete:
			return visited
		case script.Directive:
			visited = append(visited, sp.Instructions.Description)
			pos = next
		case script.Feedback:
			visited = append(visited, sp.Prompt)
			pos = next
		case script.Choice:
			require.NotEmpty(t, sp.Options)
			visited = append(visited, sp.Options[0].Instructions.Description)
			pos = sp.Options[0].Next
		}
	}
	t.Fatalf("script did not complete within %d steps", limit)
	return nil
}

func TestSceneValidation(t *testing.T) {
	t.Run("undeclared successor", func(t *testing.T) {
		bad := script.NewScene("bad", "a", map[script.NodeID]script.Transition{
			"a": func() script.Step {
				return script.Directive{Next: script.At("missing")}
			},
		})
		_, err := script.Build(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("missing initial", func(t *testing.T) {
		bad := script.NewScene("bad", "nope", map[script.NodeID]script.Transition{
			"a": func() script.Step { return script.Directive{Next: script.End()} },
		})
		_, err := script.Build(bad)
		require.Error(t, err)
	})

	t.Run("repeat bound zero", func(t *testing.T) {
		_, err := script.Build(script.Repeat(agentScene("a", "a"), 0))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bound")
	})
}

func TestSequenceRepeatVisitCounts(t *testing.T) {
	// Repeat(Sequence(A, B), 3) yields exactly 3 full A->B cycles.
	s, err := script.Build(script.Repeat(
		script.Sequence(agentScene("a", "A"), agentScene("b", "B")),
		3,
	))
	require.NoError(t, err)

	visited := walk(t, s.Stepper(1), 100)
	assert.Equal(t, []string{"A", "B", "A", "B", "A", "B"}, visited)
}

func TestEndToEndOrder(t *testing.T) {
	// Sequence(A, Repeat(B, 2), A) produces exactly 4 steps, A B B A, and
	// no intermediate scene end ever surfaces as a step.
	s, err := script.Build(script.Sequence(
		userScene("a1", "A"),
		script.Repeat(agentScene("b", "B"), 2),
		userScene("a2", "A"),
	))
	require.NoError(t, err)

	for seed := int64(0); seed < 5; seed++ {
		visited := walk(t, s.Stepper(seed), 100)
		assert.Equal(t, []string{"A", "B", "B", "A"}, visited)
	}
}

func TestUnionSelection(t *testing.T) {
	t.Run("certain option never falls back", func(t *testing.T) {
		s, err := script.Build(script.Repeat(
			script.Union(
				agentScene("fb", "fallback"),
				script.Opt(agentScene("opt", "option"), 1),
			),
			1000,
		))
		require.NoError(t, err)

		for _, d := range walk(t, s.Stepper(42), 2000) {
			assert.Equal(t, "option", d)
		}
	})

	t.Run("no eligible option always falls back", func(t *testing.T) {
		s, err := script.Build(script.Repeat(
			script.Union(
				agentScene("fb", "fallback"),
				script.Opt(agentScene("opt", "option"), 0),
			),
			1000,
		))
		require.NoError(t, err)

		for _, d := range walk(t, s.Stepper(42), 2000) {
			assert.Equal(t, "fallback", d)
		}
	})

	t.Run("re-entry re-rolls", func(t *testing.T) {
		s, err := script.Build(script.Repeat(
			script.Union(
				agentScene("fb", "fallback"),
				script.Opt(agentScene("opt", "option"), 0.5),
			),
			1000,
		))
		require.NoError(t, err)

		counts := map[string]int{}
		for _, d := range walk(t, s.Stepper(7), 2000) {
			counts[d]++
		}
		// Uniform-ish split; both outcomes must occur many times.
		assert.Greater(t, counts["option"], 300)
		assert.Greater(t, counts["fallback"], 300)
	})
}

func TestWithContextAddressingUnchanged(t *testing.T) {
	build := func(wrap bool) *script.Script {
		var inner script.Machine = script.Sequence(
			userScene("u", "U"),
			script.Union(
				agentScene("fb", "fallback"),
				script.Opt(agentScene("opt", "option"), 0.5),
			),
			agentScene("a", "A"),
		)
		if wrap {
			inner = script.WithContext(inner, "extra guidance")
		}
		return script.MustBuild(inner)
	}

	plain := build(false).Stepper(99)
	wrapped := build(true).Stepper(99)

	posA, posB := plain.Init(), wrapped.Init()
	for i := 0; i < 50; i++ {
		require.True(t, posA.Equal(posB), "position sequence diverged at step %d", i)
		if posA == nil {
			break
		}
		stepA, nextA, err := plain.Step(posA)
		require.NoError(t, err)
		stepB, nextB, err := wrapped.Step(posB)
		require.NoError(t, err)

		require.IsType(t, stepA, stepB)
		if ch, ok := stepA.(script.Choice); ok {
			chB := stepB.(script.Choice)
			require.Len(t, chB.Options, len(ch.Options))
			for j := range ch.Options {
				assert.True(t, ch.Options[j].Next.Equal(chB.Options[j].Next))
				assert.Contains(t, chB.Options[j].Instructions.Context, "extra guidance")
			}
			posA, posB = ch.Options[0].Next, chB.Options[0].Next
			continue
		}
		if _, ok := stepA.(script.Complete); ok {
			break
		}
		posA, posB = nextA, nextB
	}
}

func TestStepIdempotent(t *testing.T) {
	s := script.MustBuild(script.Sequence(
		agentScene("a", "A"),
		script.Union(
			agentScene("fb", "fallback"),
			script.Opt(agentScene("x", "X"), 0.5),
			script.Opt(agentScene("y", "Y"), 0.5),
		),
		userScene("u", "U"),
	))
	st := s.Stepper(1234)

	pos := st.Init()
	for pos != nil {
		step1, next1, err := st.Step(pos)
		require.NoError(t, err)
		step2, next2, err := st.Step(pos)
		require.NoError(t, err)

		assert.Equal(t, step1, step2)
		assert.True(t, next1.Equal(next2))

		if ch, ok := step1.(script.Choice); ok {
			pos = ch.Options[0].Next
			continue
		}
		if _, ok := step1.(script.Complete); ok {
			break
		}
		pos = next1
	}
}

func TestBadAddress(t *testing.T) {
	s := script.MustBuild(script.Sequence(agentScene("a", "A")))
	st := s.Stepper(1)

	_, _, err := st.Step(&script.Position{Kind: "seq", Index: 9})
	require.ErrorIs(t, err, script.ErrBadAddress)

	other := script.MustBuild(script.Repeat(agentScene("a", "A"), 2))
	_, _, err = other.Stepper(1).Step(s.Stepper(1).Init())
	require.ErrorIs(t, err, script.ErrBadAddress)
}

func TestPositionEqualityAndClone(t *testing.T) {
	s := script.MustBuild(script.Repeat(script.Sequence(agentScene("a", "A"), userScene("u", "U")), 2))
	st := s.Stepper(5)

	pos := st.Init()
	clone := pos.Clone()
	require.True(t, pos.Equal(clone))

	_, next, err := st.Step(pos)
	require.NoError(t, err)
	// Stepping returned a fresh value; the stored position is untouched.
	require.True(t, pos.Equal(clone))
	require.False(t, next.Equal(pos))
}
