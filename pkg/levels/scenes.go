package levels

import "github.com/parley-labs/parley/pkg/script"

// to resolves a scene-local successor; the empty id means the scene ends.
func to(n script.NodeID) *script.Position {
	if n == "" {
		return nil
	}
	return script.At(n)
}

// say builds a transition where the agent speaks and the scene moves on.
func say(desc string, next script.NodeID, examples ...string) script.Transition {
	return func() script.Step {
		return script.Directive{
			Instructions: script.Instructions{Description: desc, Examples: examples},
			Next:         to(next),
		}
	}
}

// reply is one authored user option.
type reply struct {
	desc      string
	objective string
	next      script.NodeID
	examples  []string
}

// choose builds a transition offering the given user replies.
func choose(replies ...reply) script.Transition {
	return func() script.Step {
		opts := make([]script.OptionBranch, len(replies))
		for i, r := range replies {
			opts[i] = script.OptionBranch{
				Instructions: script.Instructions{
					Description: r.desc,
					Examples:    r.examples,
					Objective:   r.objective,
				},
				Next: to(r.next),
			}
		}
		return script.Choice{Options: opts}
	}
}
