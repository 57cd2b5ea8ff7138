package script

// Step is one unit of work the script asks the content generator to
// fulfill. It is a closed union: Choice, Directive, Feedback or Complete.
// Consumers must switch exhaustively on the concrete type.
type Step interface {
	isStep()
}

// Instructions is the authored payload attached to a step: what the
// generator should produce at this point of the conversation.
type Instructions struct {
	// Description tells the generator what kind of message to produce.
	Description string `json:"description"`
	// Examples are authored sample messages illustrating the intent.
	Examples []string `json:"examples,omitempty"`
	// Context is extra guidance injected by enclosing WithContext
	// combinators. Content-only: it never affects addressing.
	Context string `json:"context,omitempty"`
	// Objective optionally names the conversational skill this payload
	// exercises. Sessions track used objectives for coaching policy.
	Objective string `json:"objective,omitempty"`
}

// OptionBranch is one selectable branch of a Choice step. Next is the
// position to resume at if this branch is taken (nil ends the enclosing
// scene).
type OptionBranch struct {
	Instructions Instructions `json:"instructions"`
	Next         *Position    `json:"next,omitempty"`
}

// Choice asks the caller to let the user pick among authored branches.
type Choice struct {
	Options []OptionBranch
}

// Directive asks the generator for one agent message.
type Directive struct {
	Instructions Instructions
	Next         *Position
}

// Feedback asks the generator for a coaching-feedback insertion. Prompt
// frames the coaching angle; Instructions describe the optional follow-up
// message sent on the user's behalf.
type Feedback struct {
	Prompt       string
	Instructions Instructions
	Next         *Position
}

// Complete is the terminal sentinel: the script has finished and the
// caller must not step again.
type Complete struct{}

func (Choice) isStep()    {}
func (Directive) isStep() {}
func (Feedback) isStep()  {}
func (Complete) isStep()  {}

// mapStep rewrites every successor position embedded in a step. Combinators
// use it to re-address child steps within their own frame.
func mapStep(step Step, f func(*Position) *Position) Step {
	switch st := step.(type) {
	case Choice:
		opts := make([]OptionBranch, len(st.Options))
		for i, o := range st.Options {
			o.Next = f(o.Next)
			opts[i] = o
		}
		return Choice{Options: opts}
	case Directive:
		st.Next = f(st.Next)
		return st
	case Feedback:
		st.Next = f(st.Next)
		return st
	default:
		return step
	}
}

// decorate appends ctx to the instruction payloads of a step without
// touching successor positions.
func decorate(step Step, ctx string) Step {
	appendCtx := func(in Instructions) Instructions {
		if in.Context == "" {
			in.Context = ctx
		} else {
			in.Context = in.Context + " " + ctx
		}
		return in
	}
	switch st := step.(type) {
	case Choice:
		opts := make([]OptionBranch, len(st.Options))
		for i, o := range st.Options {
			o.Instructions = appendCtx(o.Instructions)
			opts[i] = o
		}
		return Choice{Options: opts}
	case Directive:
		st.Instructions = appendCtx(st.Instructions)
		return st
	case Feedback:
		st.Instructions = appendCtx(st.Instructions)
		return st
	default:
		return step
	}
}
