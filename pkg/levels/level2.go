package levels

import "github.com/parley-labs/parley/pkg/script"

// Level2 is "Reference call": the user takes a phone call from Priya, a
// hiring manager checking a reference for a former colleague.
func Level2() Level {
	intro := script.NewScene("call-intro", "open", map[script.NodeID]script.Transition{
		"open": say(
			"Open the call: introduce yourself as the hiring manager, name the candidate, and ask whether now is a good time to talk.",
			"confirm",
			"Hi, this is Priya from Larkfield. I'm calling about Dana Reyes, who listed you as a reference. Is now a good time?",
		),
		"confirm": choose(
			reply{
				desc:      "Confirm it's a good time and say how you know the candidate.",
				objective: "setting-context",
			},
			reply{
				desc: "Confirm it's a good time, nothing more.",
				next: "relationship",
			},
		),
		"relationship": say(
			"Ask how the user knows the candidate and for how long.",
			"describe",
		),
		"describe": choose(
			reply{
				desc:      "Describe your working relationship with the candidate.",
				objective: "setting-context",
			},
		),
	})

	askSkill := script.NewScene("ask-skill", "question", map[script.NodeID]script.Transition{
		"question": say(
			"Ask a concrete question about the candidate's skills or working style.",
			"answer",
			"How did Dana handle deadlines when things got busy?",
		),
		"answer": choose(
			reply{
				desc:      "Answer with a specific example from working together.",
				objective: "giving-specifics",
			},
			reply{
				desc: "Answer in general terms without an example.",
				next: "probe",
			},
		),
		"probe": say(
			"Press gently for a concrete example.",
			"example",
			"Could you walk me through a specific time that happened?",
		),
		"example": choose(
			reply{
				desc:      "Give a concrete example this time.",
				objective: "giving-specifics",
			},
		),
	})

	askVagueRef := script.NewScene("ask-vague-ref", "question", map[script.NodeID]script.Transition{
		"question": say(
			"Ask an oddly broad or ambiguous question about the candidate.",
			"answer",
			"And in terms of, like, the overall picture... how would you put Dana?",
		),
		"answer": choose(
			reply{
				desc:      "Ask what exactly the caller wants to know.",
				objective: "asking-for-clarification",
				next:      "clarify",
			},
			reply{
				desc: "Answer the question as you understood it.",
			},
		),
		"clarify": say(
			"Narrow the question down to something concrete.",
			"answer_clear",
			"Fair. Let me narrow that: how was Dana in disagreements with teammates?",
		),
		"answer_clear": choose(
			reply{
				desc:      "Answer the narrowed question.",
				objective: "giving-specifics",
			},
		),
	})

	closing := script.NewScene("call-close", "thanks", map[script.NodeID]script.Transition{
		"thanks": say(
			"Thank the user for their time and ask if there is anything else they'd want a future employer to know.",
			"final",
		),
		"final": choose(
			reply{
				desc:      "Add one final endorsement or caveat about the candidate.",
				objective: "closing-a-conversation",
				next:      "bye",
			},
			reply{
				desc: "Say there is nothing to add.",
				next: "bye",
			},
		),
		"bye": say(
			"End the call politely.",
			"",
		),
	})

	root := script.Sequence(
		script.WithContext(intro, "This is a phone call; keep exchanges short and professional."),
		script.Repeat(
			script.Union(askSkill, script.Opt(askVagueRef, 0.35)),
			4,
		),
		closing,
	)

	return Level{
		Name:        "reference-call",
		Agent:       "Priya",
		Description: "Take a reference-check call about a former colleague.",
		Script:      script.MustBuild(root),
	}
}
