package levels

import "github.com/parley-labs/parley/pkg/script"

// Level1 is "Join the board game night": the user chats with Maya before a
// board game meetup and works up to asking whether they can join her table.
func Level1() Level {
	intro := script.NewScene("intro", "greet", map[script.NodeID]script.Transition{
		"greet": say(
			"Greet the user warmly and introduce yourself by name. You arrived early and are setting up a board game.",
			"reply",
			"Oh hey! I'm Maya. I'm just setting up, grab a seat if you like.",
		),
		"reply": choose(
			reply{
				desc:      "Return the greeting and introduce yourself by name.",
				objective: "introducing-yourself",
				examples:  []string{"Hi Maya, I'm Alex. First time here, actually."},
			},
			reply{
				desc:      "Return the greeting briefly without giving your name.",
				examples:  []string{"Hey! Looks like a fun setup."},
				next:      "ask_name",
			},
		),
		"ask_name": say(
			"Ask the user for their name in a friendly way.",
			"give_name",
			"Nice to meet you! I didn't catch your name?",
		),
		"give_name": choose(
			reply{
				desc:      "Give your name.",
				objective: "introducing-yourself",
			},
		),
	})

	smallTalk := script.NewScene("small-talk", "remark", map[script.NodeID]script.Transition{
		"remark": say(
			"Make a light observation about the venue, the games on the table, or the evening.",
			"respond",
			"This place gets packed on Thursdays. Have you played Cascadia before?",
		),
		"respond": choose(
			reply{
				desc:      "Ask a follow-up question about what the agent just said.",
				objective: "asking-questions",
				next:      "banter",
			},
			reply{
				desc: "Share your own take on the topic without asking anything back.",
			},
		),
		"banter": say(
			"Answer the user's follow-up question conversationally.",
			"",
		),
	})

	askDirect := script.NewScene("ask-direct", "question", map[script.NodeID]script.Transition{
		"question": say(
			"Ask the user a direct, easy-to-answer question about themselves: what games they like, what brought them here, what they do.",
			"answer",
			"So what kind of games are you into?",
		),
		"answer": choose(
			reply{
				desc:      "Answer the question directly and add one detail about yourself.",
				objective: "sharing-about-yourself",
			},
			reply{
				desc: "Answer in a few words only.",
			},
		),
	})

	askVague := script.NewScene("ask-vague", "question", map[script.NodeID]script.Transition{
		"question": say(
			"Ask the user something vague or ambiguous, trailing off without finishing the thought.",
			"answer",
			"So do you usually... you know, with this kind of thing?",
		),
		"answer": choose(
			reply{
				desc:      "Ask the agent to clarify what they meant.",
				objective: "asking-for-clarification",
				next:      "clarify",
			},
			reply{
				desc: "Guess at the meaning and answer whatever you think was asked.",
			},
		),
		"clarify": say(
			"Restate the question clearly and apologize lightly for being confusing.",
			"answer_clear",
			"Ha, sorry. I meant: do you come to game nights like this often?",
		),
		"answer_clear": choose(
			reply{
				desc:      "Answer the clarified question.",
				objective: "sharing-about-yourself",
			},
		),
	})

	askIndirect := script.NewScene("ask-indirect", "hint", map[script.NodeID]script.Transition{
		"hint": say(
			"Hint at a question without actually asking it, for example wondering aloud about the user.",
			"answer",
			"I feel like I haven't seen you around before...",
		),
		"answer": choose(
			reply{
				desc:      "Treat the hint as a question and respond to what the agent is really asking.",
				objective: "reading-between-the-lines",
			},
			reply{
				desc: "Agree with the observation without picking up on the implied question.",
				next: "nudge",
			},
		),
		"nudge": say(
			"Ask the implied question outright this time.",
			"answer_direct",
			"So is this your first time at one of these?",
		),
		"answer_direct": choose(
			reply{desc: "Answer the question."},
		),
	})

	checkpoint := script.NewScene("checkpoint", "note", map[script.NodeID]script.Transition{
		"note": func() script.Step {
			return script.Feedback{
				Prompt: "Point out one thing the user did well so far and one conversational opening they left unused.",
				Instructions: script.Instructions{
					Description: "If useful, suggest a short message the user could send to re-open the dropped thread.",
				},
			}
		},
	})

	askToJoin := script.NewScene("ask-to-join", "opening", map[script.NodeID]script.Transition{
		"opening": say(
			"Mention that your table still has a free seat for the next round.",
			"request",
			"We're one short for the next game, actually.",
		),
		"request": choose(
			reply{
				desc:      "Ask directly whether you can join the table.",
				objective: "making-a-request",
				next:      "welcome",
			},
			reply{
				desc: "Say that sounds fun but stop short of asking to join.",
				next: "invite",
			},
		),
		"invite": say(
			"Invite the user to join the table yourself.",
			"accept",
			"Want in? We can teach you as we go.",
		),
		"accept": choose(
			reply{
				desc:      "Accept the invitation enthusiastically.",
				objective: "making-a-request",
				next:      "welcome",
			},
		),
		"welcome": say(
			"Welcome the user to the table and start dealing them in.",
			"",
		),
	})

	goodbye := script.NewScene("goodbye", "wrap", map[script.NodeID]script.Transition{
		"wrap": say(
			"Wrap up the evening warmly and say you hope to see the user at the next game night.",
			"farewell",
		),
		"farewell": choose(
			reply{
				desc:      "Say goodbye and mention you'd like to come back.",
				objective: "closing-a-conversation",
			},
			reply{
				desc: "Say a quick goodbye.",
			},
		),
	})

	root := script.Sequence(
		intro,
		script.WithContext(
			script.Repeat(smallTalk, 2),
			"You are both waiting for the board game meetup to start; keep the tone casual.",
		),
		checkpoint,
		script.Repeat(
			script.Union(askDirect,
				script.Opt(askVague, 0.3),
				script.Opt(askIndirect, 0.3),
			),
			5,
		),
		askToJoin,
		goodbye,
	)

	return Level{
		Name:        "board-game-night",
		Agent:       "Maya",
		Description: "Chat with Maya before a board game meetup and ask to join her table.",
		Script:      script.MustBuild(root),
	}
}
