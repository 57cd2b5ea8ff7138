package domain

import (
	"encoding/json"
	"testing"

	"github.com/parley-labs/parley/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCloneIsolation(t *testing.T) {
	rec := NewRecord("s1", "u1", "Alex", "level-1", 42, script.At("start"))
	rec.Transcript = append(rec.Transcript, NewMessageEntry("u", "hello"))
	rec.Pending = []PendingOption{{Content: "hi", Next: script.At("next")}}
	rec.Events = append(rec.Events, NewEvent(EventUserMessage, MessageEventData{Sender: "u", Content: "hello"}))
	rec.ObjectivesUsed = []string{"vague-question"}

	cp := rec.Clone()

	cp.Transcript[0].Message.Content = "changed"
	cp.Pending[0].Next.Node = "elsewhere"
	cp.Position.Node = "elsewhere"
	cp.ObjectivesUsed[0] = "changed"

	assert.Equal(t, "hello", rec.Transcript[0].Message.Content)
	assert.Equal(t, "next", rec.Pending[0].Next.Node)
	assert.Equal(t, "start", rec.Position.Node)
	assert.Equal(t, "vague-question", rec.ObjectivesUsed[0])
}

func TestRecordMessagesSkipsFeedback(t *testing.T) {
	rec := NewRecord("s1", "", "Alex", "level-1", 1, nil)
	rec.Transcript = append(rec.Transcript,
		NewMessageEntry("u", "one"),
		NewFeedbackEntry(FeedbackContent{Title: "t", Body: "b"}),
		NewMessageEntry("Alex", "two"),
	)

	msgs := rec.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
}

func TestRecordRoundTrip(t *testing.T) {
	rec := NewRecord("s1", "u1", "Alex", "level-1", 42, script.At("start"))
	rec.Pending = []PendingOption{{Content: "hi", Objective: "direct-question"}}
	rec.Events = append(rec.Events, NewEvent(EventOptionsShown, OptionsEventData{Options: []string{"hi"}}))

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, rec.Position.Equal(got.Position))
	assert.Equal(t, rec.Pending[0].Objective, got.Pending[0].Objective)
	assert.Equal(t, EventOptionsShown, got.Events[0].Kind)
}
