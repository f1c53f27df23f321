package service

import (
	"context"
	"testing"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/model"
	"Meetzy/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleStarRoundTrip(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "star me")

	out, err := env.ledger.ToggleStar(context.Background(), "bob", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeAdded, out.Action)

	out, err = env.ledger.ToggleStar(context.Background(), "bob", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeRemoved, out.Action)

	actions, err := env.actions.ForMessages(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestToggleStarRequiresParticipant(t *testing.T) {
	env := newTestEnv("alice", "bob", "mallory")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "private")

	_, err := env.ledger.ToggleStar(context.Background(), "mallory", msg.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_PARTICIPANT", Code(err))
}

func TestToggleReaction(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "react")

	out, err := env.ledger.ToggleReaction(context.Background(), "bob", msg.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeAdded, out.Action)

	// A different emoji overwrites: one reaction per actor per message.
	out, err = env.ledger.ToggleReaction(context.Background(), "bob", msg.ID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeUpdated, out.Action)

	actions, err := env.actions.ForMessages(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "❤️", actions[0].Details.Emoji)

	// The same emoji toggles off.
	out, err = env.ledger.ToggleReaction(context.Background(), "bob", msg.ID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeRemoved, out.Action)

	_, err = env.ledger.ToggleReaction(context.Background(), "bob", msg.ID, "")
	require.Error(t, err)
	assert.Equal(t, "EMOJI_REQUIRED", Code(err))
}

func TestRecordEdit(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "speling error")

	_, err := env.ledger.RecordEdit(context.Background(), "bob", msg.ID, "fixed")
	require.Error(t, err)
	assert.Equal(t, "NOT_SENDER", Code(err))

	_, err = env.ledger.RecordEdit(context.Background(), "alice", msg.ID, "spelling error")
	require.NoError(t, err)

	stored, err := env.messages.FindByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Content)
	assert.Equal(t, "spelling error", *stored.Content)

	// The ledger keeps the old/new pair.
	actions, err := env.actions.ForMessages(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionEdit, actions[0].Type)
	require.NotNil(t, actions[0].Details.OldContent)
	assert.Equal(t, "speling error", *actions[0].Details.OldContent)

	assert.NotEmpty(t, env.notifier.toUser("bob", event.EventMessageUpdated))
}

func TestRecordPinEvictsOldest(t *testing.T) {
	env := newTestEnv("alice", "bob")

	msgs := make([]model.Message, 0, 4)
	for _, text := range []string{"one", "two", "three", "four"} {
		msgs = append(msgs, env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, text))
		time.Sleep(2 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		_, err := env.ledger.RecordPin(context.Background(), "alice", msgs[i].ID)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	key := model.DirectKey("alice", "bob")
	pins, err := env.actions.PinsForConversation(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, pins, 3)

	// The fourth pin evicts the oldest one.
	_, err = env.ledger.RecordPin(context.Background(), "alice", msgs[3].ID)
	require.NoError(t, err)

	pins, err = env.actions.PinsForConversation(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, pins, 3)
	pinned := make(map[string]bool, 3)
	for _, p := range pins {
		pinned[p.MessageID.Hex()] = true
	}
	assert.False(t, pinned[msgs[0].ID.Hex()])
	assert.True(t, pinned[msgs[3].ID.Hex()])
}

func TestRecordPinIsIdempotentPerMessage(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "keep")

	_, err := env.ledger.RecordPin(context.Background(), "alice", msg.ID)
	require.NoError(t, err)
	_, err = env.ledger.RecordPin(context.Background(), "alice", msg.ID)
	require.NoError(t, err)

	pins, err := env.actions.PinsForConversation(context.Background(), model.DirectKey("alice", "bob"))
	require.NoError(t, err)
	assert.Len(t, pins, 1)
}

func TestPinIsConversationLevel(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "notice")
	key := model.DirectKey("alice", "bob")

	_, err := env.ledger.RecordPin(context.Background(), "alice", msg.ID)
	require.NoError(t, err)

	// A second participant pinning the same message takes over the single
	// entry instead of consuming another pin slot.
	_, err = env.ledger.RecordPin(context.Background(), "bob", msg.ID)
	require.NoError(t, err)

	pins, err := env.actions.PinsForConversation(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, "bob", pins[0].ActorID)

	// Either participant can unpin, regardless of who pinned last.
	_, err = env.ledger.RecordUnpin(context.Background(), "alice", msg.ID)
	require.NoError(t, err)

	pins, err = env.actions.PinsForConversation(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, pins)
}

func TestRecordUnpin(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "pin me")

	_, err := env.ledger.RecordUnpin(context.Background(), "alice", msg.ID)
	require.Error(t, err)
	assert.Equal(t, "PIN_NOT_FOUND", Code(err))

	_, err = env.ledger.RecordPin(context.Background(), "alice", msg.ID)
	require.NoError(t, err)
	out, err := env.ledger.RecordUnpin(context.Background(), "alice", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeRemoved, out.Action)
}

func TestRecordDeleteForEveryone(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "regret")

	_, err := env.ledger.RecordDelete(context.Background(), "bob", msg.ID, model.DeleteForEveryone)
	require.Error(t, err)
	assert.Equal(t, "NOT_SENDER", Code(err))

	// Idempotent: replaying keeps one ledger entry.
	_, err = env.ledger.RecordDelete(context.Background(), "alice", msg.ID, model.DeleteForEveryone)
	require.NoError(t, err)
	_, err = env.ledger.RecordDelete(context.Background(), "alice", msg.ID, model.DeleteForEveryone)
	require.NoError(t, err)

	actions, err := env.actions.ForMessages(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.DeleteForEveryone, actions[0].Details.Scope)

	assert.NotEmpty(t, env.notifier.toUser("bob", event.EventMessageDeleted))
}

func TestDeleteForEveryoneSurvivesLaterDeleteForMe(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "regret")

	_, err := env.ledger.RecordDelete(context.Background(), "alice", msg.ID, model.DeleteForEveryone)
	require.NoError(t, err)

	// The sender hiding the tombstone from their own feed must not undo the
	// delete-for-everyone: the two scopes are independent ledger entries.
	_, err = env.ledger.RecordDelete(context.Background(), "alice", msg.ID, model.DeleteForMe)
	require.NoError(t, err)

	actions, err := env.actions.ForMessages(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	scopes := make(map[model.DeleteScope]bool, len(actions))
	for _, a := range actions {
		scopes[a.Details.Scope] = true
	}
	assert.True(t, scopes[model.DeleteForEveryone])
	assert.True(t, scopes[model.DeleteForMe])

	page := fetchFeed(t, env, "bob", SendTarget{RecipientID: "alice"})
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Deleted)
	require.NotNil(t, page.Items[0].Message.Content)
	assert.Equal(t, DeletedSentinel, *page.Items[0].Message.Content)
}

func TestRecordDeleteForMe(t *testing.T) {
	env := newTestEnv("alice", "bob")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "hide from me")

	out, err := env.ledger.RecordDelete(context.Background(), "bob", msg.ID, model.DeleteForMe)
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeAdded, out.Action)

	// Only the actor's own sessions learn about it.
	assert.NotEmpty(t, env.notifier.toUser("bob", event.EventMessageDeleted))
	assert.Empty(t, env.notifier.toUser("alice", event.EventMessageDeleted))

	_, err = env.ledger.RecordDelete(context.Background(), "bob", msg.ID, model.DeleteScope("later"))
	require.Error(t, err)
	assert.Equal(t, "INVALID_SCOPE", Code(err))
}

func TestRecordForwardAppendsEntry(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol")
	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "pass it on")

	_, err := env.ledger.RecordForward(context.Background(), "bob", msg.ID, nil)
	require.Error(t, err)
	assert.Equal(t, "FORWARD_TARGETS_REQUIRED", Code(err))

	_, err = env.ledger.RecordForward(context.Background(), "bob", msg.ID, []string{"carol"})
	require.NoError(t, err)

	actions, err := env.actions.ForMessages(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionForward, actions[0].Type)
	assert.Equal(t, []string{"carol"}, actions[0].Details.ForwardedTo)
}

func TestGroupActionRequiresCurrentMembership(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol")
	groupID := env.addGroup("team", "alice", "bob", "carol")
	msg := env.sendText(t, "alice", SendTarget{GroupID: groupID}, "minutes")

	group, err := env.groups.Get(context.Background(), groupID)
	require.NoError(t, err)
	left := time.Now().UTC()
	group.Members[2].LeftAt = &left
	group.Members[2].IsActive = false
	env.groups.put(group)

	_, err = env.ledger.ToggleStar(context.Background(), "carol", msg.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_MEMBER", Code(err))
}
