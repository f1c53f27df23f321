package service

import (
	"context"
	"testing"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSendDirect(t *testing.T) {
	env := newTestEnv("alice", "bob")

	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "hello")
	assert.Equal(t, model.TargetDirect, msg.Target.Kind)
	assert.Equal(t, "bob", msg.Target.ID)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello", *msg.Content)

	// One status row at sent for the recipient.
	row := env.statuses.get(msg.ID, "bob")
	require.NotNil(t, row)
	assert.Equal(t, model.StateSent, row.State)
	assert.False(t, row.IsBlocked)

	// Recipient gets the realtime event, sender gets the echo.
	assert.Len(t, env.notifier.toUser("bob", event.EventReceiveMessage), 1)
	assert.Len(t, env.notifier.toUser("alice", event.EventReceiveMessage), 1)
}

func TestSendHydratesSenderAndTarget(t *testing.T) {
	env := newTestEnv("alice", "bob")

	content := "hello"
	result, err := env.dispatcher.Send(context.Background(), SendInput{
		SenderID: "alice",
		Target:   SendTarget{RecipientID: "bob"},
		Type:     model.TypeText,
		Content:  &content,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Sender)
	assert.Equal(t, "alice", result.Sender.UserID)
	require.NotNil(t, result.Target)
	assert.Equal(t, model.TargetDirect, result.Target.Kind)
	require.NotNil(t, result.Target.User)
	assert.Equal(t, "bob", result.Target.User.UserID)

	groupID := env.addGroup("team", "alice", "bob")
	result, err = env.dispatcher.Send(context.Background(), SendInput{
		SenderID: "alice",
		Target:   SendTarget{GroupID: groupID},
		Type:     model.TypeText,
		Content:  &content,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Target)
	assert.Equal(t, model.TargetGroup, result.Target.Kind)
	require.NotNil(t, result.Target.Group)
	assert.Equal(t, "team", result.Target.Group.Name)
}

func TestSendRejectsEmptyText(t *testing.T) {
	env := newTestEnv("alice", "bob")

	empty := "   "
	_, err := env.dispatcher.Send(context.Background(), SendInput{
		SenderID: "alice",
		Target:   SendTarget{RecipientID: "bob"},
		Type:     model.TypeText,
		Content:  &empty,
	})
	require.Error(t, err)
	assert.Equal(t, "EMPTY_CONTENT", Code(err))
}

func TestSendMultiFileOrder(t *testing.T) {
	env := newTestEnv("alice", "bob")

	caption := "holiday pics"
	result, err := env.dispatcher.Send(context.Background(), SendInput{
		SenderID: "alice",
		Target:   SendTarget{RecipientID: "bob"},
		Type:     model.TypeImage,
		Content:  &caption,
		Files: []model.FileRef{
			{URL: "u1", Name: "a.jpg"},
			{URL: "u2", Name: "b.jpg"},
			{URL: "u3", Name: "c.jpg"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)

	// The caption rides on the first file only and the upload order is
	// preserved by strictly increasing timestamps.
	require.NotNil(t, result.Messages[0].Content)
	assert.Equal(t, caption, *result.Messages[0].Content)
	assert.Nil(t, result.Messages[1].Content)
	assert.Nil(t, result.Messages[2].Content)
	for i := 1; i < 3; i++ {
		assert.True(t, result.Messages[i].CreatedAt.After(result.Messages[i-1].CreatedAt))
	}
}

func TestSendGroup(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol")
	groupID := env.addGroup("team", "alice", "bob", "carol")

	msg := env.sendText(t, "alice", SendTarget{GroupID: groupID}, "hi team")
	assert.Equal(t, model.TargetGroup, msg.Target.Kind)

	// A single message row, one status row per other member.
	require.NotNil(t, env.statuses.get(msg.ID, "bob"))
	require.NotNil(t, env.statuses.get(msg.ID, "carol"))
	assert.Nil(t, env.statuses.get(msg.ID, "alice"))

	// The group address receives one event.
	assert.Len(t, env.notifier.toGroup(groupID, event.EventReceiveMessage), 1)
}

func TestSendBroadcastFansOutCopies(t *testing.T) {
	env := newTestEnv("owner", "m1", "m2", "m3")
	listID := env.addBroadcast("owner", "m1", "m2", "m3")
	require.NoError(t, env.blocks.Block(context.Background(), "m3", "owner", time.Now().UTC()))

	content := "promo"
	result, err := env.dispatcher.Send(context.Background(), SendInput{
		SenderID: "owner",
		Target:   SendTarget{BroadcastID: listID},
		Type:     model.TypeText,
		Content:  &content,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 0, result.Failed)

	// One physical copy per recipient, all sharing the correlation key.
	copies, err := env.messages.FindPage(context.Background(), map[string]any{
		"sender_id":   "owner",
		"target.kind": model.TargetBroadcast,
	}, 0, 0)
	require.NoError(t, err)
	require.Len(t, copies, 3)
	key := copies[0].Target.ID
	owners := make([]string, 0, 3)
	for i := range copies {
		assert.Equal(t, key, copies[i].Target.ID)
		assert.Equal(t, listID, copies[i].BroadcastListID())
		owners = append(owners, copies[i].CopyFor)
	}
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, owners)

	// The copy of the member who blocked the owner is flagged and stays
	// unannounced; the other members are notified.
	for i := range copies {
		row := env.statuses.get(copies[i].ID, copies[i].CopyFor)
		require.NotNil(t, row)
		assert.Equal(t, copies[i].CopyFor == "m3", row.IsBlocked)
	}
	assert.Len(t, env.notifier.toUser("m1", event.EventReceiveMessage), 1)
	assert.Len(t, env.notifier.toUser("m2", event.EventReceiveMessage), 1)
	assert.Empty(t, env.notifier.toUser("m3", event.EventReceiveMessage))
}

func TestSendBroadcastPartialFailure(t *testing.T) {
	env := newTestEnv("owner", "m1", "m2", "m3")
	listID := env.addBroadcast("owner", "m1", "m2", "m3")
	env.messages.failInsertFor["m2"] = true

	content := "promo"
	result, err := env.dispatcher.Send(context.Background(), SendInput{
		SenderID: "owner",
		Target:   SendTarget{BroadcastID: listID},
		Type:     model.TypeText,
		Content:  &content,
	})
	require.NoError(t, err)

	// One recipient's failure never aborts the siblings; the summary is
	// exact.
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "m2", result.Failures[0].UserID)
	assert.Len(t, env.notifier.toUser("m1", event.EventReceiveMessage), 1)
	assert.Len(t, env.notifier.toUser("m3", event.EventReceiveMessage), 1)
}

func TestSendRevivesSoftDeletedConversation(t *testing.T) {
	env := newTestEnv("alice", "bob")
	key := model.DirectKey("alice", "bob")
	require.NoError(t, env.state.SoftDelete(context.Background(), "bob", key, time.Now().UTC()))

	env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "knock knock")

	pref, err := env.state.Preference(context.Background(), "bob", key)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Nil(t, pref.DeletedAt)
}

func TestSendArmsDisappearingInstance(t *testing.T) {
	env := newTestEnv("alice", "bob")
	key := model.DirectKey("alice", "bob")
	_, err := env.scheduler.UpdateSetting(context.Background(), key, true, model.Disappear24h)
	require.NoError(t, err)

	msg := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "vanishing")

	instances, err := env.disappearing.Instances(context.Background(), []primitive.ObjectID{msg.ID})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Nil(t, instances[0].ExpireAt)
}

func TestForwardDispatchesFreshSends(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol", "dave")
	original := env.sendText(t, "alice", SendTarget{RecipientID: "bob"}, "worth sharing")

	result, err := env.dispatcher.Forward(context.Background(), "alice", original.ID, []string{"carol", "dave"})
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	for i := range result.Messages {
		msg := result.Messages[i]
		assert.NotEqual(t, original.ID, msg.ID)
		require.NotNil(t, msg.Content)
		assert.Equal(t, "worth sharing", *msg.Content)
		assert.Equal(t, true, msg.Metadata["forwarded"])
		assert.Equal(t, original.ID.Hex(), msg.Metadata["forwarded_from"])
	}
	assert.Len(t, env.notifier.toUser("carol", event.EventReceiveMessage), 1)
	assert.Len(t, env.notifier.toUser("dave", event.EventReceiveMessage), 1)
}
