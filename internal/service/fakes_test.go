package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/model"
	"Meetzy/internal/monitoring"
	"Meetzy/internal/repo"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// In-memory repository fakes. They hold the same contracts as the mongo
// implementations so the services can be exercised without a live database.

type fakeMessageRepo struct {
	mu   sync.Mutex
	docs []model.Message
	// failInsertFor fails inserts whose copy_for or target id matches, to
	// exercise per-recipient failure isolation.
	failInsertFor map[string]bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{failInsertFor: map[string]bool{}}
}

func (f *fakeMessageRepo) Insert(ctx context.Context, msg *model.Message) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertFor[msg.CopyFor] || f.failInsertFor[msg.Target.ID] {
		return primitive.NilObjectID, errors.New("write refused")
	}
	stored := *msg
	stored.ID = primitive.NewObjectID()
	f.docs = append(f.docs, stored)
	return stored.ID, nil
}

func (f *fakeMessageRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == id {
			msg := f.docs[i]
			return &msg, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []model.Message
	for i := range f.docs {
		if wanted[f.docs[i].ID] {
			out = append(out, f.docs[i])
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) FindPage(ctx context.Context, filter bson.M, offset, limit int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]model.Message, 0)
	for i := range f.docs {
		if matchMessage(&f.docs[i], filter) {
			matched = append(matched, f.docs[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= int64(len(matched)) {
		return []model.Message{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeMessageRepo) UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == id {
			c := content
			f.docs[i].Content = &c
			f.docs[i].UpdatedAt = at
		}
	}
	return nil
}

// matchMessage evaluates the subset of mongo filter syntax the feed filter
// builders produce: field equality, $or, and created_at range conditions.
func matchMessage(msg *model.Message, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			legs, ok := cond.([]bson.M)
			if !ok {
				return false
			}
			anyMatch := false
			for _, leg := range legs {
				if matchMessage(msg, leg) {
					anyMatch = true
					break
				}
			}
			if !anyMatch {
				return false
			}
		case "created_at":
			ops, ok := cond.(bson.M)
			if !ok {
				return false
			}
			for op, bound := range ops {
				boundAt := bound.(time.Time)
				switch op {
				case "$gt":
					if !msg.CreatedAt.After(boundAt) {
						return false
					}
				case "$lte":
					if msg.CreatedAt.After(boundAt) {
						return false
					}
				}
			}
		default:
			if messageField(msg, key) != cond {
				return false
			}
		}
	}
	return true
}

func messageField(msg *model.Message, key string) any {
	switch key {
	case "sender_id":
		return msg.SenderID
	case "type":
		return msg.Type
	case "copy_for":
		return msg.CopyFor
	case "target.kind":
		return msg.Target.Kind
	case "target.id":
		return msg.Target.ID
	}
	if name, ok := strings.CutPrefix(key, "metadata."); ok {
		if msg.Metadata == nil {
			return nil
		}
		return msg.Metadata[name]
	}
	return nil
}

type statusKey struct {
	messageID   primitive.ObjectID
	recipientID string
}

type fakeStatusRepo struct {
	mu   sync.Mutex
	rows map[statusKey]*model.DeliveryStatus
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{rows: map[statusKey]*model.DeliveryStatus{}}
}

func (f *fakeStatusRepo) Create(ctx context.Context, status *model.DeliveryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *status
	f.rows[statusKey{status.MessageID, status.RecipientID}] = &row
	return nil
}

func (f *fakeStatusRepo) Advance(ctx context.Context, messageID primitive.ObjectID, recipientID string, state int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[statusKey{messageID, recipientID}]
	if !ok || row.State >= state {
		return false, nil
	}
	row.State = state
	row.UpdatedAt = at
	return true, nil
}

func (f *fakeStatusRepo) ForMessages(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.DeliveryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[primitive.ObjectID]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var out []model.DeliveryStatus
	for _, row := range f.rows {
		if wanted[row.MessageID] {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeStatusRepo) ForRecipient(ctx context.Context, messageIDs []primitive.ObjectID, recipientID string) ([]model.DeliveryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DeliveryStatus
	for _, id := range messageIDs {
		if row, ok := f.rows[statusKey{id, recipientID}]; ok {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeStatusRepo) get(messageID primitive.ObjectID, recipientID string) *model.DeliveryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[statusKey{messageID, recipientID}]; ok {
		copied := *row
		return &copied
	}
	return nil
}

type fakeActionRepo struct {
	mu      sync.Mutex
	entries []model.MessageAction
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{}
}

// find mirrors the mongo key: pins match by message alone, delete entries
// additionally match their scope.
func (f *fakeActionRepo) find(messageID primitive.ObjectID, actorID string, actionType model.ActionType, scope model.DeleteScope) int {
	for i := range f.entries {
		e := &f.entries[i]
		if e.MessageID != messageID || e.Type != actionType {
			continue
		}
		if actionType != model.ActionPin && e.ActorID != actorID {
			continue
		}
		if scope != "" && e.Details.Scope != scope {
			continue
		}
		return i
	}
	return -1
}

func (f *fakeActionRepo) Toggle(ctx context.Context, action *model.MessageAction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(action.MessageID, action.ActorID, action.Type, action.Details.Scope); i >= 0 {
		f.entries = append(f.entries[:i], f.entries[i+1:]...)
		return repo.OutcomeRemoved, nil
	}
	stored := *action
	stored.ID = primitive.NewObjectID()
	f.entries = append(f.entries, stored)
	return repo.OutcomeAdded, nil
}

func (f *fakeActionRepo) SetReaction(ctx context.Context, action *model.MessageAction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(action.MessageID, action.ActorID, model.ActionReaction, ""); i >= 0 {
		if f.entries[i].Details.Emoji == action.Details.Emoji {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return repo.OutcomeRemoved, nil
		}
		f.entries[i].Details = action.Details
		f.entries[i].CreatedAt = action.CreatedAt
		return repo.OutcomeUpdated, nil
	}
	stored := *action
	stored.ID = primitive.NewObjectID()
	f.entries = append(f.entries, stored)
	return repo.OutcomeAdded, nil
}

func (f *fakeActionRepo) Upsert(ctx context.Context, action *model.MessageAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(action.MessageID, action.ActorID, action.Type, action.Details.Scope); i >= 0 {
		f.entries[i].ActorID = action.ActorID
		f.entries[i].Details = action.Details
		return nil
	}
	stored := *action
	stored.ID = primitive.NewObjectID()
	f.entries = append(f.entries, stored)
	return nil
}

func (f *fakeActionRepo) Append(ctx context.Context, action *model.MessageAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *action
	stored.ID = primitive.NewObjectID()
	f.entries = append(f.entries, stored)
	return nil
}

func (f *fakeActionRepo) Remove(ctx context.Context, messageID primitive.ObjectID, actorID string, actionType model.ActionType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(messageID, actorID, actionType, ""); i >= 0 {
		f.entries = append(f.entries[:i], f.entries[i+1:]...)
		return true, nil
	}
	return false, nil
}

func (f *fakeActionRepo) ForMessages(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.MessageAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[primitive.ObjectID]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var out []model.MessageAction
	for i := range f.entries {
		if wanted[f.entries[i].MessageID] {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeActionRepo) PinsForConversation(ctx context.Context, conversationKey string) ([]model.MessageAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.MessageAction
	for i := range f.entries {
		e := f.entries[i]
		if e.Type == model.ActionPin && e.ConversationKey == conversationKey {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type prefKey struct {
	userID          string
	conversationKey string
}

type fakeChatStateRepo struct {
	mu    sync.Mutex
	prefs map[prefKey]*model.ChatPreference
}

func newFakeChatStateRepo() *fakeChatStateRepo {
	return &fakeChatStateRepo{prefs: map[prefKey]*model.ChatPreference{}}
}

func (f *fakeChatStateRepo) pref(userID, conversationKey string) *model.ChatPreference {
	key := prefKey{userID, conversationKey}
	if p, ok := f.prefs[key]; ok {
		return p
	}
	p := &model.ChatPreference{UserID: userID, ConversationKey: conversationKey}
	f.prefs[key] = p
	return p
}

func (f *fakeChatStateRepo) Preference(ctx context.Context, userID, conversationKey string) (*model.ChatPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prefs[prefKey{userID, conversationKey}]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeChatStateRepo) RaiseClearMarker(ctx context.Context, userID, conversationKey string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pref(userID, conversationKey)
	if p.ClearedAt == nil || at.After(*p.ClearedAt) {
		p.ClearedAt = &at
	}
	return nil
}

func (f *fakeChatStateRepo) RaiseGlobalClearMarker(ctx context.Context, userID string, at time.Time) error {
	return f.RaiseClearMarker(ctx, userID, model.GlobalConversationKey, at)
}

func (f *fakeChatStateRepo) SoftDelete(ctx context.Context, userID, conversationKey string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pref(userID, conversationKey).DeletedAt = &at
	return nil
}

func (f *fakeChatStateRepo) Revive(ctx context.Context, userID, conversationKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pref(userID, conversationKey).DeletedAt = nil
	return nil
}

func (f *fakeChatStateRepo) SetArchived(ctx context.Context, userID, conversationKey string, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pref(userID, conversationKey).Archived = archived
	return nil
}

func (f *fakeChatStateRepo) SetChatPinned(ctx context.Context, userID, conversationKey string, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pref(userID, conversationKey).Pinned = pinned
	return nil
}

func (f *fakeChatStateRepo) SetFavorite(ctx context.Context, userID, conversationKey string, favorite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pref(userID, conversationKey).Favorite = favorite
	return nil
}

func (f *fakeChatStateRepo) SetMuted(ctx context.Context, userID, conversationKey string, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pref(userID, conversationKey).Muted = muted
	return nil
}

func (f *fakeChatStateRepo) SetLock(ctx context.Context, userID, conversationKey string, pinHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pref(userID, conversationKey)
	p.PinHash = pinHash
	p.Locked = pinHash != ""
	return nil
}

type blockKey struct {
	blockerID string
	blockedID string
}

type fakeBlockRepo struct {
	mu     sync.Mutex
	blocks map[blockKey]model.Block
}

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{blocks: map[blockKey]model.Block{}}
}

func (f *fakeBlockRepo) Block(ctx context.Context, blockerID, blockedID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := blockKey{blockerID, blockedID}
	if _, ok := f.blocks[key]; !ok {
		f.blocks[key] = model.Block{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: at}
	}
	return nil
}

func (f *fakeBlockRepo) Unblock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := blockKey{blockerID, blockedID}
	if _, ok := f.blocks[key]; !ok {
		return false, nil
	}
	delete(f.blocks, key)
	return true, nil
}

func (f *fakeBlockRepo) Get(ctx context.Context, blockerID, blockedID string) (*model.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[blockKey{blockerID, blockedID}]; ok {
		return &b, nil
	}
	return nil, nil
}

func (f *fakeBlockRepo) BlockedBySet(ctx context.Context, senderID string, userIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if _, ok := f.blocks[blockKey{id, senderID}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type fakeDisappearingRepo struct {
	mu        sync.Mutex
	settings  map[string]*model.DisappearingSetting
	instances map[primitive.ObjectID]*model.MessageDisappearing
}

func newFakeDisappearingRepo() *fakeDisappearingRepo {
	return &fakeDisappearingRepo{
		settings:  map[string]*model.DisappearingSetting{},
		instances: map[primitive.ObjectID]*model.MessageDisappearing{},
	}
}

func (f *fakeDisappearingRepo) Setting(ctx context.Context, conversationKey string) (*model.DisappearingSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[conversationKey]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeDisappearingRepo) SaveSetting(ctx context.Context, setting *model.DisappearingSetting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *setting
	f.settings[setting.ConversationKey] = &copied
	return nil
}

func (f *fakeDisappearingRepo) CreateInstance(ctx context.Context, instance *model.MessageDisappearing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *instance
	copied.ID = primitive.NewObjectID()
	f.instances[instance.MessageID] = &copied
	return nil
}

func (f *fakeDisappearingRepo) Instances(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.MessageDisappearing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.MessageDisappearing
	for _, id := range messageIDs {
		if inst, ok := f.instances[id]; ok {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (f *fakeDisappearingRepo) TriggerExpiry(ctx context.Context, messageID primitive.ObjectID, expireAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[messageID]
	if !ok || inst.ExpireAt != nil {
		return false, nil
	}
	inst.ExpireAt = &expireAt
	return true, nil
}

type fakeGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*model.Group
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: map[string]*model.Group{}}
}

func (f *fakeGroupRepo) put(g *model.Group) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	f.groups[g.ID.Hex()] = g
	return g.ID.Hex()
}

func (f *fakeGroupRepo) Get(ctx context.Context, groupID string) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.groups[groupID]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, nil
}

type fakeBroadcastRepo struct {
	mu    sync.Mutex
	lists map[string]*model.BroadcastList
}

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{lists: map[string]*model.BroadcastList{}}
}

func (f *fakeBroadcastRepo) put(list *model.BroadcastList) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if list.ID.IsZero() {
		list.ID = primitive.NewObjectID()
	}
	f.lists[list.ID.Hex()] = list
	return list.ID.Hex()
}

func (f *fakeBroadcastRepo) Get(ctx context.Context, listID string) (*model.BroadcastList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if list, ok := f.lists[listID]; ok {
		copied := *list
		return &copied, nil
	}
	return nil, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo(ids ...string) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]*model.User{}}
	for _, id := range ids {
		f.users[id] = &model.User{UserID: id, Username: id, IsActive: true}
	}
	return f
}

func (f *fakeUserRepo) Get(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) Summaries(ctx context.Context, userIDs []string) (map[string]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.UserSummary)
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok && u.IsActive {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (f *fakeUserRepo) deactivate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.IsActive = false
	}
}

// publishedEvent is one captured notifier publish.
type publishedEvent struct {
	UserID  string
	GroupID string
	Event   event.WsEvent
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) PublishToUser(userID string, ev event.WsEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{UserID: userID, Event: ev})
}

func (n *recordingNotifier) PublishToGroup(groupID string, ev event.WsEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{GroupID: groupID, Event: ev})
}

func (n *recordingNotifier) toUser(userID, name string) []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []publishedEvent
	for _, e := range n.events {
		if e.UserID == userID && e.Event.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) toGroup(groupID, name string) []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []publishedEvent
	for _, e := range n.events {
		if e.GroupID == groupID && e.Event.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// testEnv wires every service against the in-memory fakes.
type testEnv struct {
	messages     *fakeMessageRepo
	statuses     *fakeStatusRepo
	actions      *fakeActionRepo
	state        *fakeChatStateRepo
	blocks       *fakeBlockRepo
	disappearing *fakeDisappearingRepo
	groups       *fakeGroupRepo
	broadcasts   *fakeBroadcastRepo
	users        *fakeUserRepo
	notifier     *recordingNotifier

	resolver   *ConversationResolver
	dispatcher *DeliveryDispatcher
	ledger     *ActionLedger
	visibility *VisibilityFilter
	scheduler  *DisappearingScheduler
	receipts   *ReadReceipts
	chatState  *ChatState
}

func newTestEnv(userIDs ...string) *testEnv {
	logger := zap.NewNop()
	metrics := monitoring.NewMetrics()

	env := &testEnv{
		messages:     newFakeMessageRepo(),
		statuses:     newFakeStatusRepo(),
		actions:      newFakeActionRepo(),
		state:        newFakeChatStateRepo(),
		blocks:       newFakeBlockRepo(),
		disappearing: newFakeDisappearingRepo(),
		groups:       newFakeGroupRepo(),
		broadcasts:   newFakeBroadcastRepo(),
		users:        newFakeUserRepo(userIDs...),
		notifier:     &recordingNotifier{},
	}

	env.resolver = NewConversationResolver(env.groups, env.broadcasts, env.blocks, env.users, logger)
	env.scheduler = NewDisappearingScheduler(env.disappearing, logger)
	env.dispatcher = NewDeliveryDispatcher(
		env.resolver, env.messages, env.statuses, env.state, env.disappearing,
		env.users, env.notifier, metrics, logger)
	env.ledger = NewActionLedger(env.messages, env.actions, env.groups, env.notifier, metrics, logger)
	env.visibility = NewVisibilityFilter(
		env.messages, env.statuses, env.actions, env.state, env.blocks,
		env.disappearing, env.groups, env.broadcasts, env.users, logger)
	env.receipts = NewReadReceipts(env.messages, env.statuses, env.scheduler, env.notifier, metrics, logger)
	env.chatState = NewChatState(env.state, env.blocks, env.notifier, metrics, logger)
	return env
}

func (e *testEnv) addGroup(name string, memberIDs ...string) string {
	now := time.Now().UTC().Add(-time.Hour)
	members := make([]model.GroupMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, model.GroupMember{UserID: id, Role: "member", JoinedAt: now, IsActive: true})
	}
	return e.groups.put(&model.Group{Name: name, Members: members, IsActive: true, CreatedAt: now})
}

func (e *testEnv) addBroadcast(ownerID string, memberIDs ...string) string {
	return e.broadcasts.put(&model.BroadcastList{
		OwnerID:   ownerID,
		Name:      "list",
		MemberIDs: memberIDs,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
}

func (e *testEnv) sendText(t *testing.T, senderID string, target SendTarget, content string) model.Message {
	t.Helper()
	result, err := e.dispatcher.Send(context.Background(), SendInput{
		SenderID: senderID,
		Target:   target,
		Type:     model.TypeText,
		Content:  &content,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Messages)
	return result.Messages[0]
}
