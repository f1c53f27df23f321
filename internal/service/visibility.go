package service

import (
	"context"
	"time"

	"Meetzy/internal/model"
	"Meetzy/internal/repo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DeletedSentinel replaces the content of messages deleted for everyone.
const DeletedSentinel = "This message was deleted"

const DefaultPageLimit = 50

// FeedRequest asks for one page of a viewer's conversation history.
type FeedRequest struct {
	ViewerID       string
	Target         SendTarget
	IsAnnouncement bool
	Offset         int64
	Limit          int64
	// LockPin is the plaintext pin attempt for locked conversations.
	LockPin string
}

// ReactionSummary aggregates one emoji on one message.
type ReactionSummary struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"` // the viewer holds this reaction
}

// ParentPreview is the reply-to snippet attached to replies.
type ParentPreview struct {
	ID       string  `json:"id"`
	SenderID string  `json:"senderId"`
	Type     string  `json:"type"`
	Content  *string `json:"content"`
}

// FeedItem is one rendered message in a viewer's feed.
type FeedItem struct {
	Message        model.Message          `json:"message"`
	Sender         *model.UserSummary     `json:"sender,omitempty"`
	Deleted        bool                   `json:"deleted"`
	Starred        bool                   `json:"starred"`
	Pinned         bool                   `json:"pinned"`
	Edited         bool                   `json:"edited"`
	Reactions      []ReactionSummary      `json:"reactions,omitempty"`
	Statuses       []model.DeliveryStatus `json:"statuses,omitempty"`
	Parent         *ParentPreview         `json:"parent,omitempty"`
	BroadcastMerge int                    `json:"broadcastMerge,omitempty"` // physical copies behind this item
}

// ChatTarget is the privacy-filtered conversation descriptor returned with
// every history page.
type ChatTarget struct {
	Kind         model.TargetKind           `json:"kind"`
	User         *model.UserSummary         `json:"user,omitempty"`
	Group        *model.Group               `json:"group,omitempty"`
	Broadcast    *model.BroadcastList       `json:"broadcast,omitempty"`
	Muted        bool                       `json:"muted"`
	Favorite     bool                       `json:"favorite"`
	Archived     bool                       `json:"archived"`
	Pinned       bool                       `json:"pinned"`
	Locked       bool                       `json:"locked"`
	Blocked      bool                       `json:"blocked"`   // viewer blocked the counterpart
	BlockedBy    bool                       `json:"blockedBy"` // counterpart blocked the viewer
	Disappearing *model.DisappearingSetting `json:"disappearing,omitempty"`
}

// FeedSenderGroup is a consecutive run of items from one sender within a day.
type FeedSenderGroup struct {
	SenderID string             `json:"senderId"`
	Sender   *model.UserSummary `json:"sender,omitempty"`
	Items    []FeedItem         `json:"items"`
}

// FeedDateGroup buckets one calendar day of the feed.
type FeedDateGroup struct {
	Date    string            `json:"date"` // YYYY-MM-DD, UTC
	Senders []FeedSenderGroup `json:"senders"`
}

// FeedPage is one page of reconstructed history. Groups carries the same
// items as Items, shaped into the date-grouped, sender-grouped view.
type FeedPage struct {
	Items        []FeedItem      `json:"items"`
	Groups       []FeedDateGroup `json:"groups"`
	ChatTarget   *ChatTarget     `json:"chatTarget"`
	Offset       int64           `json:"offset"`
	Limit        int64           `json:"limit"`
	HasMore      bool            `json:"hasMore"`
	MessageCount int             `json:"messageCount"`
}

// VisibilityFilter reconstructs, for any viewer, the correct subset and
// rendering of historical messages from the raw message set, the action
// ledger, clear markers, membership boundaries, block windows and
// disappearing expiry.
type VisibilityFilter struct {
	messages     repo.MessageRepository
	statuses     repo.StatusRepository
	actions      repo.ActionRepository
	state        repo.ChatStateRepository
	blocks       repo.BlockRepository
	disappearing repo.DisappearingRepository
	groups       repo.GroupRepository
	broadcasts   repo.BroadcastRepository
	users        repo.UserRepository
	logger       *zap.Logger
}

func NewVisibilityFilter(
	messages repo.MessageRepository,
	statuses repo.StatusRepository,
	actions repo.ActionRepository,
	state repo.ChatStateRepository,
	blocks repo.BlockRepository,
	disappearing repo.DisappearingRepository,
	groups repo.GroupRepository,
	broadcasts repo.BroadcastRepository,
	users repo.UserRepository,
	logger *zap.Logger,
) *VisibilityFilter {
	return &VisibilityFilter{
		messages:     messages,
		statuses:     statuses,
		actions:      actions,
		state:        state,
		blocks:       blocks,
		disappearing: disappearing,
		groups:       groups,
		broadcasts:   broadcasts,
		users:        users,
		logger:       logger,
	}
}

func (v *VisibilityFilter) Fetch(ctx context.Context, req FeedRequest) (*FeedPage, error) {
	if req.Limit < 1 {
		req.Limit = DefaultPageLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	scope, err := v.resolveScope(ctx, req)
	if err != nil {
		return nil, err
	}

	pref, err := v.state.Preference(ctx, req.ViewerID, scope.conversationKey)
	if err != nil {
		return nil, Internal(err, "failed to load chat preference")
	}
	if err := v.checkLock(pref, req.LockPin); err != nil {
		return nil, err
	}

	window, err := v.feedWindow(ctx, req.ViewerID, pref, scope)
	if err != nil {
		return nil, err
	}

	filter := scope.filter(window)
	raw, err := v.messages.FindPage(ctx, filter, req.Offset, req.Limit)
	if err != nil {
		return nil, Internal(err, "failed to load messages")
	}
	hasMore := int64(len(raw)) == req.Limit

	items, err := v.render(ctx, req.ViewerID, scope, raw)
	if err != nil {
		return nil, err
	}
	v.hydrateSenders(ctx, items)

	chatTarget, err := v.chatTarget(ctx, req.ViewerID, scope, pref)
	if err != nil {
		return nil, err
	}

	return &FeedPage{
		Items:        items,
		Groups:       groupItems(items),
		ChatTarget:   chatTarget,
		Offset:       req.Offset,
		Limit:        req.Limit,
		HasMore:      hasMore,
		MessageCount: len(items),
	}, nil
}

// feedScope is the resolved read-path target.
type feedScope struct {
	kind            model.TargetKind
	conversationKey string
	counterpartID   string
	groupID         string
	broadcastID     string
	announcement    bool
	viewerID        string
}

func (s *feedScope) filter(window repo.FeedWindow) bson.M {
	switch {
	case s.announcement:
		return repo.AnnouncementFeedFilter(s.viewerID, window)
	case s.kind == model.TargetGroup:
		return repo.GroupFeedFilter(s.groupID, window)
	case s.kind == model.TargetBroadcast:
		return repo.BroadcastFeedFilter(s.viewerID, s.broadcastID, window)
	default:
		return repo.DirectFeedFilter(s.viewerID, s.counterpartID, window)
	}
}

func (v *VisibilityFilter) resolveScope(ctx context.Context, req FeedRequest) (*feedScope, error) {
	if req.IsAnnouncement {
		return &feedScope{
			kind:            model.TargetDirect,
			conversationKey: model.DirectKey(req.ViewerID, "announcements"),
			announcement:    true,
			viewerID:        req.ViewerID,
		}, nil
	}

	switch n := req.Target.count(); {
	case n == 0:
		return nil, Validation("TARGET_REQUIRED", "one of recipientId, groupId or broadcastId is required")
	case n > 1:
		return nil, Validation("TARGET_AMBIGUOUS", "recipientId, groupId and broadcastId are mutually exclusive")
	}

	switch {
	case req.Target.GroupID != "":
		return &feedScope{
			kind:            model.TargetGroup,
			conversationKey: model.GroupKey(req.Target.GroupID),
			groupID:         req.Target.GroupID,
			viewerID:        req.ViewerID,
		}, nil
	case req.Target.BroadcastID != "":
		list, err := v.broadcasts.Get(ctx, req.Target.BroadcastID)
		if err != nil {
			return nil, Internal(err, "failed to load broadcast list")
		}
		if list == nil {
			return nil, NotFound("BROADCAST_NOT_FOUND", "broadcast list does not exist")
		}
		if list.OwnerID != req.ViewerID {
			return nil, Authorization("NOT_OWNER", "viewer does not own the broadcast list")
		}
		return &feedScope{
			kind:            model.TargetBroadcast,
			conversationKey: model.BroadcastListKey(req.Target.BroadcastID),
			broadcastID:     req.Target.BroadcastID,
			viewerID:        req.ViewerID,
		}, nil
	default:
		return &feedScope{
			kind:            model.TargetDirect,
			conversationKey: model.DirectKey(req.ViewerID, req.Target.RecipientID),
			counterpartID:   req.Target.RecipientID,
			viewerID:        req.ViewerID,
		}, nil
	}
}

func (v *VisibilityFilter) checkLock(pref *model.ChatPreference, pin string) error {
	if pref == nil || !pref.Locked {
		return nil
	}
	if pin == "" {
		return Validation("PIN_REQUIRED", "conversation is locked")
	}
	if bcrypt.CompareHashAndPassword([]byte(pref.PinHash), []byte(pin)) != nil {
		return Validation("INVALID_PIN", "pin does not match")
	}
	return nil
}

// feedWindow combines the viewer's clear markers (conversation-level and the
// clear-all floor) with the group leave boundary.
func (v *VisibilityFilter) feedWindow(ctx context.Context, viewerID string, pref *model.ChatPreference, scope *feedScope) (repo.FeedWindow, error) {
	var window repo.FeedWindow

	if pref != nil && pref.ClearedAt != nil {
		window.After = pref.ClearedAt
	}
	global, err := v.state.Preference(ctx, viewerID, model.GlobalConversationKey)
	if err != nil {
		return window, Internal(err, "failed to load global clear marker")
	}
	if global != nil && global.ClearedAt != nil {
		if window.After == nil || global.ClearedAt.After(*window.After) {
			window.After = global.ClearedAt
		}
	}

	if scope.kind == model.TargetGroup {
		group, err := v.groups.Get(ctx, scope.groupID)
		if err != nil {
			return window, Internal(err, "failed to load group")
		}
		if group == nil {
			return window, NotFound("GROUP_NOT_FOUND", "group does not exist")
		}
		member := group.Member(viewerID)
		if member == nil {
			return window, Authorization("NOT_MEMBER", "viewer was never a member of the group")
		}
		// A former member's history is capped at the instant they left,
		// even without an explicit clear.
		if member.LeftAt != nil {
			window.Before = member.LeftAt
		}
	}
	return window, nil
}

func (v *VisibilityFilter) render(ctx context.Context, viewerID string, scope *feedScope, raw []model.Message) ([]FeedItem, error) {
	if len(raw) == 0 {
		return []FeedItem{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(raw))
	parentIDs := make([]primitive.ObjectID, 0)
	for i := range raw {
		ids = append(ids, raw[i].ID)
		if raw[i].ParentID != nil {
			parentIDs = append(parentIDs, *raw[i].ParentID)
		}
	}

	actions, err := v.actions.ForMessages(ctx, ids)
	if err != nil {
		return nil, Internal(err, "failed to load actions")
	}
	byMessage := groupActions(actions)

	instances, err := v.disappearing.Instances(ctx, ids)
	if err != nil {
		return nil, Internal(err, "failed to load disappearing instances")
	}
	expiry := make(map[primitive.ObjectID]*model.MessageDisappearing, len(instances))
	for i := range instances {
		expiry[instances[i].MessageID] = &instances[i]
	}

	statuses, err := v.statuses.ForMessages(ctx, ids)
	if err != nil {
		return nil, Internal(err, "failed to load delivery statuses")
	}
	statusByMessage := make(map[primitive.ObjectID][]model.DeliveryStatus)
	for i := range statuses {
		statusByMessage[statuses[i].MessageID] = append(statusByMessage[statuses[i].MessageID], statuses[i])
	}

	parents, err := v.messages.FindByIDs(ctx, parentIDs)
	if err != nil {
		return nil, Internal(err, "failed to load parent messages")
	}
	parentByID := make(map[primitive.ObjectID]*model.Message, len(parents))
	for i := range parents {
		parentByID[parents[i].ID] = &parents[i]
	}

	var blockBoundary *time.Time
	if scope.kind == model.TargetDirect && !scope.announcement {
		block, err := v.blocks.Get(ctx, viewerID, scope.counterpartID)
		if err != nil {
			return nil, Internal(err, "failed to load block state")
		}
		if block != nil {
			blockBoundary = &block.CreatedAt
		}
	}

	now := time.Now().UTC()
	seenKeys := make(map[string]int) // broadcast correlation key -> item index
	items := make([]FeedItem, 0, len(raw))

	for i := range raw {
		msg := raw[i]
		acts := byMessage[msg.ID]

		// Expired disappearing messages vanish from the feed; the physical
		// delete happens lazily elsewhere.
		if inst := expiry[msg.ID]; inst != nil && inst.Expired(now) {
			continue
		}

		// Messages authored by a blocked counterpart after the block
		// boundary stay hidden; the viewer's own messages remain visible.
		if blockBoundary != nil && msg.SenderID != viewerID && msg.CreatedAt.After(*blockBoundary) {
			continue
		}

		deletedForEveryone := acts.deleteForEveryone()
		if !deletedForEveryone && acts.deletedForMeBy(viewerID) {
			continue
		}

		// The sender's broadcast feed shows one representative per
		// correlation key; further copies only bump the merge counter.
		if scope.kind == model.TargetBroadcast {
			if idx, ok := seenKeys[msg.Target.ID]; ok {
				items[idx].BroadcastMerge++
				continue
			}
		}

		item := FeedItem{
			Message:   msg,
			Starred:   acts.starredBy(viewerID),
			Pinned:    acts.pinned(),
			Edited:    acts.edited(),
			Reactions: acts.reactionSummaries(viewerID),
			Statuses:  statusByMessage[msg.ID],
		}
		if deletedForEveryone {
			sentinel := DeletedSentinel
			item.Message.Content = &sentinel
			item.Message.File = nil
			item.Deleted = true
		}
		if msg.ParentID != nil {
			if parent := parentByID[*msg.ParentID]; parent != nil {
				item.Parent = v.parentPreview(parent)
			}
		}
		if scope.kind == model.TargetBroadcast {
			item.BroadcastMerge = 1
			seenKeys[msg.Target.ID] = len(items)
		}

		items = append(items, item)
	}
	return items, nil
}

// hydrateSenders attaches sender summaries to the rendered items. A sender
// whose account no longer resolves stays as a bare id.
func (v *VisibilityFilter) hydrateSenders(ctx context.Context, items []FeedItem) {
	if len(items) == 0 {
		return
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i := range items {
		if id := items[i].Message.SenderID; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	summaries, err := v.users.Summaries(ctx, ids)
	if err != nil {
		v.logger.Warn("sender summary lookup failed", zap.Error(err))
		return
	}
	for i := range items {
		if s, ok := summaries[items[i].Message.SenderID]; ok {
			summary := s
			items[i].Sender = &summary
		}
	}
}

// groupItems shapes the flat page into date buckets holding consecutive
// same-sender runs, preserving the newest-first item order.
func groupItems(items []FeedItem) []FeedDateGroup {
	groups := make([]FeedDateGroup, 0)
	for i := range items {
		date := items[i].Message.CreatedAt.UTC().Format("2006-01-02")
		if len(groups) == 0 || groups[len(groups)-1].Date != date {
			groups = append(groups, FeedDateGroup{Date: date})
		}
		day := &groups[len(groups)-1]

		senderID := items[i].Message.SenderID
		if len(day.Senders) == 0 || day.Senders[len(day.Senders)-1].SenderID != senderID {
			day.Senders = append(day.Senders, FeedSenderGroup{
				SenderID: senderID,
				Sender:   items[i].Sender,
			})
		}
		run := &day.Senders[len(day.Senders)-1]
		run.Items = append(run.Items, items[i])
	}
	return groups
}

func (v *VisibilityFilter) parentPreview(parent *model.Message) *ParentPreview {
	preview := &ParentPreview{
		ID:       parent.ID.Hex(),
		SenderID: parent.SenderID,
		Type:     parent.Type,
		Content:  parent.Content,
	}
	return preview
}

func (v *VisibilityFilter) chatTarget(ctx context.Context, viewerID string, scope *feedScope, pref *model.ChatPreference) (*ChatTarget, error) {
	target := &ChatTarget{Kind: scope.kind}

	if pref != nil {
		target.Muted = pref.Muted
		target.Favorite = pref.Favorite
		target.Archived = pref.Archived
		target.Pinned = pref.Pinned
		target.Locked = pref.Locked
	}

	setting, err := v.disappearing.Setting(ctx, scope.conversationKey)
	if err != nil {
		return nil, Internal(err, "failed to load disappearing setting")
	}
	target.Disappearing = setting

	switch scope.kind {
	case model.TargetGroup:
		group, err := v.groups.Get(ctx, scope.groupID)
		if err != nil {
			return nil, Internal(err, "failed to load group")
		}
		target.Group = group
	case model.TargetBroadcast:
		list, err := v.broadcasts.Get(ctx, scope.broadcastID)
		if err != nil {
			return nil, Internal(err, "failed to load broadcast list")
		}
		target.Broadcast = list
	default:
		if scope.announcement {
			break
		}
		user, err := v.users.Get(ctx, scope.counterpartID)
		if err != nil {
			return nil, Internal(err, "failed to load counterpart")
		}
		if user != nil {
			summary := user.Summary()
			target.User = &summary
		}
		outgoing, err := v.blocks.Get(ctx, viewerID, scope.counterpartID)
		if err != nil {
			return nil, Internal(err, "failed to load block state")
		}
		incoming, err := v.blocks.Get(ctx, scope.counterpartID, viewerID)
		if err != nil {
			return nil, Internal(err, "failed to load block state")
		}
		target.Blocked = outgoing != nil
		target.BlockedBy = incoming != nil
	}
	return target, nil
}

// messageActions indexes the ledger entries of one message.
type messageActions []model.MessageAction

func groupActions(actions []model.MessageAction) map[primitive.ObjectID]messageActions {
	grouped := make(map[primitive.ObjectID]messageActions)
	for i := range actions {
		grouped[actions[i].MessageID] = append(grouped[actions[i].MessageID], actions[i])
	}
	return grouped
}

func (a messageActions) deleteForEveryone() bool {
	for i := range a {
		if a[i].Type == model.ActionDelete && a[i].Details.Scope == model.DeleteForEveryone {
			return true
		}
	}
	return false
}

func (a messageActions) deletedForMeBy(viewerID string) bool {
	for i := range a {
		if a[i].Type == model.ActionDelete && a[i].Details.Scope == model.DeleteForMe && a[i].ActorID == viewerID {
			return true
		}
	}
	return false
}

func (a messageActions) starredBy(viewerID string) bool {
	for i := range a {
		if a[i].Type == model.ActionStar && a[i].ActorID == viewerID {
			return true
		}
	}
	return false
}

func (a messageActions) pinned() bool {
	for i := range a {
		if a[i].Type == model.ActionPin {
			return true
		}
	}
	return false
}

func (a messageActions) edited() bool {
	for i := range a {
		if a[i].Type == model.ActionEdit {
			return true
		}
	}
	return false
}

func (a messageActions) reactionSummaries(viewerID string) []ReactionSummary {
	counts := make(map[string]*ReactionSummary)
	order := make([]string, 0)
	for i := range a {
		if a[i].Type != model.ActionReaction {
			continue
		}
		emoji := a[i].Details.Emoji
		summary, ok := counts[emoji]
		if !ok {
			summary = &ReactionSummary{Emoji: emoji}
			counts[emoji] = summary
			order = append(order, emoji)
		}
		summary.Count++
		if a[i].ActorID == viewerID {
			summary.Reacted = true
		}
	}
	if len(order) == 0 {
		return nil
	}
	result := make([]ReactionSummary, 0, len(order))
	for _, emoji := range order {
		result = append(result, *counts[emoji])
	}
	return result
}
