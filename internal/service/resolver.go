package service

import (
	"context"

	"Meetzy/internal/model"
	"Meetzy/internal/repo"

	"go.uber.org/zap"
)

// SendTarget selects the conversation a send is addressed to. Exactly one
// field must be set.
type SendTarget struct {
	RecipientID string `json:"recipientId,omitempty"`
	GroupID     string `json:"groupId,omitempty"`
	BroadcastID string `json:"broadcastId,omitempty"`
}

func (t SendTarget) count() int {
	n := 0
	if t.RecipientID != "" {
		n++
	}
	if t.GroupID != "" {
		n++
	}
	if t.BroadcastID != "" {
		n++
	}
	return n
}

// ResolvedRecipient is one delivery unit. Blocked means the recipient has
// blocked the sender: the attempt is still recorded, but nothing is ever
// exposed to them.
type ResolvedRecipient struct {
	UserID  string
	Blocked bool
}

// Resolution is the concrete fan-out plan for one send.
type Resolution struct {
	Kind            model.TargetKind
	ConversationKey string
	GroupID         string
	BroadcastID     string
	Recipients      []ResolvedRecipient
	// Skipped lists broadcast members dropped before dispatch (inactive or
	// unknown accounts). Reported in the send summary.
	Skipped []string

	// Hydration context loaded while resolving, reused for the send
	// response so handlers return full objects instead of bare ids.
	Recipient *model.UserSummary
	Group     *model.Group
	Broadcast *model.BroadcastList
}

// ConversationResolver decides who receives a message and whether the sender
// is allowed to address the target at all.
type ConversationResolver struct {
	groups     repo.GroupRepository
	broadcasts repo.BroadcastRepository
	blocks     repo.BlockRepository
	users      repo.UserRepository
	logger     *zap.Logger
}

func NewConversationResolver(
	groups repo.GroupRepository,
	broadcasts repo.BroadcastRepository,
	blocks repo.BlockRepository,
	users repo.UserRepository,
	logger *zap.Logger,
) *ConversationResolver {
	return &ConversationResolver{
		groups:     groups,
		broadcasts: broadcasts,
		blocks:     blocks,
		users:      users,
		logger:     logger,
	}
}

func (r *ConversationResolver) Resolve(ctx context.Context, senderID string, target SendTarget) (*Resolution, error) {
	switch n := target.count(); {
	case n == 0:
		return nil, Validation("TARGET_REQUIRED", "one of recipientId, groupId or broadcastId is required")
	case n > 1:
		return nil, Validation("TARGET_AMBIGUOUS", "recipientId, groupId and broadcastId are mutually exclusive")
	}

	switch {
	case target.RecipientID != "":
		return r.resolveDirect(ctx, senderID, target.RecipientID)
	case target.GroupID != "":
		return r.resolveGroup(ctx, senderID, target.GroupID)
	default:
		return r.resolveBroadcast(ctx, senderID, target.BroadcastID)
	}
}

func (r *ConversationResolver) resolveDirect(ctx context.Context, senderID, recipientID string) (*Resolution, error) {
	if recipientID == senderID {
		return nil, Validation("SELF_TARGET", "cannot send a message to yourself")
	}

	recipient, err := r.users.Get(ctx, recipientID)
	if err != nil {
		return nil, Internal(err, "failed to load recipient")
	}
	if recipient == nil || !recipient.IsActive {
		return nil, NotFound("RECIPIENT_NOT_FOUND", "recipient does not exist")
	}

	// A sender who has blocked the recipient cannot message them. The
	// reverse block does not reject the send: the copy is recorded with a
	// blocked flag and stays invisible to the recipient.
	outgoing, err := r.blocks.Get(ctx, senderID, recipientID)
	if err != nil {
		return nil, Internal(err, "failed to check block state")
	}
	if outgoing != nil {
		return nil, Authorization("BLOCKED", "recipient is blocked")
	}

	incoming, err := r.blocks.Get(ctx, recipientID, senderID)
	if err != nil {
		return nil, Internal(err, "failed to check block state")
	}

	summary := recipient.Summary()
	return &Resolution{
		Kind:            model.TargetDirect,
		ConversationKey: model.DirectKey(senderID, recipientID),
		Recipients:      []ResolvedRecipient{{UserID: recipientID, Blocked: incoming != nil}},
		Recipient:       &summary,
	}, nil
}

func (r *ConversationResolver) resolveGroup(ctx context.Context, senderID, groupID string) (*Resolution, error) {
	group, err := r.groups.Get(ctx, groupID)
	if err != nil {
		return nil, Internal(err, "failed to load group")
	}
	if group == nil || !group.IsActive {
		return nil, NotFound("GROUP_NOT_FOUND", "group does not exist")
	}
	if !group.IsCurrentMember(senderID) {
		return nil, Authorization("NOT_MEMBER", "sender is not a member of the group")
	}

	memberIDs := group.CurrentMemberIDs()
	others := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != senderID {
			others = append(others, id)
		}
	}

	blockedBy, err := r.blocks.BlockedBySet(ctx, senderID, others)
	if err != nil {
		return nil, Internal(err, "failed to check block state")
	}

	recipients := make([]ResolvedRecipient, 0, len(others))
	for _, id := range others {
		recipients = append(recipients, ResolvedRecipient{UserID: id, Blocked: blockedBy[id]})
	}

	return &Resolution{
		Kind:            model.TargetGroup,
		ConversationKey: model.GroupKey(groupID),
		GroupID:         groupID,
		Recipients:      recipients,
		Group:           group,
	}, nil
}

func (r *ConversationResolver) resolveBroadcast(ctx context.Context, senderID, listID string) (*Resolution, error) {
	list, err := r.broadcasts.Get(ctx, listID)
	if err != nil {
		return nil, Internal(err, "failed to load broadcast list")
	}
	if list == nil || !list.IsActive {
		return nil, NotFound("BROADCAST_NOT_FOUND", "broadcast list does not exist")
	}
	if list.OwnerID != senderID {
		return nil, Authorization("NOT_OWNER", "sender does not own the broadcast list")
	}

	summaries, err := r.users.Summaries(ctx, list.MemberIDs)
	if err != nil {
		return nil, Internal(err, "failed to load broadcast members")
	}

	valid := make([]string, 0, len(list.MemberIDs))
	var skipped []string
	for _, id := range list.MemberIDs {
		if _, ok := summaries[id]; !ok || id == senderID {
			skipped = append(skipped, id)
			continue
		}
		valid = append(valid, id)
	}

	blockedBy, err := r.blocks.BlockedBySet(ctx, senderID, valid)
	if err != nil {
		return nil, Internal(err, "failed to check block state")
	}

	recipients := make([]ResolvedRecipient, 0, len(valid))
	reachable := 0
	for _, id := range valid {
		blocked := blockedBy[id]
		if !blocked {
			reachable++
		}
		recipients = append(recipients, ResolvedRecipient{UserID: id, Blocked: blocked})
	}

	// The list must reach at least one member who has not blocked the
	// sender; otherwise the broadcast is invalid.
	if reachable == 0 {
		return nil, Validation("INVALID_BROADCAST", "broadcast list has no reachable members")
	}

	r.logger.Debug("broadcast resolved",
		zap.String("list_id", listID),
		zap.Int("recipients", len(recipients)),
		zap.Int("skipped", len(skipped)),
	)

	return &Resolution{
		Kind:            model.TargetBroadcast,
		ConversationKey: model.BroadcastListKey(listID),
		BroadcastID:     listID,
		Recipients:      recipients,
		Skipped:         skipped,
		Broadcast:       list,
	}, nil
}
