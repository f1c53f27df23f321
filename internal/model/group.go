package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group represents a group conversation document.
type Group struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Avatar    string             `json:"avatar" bson:"avatar"`
	About     string             `json:"about" bson:"about"`
	CreatedBy string             `json:"createdBy" bson:"created_by"`
	Members   []GroupMember      `json:"members" bson:"members"`
	IsActive  bool               `json:"isActive" bson:"is_active"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

// GroupMember is one membership entry. LeftAt is the member_left boundary:
// once set, the member's feed is capped at that instant.
type GroupMember struct {
	UserID   string     `json:"userId" bson:"user_id"`
	Role     string     `json:"role" bson:"role"`
	JoinedAt time.Time  `json:"joinedAt" bson:"joined_at"`
	LeftAt   *time.Time `json:"leftAt,omitempty" bson:"left_at,omitempty"`
	IsActive bool       `json:"isActive" bson:"is_active"`
}

// Member returns the membership entry for a user, if any.
func (g *Group) Member(userID string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// IsCurrentMember reports whether the user is an active member who has not
// left the group.
func (g *Group) IsCurrentMember(userID string) bool {
	m := g.Member(userID)
	return m != nil && m.IsActive && m.LeftAt == nil
}

// LeftAt returns the member_left boundary for a former member, nil otherwise.
func (g *Group) LeftAt(userID string) *time.Time {
	if m := g.Member(userID); m != nil {
		return m.LeftAt
	}
	return nil
}

// CurrentMemberIDs returns the ids of all current members.
func (g *Group) CurrentMemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for i := range g.Members {
		m := &g.Members[i]
		if m.IsActive && m.LeftAt == nil {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// BroadcastList is a sender-owned distribution list. A send to the list fans
// out one independent message copy per member.
type BroadcastList struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID   string             `json:"ownerId" bson:"owner_id"`
	Name      string             `json:"name" bson:"name"`
	MemberIDs []string           `json:"memberIds" bson:"member_ids"`
	IsActive  bool               `json:"isActive" bson:"is_active"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}
