package messaging

import (
	"time"

	"github.com/lib/pq"
)

// Channel is a message board bound to exactly one area. Names are unique
// within an area; a channel is never reassigned to a different area.
type Channel struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"index:idx_channel_area_name,unique" json:"name"`
	AreaID    string    `gorm:"index:idx_channel_area_name,unique" json:"area_id"`
	CreatedBy string    `json:"created_by"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelMembership grants a user read and post access to a channel. Unique
// per (channel, user).
type ChannelMembership struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ChannelID string    `gorm:"index:idx_membership_channel_user,unique" json:"channel_id"`
	UserID    string    `gorm:"index:idx_membership_channel_user,unique" json:"user_id"`
	IsAdmin   bool      `json:"is_admin"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Message is an append-only post in a channel. Edits may change content and
// flags but never author or channel. RestrictedToNames narrows the audience
// to members whose display name appears in the list; empty means all members.
type Message struct {
	ID                string         `gorm:"primaryKey" json:"id"`
	ChannelID         string         `gorm:"index" json:"channel_id"`
	AuthorID          string         `json:"-"`
	Content           string         `json:"content"`
	IsAnonymous       bool           `gorm:"default:true" json:"is_anonymous"`
	ContainsPII       bool           `json:"contains_pii"`
	RestrictedToNames pq.StringArray `gorm:"type:text[]" json:"restricted_to_names"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// MessageReaction is unique per (message, user, kind); added and removed,
// never edited in place.
type MessageReaction struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"index:idx_reaction_message_user_kind,unique" json:"message_id"`
	UserID    string    `gorm:"index:idx_reaction_message_user_kind,unique" json:"user_id"`
	Kind      string    `gorm:"index:idx_reaction_message_user_kind,unique" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectMessage is a one-to-one message outside any channel.
type DirectMessage struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	SenderID    string    `gorm:"index" json:"sender_id"`
	RecipientID string    `gorm:"index" json:"recipient_id"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Channel) TableName() string           { return "messaging.channels" }
func (ChannelMembership) TableName() string { return "messaging.channel_memberships" }
func (Message) TableName() string           { return "messaging.messages" }
func (MessageReaction) TableName() string   { return "messaging.message_reactions" }
func (DirectMessage) TableName() string     { return "messaging.direct_messages" }
