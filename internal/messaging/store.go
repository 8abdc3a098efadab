package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/PlaceBound/PB-Backend/internal/core"
	"github.com/PlaceBound/PB-Backend/internal/db"
	"github.com/PlaceBound/PB-Backend/internal/utils"
)

// CreateChannel persists a channel and the implicit admin membership for its
// creator in one transaction. A name collision within the area fails with
// ErrValidation, an unknown area with ErrNotFound.
func CreateChannel(ctx context.Context, areaID, name, createdBy string, isPrivate bool) (*Channel, error) {
	ch := &Channel{
		ID:        utils.GenerateUUID(),
		Name:      name,
		AreaID:    areaID,
		CreatedBy: createdBy,
		IsPrivate: isPrivate,
	}
	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table("core.areas").Where("id = ?", areaID).Count(&count).Error; err != nil {
			return fmt.Errorf("check area: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: area %s", core.ErrNotFound, areaID)
		}

		if err := tx.Model(&Channel{}).
			Where("area_id = ? AND name = ?", areaID, name).Count(&count).Error; err != nil {
			return fmt.Errorf("check channel name: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: channel %q already exists in area %s", core.ErrValidation, name, areaID)
		}

		if err := tx.Create(ch).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: channel %q already exists in area %s", core.ErrValidation, name, areaID)
			}
			return fmt.Errorf("create channel: %w", err)
		}
		// Creator joins as admin automatically.
		member := &ChannelMembership{
			ID:        utils.GenerateUUID(),
			ChannelID: ch.ID,
			UserID:    createdBy,
			IsAdmin:   true,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("create admin membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Join adds the user to a public channel. Joining a private channel is
// refused with ErrAccessDenied; private channels are entered only through an
// admin invitation. Double-joining fails with ErrValidation.
func Join(ctx context.Context, channelID, userID string) (*ChannelMembership, error) {
	ch, err := getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.IsPrivate {
		return nil, fmt.Errorf("%w: channel %s is private", core.ErrAccessDenied, channelID)
	}
	return addMember(ctx, channelID, userID, false)
}

// Invite lets an admin member add a user to a channel, which is the only way
// into a private channel.
func Invite(ctx context.Context, channelID, adminID, userID string) (*ChannelMembership, error) {
	if _, err := getChannel(ctx, channelID); err != nil {
		return nil, err
	}
	admin, err := getMembership(ctx, channelID, adminID)
	if err != nil {
		return nil, fmt.Errorf("%w: inviter is not a member of channel %s", core.ErrAccessDenied, channelID)
	}
	if !admin.IsAdmin {
		return nil, fmt.Errorf("%w: only admins may invite", core.ErrAccessDenied)
	}
	return addMember(ctx, channelID, userID, false)
}

// Leave removes the user's membership. Not being a member fails with
// ErrNotFound. The last admin cannot leave while other members remain.
func Leave(ctx context.Context, channelID, userID string) error {
	member, err := getMembership(ctx, channelID, userID)
	if err != nil {
		return err
	}

	d := db.DB.WithContext(ctx)
	if member.IsAdmin {
		var admins, members int64
		if err := d.Model(&ChannelMembership{}).
			Where("channel_id = ? AND is_admin", channelID).Count(&admins).Error; err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if err := d.Model(&ChannelMembership{}).
			Where("channel_id = ?", channelID).Count(&members).Error; err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		if admins == 1 && members > 1 {
			return fmt.Errorf("%w: last admin cannot leave a channel with members", core.ErrValidation)
		}
	}

	if err := d.Delete(member).Error; err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// PostMessage appends a message. Posting requires membership.
func PostMessage(ctx context.Context, channelID, authorID, content string, isAnonymous, containsPII bool, restrictedTo []string) (*Message, error) {
	if _, err := getChannel(ctx, channelID); err != nil {
		return nil, err
	}
	if _, err := getMembership(ctx, channelID, authorID); err != nil {
		return nil, fmt.Errorf("%w: posting requires membership in channel %s", core.ErrAccessDenied, channelID)
	}

	m := &Message{
		ID:                utils.GenerateUUID(),
		ChannelID:         channelID,
		AuthorID:          authorID,
		Content:           content,
		IsAnonymous:       isAnonymous,
		ContainsPII:       containsPII,
		RestrictedToNames: restrictedTo,
	}
	if err := db.DB.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// EditMessage updates content and flags of the author's own message. Author
// and channel never change.
func EditMessage(ctx context.Context, messageID, authorID string, content *string, isAnonymous, containsPII *bool, restrictedTo []string) error {
	var m Message
	err := db.DB.WithContext(ctx).First(&m, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: message %s", core.ErrNotFound, messageID)
	}
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if m.AuthorID != authorID {
		return fmt.Errorf("%w: only the author may edit", core.ErrAccessDenied)
	}

	updates := map[string]any{}
	if content != nil {
		updates["content"] = *content
	}
	if isAnonymous != nil {
		updates["is_anonymous"] = *isAnonymous
	}
	if containsPII != nil {
		updates["contains_pii"] = *containsPII
	}
	if restrictedTo != nil {
		updates["restricted_to_names"] = pq.StringArray(restrictedTo)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := db.DB.WithContext(ctx).Model(&m).Updates(updates).Error; err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// ToggleReaction adds the (message, user, kind) reaction, or removes it when
// it already exists. Unknown kinds fail with ErrValidation; reacting requires
// membership in the message's channel.
func ToggleReaction(ctx context.Context, messageID, userID, kind string) (added bool, err error) {
	if !validKind(kind) {
		return false, fmt.Errorf("%w: unknown reaction kind %q", core.ErrValidation, kind)
	}

	d := db.DB.WithContext(ctx)
	var m Message
	err = d.First(&m, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("%w: message %s", core.ErrNotFound, messageID)
	}
	if err != nil {
		return false, fmt.Errorf("load message: %w", err)
	}
	if _, err := getMembership(ctx, m.ChannelID, userID); err != nil {
		return false, fmt.Errorf("%w: reacting requires membership in channel %s", core.ErrAccessDenied, m.ChannelID)
	}

	var existing MessageReaction
	err = d.Where("message_id = ? AND user_id = ? AND kind = ?", messageID, userID, kind).
		First(&existing).Error
	if err == nil {
		if err := d.Delete(&existing).Error; err != nil {
			return false, fmt.Errorf("remove reaction: %w", err)
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("check reaction: %w", err)
	}

	re := &MessageReaction{
		ID:        utils.GenerateUUID(),
		MessageID: messageID,
		UserID:    userID,
		Kind:      kind,
	}
	if err := d.Create(re).Error; err != nil {
		// Concurrent toggles can both miss the lookup; the unique
		// (message, user, kind) index keeps the triple single.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, fmt.Errorf("%w: reaction already present", core.ErrValidation)
		}
		return false, fmt.Errorf("create reaction: %w", err)
	}
	return true, nil
}

// ChannelsByMember lists channels the user belongs to.
func ChannelsByMember(ctx context.Context, userID string) ([]Channel, error) {
	var channels []Channel
	err := db.DB.WithContext(ctx).
		Joins("JOIN messaging.channel_memberships cm ON cm.channel_id = channels.id").
		Where("cm.user_id = ?", userID).
		Order("channels.created_at").
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("channels by member: %w", err)
	}
	return channels, nil
}

// LoadChannelSnapshot assembles the immutable read state for one channel:
// memberships, display names, messages, and reactions, keyed by identifier
// for the resolver.
func LoadChannelSnapshot(ctx context.Context, channelID string) (*ChannelSnapshot, error) {
	ch, err := getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	d := db.DB.WithContext(ctx)

	var memberships []*ChannelMembership
	if err := d.Where("channel_id = ?", channelID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	var messages []*Message
	if err := d.Where("channel_id = ?", channelID).Order("created_at, id").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	snap := &ChannelSnapshot{
		Channel:      ch,
		Members:      make(map[string]*ChannelMembership, len(memberships)),
		DisplayNames: make(map[string]string),
		Messages:     messages,
		Reactions:    make(map[string][]*MessageReaction),
	}
	for _, m := range memberships {
		snap.Members[m.UserID] = m
	}

	// Display names for members and all message authors (authors may have
	// left the channel; their name is still needed for disclosure).
	userIDs := make([]string, 0, len(memberships)+len(messages))
	for _, m := range memberships {
		userIDs = append(userIDs, m.UserID)
	}
	for _, msg := range messages {
		userIDs = append(userIDs, msg.AuthorID)
	}
	var users []core.User
	if len(userIDs) > 0 {
		if err := d.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
	}
	for i := range users {
		snap.DisplayNames[users[i].ID] = users[i].DisplayName()
	}

	if len(messages) > 0 {
		messageIDs := make([]string, 0, len(messages))
		for _, m := range messages {
			messageIDs = append(messageIDs, m.ID)
		}
		var reacts []*MessageReaction
		if err := d.Where("message_id IN ?", messageIDs).Find(&reacts).Error; err != nil {
			return nil, fmt.Errorf("load reactions: %w", err)
		}
		for _, re := range reacts {
			snap.Reactions[re.MessageID] = append(snap.Reactions[re.MessageID], re)
		}
	}
	return snap, nil
}

// ListVisible is the store-backed entry point for message listing: it
// assembles the channel snapshot and resolves visibility for the requester.
func ListVisible(ctx context.Context, requesterID, channelID string) ([]VisibleMessage, error) {
	snap, err := LoadChannelSnapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return NewResolver(snap).ListVisibleMessages(requesterID, channelID)
}

// ResolveReactionTally aggregates reaction counts for one message from the
// stored state, regardless of requester.
func ResolveReactionTally(ctx context.Context, messageID string) (map[string]int, error) {
	var m Message
	err := db.DB.WithContext(ctx).First(&m, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: message %s", core.ErrNotFound, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	snap, err := LoadChannelSnapshot(ctx, m.ChannelID)
	if err != nil {
		return nil, err
	}
	return NewResolver(snap).ReactionTally(messageID)
}

func getChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	err := db.DB.WithContext(ctx).First(&ch, "id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: channel %s", core.ErrNotFound, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	return &ch, nil
}

func getMembership(ctx context.Context, channelID, userID string) (*ChannelMembership, error) {
	var m ChannelMembership
	err := db.DB.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s is not a member of channel %s", core.ErrNotFound, userID, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &m, nil
}

func addMember(ctx context.Context, channelID, userID string, isAdmin bool) (*ChannelMembership, error) {
	d := db.DB.WithContext(ctx)
	var count int64
	if err := d.Model(&ChannelMembership{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: already a member of channel %s", core.ErrValidation, channelID)
	}
	m := &ChannelMembership{
		ID:        utils.GenerateUUID(),
		ChannelID: channelID,
		UserID:    userID,
		IsAdmin:   isAdmin,
	}
	if err := d.Create(m).Error; err != nil {
		// The unique (channel, user) index closes the race the count check
		// above cannot.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: already a member of channel %s", core.ErrValidation, channelID)
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return m, nil
}
