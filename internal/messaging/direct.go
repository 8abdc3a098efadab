package messaging

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/PlaceBound/PB-Backend/internal/core"
	"github.com/PlaceBound/PB-Backend/internal/db"
	"github.com/PlaceBound/PB-Backend/internal/utils"
)

// SendDirect persists a one-to-one message.
func SendDirect(ctx context.Context, senderID, recipientID, content string) (*DirectMessage, error) {
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot message yourself", core.ErrValidation)
	}
	dm := &DirectMessage{
		ID:          utils.GenerateUUID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
	}
	if err := db.DB.WithContext(ctx).Create(dm).Error; err != nil {
		return nil, fmt.Errorf("create direct message: %w", err)
	}
	return dm, nil
}

// Conversation lists all direct messages between the two users, oldest first.
func Conversation(ctx context.Context, userID, otherID string) ([]DirectMessage, error) {
	var dms []DirectMessage
	err := db.DB.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, otherID, otherID, userID).
		Order("created_at, id").
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return dms, nil
}

// UnreadCount returns how many direct messages addressed to the user are
// still unread.
func UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := db.DB.WithContext(ctx).Model(&DirectMessage{}).
		Where("recipient_id = ? AND NOT is_read", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead flags a direct message as read. Only the recipient may do so.
func MarkRead(ctx context.Context, userID, messageID string) error {
	var dm DirectMessage
	err := db.DB.WithContext(ctx).First(&dm, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: direct message %s", core.ErrNotFound, messageID)
	}
	if err != nil {
		return fmt.Errorf("load direct message: %w", err)
	}
	if dm.RecipientID != userID {
		return fmt.Errorf("%w: only the recipient may mark a message read", core.ErrAccessDenied)
	}
	if dm.IsRead {
		return nil
	}
	if err := db.DB.WithContext(ctx).Model(&dm).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
