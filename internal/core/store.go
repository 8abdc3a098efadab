package core

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/PlaceBound/PB-Backend/internal/db"
)

// CreateArea validates and persists a new area. The caller is responsible for
// inserting it into (or reloading) any live index afterwards.
func CreateArea(ctx context.Context, a *Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := db.DB.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create area: %w", err)
	}
	return nil
}

// DeleteArea removes an area and everything hanging off it: visit records,
// channels, and through the channels their memberships, messages, and
// reactions. Runs in one transaction; a live index picks up the change on its
// next generation.
func DeleteArea(ctx context.Context, areaID string) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Area
		if err := tx.First(&a, "id = ?", areaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: area %s", ErrNotFound, areaID)
			}
			return fmt.Errorf("load area: %w", err)
		}

		var channelIDs []string
		if err := tx.Table("messaging.channels").Where("area_id = ?", areaID).
			Pluck("id", &channelIDs).Error; err != nil {
			return fmt.Errorf("list channels: %w", err)
		}
		if len(channelIDs) > 0 {
			var messageIDs []string
			if err := tx.Table("messaging.messages").Where("channel_id IN ?", channelIDs).
				Pluck("id", &messageIDs).Error; err != nil {
				return fmt.Errorf("list messages: %w", err)
			}
			if len(messageIDs) > 0 {
				if err := tx.Exec("DELETE FROM messaging.message_reactions WHERE message_id IN ?", messageIDs).Error; err != nil {
					return fmt.Errorf("delete reactions: %w", err)
				}
			}
			if err := tx.Exec("DELETE FROM messaging.messages WHERE channel_id IN ?", channelIDs).Error; err != nil {
				return fmt.Errorf("delete messages: %w", err)
			}
			if err := tx.Exec("DELETE FROM messaging.channel_memberships WHERE channel_id IN ?", channelIDs).Error; err != nil {
				return fmt.Errorf("delete memberships: %w", err)
			}
			if err := tx.Exec("DELETE FROM messaging.channels WHERE area_id = ?", areaID).Error; err != nil {
				return fmt.Errorf("delete channels: %w", err)
			}
		}
		if err := tx.Where("area_id = ?", areaID).Delete(&VisitRecord{}).Error; err != nil {
			return fmt.Errorf("delete visit records: %w", err)
		}
		if err := tx.Delete(&a).Error; err != nil {
			return fmt.Errorf("delete area: %w", err)
		}
		return nil
	})
}

// LoadAreas reads every stored area for an index rebuild.
func LoadAreas(ctx context.Context) ([]*Area, error) {
	var areas []*Area
	if err := db.DB.WithContext(ctx).Order("id").Find(&areas).Error; err != nil {
		return nil, fmt.Errorf("load areas: %w", err)
	}
	return areas, nil
}

// RebuildIndex loads all stored areas and swaps them into ix as a new
// generation. Malformed stored rows are skipped inside Load.
func RebuildIndex(ctx context.Context, ix *SpatioTemporalIndex) error {
	areas, err := LoadAreas(ctx)
	if err != nil {
		return err
	}
	ix.Load(areas)
	return nil
}

// RecordVisit persists a visit fact. A duplicate (user, area, year, month)
// tuple fails with ErrValidation; an unknown area with ErrNotFound.
func RecordVisit(ctx context.Context, v *VisitRecord) error {
	d := db.DB.WithContext(ctx)

	var count int64
	if err := d.Model(&Area{}).Where("id = ?", v.AreaID).Count(&count).Error; err != nil {
		return fmt.Errorf("check area: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: area %s", ErrNotFound, v.AreaID)
	}

	dup := d.Model(&VisitRecord{}).
		Where("user_id = ? AND area_id = ? AND visited_year = ?", v.UserID, v.AreaID, v.VisitedYear)
	if v.VisitedMonth == nil {
		dup = dup.Where("visited_month IS NULL")
	} else {
		dup = dup.Where("visited_month = ?", *v.VisitedMonth)
	}
	if err := dup.Count(&count).Error; err != nil {
		return fmt.Errorf("check duplicate visit: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: visit already recorded", ErrValidation)
	}

	if err := d.Create(v).Error; err != nil {
		// The unique (user, area, year, month) index closes the race the
		// duplicate check above cannot.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: visit already recorded", ErrValidation)
		}
		return fmt.Errorf("create visit: %w", err)
	}
	return nil
}

// DeleteVisit removes a visit fact. Visits are facts: created and deleted,
// never edited.
func DeleteVisit(ctx context.Context, userID, visitID string) error {
	res := db.DB.WithContext(ctx).Where("id = ? AND user_id = ?", visitID, userID).Delete(&VisitRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete visit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: visit %s", ErrNotFound, visitID)
	}
	return nil
}

// VisitsByUser lists a user's visit facts, newest year first.
func VisitsByUser(ctx context.Context, userID string) ([]VisitRecord, error) {
	var visits []VisitRecord
	err := db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("visited_year DESC, visited_month DESC NULLS LAST").
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("visits by user: %w", err)
	}
	return visits, nil
}

// VisitsByArea lists one user's visits to one area.
func VisitsByArea(ctx context.Context, userID, areaID string) ([]VisitRecord, error) {
	var visits []VisitRecord
	err := db.DB.WithContext(ctx).
		Where("user_id = ? AND area_id = ?", userID, areaID).
		Order("visited_year, visited_month").
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("visits by area: %w", err)
	}
	return visits, nil
}
