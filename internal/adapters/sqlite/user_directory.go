package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/titledesk/timeline/internal/adapters/sqlite/gormsqlite"
	"github.com/titledesk/timeline/internal/core/domain"
)

type userModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Handle      string    `gorm:"column:handle;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Active      bool      `gorm:"column:active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (userModel) TableName() string {
	return "users"
}

// UserDirectory reads the local replica of ticket-service user data. The
// timeline never owns user lifecycle; rows land here through sync from the
// ticket service.
type UserDirectory struct {
	db *gormsqlite.DB
}

func NewUserDirectory(db *gormsqlite.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) ByIDs(ctx context.Context, ids []int64) (map[int64]domain.UserRef, error) {
	return d.lookup(ctx, ids, false)
}

func (d *UserDirectory) ActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.UserRef, error) {
	return d.lookup(ctx, ids, true)
}

func (d *UserDirectory) lookup(ctx context.Context, ids []int64, activeOnly bool) (map[int64]domain.UserRef, error) {
	if len(ids) == 0 {
		return map[int64]domain.UserRef{}, nil
	}

	var models []userModel
	err := d.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Where("id IN ?", ids)
		if activeOnly {
			query = query.Where("active = ?", true)
		}
		return query.Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}

	refs := make(map[int64]domain.UserRef, len(models))
	for _, m := range models {
		refs[m.ID] = domain.UserRef{ID: m.ID, Handle: m.Handle, DisplayName: m.DisplayName}
	}
	return refs, nil
}

// loadUserRefs resolves display refs inside an open transaction; shared by
// the event store's read path.
func loadUserRefs(tx *gorm.DB, ids []int64) (map[int64]domain.UserRef, error) {
	if len(ids) == 0 {
		return map[int64]domain.UserRef{}, nil
	}
	var models []userModel
	if err := tx.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("load user refs: %w", err)
	}
	refs := make(map[int64]domain.UserRef, len(models))
	for _, m := range models {
		refs[m.ID] = domain.UserRef{ID: m.ID, Handle: m.Handle, DisplayName: m.DisplayName}
	}
	return refs, nil
}
