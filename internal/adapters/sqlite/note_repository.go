package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/titledesk/timeline/internal/adapters/sqlite/gormsqlite"
	"github.com/titledesk/timeline/internal/core/domain"
)

type noteModel struct {
	TicketID  string    `gorm:"column:ticket_id;primaryKey"`
	Kind      string    `gorm:"column:kind;primaryKey"`
	Body      string    `gorm:"column:body;not null"`
	AuthorID  *int64    `gorm:"column:author_id"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (noteModel) TableName() string {
	return "ticket_notes"
}

type NoteRepository struct {
	db *gormsqlite.DB
}

func NewNoteRepository(db *gormsqlite.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Get(ctx context.Context, ticketID string, kind domain.NoteKind) (domain.TicketNote, error) {
	var model noteModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("ticket_id = ? AND kind = ?", ticketID, string(kind)).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TicketNote{}, domain.ErrNotFound
		}
		return domain.TicketNote{}, fmt.Errorf("get note: %w", err)
	}
	return toNote(model), nil
}

func (r *NoteRepository) Upsert(ctx context.Context, note domain.TicketNote) (domain.TicketNote, error) {
	var previous domain.TicketNote
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var existing noteModel
		err := tx.Where("ticket_id = ? AND kind = ?", note.TicketID, string(note.Kind)).First(&existing).Error
		switch {
		case err == nil:
			previous = toNote(existing)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("load existing note: %w", err)
		}

		model := noteModel{
			TicketID:  note.TicketID,
			Kind:      string(note.Kind),
			Body:      note.Body,
			AuthorID:  note.AuthorID,
			UpdatedAt: note.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticket_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "author_id", "updated_at"}),
		}).Create(&model).Error; err != nil {
			return fmt.Errorf("upsert note: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.TicketNote{}, err
	}
	return previous, nil
}

func toNote(model noteModel) domain.TicketNote {
	return domain.TicketNote{
		TicketID:  model.TicketID,
		Kind:      domain.NoteKind(model.Kind),
		Body:      model.Body,
		AuthorID:  model.AuthorID,
		UpdatedAt: model.UpdatedAt,
	}
}
