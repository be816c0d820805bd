package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/titledesk/timeline/internal/adapters/sqlite/gormsqlite"
	"github.com/titledesk/timeline/internal/core/domain"
)

type eventModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TicketID    string    `gorm:"column:ticket_id;not null"`
	AuthorID    *int64    `gorm:"column:author_id"`
	Kind        string    `gorm:"column:kind;not null"`
	Payload     string    `gorm:"column:payload;not null"`
	FormContext string    `gorm:"column:form_context;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (eventModel) TableName() string {
	return "timeline_events"
}

type mentionModel struct {
	EventID int64 `gorm:"column:event_id;primaryKey"`
	UserID  int64 `gorm:"column:user_id;primaryKey"`
}

func (mentionModel) TableName() string {
	return "timeline_mentions"
}

// Storage shapes for the per-kind payload column. Read-time display data
// (mention refs, assignee refs) is never persisted.
type commentColumn struct {
	Text string `json:"text"`
}

type fieldChangeColumn struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

type lifecycleColumn struct {
	Action string `json:"action"`
}

type autoUpdateColumn struct {
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
}

// EventStore is the SQLite-backed activity log. The id column is
// AUTOINCREMENT, so ids strictly increase store-wide and are never reused,
// which is what makes them usable as the sole pagination cursor.
type EventStore struct {
	db *gormsqlite.DB
}

func NewEventStore(db *gormsqlite.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, ticketID string, entries []domain.NewEvent) ([]domain.ActivityEvent, error) {
	if err := domain.ValidateTicketID(ticketID); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrInvalidEvent
	}

	var result []domain.ActivityEvent
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		now := time.Now().UTC()
		result = make([]domain.ActivityEvent, 0, len(entries))

		for _, entry := range entries {
			payload, err := encodePayload(entry)
			if err != nil {
				return err
			}

			model := eventModel{
				TicketID:    ticketID,
				AuthorID:    entry.AuthorID,
				Kind:        string(entry.Kind),
				Payload:     payload,
				FormContext: entry.FormContext,
				CreatedAt:   now,
			}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("insert event: %w", err)
			}

			event := domain.ActivityEvent{
				ID:          model.ID,
				TicketID:    ticketID,
				AuthorID:    entry.AuthorID,
				Kind:        entry.Kind,
				FormContext: entry.FormContext,
				CreatedAt:   now,
				Comment:     entry.Comment,
				FieldChange: entry.FieldChange,
				Lifecycle:   entry.Lifecycle,
				AutoUpdate:  entry.AutoUpdate,
			}

			if entry.Kind == domain.KindComment {
				for _, m := range entry.Comment.Mentions {
					row := mentionModel{EventID: model.ID, UserID: m.ID}
					if err := tx.Create(&row).Error; err != nil {
						return fmt.Errorf("insert mention: %w", err)
					}
				}
			}

			if entry.AuthorID != nil {
				refs, err := loadUserRefs(tx.DB, []int64{*entry.AuthorID})
				if err != nil {
					return err
				}
				if ref, ok := refs[*entry.AuthorID]; ok {
					event.Author = &ref
				}
			}

			result = append(result, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *EventStore) FetchWindow(ctx context.Context, ticketID string, w domain.Window) ([]domain.ActivityEvent, error) {
	if err := domain.ValidateTicketID(ticketID); err != nil {
		return nil, err
	}
	if w.Empty() {
		return []domain.ActivityEvent{}, nil
	}

	var events []domain.ActivityEvent
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&eventModel{}).
			Where("ticket_id = ? AND id >= ?", ticketID, w.Lower)
		if !w.Unbounded() {
			query = query.Where("id <= ?", w.Upper)
		}

		var models []eventModel
		if err := query.Order("id DESC").Find(&models).Error; err != nil {
			return fmt.Errorf("fetch window: %w", err)
		}

		var err error
		events, err = s.resolve(tx.DB, models, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventStore) FetchByIDs(ctx context.Context, ticketID string, ids []int64) ([]domain.ActivityEvent, error) {
	if err := domain.ValidateTicketID(ticketID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.ErrInvalidWindow
	}

	unique := make(map[int64]bool, len(ids))
	for _, id := range ids {
		unique[id] = true
	}

	var events []domain.ActivityEvent
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		var models []eventModel
		if err := tx.Where("id IN ?", ids).Order("id DESC").Find(&models).Error; err != nil {
			return fmt.Errorf("fetch by ids: %w", err)
		}
		if len(models) != len(unique) {
			return domain.ErrInvalidWindow
		}
		for _, m := range models {
			if m.TicketID != ticketID {
				return domain.ErrInvalidWindow
			}
		}

		var err error
		events, err = s.resolve(tx.DB, models, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventStore) CommentIDsPage(ctx context.Context, ticketID string, limit, offset int) ([]int64, error) {
	var ids []int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&eventModel{}).
			Where("ticket_id = ? AND kind = ?", ticketID, string(domain.KindComment)).
			Order("id DESC").
			Limit(limit).
			Offset(offset).
			Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("comment ids page: %w", err)
	}
	return ids, nil
}

func (s *EventStore) CommentIDsBefore(ctx context.Context, ticketID string, beforeID int64, limit int) ([]int64, error) {
	var ids []int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&eventModel{}).
			Where("ticket_id = ? AND kind = ? AND id < ?", ticketID, string(domain.KindComment), beforeID).
			Order("id DESC").
			Limit(limit).
			Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("comment ids before: %w", err)
	}
	return ids, nil
}

func (s *EventStore) CommentsPage(ctx context.Context, ticketID string, limit, offset int) ([]domain.ActivityEvent, error) {
	var events []domain.ActivityEvent
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		var models []eventModel
		err := tx.Where("ticket_id = ? AND kind = ?", ticketID, string(domain.KindComment)).
			Order("id DESC").
			Limit(limit).
			Offset(offset).
			Find(&models).Error
		if err != nil {
			return fmt.Errorf("comments page: %w", err)
		}
		events, err = s.resolve(tx.DB, models, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventStore) FirstEventID(ctx context.Context, ticketID string) (int64, bool, error) {
	return s.firstID(ctx, ticketID, "")
}

func (s *EventStore) FirstCommentID(ctx context.Context, ticketID string) (int64, bool, error) {
	return s.firstID(ctx, ticketID, string(domain.KindComment))
}

func (s *EventStore) firstID(ctx context.Context, ticketID, kind string) (int64, bool, error) {
	var ids []int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&eventModel{}).Where("ticket_id = ?", ticketID)
		if kind != "" {
			query = query.Where("kind = ?", kind)
		}
		return query.Order("id ASC").Limit(1).Pluck("id", &ids).Error
	})
	if err != nil {
		return 0, false, fmt.Errorf("first event id: %w", err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (s *EventStore) CountComments(ctx context.Context, ticketID string) (int, error) {
	var count int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&eventModel{}).
			Where("ticket_id = ? AND kind = ?", ticketID, string(domain.KindComment)).
			Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return int(count), nil
}

// resolve decodes payload columns and attaches author and mention display
// data. When withAssignee is set, assignee field changes additionally get
// current display refs for the user ids they carry.
func (s *EventStore) resolve(tx *gorm.DB, models []eventModel, withAssignee bool) ([]domain.ActivityEvent, error) {
	events := make([]domain.ActivityEvent, 0, len(models))

	var commentIDs []int64
	userIDs := make(map[int64]bool)
	for _, m := range models {
		if m.AuthorID != nil {
			userIDs[*m.AuthorID] = true
		}
		if m.Kind == string(domain.KindComment) {
			commentIDs = append(commentIDs, m.ID)
		}
	}

	mentionsByEvent := make(map[int64][]int64)
	if len(commentIDs) > 0 {
		var rows []mentionModel
		if err := tx.Where("event_id IN ?", commentIDs).Order("user_id ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load mentions: %w", err)
		}
		for _, row := range rows {
			mentionsByEvent[row.EventID] = append(mentionsByEvent[row.EventID], row.UserID)
			userIDs[row.UserID] = true
		}
	}

	for _, m := range models {
		event, assignees, err := decodeEvent(m, withAssignee)
		if err != nil {
			return nil, err
		}
		for _, id := range assignees {
			userIDs[id] = true
		}
		events = append(events, event)
	}

	refs, err := loadUserRefs(tx, keys(userIDs))
	if err != nil {
		return nil, err
	}

	for i := range events {
		if events[i].AuthorID != nil {
			if ref, ok := refs[*events[i].AuthorID]; ok {
				events[i].Author = &ref
			}
		}
		if events[i].Comment != nil {
			for _, userID := range mentionsByEvent[events[i].ID] {
				ref, ok := refs[userID]
				if !ok {
					ref = domain.UserRef{ID: userID}
				}
				events[i].Comment.Mentions = append(events[i].Comment.Mentions, domain.MentionedUser{
					ID:          ref.ID,
					Handle:      ref.Handle,
					DisplayName: ref.DisplayName,
				})
			}
		}
		if withAssignee && events[i].FieldChange != nil && events[i].FieldChange.Field == domain.FieldAssignee {
			attachAssigneeRefs(events[i].FieldChange, refs)
		}
	}

	return events, nil
}

func decodeEvent(m eventModel, withAssignee bool) (domain.ActivityEvent, []int64, error) {
	event := domain.ActivityEvent{
		ID:          m.ID,
		TicketID:    m.TicketID,
		AuthorID:    m.AuthorID,
		Kind:        domain.EventKind(m.Kind),
		FormContext: m.FormContext,
		CreatedAt:   m.CreatedAt,
	}

	var assignees []int64
	switch event.Kind {
	case domain.KindComment:
		var col commentColumn
		if err := json.Unmarshal([]byte(m.Payload), &col); err != nil {
			return domain.ActivityEvent{}, nil, fmt.Errorf("decode comment payload %d: %w", m.ID, err)
		}
		event.Comment = &domain.CommentPayload{Text: col.Text}
	case domain.KindFieldChange:
		var col fieldChangeColumn
		if err := json.Unmarshal([]byte(m.Payload), &col); err != nil {
			return domain.ActivityEvent{}, nil, fmt.Errorf("decode field change payload %d: %w", m.ID, err)
		}
		event.FieldChange = &domain.FieldChangePayload{
			Field:    col.Field,
			OldValue: col.OldValue,
			NewValue: col.NewValue,
		}
		if withAssignee && col.Field == domain.FieldAssignee {
			for _, v := range []string{col.OldValue, col.NewValue} {
				if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
					assignees = append(assignees, id)
				}
			}
		}
	case domain.KindLifecycle:
		var col lifecycleColumn
		if err := json.Unmarshal([]byte(m.Payload), &col); err != nil {
			return domain.ActivityEvent{}, nil, fmt.Errorf("decode lifecycle payload %d: %w", m.ID, err)
		}
		event.Lifecycle = &domain.LifecyclePayload{Action: col.Action}
	case domain.KindAutoUpdate:
		var col autoUpdateColumn
		if err := json.Unmarshal([]byte(m.Payload), &col); err != nil {
			return domain.ActivityEvent{}, nil, fmt.Errorf("decode auto update payload %d: %w", m.ID, err)
		}
		event.AutoUpdate = &domain.AutoUpdatePayload{Field: col.Field, NewValue: col.NewValue}
	default:
		return domain.ActivityEvent{}, nil, fmt.Errorf("unknown event kind %q for id %d", m.Kind, m.ID)
	}

	return event, assignees, nil
}

func attachAssigneeRefs(fc *domain.FieldChangePayload, refs map[int64]domain.UserRef) {
	if id, err := strconv.ParseInt(fc.OldValue, 10, 64); err == nil {
		if ref, ok := refs[id]; ok {
			fc.OldAssignee = &ref
		}
	}
	if id, err := strconv.ParseInt(fc.NewValue, 10, 64); err == nil {
		if ref, ok := refs[id]; ok {
			fc.NewAssignee = &ref
		}
	}
}

func encodePayload(entry domain.NewEvent) (string, error) {
	var (
		data []byte
		err  error
	)
	switch entry.Kind {
	case domain.KindComment:
		data, err = json.Marshal(commentColumn{Text: entry.Comment.Text})
	case domain.KindFieldChange:
		data, err = json.Marshal(fieldChangeColumn{
			Field:    entry.FieldChange.Field,
			OldValue: entry.FieldChange.OldValue,
			NewValue: entry.FieldChange.NewValue,
		})
	case domain.KindLifecycle:
		data, err = json.Marshal(lifecycleColumn{Action: entry.Lifecycle.Action})
	case domain.KindAutoUpdate:
		data, err = json.Marshal(autoUpdateColumn{Field: entry.AutoUpdate.Field, NewValue: entry.AutoUpdate.NewValue})
	default:
		return "", domain.ErrInvalidEvent
	}
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

func keys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
