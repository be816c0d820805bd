package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
)

// NoteService manages pinned billing/runner notes. Notes are the mutable
// entity; the timeline only sees them through the immutable field-change
// events this service submits on every edit, so no historical row is ever
// rewritten in place.
type NoteService struct {
	notes    ports.NoteRepository
	timeline *TimelineService
}

func NewNoteService(notes ports.NoteRepository, timeline *TimelineService) *NoteService {
	return &NoteService{notes: notes, timeline: timeline}
}

func (s *NoteService) Get(ctx context.Context, ticketID string, kind domain.NoteKind) (domain.TicketNote, error) {
	if err := domain.ValidateTicketID(ticketID); err != nil {
		return domain.TicketNote{}, err
	}
	if !kind.Valid() {
		return domain.TicketNote{}, domain.ErrNotFound
	}
	return s.notes.Get(ctx, ticketID, kind)
}

// Upsert writes the note and appends a field-change event carrying the old
// and new body, like any other form module calling Submit with its own
// diff.
func (s *NoteService) Upsert(ctx context.Context, note domain.TicketNote, requestID string) (domain.TicketNote, domain.ActivityEvent, error) {
	if err := note.Validate(); err != nil {
		return domain.TicketNote{}, domain.ActivityEvent{}, err
	}
	note.UpdatedAt = time.Now().UTC()

	previous, err := s.notes.Upsert(ctx, note)
	if err != nil {
		return domain.TicketNote{}, domain.ActivityEvent{}, fmt.Errorf("upsert note: %w", err)
	}

	events, err := s.timeline.Submit(ctx, SubmitInput{
		TicketID:  note.TicketID,
		RequestID: requestID,
		Entries: []domain.NewEvent{{
			AuthorID: note.AuthorID,
			Kind:     domain.KindFieldChange,
			FieldChange: &domain.FieldChangePayload{
				Field:    "note." + string(note.Kind),
				OldValue: previous.Body,
				NewValue: note.Body,
			},
		}},
	})
	if err != nil {
		return domain.TicketNote{}, domain.ActivityEvent{}, err
	}
	return note, events[0], nil
}
