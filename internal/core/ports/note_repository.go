package ports

import (
	"context"

	"github.com/titledesk/timeline/internal/core/domain"
)

// NoteRepository stores pinned ticket notes, the one mutable entity around
// the timeline. The activity log never mutates: each note edit is recorded
// as a fresh field-change event submitted by NoteService.
type NoteRepository interface {
	Get(ctx context.Context, ticketID string, kind domain.NoteKind) (domain.TicketNote, error)

	// Upsert writes the note and returns the previous version, zero when
	// the note did not exist yet.
	Upsert(ctx context.Context, note domain.TicketNote) (domain.TicketNote, error)
}
