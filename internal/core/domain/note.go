package domain

import (
	"errors"
	"time"
)

// NoteKind selects one of the pinned note slots a ticket carries.
type NoteKind string

const (
	NoteBilling NoteKind = "billing"
	NoteRunner  NoteKind = "runner"
)

func (k NoteKind) Valid() bool {
	return k == NoteBilling || k == NoteRunner
}

// TicketNote is a pinned, editable note attached to a ticket. It lives
// outside the activity log: edits mutate this row and append an immutable
// field-change event, so no historical timeline row is ever rewritten.
type TicketNote struct {
	TicketID  string    `json:"ticket_id"`
	Kind      NoteKind  `json:"kind"`
	Body      string    `json:"body"`
	AuthorID  *int64    `json:"author_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n TicketNote) Validate() error {
	if err := ValidateTicketID(n.TicketID); err != nil {
		return err
	}
	if !n.Kind.Valid() {
		return errors.New("invalid note kind")
	}
	return nil
}
