package domain

import (
	"errors"
	"math"
	"regexp"
	"time"
)

var (
	ErrInvalidTicketID = errors.New("invalid ticket id")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidWindow   = errors.New("invalid window")
	ErrNotFound        = errors.New("not found")
)

var ticketIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

func ValidateTicketID(id string) error {
	if id == "" || !ticketIDPattern.MatchString(id) {
		return ErrInvalidTicketID
	}
	return nil
}

// EventKind discriminates the ActivityEvent union.
type EventKind string

const (
	KindComment     EventKind = "comment"
	KindFieldChange EventKind = "field_change"
	KindLifecycle   EventKind = "lifecycle"
	KindAutoUpdate  EventKind = "auto_update"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindComment, KindFieldChange, KindLifecycle, KindAutoUpdate:
		return true
	}
	return false
}

// FieldAssignee is the one field-change whose old/new values are raw user
// ids; FetchByIDs resolves current display data for them on read.
const FieldAssignee = "assignee"

type CommentPayload struct {
	Text     string          `json:"text"`
	Mentions []MentionedUser `json:"mentions,omitempty"`
}

type FieldChangePayload struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`

	// Display data for the referenced users when Field == FieldAssignee,
	// resolved at read time and never persisted.
	OldAssignee *UserRef `json:"old_assignee,omitempty"`
	NewAssignee *UserRef `json:"new_assignee,omitempty"`
}

type LifecyclePayload struct {
	Action string `json:"action"`
}

type AutoUpdatePayload struct {
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
}

// ActivityEvent is one immutable row in a ticket's activity timeline.
// ID is assigned by the store and strictly increases store-wide, never per
// ticket; it is the only cursor key used for pagination. Exactly one payload
// pointer is set, matching Kind. AuthorID is nil for automated events.
type ActivityEvent struct {
	ID          int64     `json:"id"`
	TicketID    string    `json:"ticket_id"`
	AuthorID    *int64    `json:"author_id,omitempty"`
	Author      *UserRef  `json:"author,omitempty"`
	Kind        EventKind `json:"kind"`
	FormContext string    `json:"form_context,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Comment     *CommentPayload     `json:"comment,omitempty"`
	FieldChange *FieldChangePayload `json:"field_change,omitempty"`
	Lifecycle   *LifecyclePayload   `json:"lifecycle,omitempty"`
	AutoUpdate  *AutoUpdatePayload  `json:"auto_update,omitempty"`
}

func (e ActivityEvent) IsComment() bool {
	return e.Kind == KindComment
}

// NewEvent is the append-side input: everything an ActivityEvent carries
// except the store-assigned fields. MentionCandidates is the caller's
// claimed mention list for comments; the resolver re-derives the final set
// from the comment text and never trusts it blindly.
type NewEvent struct {
	AuthorID    *int64
	Kind        EventKind
	FormContext string

	Comment     *CommentPayload
	FieldChange *FieldChangePayload
	Lifecycle   *LifecyclePayload
	AutoUpdate  *AutoUpdatePayload

	MentionCandidates []int64
}

func (e NewEvent) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidEvent
	}
	set := 0
	if e.Comment != nil {
		set++
	}
	if e.FieldChange != nil {
		set++
	}
	if e.Lifecycle != nil {
		set++
	}
	if e.AutoUpdate != nil {
		set++
	}
	if set != 1 {
		return ErrInvalidEvent
	}
	switch e.Kind {
	case KindComment:
		if e.Comment == nil || e.Comment.Text == "" {
			return ErrInvalidEvent
		}
	case KindFieldChange:
		if e.FieldChange == nil || e.FieldChange.Field == "" {
			return ErrInvalidEvent
		}
	case KindLifecycle:
		if e.Lifecycle == nil || e.Lifecycle.Action == "" {
			return ErrInvalidEvent
		}
	case KindAutoUpdate:
		if e.AutoUpdate == nil || e.AutoUpdate.Field == "" {
			return ErrInvalidEvent
		}
	}
	if e.Kind != KindComment && len(e.MentionCandidates) > 0 {
		return ErrInvalidEvent
	}
	return nil
}

// UnboundedUpper marks a window with no upper bound.
const UnboundedUpper int64 = math.MaxInt64

// Window is the inclusive id range read from the store to answer one page
// request. Ephemeral, never persisted. The zero value is empty.
type Window struct {
	Lower int64
	Upper int64
}

func (w Window) Empty() bool {
	return w.Lower == 0 || w.Upper < w.Lower
}

func (w Window) Unbounded() bool {
	return w.Upper == UnboundedUpper
}
