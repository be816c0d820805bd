package ports

import (
	"context"

	"github.com/titledesk/timeline/internal/core/domain"
)

// EventStore is the durable, append-only, per-ticket-queryable activity
// log. Ids are assigned by the store and strictly increase store-wide.
type EventStore interface {
	// Append persists the given entries atomically, in order, together
	// with the mention rows of any comment entries. It returns the full
	// persisted records including assigned ids.
	Append(ctx context.Context, ticketID string, entries []domain.NewEvent) ([]domain.ActivityEvent, error)

	// FetchWindow returns every event of the ticket inside the inclusive
	// window, DESC by id, with author and mention display data resolved.
	FetchWindow(ctx context.Context, ticketID string, w domain.Window) ([]domain.ActivityEvent, error)

	// FetchByIDs returns the named events DESC by id. Every id must belong
	// to the given ticket's own log; otherwise ErrInvalidWindow. Assignee
	// field changes get current display data attached.
	FetchByIDs(ctx context.Context, ticketID string, ids []int64) ([]domain.ActivityEvent, error)

	// CommentIDsPage returns comment event ids, DESC, limit/offset.
	CommentIDsPage(ctx context.Context, ticketID string, limit, offset int) ([]int64, error)

	// CommentIDsBefore returns up to limit comment event ids below
	// beforeID, DESC.
	CommentIDsBefore(ctx context.Context, ticketID string, beforeID int64, limit int) ([]int64, error)

	// CommentsPage returns comment events, DESC, limit/offset, fully
	// resolved. Used by the comments-only view; no windowing involved.
	CommentsPage(ctx context.Context, ticketID string, limit, offset int) ([]domain.ActivityEvent, error)

	// FirstEventID returns the earliest event id of the ticket, of any
	// kind. ok is false when the ticket has no events.
	FirstEventID(ctx context.Context, ticketID string) (id int64, ok bool, err error)

	// FirstCommentID returns the earliest comment event id of the ticket.
	FirstCommentID(ctx context.Context, ticketID string) (id int64, ok bool, err error)

	CountComments(ctx context.Context, ticketID string) (int, error)
}
