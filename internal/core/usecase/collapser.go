package usecase

import (
	"context"
	"fmt"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
)

// TimelineEntry is one element of the grouped page shape: either a single
// comment event or a collapsed run of system event ids. Exactly one field
// is set.
type TimelineEntry struct {
	Event *domain.ActivityEvent `json:"event,omitempty"`

	// GroupedIDs holds a contiguous run of non-comment event ids between
	// two comments, newest first, matching the page's DESC order.
	GroupedIDs []int64 `json:"grouped_ids,omitempty"`
}

// Collapse transforms a flat DESC event list into the grouped page shape,
// still overall DESC. Comments stay individual; every contiguous run of
// system events between two comments folds into one grouped id bucket at
// its exact interleave position. The transform is lossless: expanding each
// bucket in place reconstructs the input id sequence.
func Collapse(eventsDesc []domain.ActivityEvent) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(eventsDesc))
	var buffer []int64

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		// The buffer was filled oldest to newest; the DESC page wants
		// grouped ids newest first.
		ids := make([]int64, len(buffer))
		for i, id := range buffer {
			ids[len(buffer)-1-i] = id
		}
		entries = append(entries, TimelineEntry{GroupedIDs: ids})
		buffer = buffer[:0]
	}

	// Walk in ascending id order, the reverse of storage order.
	for i := len(eventsDesc) - 1; i >= 0; i-- {
		ev := eventsDesc[i]
		if ev.IsComment() {
			flush()
			entries = append(entries, TimelineEntry{Event: &eventsDesc[i]})
			continue
		}
		buffer = append(buffer, ev.ID)
	}
	flush()

	// Read back in reverse for the final DESC page.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// Expander unfolds a previously returned grouped bucket on demand.
type Expander struct {
	store ports.EventStore
}

func NewExpander(store ports.EventStore) *Expander {
	return &Expander{store: store}
}

// Expand returns the named events DESC by id. Ids outside the ticket's own
// log yield domain.ErrInvalidWindow.
func (e *Expander) Expand(ctx context.Context, ticketID string, ids []int64) ([]domain.ActivityEvent, error) {
	if err := domain.ValidateTicketID(ticketID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.ErrInvalidWindow
	}
	events, err := e.store.FetchByIDs(ctx, ticketID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch by ids: %w", err)
	}
	return events, nil
}
