package usecase

import (
	"context"
	"fmt"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
)

// Windower computes the inclusive id range that must be read from the
// store to satisfy one page request. Comments drive pagination: a page
// holds up to pageSize comments plus every non-comment event interleaved
// between its bounding comments.
type Windower struct {
	store ports.EventStore
}

func NewWindower(store ports.EventStore) *Windower {
	return &Windower{store: store}
}

// ComputeWindow resolves the window for the offset-style cursor
// (pageSize, pageIndex). stopScroll reports that this is the terminal
// page: either the ticket has at most pageSize comments in total, or this
// page is past the oldest comment.
//
// For pageIndex > 0 the comments query is extended one row upward so the
// result also carries the previous page's oldest comment. That boundary
// comment, minus one, is the window's upper bound, which keeps the run of
// system events between two adjacent pages attached to the older page. An
// unbroken forward scroll therefore yields every event exactly once.
func (w *Windower) ComputeWindow(ctx context.Context, ticketID string, pageSize, pageIndex int) (domain.Window, bool, error) {
	if pageSize <= 0 || pageIndex < 0 {
		return domain.Window{}, false, domain.ErrInvalidLimit
	}

	offset := pageIndex * pageSize
	fetchOffset, fetchLimit := offset, pageSize
	if pageIndex > 0 {
		fetchOffset--
		fetchLimit++
	}

	ids, err := w.store.CommentIDsPage(ctx, ticketID, fetchLimit, fetchOffset)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("comment ids page: %w", err)
	}

	var boundaryID int64
	page := ids
	if pageIndex > 0 {
		if len(ids) > 0 {
			boundaryID = ids[0]
			page = ids[1:]
		}
	}

	firstID, hasEvents, err := w.store.FirstEventID(ctx, ticketID)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("first event id: %w", err)
	}

	if len(page) == 0 {
		// No comments at all, or this page is past the oldest comment:
		// the remaining window is everything before the first comment.
		if !hasEvents {
			return domain.Window{}, true, nil
		}
		firstCommentID, hasComment, err := w.store.FirstCommentID(ctx, ticketID)
		if err != nil {
			return domain.Window{}, false, fmt.Errorf("first comment id: %w", err)
		}
		if !hasComment {
			return domain.Window{Lower: firstID, Upper: domain.UnboundedUpper}, true, nil
		}
		return domain.Window{Lower: firstID, Upper: firstCommentID - 1}, true, nil
	}

	total, err := w.store.CountComments(ctx, ticketID)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("count comments: %w", err)
	}
	if total <= pageSize {
		// Too few comments to paginate: one page carries everything.
		return domain.Window{Lower: firstID, Upper: domain.UnboundedUpper}, true, nil
	}

	minID := page[len(page)-1]
	if pageIndex == 0 {
		return domain.Window{Lower: minID, Upper: domain.UnboundedUpper}, false, nil
	}
	return domain.Window{Lower: minID, Upper: boundaryID - 1}, false, nil
}

// ComputeWindowBefore resolves the window for the opaque before-id cursor.
// beforeID <= 0 means "from the top". The caller feeds the returned
// window's lower bound back as the next beforeID, which makes the scroll
// immune to comment inserts shifting offsets between requests.
func (w *Windower) ComputeWindowBefore(ctx context.Context, ticketID string, pageSize int, beforeID int64) (domain.Window, bool, error) {
	if pageSize <= 0 {
		return domain.Window{}, false, domain.ErrInvalidLimit
	}
	if beforeID <= 0 {
		beforeID = domain.UnboundedUpper
	}

	ids, err := w.store.CommentIDsBefore(ctx, ticketID, beforeID, pageSize)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("comment ids before: %w", err)
	}

	firstID, hasEvents, err := w.store.FirstEventID(ctx, ticketID)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("first event id: %w", err)
	}
	if !hasEvents {
		return domain.Window{}, true, nil
	}

	upper := beforeID
	if upper != domain.UnboundedUpper {
		upper--
	}

	if len(ids) == 0 {
		// Past the oldest comment: whatever precedes it remains.
		return domain.Window{Lower: firstID, Upper: upper}, true, nil
	}

	minID := ids[len(ids)-1]
	if len(ids) < pageSize {
		// Fewer comments than requested: this page reaches the log head.
		return domain.Window{Lower: firstID, Upper: upper}, true, nil
	}
	return domain.Window{Lower: minID, Upper: upper}, false, nil
}
