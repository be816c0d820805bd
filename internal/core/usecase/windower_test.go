package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/titledesk/timeline/internal/core/domain"
)

func TestComputeWindowRejectsBadCursor(t *testing.T) {
	w := NewWindower(newFakeEventStore())

	if _, _, err := w.ComputeWindow(context.Background(), "T-1", 0, 0); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Fatalf("expected invalid limit for zero page size, got %v", err)
	}
	if _, _, err := w.ComputeWindow(context.Background(), "T-1", 10, -1); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Fatalf("expected invalid limit for negative page, got %v", err)
	}
}

func TestComputeWindowEmptyTicket(t *testing.T) {
	w := NewWindower(newFakeEventStore())

	window, stop, err := w.ComputeWindow(context.Background(), "T-1", 10, 0)
	if err != nil {
		t.Fatalf("compute window: %v", err)
	}
	if !stop {
		t.Fatal("expected stop for empty ticket")
	}
	if !window.Empty() {
		t.Fatalf("expected empty window, got %+v", window)
	}
}

func TestComputeWindowSystemEventsOnly(t *testing.T) {
	store := newFakeEventStore()
	store.seed("T-1", "SSS") // ids 1..3, no comments

	w := NewWindower(store)
	window, stop, err := w.ComputeWindow(context.Background(), "T-1", 10, 0)
	if err != nil {
		t.Fatalf("compute window: %v", err)
	}
	if !stop {
		t.Fatal("expected stop: a commentless ticket is one page")
	}
	if window.Lower != 1 || !window.Unbounded() {
		t.Fatalf("expected [1, unbounded), got %+v", window)
	}
}

func TestComputeWindowFewCommentsSinglePage(t *testing.T) {
	store := newFakeEventStore()
	store.seed("T-1", "CSC") // ids 1..3, comments at 1 and 3

	w := NewWindower(store)
	window, stop, err := w.ComputeWindow(context.Background(), "T-1", 5, 0)
	if err != nil {
		t.Fatalf("compute window: %v", err)
	}
	if !stop {
		t.Fatal("expected stop: comment count fits one page")
	}
	if window.Lower != 1 || !window.Unbounded() {
		t.Fatalf("expected [1, unbounded), got %+v", window)
	}
}

// Scrolling forward page by page with one comment per page must visit
// every event exactly once, including the runs of system events sitting
// between two adjacent pages' comments.
func TestComputeWindowForwardScroll(t *testing.T) {
	store := newFakeEventStore()
	store.seed("T-1", "SSCSSSC") // ids 1..7, comments at 3 and 7

	w := NewWindower(store)
	ctx := context.Background()

	window, stop, err := w.ComputeWindow(ctx, "T-1", 1, 0)
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if stop {
		t.Fatal("page 0: expected more pages")
	}
	if window.Lower != 7 || !window.Unbounded() {
		t.Fatalf("page 0: expected [7, unbounded), got %+v", window)
	}

	window, stop, err = w.ComputeWindow(ctx, "T-1", 1, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if stop {
		t.Fatal("page 1: expected more pages")
	}
	// The run 4..6 between the page-0 comment and this page's comment
	// belongs to this, older, page.
	if window.Lower != 3 || window.Upper != 6 {
		t.Fatalf("page 1: expected [3, 6], got %+v", window)
	}

	window, stop, err = w.ComputeWindow(ctx, "T-1", 1, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if !stop {
		t.Fatal("page 2: expected terminal page")
	}
	if window.Lower != 1 || window.Upper != 2 {
		t.Fatalf("page 2: expected [1, 2], got %+v", window)
	}
}

func TestComputeWindowPastOldestCommentWithoutLeadingEvents(t *testing.T) {
	store := newFakeEventStore()
	store.seed("T-1", "CSS") // comment first, nothing precedes it

	w := NewWindower(store)
	window, stop, err := w.ComputeWindow(context.Background(), "T-1", 1, 1)
	if err != nil {
		t.Fatalf("compute window: %v", err)
	}
	if !stop {
		t.Fatal("expected stop past the oldest comment")
	}
	if !window.Empty() {
		t.Fatalf("expected empty window, nothing precedes the first comment, got %+v", window)
	}
}

func TestComputeWindowBeforeCursorScroll(t *testing.T) {
	store := newFakeEventStore()
	store.seed("T-1", "SSCSSSC") // ids 1..7, comments at 3 and 7

	w := NewWindower(store)
	ctx := context.Background()

	window, stop, err := w.ComputeWindowBefore(ctx, "T-1", 1, 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if stop {
		t.Fatal("first page: expected more pages")
	}
	if window.Lower != 7 || !window.Unbounded() {
		t.Fatalf("first page: expected [7, unbounded), got %+v", window)
	}

	window, stop, err = w.ComputeWindowBefore(ctx, "T-1", 1, window.Lower)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if stop {
		t.Fatal("second page: expected more pages")
	}
	if window.Lower != 3 || window.Upper != 6 {
		t.Fatalf("second page: expected [3, 6], got %+v", window)
	}

	window, stop, err = w.ComputeWindowBefore(ctx, "T-1", 1, window.Lower)
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if !stop {
		t.Fatal("third page: expected terminal page")
	}
	if window.Lower != 1 || window.Upper != 2 {
		t.Fatalf("third page: expected [1, 2], got %+v", window)
	}
}

func TestComputeWindowBeforeCursorImmuneToNewComments(t *testing.T) {
	store := newFakeEventStore()
	store.seed("T-1", "CSC") // ids 1..3, comments at 1 and 3

	w := NewWindower(store)
	ctx := context.Background()

	window, stop, err := w.ComputeWindowBefore(ctx, "T-1", 1, 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if stop || window.Lower != 3 {
		t.Fatalf("first page: expected [3, unbounded) with more pages, got %+v stop=%v", window, stop)
	}

	// A comment lands while the viewer reads; the offset cursor would now
	// shift, the before-id cursor must not.
	store.add("T-1", domain.KindComment) // id 4

	window, stop, err = w.ComputeWindowBefore(ctx, "T-1", 1, window.Lower)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if !stop {
		t.Fatal("second page: expected terminal page")
	}
	if window.Lower != 1 || window.Upper != 2 {
		t.Fatalf("second page: expected [1, 2], got %+v", window)
	}
}

func TestComputeWindowBeforeEmptyTicket(t *testing.T) {
	w := NewWindower(newFakeEventStore())

	window, stop, err := w.ComputeWindowBefore(context.Background(), "T-1", 5, 0)
	if err != nil {
		t.Fatalf("compute window: %v", err)
	}
	if !stop || !window.Empty() {
		t.Fatalf("expected empty terminal window, got %+v stop=%v", window, stop)
	}
}

func TestComputeWindowBeforeRejectsBadPageSize(t *testing.T) {
	w := NewWindower(newFakeEventStore())
	if _, _, err := w.ComputeWindowBefore(context.Background(), "T-1", 0, 0); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Fatalf("expected invalid limit, got %v", err)
	}
}
