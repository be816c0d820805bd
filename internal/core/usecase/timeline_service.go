package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// TimelineService orchestrates the activity timeline: windowed page reads,
// atomic appends, bucket expansion, and best-effort live delivery.
type TimelineService struct {
	store     ports.EventStore
	windower  *Windower
	expander  *Expander
	resolver  *MentionResolver
	publisher ports.Publisher
}

func NewTimelineService(store ports.EventStore, resolver *MentionResolver, publisher ports.Publisher) *TimelineService {
	return &TimelineService{
		store:     store,
		windower:  NewWindower(store),
		expander:  NewExpander(store),
		resolver:  resolver,
		publisher: publisher,
	}
}

type ListRequest struct {
	TicketID     string
	Limit        int
	Page         int
	BeforeID     int64
	CommentsOnly bool
}

type ListResult struct {
	Entries      []TimelineEntry
	TotalResults int
	StopScroll   bool

	// NextBeforeID feeds the next request's BeforeID for the drift-free
	// cursor form. Zero when the scroll is exhausted.
	NextBeforeID int64
}

// List returns one timeline page, newest first. TotalResults is always the
// exact count of events matched by the current window, never an estimate.
func (s *TimelineService) List(ctx context.Context, req ListRequest) (ListResult, error) {
	if err := domain.ValidateTicketID(req.TicketID); err != nil {
		return ListResult{}, err
	}
	if req.Limit <= 0 {
		req.Limit = defaultPageSize
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}
	if req.Page < 0 {
		return ListResult{}, domain.ErrInvalidLimit
	}

	if req.CommentsOnly {
		return s.listComments(ctx, req)
	}

	var (
		window domain.Window
		stop   bool
		err    error
	)
	if req.BeforeID > 0 {
		window, stop, err = s.windower.ComputeWindowBefore(ctx, req.TicketID, req.Limit, req.BeforeID)
	} else {
		window, stop, err = s.windower.ComputeWindow(ctx, req.TicketID, req.Limit, req.Page)
	}
	if err != nil {
		return ListResult{}, err
	}

	if window.Empty() {
		return ListResult{Entries: []TimelineEntry{}, TotalResults: 0, StopScroll: stop}, nil
	}

	events, err := s.store.FetchWindow(ctx, req.TicketID, window)
	if err != nil {
		return ListResult{}, fmt.Errorf("fetch window: %w", err)
	}

	result := ListResult{
		Entries:      Collapse(events),
		TotalResults: len(events),
		StopScroll:   stop,
	}
	if !stop {
		result.NextBeforeID = window.Lower
	}
	return result, nil
}

func (s *TimelineService) listComments(ctx context.Context, req ListRequest) (ListResult, error) {
	comments, err := s.store.CommentsPage(ctx, req.TicketID, req.Limit, req.Page*req.Limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("comments page: %w", err)
	}
	total, err := s.store.CountComments(ctx, req.TicketID)
	if err != nil {
		return ListResult{}, fmt.Errorf("count comments: %w", err)
	}

	entries := make([]TimelineEntry, 0, len(comments))
	for i := range comments {
		entries = append(entries, TimelineEntry{Event: &comments[i]})
	}
	return ListResult{
		Entries:      entries,
		TotalResults: len(comments),
		StopScroll:   (req.Page+1)*req.Limit >= total,
	}, nil
}

// Expand unfolds a grouped bucket back into its events, DESC by id.
func (s *TimelineService) Expand(ctx context.Context, ticketID string, ids []int64) ([]domain.ActivityEvent, error) {
	return s.expander.Expand(ctx, ticketID, ids)
}

type SubmitInput struct {
	TicketID  string
	RequestID string
	Entries   []domain.NewEvent
}

// Submit appends one or more events to a ticket's log atomically and then
// notifies live viewers of that ticket. The caller owns old/new value
// computation; comment mentions are re-derived from the text before the
// write. Publish failures are logged and swallowed: the durable record has
// already won.
func (s *TimelineService) Submit(ctx context.Context, in SubmitInput) ([]domain.ActivityEvent, error) {
	events, err := s.append(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publishLive(ctx, in.TicketID, in.RequestID, events)
	return events, nil
}

// SubmitBulk appends to several tickets in one logical write. Each ticket
// gets its own transaction and its own live message; cross-ticket
// atomicity is out of scope, so a failure leaves earlier tickets
// committed and notified.
func (s *TimelineService) SubmitBulk(ctx context.Context, inputs []SubmitInput) ([]domain.ActivityEvent, error) {
	var all []domain.ActivityEvent
	for _, in := range inputs {
		events, err := s.Submit(ctx, in)
		if err != nil {
			return all, fmt.Errorf("bulk submit %s: %w", in.TicketID, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

func (s *TimelineService) append(ctx context.Context, in SubmitInput) ([]domain.ActivityEvent, error) {
	if err := domain.ValidateTicketID(in.TicketID); err != nil {
		return nil, err
	}
	if len(in.Entries) == 0 {
		return nil, domain.ErrInvalidEvent
	}

	entries := make([]domain.NewEvent, len(in.Entries))
	copy(entries, in.Entries)
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
		if entries[i].Kind != domain.KindComment {
			continue
		}
		mentions, err := s.resolver.Resolve(ctx, entries[i].Comment.Text, entries[i].MentionCandidates)
		if err != nil {
			return nil, err
		}
		comment := *entries[i].Comment
		comment.Mentions = mentions
		entries[i].Comment = &comment
	}

	events, err := s.store.Append(ctx, in.TicketID, entries)
	if err != nil {
		return nil, fmt.Errorf("append events: %w", err)
	}
	return events, nil
}

func (s *TimelineService) publishLive(ctx context.Context, ticketID, requestID string, events []domain.ActivityEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	msg := domain.LiveMessage{
		TicketID:    ticketID,
		FormContext: events[0].FormContext,
		RequestID:   requestID,
		Events:      events,
	}
	if err := s.publisher.Publish(ctx, domain.TicketTopic(ticketID), msg); err != nil {
		log.Printf("live publish ticket=%s events=%d: %v", ticketID, len(events), err)
	}
}
