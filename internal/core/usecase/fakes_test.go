package usecase

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/titledesk/timeline/internal/core/domain"
)

// fakeEventStore keeps an ascending in-memory log with store-assigned ids,
// mirroring the SQLite adapter's contract closely enough for windowing and
// collapsing tests.
type fakeEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []domain.ActivityEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{nextID: 1}
}

func (f *fakeEventStore) add(ticketID string, kind domain.EventKind) domain.ActivityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := domain.ActivityEvent{
		ID:        f.nextID,
		TicketID:  ticketID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	switch kind {
	case domain.KindComment:
		ev.Comment = &domain.CommentPayload{Text: "comment " + strconv.FormatInt(ev.ID, 10)}
	case domain.KindFieldChange:
		ev.FieldChange = &domain.FieldChangePayload{Field: "status", OldValue: "open", NewValue: "closed"}
	case domain.KindLifecycle:
		ev.Lifecycle = &domain.LifecyclePayload{Action: "reopened"}
	case domain.KindAutoUpdate:
		ev.AutoUpdate = &domain.AutoUpdatePayload{Field: "sla", NewValue: "breached"}
	}
	f.nextID++
	f.events = append(f.events, ev)
	return ev
}

// seed appends one event per rune: 'C' is a comment, anything else a
// lifecycle event. Returns the assigned ids in append order.
func (f *fakeEventStore) seed(ticketID, kinds string) []int64 {
	ids := make([]int64, 0, len(kinds))
	for _, r := range kinds {
		kind := domain.KindLifecycle
		if r == 'C' {
			kind = domain.KindComment
		}
		ids = append(ids, f.add(ticketID, kind).ID)
	}
	return ids
}

func (f *fakeEventStore) ticketEvents(ticketID string) []domain.ActivityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ActivityEvent
	for _, ev := range f.events {
		if ev.TicketID == ticketID {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeEventStore) Append(_ context.Context, ticketID string, entries []domain.NewEvent) ([]domain.ActivityEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ActivityEvent, 0, len(entries))
	for _, entry := range entries {
		ev := domain.ActivityEvent{
			ID:          f.nextID,
			TicketID:    ticketID,
			AuthorID:    entry.AuthorID,
			Kind:        entry.Kind,
			FormContext: entry.FormContext,
			CreatedAt:   time.Now().UTC(),
			Comment:     entry.Comment,
			FieldChange: entry.FieldChange,
			Lifecycle:   entry.Lifecycle,
			AutoUpdate:  entry.AutoUpdate,
		}
		f.nextID++
		f.events = append(f.events, ev)
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeEventStore) FetchWindow(_ context.Context, ticketID string, w domain.Window) ([]domain.ActivityEvent, error) {
	var out []domain.ActivityEvent
	for _, ev := range f.ticketEvents(ticketID) {
		if ev.ID >= w.Lower && ev.ID <= w.Upper {
			out = append(out, ev)
		}
	}
	sortDesc(out)
	return out, nil
}

func (f *fakeEventStore) FetchByIDs(_ context.Context, ticketID string, ids []int64) ([]domain.ActivityEvent, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.ActivityEvent
	for _, ev := range f.ticketEvents(ticketID) {
		if want[ev.ID] {
			out = append(out, ev)
		}
	}
	if len(out) != len(want) {
		return nil, domain.ErrInvalidWindow
	}
	sortDesc(out)
	return out, nil
}

func (f *fakeEventStore) CommentIDsPage(_ context.Context, ticketID string, limit, offset int) ([]int64, error) {
	ids := f.commentIDsDesc(ticketID)
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeEventStore) CommentIDsBefore(_ context.Context, ticketID string, beforeID int64, limit int) ([]int64, error) {
	var out []int64
	for _, id := range f.commentIDsDesc(ticketID) {
		if id >= beforeID {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEventStore) CommentsPage(_ context.Context, ticketID string, limit, offset int) ([]domain.ActivityEvent, error) {
	var comments []domain.ActivityEvent
	for _, ev := range f.ticketEvents(ticketID) {
		if ev.IsComment() {
			comments = append(comments, ev)
		}
	}
	sortDesc(comments)
	if offset >= len(comments) {
		return nil, nil
	}
	comments = comments[offset:]
	if len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

func (f *fakeEventStore) FirstEventID(_ context.Context, ticketID string) (int64, bool, error) {
	events := f.ticketEvents(ticketID)
	if len(events) == 0 {
		return 0, false, nil
	}
	return events[0].ID, true, nil
}

func (f *fakeEventStore) FirstCommentID(_ context.Context, ticketID string) (int64, bool, error) {
	for _, ev := range f.ticketEvents(ticketID) {
		if ev.IsComment() {
			return ev.ID, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeEventStore) CountComments(_ context.Context, ticketID string) (int, error) {
	return len(f.commentIDsDesc(ticketID)), nil
}

func (f *fakeEventStore) commentIDsDesc(ticketID string) []int64 {
	var ids []int64
	for _, ev := range f.ticketEvents(ticketID) {
		if ev.IsComment() {
			ids = append(ids, ev.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}

func sortDesc(events []domain.ActivityEvent) {
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
}

// stubDirectory answers user lookups from a fixed map; inactive ids are
// listed separately so ActiveByIDs can filter.
type stubDirectory struct {
	users    map[int64]domain.UserRef
	inactive map[int64]bool
	err      error
}

func (s *stubDirectory) ByIDs(_ context.Context, ids []int64) (map[int64]domain.UserRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[int64]domain.UserRef, len(ids))
	for _, id := range ids {
		if ref, ok := s.users[id]; ok {
			out[id] = ref
		}
	}
	return out, nil
}

func (s *stubDirectory) ActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.UserRef, error) {
	refs, err := s.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id := range refs {
		if s.inactive[id] {
			delete(refs, id)
		}
	}
	return refs, nil
}

// capturePublisher records every published live message.
type capturePublisher struct {
	mu       sync.Mutex
	messages []domain.LiveMessage
	topics   []string
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, msg domain.LiveMessage) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published() []domain.LiveMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.LiveMessage(nil), p.messages...)
}
