package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
	"github.com/titledesk/timeline/internal/core/usecase"
)

type ctxKey string

const (
	requestIDCtxKey ctxKey = "request_id"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	timeline   *usecase.TimelineService
	notes      *usecase.NoteService
	subscriber ports.Subscriber
}

func NewHandler(timeline *usecase.TimelineService, notes *usecase.NoteService, subscriber ports.Subscriber) *Handler {
	return &Handler{timeline: timeline, notes: notes, subscriber: subscriber}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Route("/v1", func(vr chi.Router) {
		vr.Post("/tickets/{ticketID}/events", h.submit)
		vr.Get("/tickets/{ticketID}/events", h.list)
		vr.Post("/tickets/{ticketID}/events:expand", h.expand)
		vr.Get("/tickets/{ticketID}/events/stream", h.stream)
		vr.Post("/events:bulk-submit", h.bulkSubmit)
		vr.Put("/tickets/{ticketID}/notes/{kind}", h.upsertNote)
		vr.Get("/tickets/{ticketID}/notes/{kind}", h.getNote)
	})

	return r
}

type entryRequest struct {
	Kind              string          `json:"kind"`
	AuthorID          *int64          `json:"author_id"`
	FormContext       string          `json:"form_context"`
	Payload           json.RawMessage `json:"payload"`
	MentionCandidates []int64         `json:"mention_candidates"`
}

type submitRequest struct {
	Entries []entryRequest `json:"entries"`
}

type bulkSubmitRequest struct {
	Items []struct {
		TicketID string         `json:"ticket_id"`
		Entries  []entryRequest `json:"entries"`
	} `json:"items"`
}

type expandRequest struct {
	IDs []int64 `json:"ids"`
}

type listResponse struct {
	Events       []usecase.TimelineEntry `json:"events"`
	TotalResults int                     `json:"total_results"`
	StopScroll   bool                    `json:"stop_scroll"`
	NextBeforeID int64                   `json:"next_before_id,omitempty"`
}

type noteRequest struct {
	Body     string `json:"body"`
	AuthorID *int64 `json:"author_id"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entries, err := toNewEvents(req.Entries)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	events, err := h.timeline.Submit(r.Context(), usecase.SubmitInput{
		TicketID:  ticketID,
		RequestID: requestIDFromContext(r.Context()),
		Entries:   entries,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"events": events})
}

func (h *Handler) bulkSubmit(w http.ResponseWriter, r *http.Request) {
	var req bulkSubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	reqID := requestIDFromContext(r.Context())
	inputs := make([]usecase.SubmitInput, 0, len(req.Items))
	for _, item := range req.Items {
		entries, err := toNewEvents(item.Entries)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		inputs = append(inputs, usecase.SubmitInput{
			TicketID:  item.TicketID,
			RequestID: reqID,
			Entries:   entries,
		})
	}

	events, err := h.timeline.SubmitBulk(r.Context(), inputs)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"events": events})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	limit, ok := parseIntParam(w, r, "limit", 0)
	if !ok {
		return
	}
	page, ok := parseIntParam(w, r, "page", 0)
	if !ok {
		return
	}
	beforeID, ok := parseInt64Param(w, r, "before_id", 0)
	if !ok {
		return
	}

	result, err := h.timeline.List(r.Context(), usecase.ListRequest{
		TicketID:     ticketID,
		Limit:        limit,
		Page:         page,
		BeforeID:     beforeID,
		CommentsOnly: r.URL.Query().Get("comments_only") == "true",
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Events:       result.Entries,
		TotalResults: result.TotalResults,
		StopScroll:   result.StopScroll,
		NextBeforeID: result.NextBeforeID,
	})
}

func (h *Handler) expand(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	var req expandRequest
	if !decodeBody(w, r, &req) {
		return
	}

	events, err := h.timeline.Expand(r.Context(), ticketID, req.IDs)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) upsertNote(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	kind := domain.NoteKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown note kind")
		return
	}

	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	note, event, err := h.notes.Upsert(r.Context(), domain.TicketNote{
		TicketID: ticketID,
		Kind:     kind,
		Body:     req.Body,
		AuthorID: req.AuthorID,
	}, requestIDFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"note": note, "event": event})
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	kind := domain.NoteKind(chi.URLParam(r, "kind"))

	note, err := h.notes.Get(r.Context(), ticketID, kind)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"note": note})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func toNewEvents(entries []entryRequest) ([]domain.NewEvent, error) {
	if len(entries) == 0 {
		return nil, domain.ErrInvalidEvent
	}

	out := make([]domain.NewEvent, 0, len(entries))
	for _, e := range entries {
		kind := domain.EventKind(e.Kind)
		if err := usecase.ValidatePayload(kind, e.Payload); err != nil {
			return nil, err
		}

		ev := domain.NewEvent{
			AuthorID:          e.AuthorID,
			Kind:              kind,
			FormContext:       e.FormContext,
			MentionCandidates: e.MentionCandidates,
		}
		var err error
		switch kind {
		case domain.KindComment:
			var p domain.CommentPayload
			err = json.Unmarshal(e.Payload, &p)
			ev.Comment = &p
		case domain.KindFieldChange:
			var p domain.FieldChangePayload
			err = json.Unmarshal(e.Payload, &p)
			ev.FieldChange = &p
		case domain.KindLifecycle:
			var p domain.LifecyclePayload
			err = json.Unmarshal(e.Payload, &p)
			ev.Lifecycle = &p
		case domain.KindAutoUpdate:
			var p domain.AutoUpdatePayload
			err = json.Unmarshal(e.Payload, &p)
			ev.AutoUpdate = &p
		}
		if err != nil {
			return nil, domain.ErrInvalidEvent
		}
		out = append(out, ev)
	}
	return out, nil
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDCtxKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func parseIntParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be integer")
		return 0, false
	}
	return parsed, true
}

func parseInt64Param(w http.ResponseWriter, r *http.Request, name string, def int64) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be integer")
		return 0, false
	}
	return parsed, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTicketID),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "timelined",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/tickets/{ticketID}/events": map[string]any{
				"get":  map[string]any{"summary": "List timeline page"},
				"post": map[string]any{"summary": "Submit events"},
			},
			"/v1/tickets/{ticketID}/events:expand": map[string]any{
				"post": map[string]any{"summary": "Expand a grouped bucket"},
			},
			"/v1/tickets/{ticketID}/events/stream": map[string]any{
				"get": map[string]any{"summary": "Join the live ticket channel (SSE)"},
			},
			"/v1/events:bulk-submit": map[string]any{
				"post": map[string]any{"summary": "Submit events across tickets"},
			},
			"/v1/tickets/{ticketID}/notes/{kind}": map[string]any{
				"put": map[string]any{"summary": "Upsert pinned note"},
				"get": map[string]any{"summary": "Get pinned note"},
			},
		},
	}
}
