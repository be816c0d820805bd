package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/titledesk/timeline/internal/adapters/events"
	"github.com/titledesk/timeline/internal/adapters/httpapi"
	sqliteadapter "github.com/titledesk/timeline/internal/adapters/sqlite"
	"github.com/titledesk/timeline/internal/adapters/sqlite/gormsqlite"
	"github.com/titledesk/timeline/internal/core/ports"
	"github.com/titledesk/timeline/internal/core/usecase"
	"github.com/titledesk/timeline/migrations"
)

type Config struct {
	Addr   string
	DBPath string

	// NATSURL enables cross-process live fan-out; the in-process hub
	// always serves local SSE viewers.
	NATSURL string

	// LogLive mirrors every live message to the process log.
	LogLive bool
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open timeline sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	hub := events.NewHub()
	closers := []io.Closer{hub, db}

	targets := []ports.Publisher{hub}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			_ = db.Close()
			_ = hub.Close()
			return nil, nil, fmt.Errorf("connect nats publisher: %w", err)
		}
		targets = append(targets, natsPub)
		closers = append([]io.Closer{natsPub}, closers...)
	}
	if cfg.LogLive {
		targets = append(targets, events.NewLogPublisher())
	}

	var publisher ports.Publisher = hub
	if len(targets) > 1 {
		publisher = events.NewMultiPublisher(targets...)
	}

	store := sqliteadapter.NewEventStore(db)
	directory := sqliteadapter.NewUserDirectory(db)
	noteRepo := sqliteadapter.NewNoteRepository(db)

	resolver := usecase.NewMentionResolver(directory)
	timeline := usecase.NewTimelineService(store, resolver, publisher)
	notes := usecase.NewNoteService(noteRepo, timeline)

	handler := httpapi.NewHandler(timeline, notes, hub)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: closers}, nil
}
