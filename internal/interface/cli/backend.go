package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/alem-hub/xp-observer/internal/application/observer"
	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/xp-observer/internal/infrastructure/service"
	"github.com/alem-hub/xp-observer/pkg/logger"
)

var errNoStore = errors.New("no store selected: pass --sqlite PATH or --database-url (DATABASE_URL)")

type rowCounter interface {
	CountByCourse(ctx context.Context, table string, courseID int64) (int, error)
}

type fileCounter interface {
	CountAreaFiles(ctx context.Context, contextID int64, component, area string) (int, error)
}

// backend bundles the storage ports of the selected store.
type backend struct {
	records      platform.RecordStore
	files        platform.FileStore
	capabilities platform.CapabilityChecker
	rows         rowCounter
	fileCount    fileCounter
	postgres     *postgres.Connection
	close        func()
}

func openBackend(ctx context.Context, opts *RootOptions) (*backend, error) {
	if opts.SQLitePath != "" {
		store, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{
			records:      store,
			files:        store,
			capabilities: store,
			rows:         store,
			fileCount:    store,
			close:        func() { _ = store.Close() },
		}, nil
	}

	if opts.DatabaseURL == "" {
		return nil, errNoStore
	}

	conn, err := postgres.NewConnectionFromURL(ctx, opts.DatabaseURL, postgres.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	records := postgres.NewCourseDataRepository(conn)
	files := postgres.NewFileRepository(conn)
	return &backend{
		records:      records,
		files:        files,
		capabilities: postgres.NewCapabilityRepository(conn),
		rows:         records,
		fileCount:    files,
		postgres:     conn,
		close:        conn.Close,
	}, nil
}

func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, Format: "text", Output: w})
}

// newObserver builds an observer over b. Managers are never resolved by the
// commands, so the registry has no factory.
func newObserver(b *backend, opts *RootOptions, log *slog.Logger) (*observer.Observer, error) {
	obs, err := observer.New(observer.Dependencies{
		Records:      b.records,
		Files:        b.files,
		Users:        service.NewSiteUsers(opts.GuestID, opts.Admins),
		Capabilities: b.capabilities,
		Managers:     xp.NewRegistry(nil),
	}, observer.NewAllowedContexts(platform.ContextLevel(opts.PluginContext)), log)
	if err != nil {
		return nil, fmt.Errorf("build observer: %w", err)
	}
	return obs, nil
}
