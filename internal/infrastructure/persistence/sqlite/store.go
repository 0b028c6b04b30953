// Package sqlite provides a single-file store for the observer ports, used by
// the command line tool and by tests that need a real database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/shared"
	"github.com/alem-hub/xp-observer/internal/domain/xp"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS block_xp (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	courseid  INTEGER NOT NULL,
	userid    INTEGER NOT NULL,
	xp        INTEGER NOT NULL DEFAULT 0,
	lvl       INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS block_xp_courseid_idx ON block_xp (courseid);

CREATE TABLE IF NOT EXISTS block_xp_config (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	courseid  INTEGER NOT NULL UNIQUE,
	enabled   INTEGER NOT NULL DEFAULT 1,
	levels    INTEGER NOT NULL DEFAULT 10
);

CREATE TABLE IF NOT EXISTS block_xp_filters (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	courseid   INTEGER NOT NULL,
	ruledata   TEXT NOT NULL DEFAULT '',
	points     INTEGER NOT NULL DEFAULT 0,
	sortorder  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS block_xp_filters_courseid_idx ON block_xp_filters (courseid);

CREATE TABLE IF NOT EXISTS block_xp_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	courseid     INTEGER NOT NULL,
	userid       INTEGER NOT NULL,
	eventname    TEXT NOT NULL,
	xp           INTEGER NOT NULL DEFAULT 0,
	time         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS block_xp_log_courseid_idx ON block_xp_log (courseid);

CREATE TABLE IF NOT EXISTS files (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	contenthash  TEXT NOT NULL DEFAULT '',
	contextid    INTEGER NOT NULL,
	component    TEXT NOT NULL,
	filearea     TEXT NOT NULL,
	itemid       INTEGER NOT NULL DEFAULT 0,
	filepath     TEXT NOT NULL DEFAULT '/',
	filename     TEXT NOT NULL,
	filesize     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS files_area_idx ON files (contextid, component, filearea);

CREATE TABLE IF NOT EXISTS context (
	id            INTEGER PRIMARY KEY,
	contextlevel  INTEGER NOT NULL,
	instanceid    INTEGER NOT NULL,
	path          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS capability_grants (
	userid      INTEGER NOT NULL,
	contextid   INTEGER NOT NULL,
	capability  TEXT NOT NULL,
	permission  INTEGER NOT NULL,
	PRIMARY KEY (userid, contextid, capability)
);
`

// Store persists plugin rows, files and capability grants in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) a SQLite store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DeleteByCourse deletes every row of table that belongs to courseID.
func (s *Store) DeleteByCourse(ctx context.Context, table string, courseID int64) error {
	if !xp.IsCourseDataTable(table) {
		return fmt.Errorf("%w: %q", shared.ErrUnknownTable, table)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE courseid = ?", table)
	if _, err := s.sqlDB.ExecContext(ctx, query, courseID); err != nil {
		return fmt.Errorf("sqlite: delete from %s: %w", table, err)
	}
	return nil
}

// CountByCourse returns how many rows of table belong to courseID.
func (s *Store) CountByCourse(ctx context.Context, table string, courseID int64) (int, error) {
	if !xp.IsCourseDataTable(table) {
		return 0, fmt.Errorf("%w: %q", shared.ErrUnknownTable, table)
	}
	var n int
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE courseid = ?", table)
	if err := s.sqlDB.QueryRowContext(ctx, query, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", table, err)
	}
	return n, nil
}

// DeleteAreaFiles removes every file record of the area.
func (s *Store) DeleteAreaFiles(ctx context.Context, contextID int64, component, area string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM files WHERE contextid = ? AND component = ? AND filearea = ?`,
		contextID, component, area,
	)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s/%s files of context %d: %w", component, area, contextID, err)
	}
	return nil
}

// CountAreaFiles returns the number of files stored in the area.
func (s *Store) CountAreaFiles(ctx context.Context, contextID int64, component, area string) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT count(*) FROM files WHERE contextid = ? AND component = ? AND filearea = ?`,
		contextID, component, area,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count area files: %w", err)
	}
	return n, nil
}

// HasCapability resolves capability for userID along the path of contextID.
func (s *Store) HasCapability(ctx context.Context, capability string, contextID, userID int64) (bool, error) {
	var rawPath string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT path FROM context WHERE id = ?`, contextID).Scan(&rawPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: %d", shared.ErrContextNotFound, contextID)
		}
		return false, fmt.Errorf("sqlite: load context %d: %w", contextID, err)
	}

	path, err := platform.ParseContextPath(rawPath)
	if err != nil {
		return false, fmt.Errorf("sqlite: context %d has invalid path %q: %w", contextID, rawPath, err)
	}
	if len(path) == 0 {
		return false, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(path)), ",")
	args := make([]any, 0, len(path)+2)
	args = append(args, userID, capability)
	for _, id := range path {
		args = append(args, id)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT contextid, permission FROM capability_grants
		 WHERE userid = ? AND capability = ? AND contextid IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: load grants: %w", err)
	}
	defer rows.Close()

	var grants []platform.Grant
	for rows.Next() {
		var g platform.Grant
		var perm int
		if err := rows.Scan(&g.ContextID, &perm); err != nil {
			return false, fmt.Errorf("sqlite: scan grant: %w", err)
		}
		g.Permission = platform.Permission(perm)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("sqlite: load grants: %w", err)
	}

	return platform.ResolvePermission(path, grants), nil
}
