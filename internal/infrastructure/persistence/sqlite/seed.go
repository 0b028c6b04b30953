package sqlite

import (
	"context"
	"fmt"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
)

// File is a stored file record.
type File struct {
	ContextID int64
	Component string
	Area      string
	ItemID    int64
	Path      string
	Name      string
}

// PutContext inserts or replaces a context row.
func (s *Store) PutContext(ctx context.Context, id int64, level platform.ContextLevel, instanceID int64, path string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO context (id, contextlevel, instanceid, path) VALUES (?, ?, ?, ?)`,
		id, int(level), instanceID, path,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put context %d: %w", id, err)
	}
	return nil
}

// PutGrant inserts or replaces the permission of a user for a capability in a context.
func (s *Store) PutGrant(ctx context.Context, userID, contextID int64, capability string, perm platform.Permission) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO capability_grants (userid, contextid, capability, permission) VALUES (?, ?, ?, ?)`,
		userID, contextID, capability, int(perm),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put grant: %w", err)
	}
	return nil
}

// PutFile stores a file record.
func (s *Store) PutFile(ctx context.Context, f File) error {
	if f.Path == "" {
		f.Path = "/"
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO files (contextid, component, filearea, itemid, filepath, filename) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ContextID, f.Component, f.Area, f.ItemID, f.Path, f.Name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put file %s: %w", f.Name, err)
	}
	return nil
}

// PutCourseRow inserts a minimal row for courseID into one of the course tables.
func (s *Store) PutCourseRow(ctx context.Context, table string, courseID int64) error {
	var query string
	switch table {
	case "block_xp":
		query = `INSERT INTO block_xp (courseid, userid) VALUES (?, 0)`
	case "block_xp_config":
		query = `INSERT OR IGNORE INTO block_xp_config (courseid) VALUES (?)`
	case "block_xp_filters":
		query = `INSERT INTO block_xp_filters (courseid) VALUES (?)`
	case "block_xp_log":
		query = `INSERT INTO block_xp_log (courseid, userid, eventname) VALUES (?, 0, '')`
	default:
		return fmt.Errorf("sqlite: no seed for table %q", table)
	}
	if _, err := s.sqlDB.ExecContext(ctx, query, courseID); err != nil {
		return fmt.Errorf("sqlite: seed %s: %w", table, err)
	}
	return nil
}
