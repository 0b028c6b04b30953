package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/xp-observer/internal/domain/shared"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
)

// CourseDataRepository implements platform.RecordStore for the plugin tables.
type CourseDataRepository struct {
	conn *Connection
}

// NewCourseDataRepository creates a new CourseDataRepository.
func NewCourseDataRepository(conn *Connection) *CourseDataRepository {
	return &CourseDataRepository{conn: conn}
}

// DeleteByCourse deletes every row of table that belongs to courseID.
// Only the plugin course tables are accepted since the name ends up in SQL.
func (r *CourseDataRepository) DeleteByCourse(ctx context.Context, table string, courseID int64) error {
	if !xp.IsCourseDataTable(table) {
		return fmt.Errorf("%w: %q", shared.ErrUnknownTable, table)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE courseid = $1", table)
	if _, err := r.conn.Exec(ctx, query, courseID); err != nil {
		return fmt.Errorf("postgres: delete from %s: %w", table, err)
	}

	return nil
}

// CountByCourse returns how many rows of table belong to courseID.
func (r *CourseDataRepository) CountByCourse(ctx context.Context, table string, courseID int64) (int, error) {
	if !xp.IsCourseDataTable(table) {
		return 0, fmt.Errorf("%w: %q", shared.ErrUnknownTable, table)
	}

	var n int
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE courseid = $1", table)
	if err := r.conn.QueryRow(ctx, query, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", table, err)
	}

	return n, nil
}
