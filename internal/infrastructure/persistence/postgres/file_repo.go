package postgres

import (
	"context"
	"fmt"
)

// FileRepository implements platform.FileStore over the host files table.
type FileRepository struct {
	conn *Connection
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(conn *Connection) *FileRepository {
	return &FileRepository{conn: conn}
}

// DeleteAreaFiles removes every file record of the area, whatever its item id.
func (r *FileRepository) DeleteAreaFiles(ctx context.Context, contextID int64, component, area string) error {
	_, err := r.conn.Exec(ctx,
		`DELETE FROM files WHERE contextid = $1 AND component = $2 AND filearea = $3`,
		contextID, component, area,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete %s/%s files of context %d: %w", component, area, contextID, err)
	}
	return nil
}

// CountAreaFiles returns the number of files stored in the area.
func (r *FileRepository) CountAreaFiles(ctx context.Context, contextID int64, component, area string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT count(*) FROM files WHERE contextid = $1 AND component = $2 AND filearea = $3`,
		contextID, component, area,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count area files: %w", err)
	}
	return n, nil
}
