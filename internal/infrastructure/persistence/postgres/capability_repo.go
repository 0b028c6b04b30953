package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/shared"
)

// CapabilityRepository implements platform.CapabilityChecker from the context
// tree and the capability grants tables.
type CapabilityRepository struct {
	conn *Connection
}

// NewCapabilityRepository creates a new CapabilityRepository.
func NewCapabilityRepository(conn *Connection) *CapabilityRepository {
	return &CapabilityRepository{conn: conn}
}

// HasCapability resolves capability for userID along the path of contextID.
func (r *CapabilityRepository) HasCapability(ctx context.Context, capability string, contextID, userID int64) (bool, error) {
	var rawPath string
	err := r.conn.QueryRow(ctx, `SELECT path FROM context WHERE id = $1`, contextID).Scan(&rawPath)
	if err != nil {
		if IsNoRows(err) {
			return false, fmt.Errorf("%w: %d", shared.ErrContextNotFound, contextID)
		}
		return false, fmt.Errorf("postgres: load context %d: %w", contextID, err)
	}

	path, err := platform.ParseContextPath(rawPath)
	if err != nil {
		return false, fmt.Errorf("postgres: context %d has invalid path %q: %w", contextID, rawPath, err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT contextid, permission
		FROM capability_grants
		WHERE userid = $1 AND capability = $2 AND contextid = ANY($3)
	`, userID, capability, path)
	if err != nil {
		return false, fmt.Errorf("postgres: load grants: %w", err)
	}
	defer rows.Close()

	var grants []platform.Grant
	for rows.Next() {
		var g platform.Grant
		var perm int
		if err := rows.Scan(&g.ContextID, &perm); err != nil {
			return false, fmt.Errorf("postgres: scan grant: %w", err)
		}
		g.Permission = platform.Permission(perm)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("postgres: load grants: %w", err)
	}

	return platform.ResolvePermission(path, grants), nil
}
