package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xp-observer/internal/domain/shared"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
)

func TestCourseDataRepository_RejectsUnknownTables(t *testing.T) {
	repo := NewCourseDataRepository(nil)
	ctx := context.Background()

	for _, table := range []string{"user", "block_xp; DROP TABLE files", "BLOCK_XP", ""} {
		err := repo.DeleteByCourse(ctx, table, 7)
		require.Error(t, err, table)
		assert.ErrorIs(t, err, shared.ErrUnknownTable, table)
		assert.True(t, shared.IsValidation(err), table)

		_, err = repo.CountByCourse(ctx, table, 7)
		assert.ErrorIs(t, err, shared.ErrUnknownTable, table)
	}
}

func TestCourseDataTablesAreAllowed(t *testing.T) {
	for _, table := range xp.CourseDataTables {
		assert.True(t, xp.IsCourseDataTable(table), table)
	}
	assert.Len(t, xp.CourseDataTables, 4)
}

func TestMigrationsCreateCourseDataTables(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are sequential")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL)
	}

	all := ""
	for _, m := range migrations {
		all += m.UpSQL
	}
	for _, table := range append(append([]string{}, xp.CourseDataTables...), "files", "context", "capability_grants") {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestConnection_ClosedPoolIsRejected(t *testing.T) {
	conn := &Connection{closed: true}

	assert.ErrorIs(t, conn.Ping(context.Background()), ErrConnectionClosed)

	_, err := NewFileRepository(conn).CountAreaFiles(context.Background(), 15, "block_xp", "badges")
	assert.ErrorIs(t, err, ErrConnectionClosed)

	err = NewFileRepository(conn).DeleteAreaFiles(context.Background(), 15, "block_xp", "badges")
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestNewConnectionFromURL_InvalidURL(t *testing.T) {
	_, err := NewConnectionFromURL(context.Background(), "postgres://%zz", DefaultPoolConfig())
	assert.ErrorIs(t, err, ErrInvalidDatabaseURL)
}
