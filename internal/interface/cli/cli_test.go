package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
	"github.com/alem-hub/xp-observer/internal/infrastructure/messaging"
	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/sqlite"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedSite creates a store with a system context, course 7 (context 15) and a
// forum module (context 90). User 5 may earn XP in the course, user 6 may not.
func seedSite(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "site.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutContext(ctx, 1, platform.ContextSystem, 0, "/1"))
	require.NoError(t, store.PutContext(ctx, 15, platform.ContextCourse, 7, "/1/3/15"))
	require.NoError(t, store.PutContext(ctx, 90, platform.ContextModule, 4, "/1/3/15/90"))
	require.NoError(t, store.PutGrant(ctx, 5, 15, "block/xp:earnxp", platform.PermissionAllow))

	for _, table := range xp.CourseDataTables {
		require.NoError(t, store.PutCourseRow(ctx, table, 7))
		require.NoError(t, store.PutCourseRow(ctx, table, 8))
	}
	require.NoError(t, store.PutFile(ctx, sqlite.File{ContextID: 15, Component: "block_xp", Area: "badges", ItemID: 1, Name: "1.png"}))
	require.NoError(t, store.PutFile(ctx, sqlite.File{ContextID: 15, Component: "block_xp", Area: "badges", ItemID: 2, Name: "2.png"}))
	require.NoError(t, store.PutFile(ctx, sqlite.File{ContextID: 15, Component: "mod_resource", Area: "content", Name: "notes.pdf"}))

	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "xpctl", cmd.Use)

	for _, name := range []string{"migrate", "purge-course", "explain", "publish"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	sqliteFlag := cmd.PersistentFlags().Lookup("sqlite")
	require.NotNil(t, sqliteFlag)
	assert.Equal(t, "", sqliteFlag.DefValue)
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, err := runCLI(t, "--format", "xml", "migrate", "--sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExplain_Golden(t *testing.T) {
	path := seedSite(t)

	out, err := runCLI(t, "--sqlite", path, "explain", "--file", "testdata/events.yaml")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "explain", []byte(out))
}

func TestExplain_JSON(t *testing.T) {
	path := seedSite(t)

	out, err := runCLI(t, "--sqlite", path, "--format", "json", "explain", "--file", "testdata/events.yaml")
	require.NoError(t, err)

	var results []explanation
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 10)
	assert.True(t, results[0].Captured)
	assert.Equal(t, "guest_user", string(results[3].Skip))
}

func TestExplain_SystemContextSetting(t *testing.T) {
	path := seedSite(t)

	// Allowing the system context moves event 7 on to the capability check.
	out, err := runCLI(t, "--sqlite", path, "--context-setting", "10", "explain", "--file", "testdata/events.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "7. \\core\\event\\user_loggedin user=5 course=1 context=system/1: skipped (no_capability)")
}

func TestExplain_RequiresStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := runCLI(t, "explain", "--file", "testdata/events.yaml")
	require.ErrorIs(t, err, errNoStore)
}

func TestPurgeCourse(t *testing.T) {
	path := seedSite(t)

	out, err := runCLI(t, "--sqlite", path, "purge-course", "--course", "7", "--context", "15")
	require.NoError(t, err)
	assert.Equal(t, "purged course 7 (context 15): block_xp=1 block_xp_config=1 block_xp_filters=1 block_xp_log=1 badges=2\n", out)

	out, err = runCLI(t, "--sqlite", path, "purge-course", "--course", "7", "--context", "15")
	require.NoError(t, err)
	assert.Equal(t, "purged course 7 (context 15): block_xp=0 block_xp_config=0 block_xp_filters=0 block_xp_log=0 badges=0\n", out)

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for _, table := range xp.CourseDataTables {
		n, err := store.CountByCourse(ctx, table, 7)
		require.NoError(t, err)
		assert.Zero(t, n, table)

		n, err = store.CountByCourse(ctx, table, 8)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	n, err := store.CountAreaFiles(ctx, 15, "block_xp", "badges")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.CountAreaFiles(ctx, 15, "mod_resource", "content")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPurgeCourse_RejectsInvalidCourse(t *testing.T) {
	path := seedSite(t)

	_, err := runCLI(t, "--sqlite", path, "purge-course", "--course", "0", "--context", "15")
	require.Error(t, err)
}

func TestMigrate_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	out, err := runCLI(t, "--sqlite", path, "migrate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sqlite schema is up to date"))
}

func TestDecodeFixtures(t *testing.T) {
	events, err := decodeFixtures(strings.NewReader(`
events:
  - eventname: '\core\event\course_viewed'
    userid: 5
    contextlevel: 50
    contextid: 15
    edulevel: 2
    courseid: 7
`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, `\core\event\course_viewed`, events[0].Name)
	assert.Equal(t, platform.ContextCourse, events[0].ContextLevel)
	assert.Equal(t, platform.EduLevelParticipating, events[0].EduLevel)

	_, err = decodeFixtures(strings.NewReader("events:\n  - eventname: x\n    usrid: 5\n"))
	require.Error(t, err)

	_, err = decodeFixtures(strings.NewReader("events:\n  - userid: 5\n"))
	require.Error(t, err)

	events, err = decodeFixtures(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, events)
}

// recordingRedis records what the publish bus sends to Redis.
type recordingRedis struct {
	channel  string
	messages []string
	err      error
	sub      chan messaging.RedisMessage
}

func newRecordingRedis() *recordingRedis {
	return &recordingRedis{sub: make(chan messaging.RedisMessage)}
}

func (r *recordingRedis) Publish(ctx context.Context, channel string, message interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.channel = channel
	r.messages = append(r.messages, message.(string))
	return nil
}

func (r *recordingRedis) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	return r.sub, nil
}

func (r *recordingRedis) Close() error { return nil }

func TestPublishEvents(t *testing.T) {
	events, err := loadFixtures("testdata/events.yaml")
	require.NoError(t, err)

	client := newRecordingRedis()
	bus, err := newPublishBus(client, messaging.DefaultEventsChannel, newLogger(&RootOptions{}, io.Discard))
	require.NoError(t, err)
	defer bus.Close()

	n, err := publishEvents(context.Background(), bus, events)
	require.NoError(t, err)
	assert.Equal(t, len(events), n)
	assert.Equal(t, messaging.DefaultEventsChannel, client.channel)
	require.Len(t, client.messages, len(events))

	envelope, ev, err := messaging.DecodeEvent([]byte(client.messages[0]))
	require.NoError(t, err)
	assert.Equal(t, publishInstanceID, envelope.InstanceID)
	assert.Equal(t, events[0].Name, ev.Name)
	assert.Equal(t, int64(7), ev.CourseID)
	assert.Equal(t, events[0].OccurredAt, ev.OccurredAt)
}

func TestPublishEvents_StopsOnError(t *testing.T) {
	client := newRecordingRedis()
	client.err = errors.New("NOAUTH")
	bus, err := newPublishBus(client, "c", newLogger(&RootOptions{}, io.Discard))
	require.NoError(t, err)
	defer bus.Close()

	n, err := publishEvents(context.Background(), bus, []platform.Event{{Name: "a"}, {Name: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event 1")
	assert.Contains(t, err.Error(), "NOAUTH")
	assert.Zero(t, n)
}
