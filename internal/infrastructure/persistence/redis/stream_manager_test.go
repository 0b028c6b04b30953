package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
)

type recordingStream struct {
	added []*redis.XAddArgs
	err   error
}

func (r *recordingStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	r.added = append(r.added, a)
	return redis.NewStringResult("1-0", r.err)
}

func TestStreamManager_CaptureEvent(t *testing.T) {
	stream := &recordingStream{}
	registry := xp.NewRegistry(StreamManagerFactory(stream, "", 1000))

	manager, err := registry.ManagerFor(context.Background(), 7)
	require.NoError(t, err)

	event := platform.Event{
		Name:         platform.EventCourseViewed,
		Component:    "core",
		UserID:       5,
		ContextLevel: platform.ContextCourse,
		ContextID:    15,
		EduLevel:     platform.EduLevelParticipating,
		CourseID:     7,
		OccurredAt:   time.Unix(1700000000, 0),
	}
	require.NoError(t, manager.CaptureEvent(context.Background(), event))

	require.Len(t, stream.added, 1)
	args := stream.added[0]
	assert.Equal(t, DefaultCaptureStream, args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "7", values["courseid"])
	assert.Equal(t, "5", values["userid"])
	assert.Equal(t, "50", values["contextlevel"])
	assert.Equal(t, "1700000000", values["timecreated"])
	assert.NotEmpty(t, values["id"])
}

func TestStreamManager_PropagatesErrors(t *testing.T) {
	stream := &recordingStream{err: errors.New("READONLY")}
	manager, err := StreamManagerFactory(stream, "custom", 0)(context.Background(), 7)
	require.NoError(t, err)

	err = manager.CaptureEvent(context.Background(), platform.Event{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
	assert.Zero(t, stream.added[0].MaxLen)
}
