package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
)

// DefaultCaptureStream is the stream the XP engine consumes captured events from.
const DefaultCaptureStream = "block_xp:captured"

// StreamAdder is the stream command the manager needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamManager is an xp.Manager that hands captured events to the XP engine
// by appending them to a Redis stream.
type StreamManager struct {
	client   StreamAdder
	stream   string
	courseID int64
	maxLen   int64
}

// StreamManagerFactory returns an xp.ManagerFactory producing stream managers
// that all append to stream. maxLen caps the stream length approximately; zero
// leaves it unbounded.
func StreamManagerFactory(client StreamAdder, stream string, maxLen int64) xp.ManagerFactory {
	if stream == "" {
		stream = DefaultCaptureStream
	}
	return func(ctx context.Context, courseID int64) (xp.Manager, error) {
		return &StreamManager{
			client:   client,
			stream:   stream,
			courseID: courseID,
			maxLen:   maxLen,
		}, nil
	}
}

// CaptureEvent appends the event to the stream.
func (m *StreamManager) CaptureEvent(ctx context.Context, event platform.Event) error {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	args := &redis.XAddArgs{
		Stream: m.stream,
		Values: map[string]interface{}{
			"id":           uuid.NewString(),
			"courseid":     strconv.FormatInt(m.courseID, 10),
			"eventname":    event.Name,
			"component":    event.Component,
			"userid":       strconv.FormatInt(event.UserID, 10),
			"contextid":    strconv.FormatInt(event.ContextID, 10),
			"contextlevel": strconv.Itoa(int(event.ContextLevel)),
			"edulevel":     strconv.Itoa(int(event.EduLevel)),
			"objectid":     strconv.FormatInt(event.ObjectID, 10),
			"timecreated":  strconv.FormatInt(occurred.Unix(), 10),
		},
	}
	if m.maxLen > 0 {
		args.MaxLen = m.maxLen
		args.Approx = true
	}

	if err := m.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append to %s: %w", m.stream, err)
	}
	return nil
}
