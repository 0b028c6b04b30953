package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventBus_SyncOrderAndErrors(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var calls []string
	first := errors.New("first failed")

	require.NoError(t, bus.Subscribe(platform.EventCourseDeleted, func(ctx context.Context, e platform.Event) error {
		calls = append(calls, "named")
		return first
	}))
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, e platform.Event) error {
		calls = append(calls, "all")
		return nil
	}))

	err := bus.Publish(context.Background(), platform.Event{Name: platform.EventCourseDeleted})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"named", "all"}, calls)

	calls = nil
	err = bus.Publish(context.Background(), platform.Event{Name: platform.EventCourseViewed})
	assert.NoError(t, err)
	assert.Equal(t, []string{"all"}, calls)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(1), snap.HandlerFailures)
}

func TestInMemoryEventBus_RecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, e platform.Event) error {
		panic("boom")
	}))

	err := bus.Publish(context.Background(), platform.Event{Name: "x"})
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestInMemoryEventBus_Validation(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	assert.Error(t, bus.Subscribe("x", nil))
	assert.Error(t, bus.Subscribe("", func(ctx context.Context, e platform.Event) error { return nil }))
	assert.Error(t, bus.SubscribeAll(nil))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), platform.Event{Name: "x"}), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(ctx context.Context, e platform.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_Async(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	seen := 0
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, e platform.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen++
		return errors.New("ignored in async mode")
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), platform.Event{Name: "x"}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 5
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Close())
}

// fakeRedis is an in-process stand-in for Redis Pub/Sub.
type fakeRedis struct {
	mu        sync.Mutex
	published []string
	ch        chan RedisMessage
	err       error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{ch: make(chan RedisMessage, 16)}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	return f.ch, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisEventBus_DeliversRemoteEvents(t *testing.T) {
	client := newFakeRedis()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "me"})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan platform.Event, 4)
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, e platform.Event) error {
		received <- e
		return errors.New("handler errors are logged")
	}))

	ev := platform.Event{
		Name:         platform.EventCourseViewed,
		Component:    "core",
		UserID:       5,
		ContextLevel: platform.ContextCourse,
		ContextID:    70,
		EduLevel:     platform.EduLevelParticipating,
		CourseID:     7,
		ObjectID:     7,
		OccurredAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	remote, err := EncodeEvent("someone-else", ev)
	require.NoError(t, err)
	own, err := EncodeEvent("me", ev)
	require.NoError(t, err)

	client.ch <- RedisMessage{Payload: "not json"}
	client.ch <- RedisMessage{Err: errors.New("connection reset")}
	client.ch <- RedisMessage{Payload: string(own)}
	client.ch <- RedisMessage{Payload: string(remote)}

	select {
	case got := <-received:
		assert.Equal(t, ev, got)
	case <-time.After(time.Second):
		t.Fatal("remote event was not delivered")
	}

	select {
	case got := <-received:
		t.Fatalf("unexpected extra delivery: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisEventBus_PublishGoesToRedisAndLocal(t *testing.T) {
	client := newFakeRedis()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "me"})
	require.NoError(t, err)
	defer bus.Close()

	local := 0
	require.NoError(t, bus.Subscribe(platform.EventCourseDeleted, func(ctx context.Context, e platform.Event) error {
		local++
		return nil
	}))

	ev := platform.Event{Name: platform.EventCourseDeleted, ObjectID: 7, ContextID: 70}
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Equal(t, 1, local)

	require.Len(t, client.published, 1)
	envelope, decoded, err := DecodeEvent([]byte(client.published[0]))
	require.NoError(t, err)
	assert.Equal(t, "me", envelope.InstanceID)
	assert.NotEmpty(t, envelope.ID)
	assert.Equal(t, ev, decoded)
}

func TestRedisEventBus_PublishReportsRedisErrors(t *testing.T) {
	errDown := errors.New("connection refused")
	client := newFakeRedis()
	client.err = errDown
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, ChannelName: "events", InstanceID: "me"})
	require.NoError(t, err)
	defer bus.Close()

	local := 0
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, e platform.Event) error {
		local++
		return nil
	}))

	err = bus.Publish(context.Background(), platform.Event{Name: platform.EventCourseViewed})
	require.ErrorIs(t, err, errDown)
	assert.Contains(t, err.Error(), "to events")
	assert.Equal(t, 1, local, "local handlers still run")
	assert.Empty(t, client.published)
}

func TestNewRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}

func TestDecodeEvent_Errors(t *testing.T) {
	_, _, err := DecodeEvent([]byte(`{`))
	assert.Error(t, err)

	_, _, err = DecodeEvent([]byte(`{"userid": 3}`))
	assert.Error(t, err)

	env, ev, err := DecodeEvent([]byte(`{"id":"a","eventname":"\\core\\event\\course_viewed","userid":3,"contextlevel":50,"edulevel":2}`))
	require.NoError(t, err)
	assert.Equal(t, "a", env.ID)
	assert.Equal(t, platform.EventCourseViewed, ev.Name)
	assert.Equal(t, platform.ContextCourse, ev.ContextLevel)
	assert.Equal(t, platform.EduLevelParticipating, ev.EduLevel)
	assert.True(t, ev.OccurredAt.IsZero())

	_, _, err = DecodeEvent([]byte(`{"eventname":"x","timecreated":"2024-03-01T10:00:00Z"}`))
	assert.Error(t, err)
}

func TestDecodeEvent_HostUnixTimestamp(t *testing.T) {
	_, ev, err := DecodeEvent([]byte(`{"eventname":"\\core\\event\\course_viewed","userid":5,"courseid":7,"timecreated":1700000000}`))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.OccurredAt)
	assert.Equal(t, int64(7), ev.CourseID)

	data, err := EncodeEvent("me", ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timecreated":1700000000`)
}
