package platform

import "context"

// Handler reacts to a single host event.
type Handler func(ctx context.Context, event Event) error

// Subscriber is the part of the host event bus a plugin registers with.
type Subscriber interface {
	// Subscribe registers a handler for one event name.
	Subscribe(name string, handler Handler) error

	// SubscribeAll registers a handler for every event.
	SubscribeAll(handler Handler) error
}

// Publisher raises events on the host bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// CapabilityChecker answers permission questions for a user in a context.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, capability string, contextID, userID int64) (bool, error)
}

// UserDirectory knows the special accounts of the site.
type UserDirectory interface {
	IsGuest(ctx context.Context, userID int64) (bool, error)
	IsSiteAdmin(ctx context.Context, userID int64) (bool, error)
}

// RecordStore deletes plugin rows that belong to a course.
type RecordStore interface {
	DeleteByCourse(ctx context.Context, table string, courseID int64) error
}

// FileStore manages stored files grouped in areas.
type FileStore interface {
	DeleteAreaFiles(ctx context.Context, contextID int64, component, area string) error
}
