// Package observer connects the XP plugin to the host event bus.
//
// Two handlers are registered:
//  1. CourseDeleted purges the plugin data of a deleted course.
//  2. CatchAll sees every event, filters it, and hands the survivors to the
//     XP manager of the event's course.
//
// The observer owns no state besides the allowed context levels it receives at
// construction. Every failure from a host service or a manager is returned to
// the bus unchanged (wrapped), nothing is retried here.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
)

// Dependencies are the host services and collaborators the observer calls.
type Dependencies struct {
	Records      platform.RecordStore
	Files        platform.FileStore
	Users        platform.UserDirectory
	Capabilities platform.CapabilityChecker
	Managers     xp.ManagerResolver
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Records == nil {
		errs = append(errs, errors.New("record store is required"))
	}
	if d.Files == nil {
		errs = append(errs, errors.New("file store is required"))
	}
	if d.Users == nil {
		errs = append(errs, errors.New("user directory is required"))
	}
	if d.Capabilities == nil {
		errs = append(errs, errors.New("capability checker is required"))
	}
	if d.Managers == nil {
		errs = append(errs, errors.New("manager resolver is required"))
	}
	return errors.Join(errs...)
}

// courseForgetter is implemented by resolvers that cache per-course managers.
type courseForgetter interface {
	Forget(courseID int64)
}

// Observer holds the two event handlers of the plugin.
type Observer struct {
	records      platform.RecordStore
	files        platform.FileStore
	users        platform.UserDirectory
	capabilities platform.CapabilityChecker
	managers     xp.ManagerResolver

	allowed AllowedContexts
	chain   []rule
	logger  *slog.Logger
}

// New creates an observer. allowed is usually built once with
// NewAllowedContexts from the loaded configuration.
func New(deps Dependencies, allowed AllowedContexts, logger *slog.Logger) (*Observer, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Observer{
		records:      deps.Records,
		files:        deps.Files,
		users:        deps.Users,
		capabilities: deps.Capabilities,
		managers:     deps.Managers,
		allowed:      allowed,
		logger:       logger.With("component", "observer"),
	}
	o.chain = o.rules()

	return o, nil
}

// Register subscribes both handlers on the host bus.
func (o *Observer) Register(sub platform.Subscriber) error {
	if err := sub.Subscribe(platform.EventCourseDeleted, o.CourseDeleted); err != nil {
		return fmt.Errorf("subscribe %s: %w", platform.EventCourseDeleted, err)
	}
	if err := sub.SubscribeAll(o.CatchAll); err != nil {
		return fmt.Errorf("subscribe all: %w", err)
	}
	return nil
}

// CourseDeleted removes the data left behind by a deleted course: the rows of
// every course data table and the badge files of the course context.
// Deleting data that is already gone is not an error.
func (o *Observer) CourseDeleted(ctx context.Context, event platform.Event) error {
	courseID := event.ObjectID

	for _, table := range xp.CourseDataTables {
		if err := o.records.DeleteByCourse(ctx, table, courseID); err != nil {
			return fmt.Errorf("delete %s rows of course %d: %w", table, courseID, err)
		}
	}

	if err := o.files.DeleteAreaFiles(ctx, event.ContextID, Component, BadgesFileArea); err != nil {
		return fmt.Errorf("delete %s files of context %d: %w", BadgesFileArea, event.ContextID, err)
	}

	if f, ok := o.managers.(courseForgetter); ok {
		f.Forget(courseID)
	}

	o.logger.Info("course data purged",
		"course_id", courseID,
		"context_id", event.ContextID,
	)

	return nil
}

// CatchAll filters any event and forwards it to the course manager when no
// rule skips it. A site-wide plugin forwards to the site course manager.
func (o *Observer) CatchAll(ctx context.Context, event platform.Event) error {
	decision, err := o.Evaluate(ctx, event)
	if err != nil {
		return err
	}

	if !decision.Captured() {
		o.logger.Debug("event skipped",
			"event", event.Name,
			"user_id", event.UserID,
			"reason", string(decision.Skip),
		)
		return nil
	}

	courseID := o.allowed.CourseFor(event)
	manager, err := o.managers.ManagerFor(ctx, courseID)
	if err != nil {
		return fmt.Errorf("resolve manager: %w", err)
	}

	if err := manager.CaptureEvent(ctx, event); err != nil {
		return fmt.Errorf("capture %s for course %d: %w", event.Name, courseID, err)
	}

	o.logger.Info("event captured",
		"event", event.Name,
		"user_id", event.UserID,
		"course_id", courseID,
	)

	return nil
}

// Evaluate runs the filter chain without forwarding the event.
func (o *Observer) Evaluate(ctx context.Context, event platform.Event) (Decision, error) {
	for _, r := range o.chain {
		matched, err := r.match(ctx, event)
		if err != nil {
			return Decision{Event: event}, fmt.Errorf("rule %s: %w", r.reason, err)
		}
		if matched {
			return Decision{Event: event, Skip: r.reason}, nil
		}
	}
	return Decision{Event: event}, nil
}

// AllowedContexts returns the context levels this observer accepts.
func (o *Observer) AllowedContexts() AllowedContexts {
	return o.allowed
}
