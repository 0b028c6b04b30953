// Package xp declares the contract between the observer and the XP engine.
// The engine itself (points, levels, badges) lives elsewhere.
package xp

import (
	"context"
	"fmt"
	"sync"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/shared"
	"github.com/alem-hub/xp-observer/pkg/circuitbreaker"
)

// Manager awards experience for the events of one course.
type Manager interface {
	CaptureEvent(ctx context.Context, event platform.Event) error
}

// ManagerResolver finds the manager of a course.
type ManagerResolver interface {
	ManagerFor(ctx context.Context, courseID int64) (Manager, error)
}

// ManagerFactory builds the manager of a course.
type ManagerFactory func(ctx context.Context, courseID int64) (Manager, error)

// Registry is a ManagerResolver that keeps one manager per course.
type Registry struct {
	mu       sync.Mutex
	factory  ManagerFactory
	managers map[int64]Manager
}

// NewRegistry creates a registry that builds managers with factory.
func NewRegistry(factory ManagerFactory) *Registry {
	return &Registry{
		factory:  factory,
		managers: make(map[int64]Manager),
	}
}

// ManagerFor returns the course manager, building it on first use.
func (r *Registry) ManagerFor(ctx context.Context, courseID int64) (Manager, error) {
	if courseID <= 0 {
		return nil, fmt.Errorf("%w: %d", shared.ErrInvalidCourseID, courseID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[courseID]; ok {
		return m, nil
	}

	if r.factory == nil {
		return nil, fmt.Errorf("%w: course %d", shared.ErrManagerUnavailable, courseID)
	}

	m, err := r.factory(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("build manager for course %d: %w", courseID, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: course %d", shared.ErrManagerUnavailable, courseID)
	}

	r.managers[courseID] = m
	return m, nil
}

// Forget drops the cached manager of a course, e.g. after the course is deleted.
func (r *Registry) Forget(courseID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, courseID)
}

// Len returns the number of managers built so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Guard wraps factory so that every manager it builds captures through
// breaker. All courses share the breaker since they share the engine.
func Guard(factory ManagerFactory, breaker *circuitbreaker.CircuitBreaker) ManagerFactory {
	if breaker == nil {
		return factory
	}
	return func(ctx context.Context, courseID int64) (Manager, error) {
		m, err := factory(ctx, courseID)
		if err != nil || m == nil {
			return m, err
		}
		return &guardedManager{next: m, breaker: breaker}, nil
	}
}

type guardedManager struct {
	next    Manager
	breaker *circuitbreaker.CircuitBreaker
}

func (g *guardedManager) CaptureEvent(ctx context.Context, event platform.Event) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.CaptureEvent(ctx, event)
	})
}

// CourseDataTables lists the plugin tables holding per-course rows, in the
// order they are purged when a course goes away.
var CourseDataTables = []string{
	"block_xp",
	"block_xp_config",
	"block_xp_filters",
	"block_xp_log",
}

// IsCourseDataTable reports whether table is one of CourseDataTables.
func IsCourseDataTable(table string) bool {
	for _, t := range CourseDataTables {
		if t == table {
			return true
		}
	}
	return false
}
