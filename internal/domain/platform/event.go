// Package platform describes the host learning platform as seen by the XP
// observer: the events it raises and the services it exposes to plugins.
//
// Everything here is owned by the host. The observer only reads events and
// calls the ports declared in ports.go.
package platform

import (
	"fmt"
	"time"
)

// ContextLevel classifies where an event happened.
// Values match the host's numbering so they can be read from its storage as-is.
type ContextLevel int

const (
	ContextSystem         ContextLevel = 10
	ContextUser           ContextLevel = 30
	ContextCourseCategory ContextLevel = 40
	ContextCourse         ContextLevel = 50
	ContextModule         ContextLevel = 70
	ContextBlock          ContextLevel = 80
)

// SiteCourseID is the id of the host's front page course. Events raised
// outside any course belong to it.
const SiteCourseID int64 = 1

// String returns the host's name for the level.
func (l ContextLevel) String() string {
	switch l {
	case ContextSystem:
		return "system"
	case ContextUser:
		return "user"
	case ContextCourseCategory:
		return "coursecat"
	case ContextCourse:
		return "course"
	case ContextModule:
		return "module"
	case ContextBlock:
		return "block"
	default:
		return fmt.Sprintf("context(%d)", int(l))
	}
}

// EduLevel tells whether an event is a participant's own action.
type EduLevel int

const (
	EduLevelOther         EduLevel = 0
	EduLevelTeaching      EduLevel = 1
	EduLevelParticipating EduLevel = 2
)

// String returns a short label for the level.
func (l EduLevel) String() string {
	switch l {
	case EduLevelOther:
		return "other"
	case EduLevelTeaching:
		return "teaching"
	case EduLevelParticipating:
		return "participating"
	default:
		return fmt.Sprintf("edulevel(%d)", int(l))
	}
}

// Host event names the observer cares about.
const (
	EventCourseDeleted = `\core\event\course_deleted`
	EventCourseViewed  = `\core\event\course_viewed`
)

// Event is a host platform event. It is never modified after it is raised.
type Event struct {
	// Name is the fully qualified event class, e.g. \core\event\course_viewed.
	Name string

	// Component is the frankenstyle name of the component that raised it.
	Component string

	// UserID is the acting user. Zero means nobody is logged in.
	UserID int64

	Anonymous    bool
	ContextLevel ContextLevel
	ContextID    int64
	EduLevel     EduLevel
	CourseID     int64

	// ObjectID is the id of the object the event is about. For
	// course_deleted it is the course id.
	ObjectID int64

	OccurredAt time.Time
}

// HasUser reports whether someone was acting when the event was raised.
func (e Event) HasUser() bool {
	return e.UserID > 0
}
