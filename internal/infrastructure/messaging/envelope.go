package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
)

// EventEnvelope is the JSON form of a host event on the wire.
type EventEnvelope struct {
	ID           string `json:"id"`
	InstanceID   string `json:"instance_id,omitempty"`
	Name         string `json:"eventname"`
	Component    string `json:"component"`
	UserID       int64  `json:"userid"`
	Anonymous    bool   `json:"anonymous"`
	ContextLevel int    `json:"contextlevel"`
	ContextID    int64  `json:"contextid"`
	EduLevel     int    `json:"edulevel"`
	CourseID     int64  `json:"courseid"`
	ObjectID     int64  `json:"objectid"`
	TimeCreated  int64  `json:"timecreated"` // unix seconds, 0 when unknown
}

// EncodeEvent serializes an event with a fresh envelope id.
func EncodeEvent(instanceID string, event platform.Event) ([]byte, error) {
	envelope := EventEnvelope{
		ID:           uuid.NewString(),
		InstanceID:   instanceID,
		Name:         event.Name,
		Component:    event.Component,
		UserID:       event.UserID,
		Anonymous:    event.Anonymous,
		ContextLevel: int(event.ContextLevel),
		ContextID:    event.ContextID,
		EduLevel:     int(event.EduLevel),
		CourseID:     event.CourseID,
		ObjectID:     event.ObjectID,
		TimeCreated:  unixSeconds(event.OccurredAt),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an envelope and the event it carries.
func DecodeEvent(data []byte) (EventEnvelope, platform.Event, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return EventEnvelope{}, platform.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if envelope.Name == "" {
		return EventEnvelope{}, platform.Event{}, fmt.Errorf("unmarshal event: missing eventname")
	}

	event := platform.Event{
		Name:         envelope.Name,
		Component:    envelope.Component,
		UserID:       envelope.UserID,
		Anonymous:    envelope.Anonymous,
		ContextLevel: platform.ContextLevel(envelope.ContextLevel),
		ContextID:    envelope.ContextID,
		EduLevel:     platform.EduLevel(envelope.EduLevel),
		CourseID:     envelope.CourseID,
		ObjectID:     envelope.ObjectID,
		OccurredAt:   UnixTime(envelope.TimeCreated),
	}

	return envelope, event, nil
}

// UnixTime converts host unix seconds to UTC time. Zero stays the zero time.
func UnixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// newInstanceID generates a unique instance identifier.
func newInstanceID() string {
	return "observer-" + uuid.NewString()
}
