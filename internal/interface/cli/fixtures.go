package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/infrastructure/messaging"
)

// fixtureFile is the YAML layout of an event fixture file.
type fixtureFile struct {
	Events []fixtureEvent `yaml:"events"`
}

type fixtureEvent struct {
	EventName    string `yaml:"eventname"`
	Component    string `yaml:"component"`
	UserID       int64  `yaml:"userid"`
	Anonymous    bool   `yaml:"anonymous"`
	ContextLevel int    `yaml:"contextlevel"`
	ContextID    int64  `yaml:"contextid"`
	EduLevel     int    `yaml:"edulevel"`
	CourseID     int64  `yaml:"courseid"`
	ObjectID     int64  `yaml:"objectid"`
	TimeCreated  int64  `yaml:"timecreated"` // unix seconds
}

func (f fixtureEvent) event() platform.Event {
	return platform.Event{
		Name:         f.EventName,
		Component:    f.Component,
		UserID:       f.UserID,
		Anonymous:    f.Anonymous,
		ContextLevel: platform.ContextLevel(f.ContextLevel),
		ContextID:    f.ContextID,
		EduLevel:     platform.EduLevel(f.EduLevel),
		CourseID:     f.CourseID,
		ObjectID:     f.ObjectID,
		OccurredAt:   messaging.UnixTime(f.TimeCreated),
	}
}

// decodeFixtures reads events from YAML. Unknown keys are rejected so typos
// do not silently become zero values.
func decodeFixtures(r io.Reader) ([]platform.Event, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file fixtureFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	events := make([]platform.Event, 0, len(file.Events))
	for i, f := range file.Events {
		if f.EventName == "" {
			return nil, fmt.Errorf("fixture %d: eventname is required", i+1)
		}
		events = append(events, f.event())
	}
	return events, nil
}

func loadFixtures(path string) ([]platform.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeFixtures(f)
}
