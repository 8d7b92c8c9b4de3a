// Package observability fans lifecycle events and capture-subprocess log
// lines out to one or more sinks through a bounded worker pool.
package observability

import "time"

// EventType names a lifecycle event a component can raise.
type EventType string

const (
	EventCaptureStart   EventType = "capture_start"
	EventCaptureStop    EventType = "capture_stop"
	EventCaptureRestart EventType = "capture_restart"
	EventSubprocessLog  EventType = "subprocess_log"
	EventAnalysisStart  EventType = "analysis_start"
	EventAnalysisStop   EventType = "analysis_stop"
	EventAlertFired     EventType = "alert_fired"
	EventNotifierSync   EventType = "notifier_sync"
)

// Event is one occurrence of an EventType, carrying whichever identity
// fields are relevant (camera/instance/rule) in Data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	CameraID  int32
	Data      map[string]any
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now(), Data: make(map[string]any)}
}

// WithCamera sets the event's camera id.
func (e Event) WithCamera(id int32) Event {
	e.CameraID = id
	return e
}

// WithData adds a data field, returning the event for chaining.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}
