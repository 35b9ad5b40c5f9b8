// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	RunStarted   EventType = "RUN_STARTED"
	RunProgress  EventType = "RUN_PROGRESS"
	RunCompleted EventType = "RUN_COMPLETED"
	RunFailed    EventType = "RUN_FAILED"

	ScheduledRunSkipped EventType = "SCHEDULED_RUN_SKIPPED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
