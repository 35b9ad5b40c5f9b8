package events

import "encoding/json"

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	Assets     int    `json:"assets"`
	Candidates int    `json:"candidates"`
	Mode       string `json:"mode"` // "table" or "minimize"
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunProgressData contains data for RunProgress events
type RunProgressData struct {
	RunID string `json:"run_id"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// EventType returns the event type for RunProgressData
func (d *RunProgressData) EventType() EventType {
	return RunProgress
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID         string  `json:"run_id"`
	BestIndex     int     `json:"best_index"`
	BestObjective float64 `json:"best_objective"`
	Feasible      bool    `json:"feasible"`
	DurationMs    int64   `json:"duration_ms"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// ScheduledRunSkippedData contains data for ScheduledRunSkipped events
type ScheduledRunSkippedData struct {
	Reason string `json:"reason"`
}

// EventType returns the event type for ScheduledRunSkippedData
func (d *ScheduledRunSkippedData) EventType() EventType {
	return ScheduledRunSkipped
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// toMap flattens typed data into the map carried by Event.
func toMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
