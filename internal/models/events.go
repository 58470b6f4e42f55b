package models

import "time"

// Event types
const (
	EventTypeProductCreated = "PRODUCT_CREATED"
	EventTypeStepRecorded   = "STEP_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductCreatedEvent published after the ledger accepted a product
type ProductCreatedEvent struct {
	BaseEvent
	Product Product `json:"product"`
}

// StepRecordedEvent published after the ledger accepted a step
type StepRecordedEvent struct {
	BaseEvent
	Step Step `json:"step"`
}

// Type returns the event type, used as a message header.
func (e BaseEvent) Type() string {
	return e.EventType
}
