package models

import "fmt"

// StepType is the kind of supply chain step recorded on the ledger.
type StepType uint32

const (
	StepProduction StepType = iota
	StepShipping
	StepTransit
	StepDelivery
)

var stepTypeNames = [...]string{"Production", "Shipping", "Transit", "Delivery"}

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	return int(t) < len(stepTypeNames)
}

func (t StepType) String() string {
	if !t.Valid() {
		return "Unknown"
	}
	return stepTypeNames[t]
}

// Status is the lifecycle state of a product.
type Status uint32

const (
	StatusProduction Status = iota
	StatusInTransit
	StatusInWarehouse
	StatusDelivered
)

var statusNames = [...]string{"Production", "InTransit", "InWarehouse", "Delivered"}

func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// StatusForStep derives the status a product enters when a step of type t
// is accepted.
func StatusForStep(t StepType) (Status, error) {
	switch t {
	case StepProduction:
		return StatusProduction, nil
	case StepShipping:
		return StatusInTransit, nil
	case StepTransit:
		return StatusInWarehouse, nil
	case StepDelivery:
		return StatusDelivered, nil
	default:
		return 0, fmt.Errorf("unknown step type %d", uint32(t))
	}
}

// CurrentState returns the status and location of a product given its steps
// in insertion order. Without steps the creation state applies.
func CurrentState(p Product, steps []Step) (Status, string) {
	if len(steps) == 0 {
		return StatusProduction, p.Location
	}
	last := steps[len(steps)-1]
	status, err := StatusForStep(last.StepType)
	if err != nil {
		return p.CurrentStatus, p.CurrentLocation
	}
	return status, last.Location
}
