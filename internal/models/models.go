package models

import "time"

// Product is the mirrored view of a registered product. CurrentStatus and
// CurrentLocation are denormalized from the latest accepted step.
type Product struct {
	ProductID       string    `db:"product_id" json:"product_id"`
	SerialNumber    string    `db:"serial_number" json:"serial_number"`
	Manufacturer    string    `db:"manufacturer" json:"manufacturer"`
	Location        string    `db:"location" json:"location"`
	CurrentStatus   Status    `db:"current_status" json:"current_status"`
	CurrentLocation string    `db:"current_location" json:"current_location"`
	TxHash          string    `db:"tx_hash" json:"tx_hash"`
	LastStepID      *int      `db:"-" json:"last_step_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ProductUpdate is a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	CurrentStatus   *Status
	CurrentLocation *string
	TxHash          *string
	// StepID marks the update as derived from that step. Updates from a step
	// older than the last applied one do not touch status or location.
	StepID *int
}

// Step is one supply chain event of a product.
type Step struct {
	ProductID        string            `db:"product_id" json:"product_id"`
	StepID           int               `db:"step_id" json:"step_id"`
	StepType         StepType          `db:"step_type" json:"step_type"`
	Location         string            `db:"location" json:"location"`
	ResponsibleParty string            `db:"responsible_party" json:"responsible_party"`
	TrackingNumber   string            `db:"tracking_number" json:"tracking_number,omitempty"`
	Metadata         map[string]string `db:"-" json:"metadata,omitempty"`
	TxHash           string            `db:"tx_hash" json:"tx_hash"`
	Timestamp        time.Time         `db:"created_at" json:"timestamp"`
}

// ProductWithSteps is a product detail view.
type ProductWithSteps struct {
	Product
	Steps []Step `json:"steps"`
}
