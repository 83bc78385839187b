package domain

import "time"

type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
	StatusSkipped DeliveryStatus = "skipped"
)

// DeliveryResult is the per-recipient outcome of one run.
type DeliveryResult struct {
	Email  string         `json:"email"`
	Status DeliveryStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// RunReport aggregates the outcome of a single digest run.
type RunReport struct {
	StartedAt   time.Time        `json:"started_at"`
	Subscribers int              `json:"subscribers"`
	Stories     int              `json:"stories"`
	Sent        int              `json:"sent"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	Results     []DeliveryResult `json:"results"`
	Duration    time.Duration    `json:"duration"`
}
