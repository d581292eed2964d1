// Package notify delivers booking confirmations to the notification service.
// Delivery is best effort: nothing here can fail or delay a booking.
package notify

import (
	"context"
	"time"
)

// BookingConfirmation is the payload of one confirmation.
type BookingConfirmation struct {
	Recipient   string    `json:"recipient"`
	PatientName string    `json:"patientName"`
	ServiceName string    `json:"serviceName"`
	StartAt     time.Time `json:"startAt"`
	ClinicName  string    `json:"clinicName,omitempty"`
}

// Sink sends one confirmation. Implementations honour ctx cancellation.
type Sink interface {
	Send(ctx context.Context, msg BookingConfirmation) error
	Close() error
}
