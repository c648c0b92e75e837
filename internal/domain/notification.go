package domain

import (
	"context"
	"time"
)

// EventType identifies a notification event.
type EventType string

const (
	EventApplicationCreated EventType = "application.created"
	EventApplicationDecided EventType = "application.decided"
)

// Event is the payload handed to the notification collaborator. Recipient
// fields are resolved by the producer so consumers need no store access.
type Event struct {
	Type           EventType `json:"type"`
	ApplicationID  string    `json:"applicationId"`
	PropertyID     string    `json:"propertyId"`
	PropertyTitle  string    `json:"propertyTitle"`
	TenantID       string    `json:"tenantId"`
	OwnerID        string    `json:"ownerId"`
	Status         Status    `json:"status,omitempty"`
	OwnerResponse  string    `json:"ownerResponse,omitempty"`
	AutoRejected   bool      `json:"autoRejected,omitempty"`
	RecipientName  string    `json:"recipientName"`
	RecipientEmail string    `json:"recipientEmail"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Notifier dispatches an event best-effort. Callers log and swallow errors:
// a failed notification must never fail the state change that produced it.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
