// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadbroker_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// LeadContact is the contact payload included in delivery notifications.
// It is only attached to events fired after the contact data is unlocked.
type LeadContact struct {
	LeadID     uuid.UUID         `json:"leadId"`
	LeadNumber int64             `json:"leadNumber"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	PostalCode string            `json:"postalCode"`
	City       string            `json:"city"`
	Category   string            `json:"category"`
	ExtraData  map[string]string `json:"extraData,omitempty"`
}

// =============================================================================
// Ingestion Domain Events
// =============================================================================

// LeadCaptured is published when the ingestion layer creates a new lead.
type LeadCaptured struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LeadNumber int64     `json:"leadNumber"`
	CategoryID uuid.UUID `json:"categoryId"`
	SourceID   uuid.UUID `json:"sourceId"`
	Channel    string    `json:"channel"` // "webhook", "adplatform", "manual"
}

func (e LeadCaptured) EventName() string { return "leads.captured" }

// =============================================================================
// Assignment Domain Events
// =============================================================================

// LeadDelivered is published when an assignment unlocks and the broker
// should receive the full contact data.
type LeadDelivered struct {
	BaseEvent
	AssignmentID uuid.UUID   `json:"assignmentId"`
	BrokerID     uuid.UUID   `json:"brokerId"`
	BrokerName   string      `json:"brokerName"`
	BrokerEmail  string      `json:"brokerEmail"`
	Lead         LeadContact `json:"lead"`
}

func (e LeadDelivered) EventName() string { return "assignments.lead.delivered" }

// LeadsDeliveredBulk is published once for a bulk assignment so the broker
// gets a single consolidated notification.
type LeadsDeliveredBulk struct {
	BaseEvent
	BrokerID    uuid.UUID   `json:"brokerId"`
	BrokerName  string      `json:"brokerName"`
	BrokerEmail string      `json:"brokerEmail"`
	Leads       []LeadContact `json:"leads"`
}

func (e LeadsDeliveredBulk) EventName() string { return "assignments.leads.delivered_bulk" }

// FollowupRequested is published when a revenue-share assignment is due for
// a broker status update.
type FollowupRequested struct {
	BaseEvent
	AssignmentID uuid.UUID `json:"assignmentId"`
	BrokerID     uuid.UUID `json:"brokerId"`
	BrokerName   string    `json:"brokerName"`
	BrokerEmail  string    `json:"brokerEmail"`
	LeadName     string    `json:"leadName"`
	FeedbackURL  string    `json:"feedbackUrl"`
}

func (e FollowupRequested) EventName() string { return "assignments.followup.requested" }

// =============================================================================
// Billing Domain Events
// =============================================================================

// PaymentRequired is published when an invoice with a payment link is
// waiting for the broker to pay before delivery.
type PaymentRequired struct {
	BaseEvent
	InvoiceID     uuid.UUID `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	BrokerID      uuid.UUID `json:"brokerId"`
	BrokerName    string    `json:"brokerName"`
	BrokerEmail   string    `json:"brokerEmail"`
	AmountCents   int64     `json:"amountCents"`
	PaymentURL    string    `json:"paymentUrl"`
	DueDate       string    `json:"dueDate"`
}

func (e PaymentRequired) EventName() string { return "billing.payment.required" }

// InvoicePaid is published after a payment confirmation marks an invoice paid.
type InvoicePaid struct {
	BaseEvent
	InvoiceID     uuid.UUID `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	BrokerID      uuid.UUID `json:"brokerId"`
	BrokerName    string    `json:"brokerName"`
	BrokerEmail   string    `json:"brokerEmail"`
}

func (e InvoicePaid) EventName() string { return "billing.invoice.paid" }

// =============================================================================
// Contract Domain Events
// =============================================================================

// ContractCreated is published when a pending contract needs broker confirmation.
type ContractCreated struct {
	BaseEvent
	ContractID   uuid.UUID `json:"contractId"`
	BrokerID     uuid.UUID `json:"brokerId"`
	BrokerName   string    `json:"brokerName"`
	BrokerEmail  string    `json:"brokerEmail"`
	PricingModel string    `json:"pricingModel"`
	ConfirmURL   string    `json:"confirmUrl"`
}

func (e ContractCreated) EventName() string { return "contracts.created" }

// =============================================================================
// Package Domain Events
// =============================================================================

// PackageLeadsDelivered is published after a package delivery run hands
// leads to the broker.
type PackageLeadsDelivered struct {
	BaseEvent
	PackageID   uuid.UUID     `json:"packageId"`
	PackageName string        `json:"packageName"`
	BrokerID    uuid.UUID     `json:"brokerId"`
	BrokerName  string        `json:"brokerName"`
	BrokerEmail string        `json:"brokerEmail"`
	Leads       []LeadContact `json:"leads"`
	Completed   bool          `json:"completed"`
}

func (e PackageLeadsDelivered) EventName() string { return "packages.leads.delivered" }

// =============================================================================
// Notification Infrastructure Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler when an outbox row is
// due for (re)delivery.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
