package transport

import (
	"time"

	"github.com/google/uuid"
)

type VerifyPaymentRequest struct {
	InvoiceNumber string `json:"invoiceNumber" validate:"required"`
}

// PaymentResult is the outcome of a payment confirmation, webhook or
// manual. AlreadyPaid means the confirmation was a retry and nothing
// was delivered again.
type PaymentResult struct {
	Success       bool      `json:"success"`
	AlreadyPaid   bool      `json:"alreadyPaid"`
	InvoiceID     uuid.UUID `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Delivered     bool      `json:"delivered"`
}

type InvoiceItemResponse struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
}

type InvoiceResponse struct {
	ID             uuid.UUID  `json:"id"`
	InvoiceNumber  string     `json:"invoiceNumber"`
	BrokerID       uuid.UUID  `json:"brokerId"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	AmountCents    int64      `json:"amountCents"`
	Description    string     `json:"description"`
	DueDate        time.Time  `json:"dueDate"`
	AssignmentID   *uuid.UUID `json:"assignmentId,omitempty"`
	PackageID      *uuid.UUID `json:"packageId,omitempty"`
	PaymentLinkURL *string    `json:"paymentLinkUrl,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// InvoiceDocument is the printable document model for one invoice.
type InvoiceDocument struct {
	InvoiceNumber string                `json:"invoiceNumber"`
	Status        string                `json:"status"`
	IssuedAt      time.Time             `json:"issuedAt"`
	DueDate       time.Time             `json:"dueDate"`
	PaidAt        *time.Time            `json:"paidAt,omitempty"`
	Recipient     DocumentRecipient     `json:"recipient"`
	Items         []InvoiceItemResponse `json:"items"`
	TotalCents    int64                 `json:"totalCents"`
	PaymentURL    string                `json:"paymentUrl,omitempty"`
}

type DocumentRecipient struct {
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName"`
	AddressLine string `json:"addressLine,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	City        string `json:"city,omitempty"`
	Email       string `json:"email"`
}
