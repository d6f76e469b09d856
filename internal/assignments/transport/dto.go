package transport

import (
	"time"

	"github.com/google/uuid"
)

type AssignRequest struct {
	LeadID              uuid.UUID `json:"leadId" validate:"required"`
	BrokerID            uuid.UUID `json:"brokerId" validate:"required"`
	PricingModel        string    `json:"pricingModel" validate:"omitempty,oneof=fixed single subscription revenue_share"`
	PriceChargedCents   *int64    `json:"priceChargedCents,omitempty" validate:"omitempty,min=0"`
	RevenueSharePercent *float64  `json:"revenueSharePercent,omitempty" validate:"omitempty,gt=0,lte=100"`
}

type AssignBulkRequest struct {
	LeadIDs             []uuid.UUID `json:"leadIds" validate:"required,min=1,max=100,dive,required"`
	BrokerID            uuid.UUID   `json:"brokerId" validate:"required"`
	PricingModel        string      `json:"pricingModel" validate:"omitempty,oneof=subscription revenue_share"`
	RevenueSharePercent *float64    `json:"revenueSharePercent,omitempty" validate:"omitempty,gt=0,lte=100"`
}

type AssignmentResponse struct {
	ID                  uuid.UUID  `json:"id"`
	LeadID              uuid.UUID  `json:"leadId"`
	BrokerID            uuid.UUID  `json:"brokerId"`
	PricingModel        string     `json:"pricingModel"`
	PriceChargedCents   *int64     `json:"priceChargedCents,omitempty"`
	RevenueSharePercent *float64   `json:"revenueSharePercent,omitempty"`
	Status              string     `json:"status"`
	Unlocked            bool       `json:"unlocked"`
	FollowupResponse    *string    `json:"followupResponse,omitempty"`
	FollowupDate        *time.Time `json:"followupDate,omitempty"`
	FollowupSentAt      *time.Time `json:"followupSentAt,omitempty"`
	FollowupRespondedAt *time.Time `json:"followupRespondedAt,omitempty"`
	FollowupCount       int        `json:"followupCount"`
	CommissionCents     *int64     `json:"commissionCents,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type InvoiceSummary struct {
	ID            uuid.UUID `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	AmountCents   int64     `json:"amountCents"`
	DueDate       time.Time `json:"dueDate"`
	PaymentURL    string    `json:"paymentUrl,omitempty"`
}

type AssignResponse struct {
	Success        bool               `json:"success"`
	Assignment     AssignmentResponse `json:"assignment"`
	InvoiceCreated bool               `json:"invoiceCreated"`
	Invoice        *InvoiceSummary    `json:"invoice,omitempty"`
	EmailSent      bool               `json:"emailSent"`
	EmailError     string             `json:"emailError,omitempty"`
}

type AssignBulkResponse struct {
	Success     bool                 `json:"success"`
	Assignments []AssignmentResponse `json:"assignments"`
	EmailSent   bool                 `json:"emailSent"`
	EmailError  string               `json:"emailError,omitempty"`
}

// FeedbackView is the sanitized assignment+lead payload shown on the
// broker's follow-up page.
type FeedbackView struct {
	AssignmentID  uuid.UUID  `json:"assignmentId"`
	LeadName      string     `json:"leadName"`
	LeadPhone     string     `json:"leadPhone,omitempty"`
	LeadEmail     string     `json:"leadEmail,omitempty"`
	LeadCity      string     `json:"leadCity,omitempty"`
	Category      string     `json:"category,omitempty"`
	Status        string     `json:"status"`
	FollowupCount int        `json:"followupCount"`
	FollowupDate  *time.Time `json:"followupDate,omitempty"`
	LastResponse  *string    `json:"lastResponse,omitempty"`
	RevenueShare  *float64   `json:"revenueSharePercent,omitempty"`
	AssignedAt    time.Time  `json:"assignedAt"`
}

type SubmitFeedbackRequest struct {
	Token           string  `json:"token" validate:"required"`
	Status          string  `json:"status" validate:"required,oneof=not_reached reached scheduled closed"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	DealAmountCents *int64  `json:"dealAmountCents,omitempty" validate:"omitempty,min=0"`
}
