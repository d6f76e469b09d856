package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreatePackageRequest struct {
	BrokerID         uuid.UUID  `json:"brokerId" validate:"required"`
	Name             string     `json:"name" validate:"required,max=200"`
	CategoryID       *uuid.UUID `json:"categoryId,omitempty"`
	TotalLeads       int        `json:"totalLeads" validate:"required,min=1,max=1000"`
	PriceCents       int64      `json:"priceCents" validate:"required,min=1"`
	DistributionType string     `json:"distributionType" validate:"required,oneof=instant distributed"`
	LeadsPerDay      int        `json:"leadsPerDay" validate:"omitempty,min=1"`
}

// CreateSelectionPackageRequest creates a package from hand-picked leads.
// The leads are reserved until the invoice is paid.
type CreateSelectionPackageRequest struct {
	BrokerID   uuid.UUID   `json:"brokerId" validate:"required"`
	Name       string      `json:"name" validate:"required,max=200"`
	LeadIDs    []uuid.UUID `json:"leadIds" validate:"required,min=1,max=1000,dive,required"`
	PriceCents int64       `json:"priceCents" validate:"required,min=1"`
}

type PackageResponse struct {
	ID               uuid.UUID   `json:"id"`
	BrokerID         uuid.UUID   `json:"brokerId"`
	Name             string      `json:"name"`
	CategoryID       *uuid.UUID  `json:"categoryId,omitempty"`
	TotalLeads       int         `json:"totalLeads"`
	DeliveredLeads   int         `json:"deliveredLeads"`
	PriceCents       int64       `json:"priceCents"`
	DistributionType string      `json:"distributionType"`
	LeadsPerDay      int         `json:"leadsPerDay"`
	Status           string      `json:"status"`
	ReservedLeadIDs  []uuid.UUID `json:"reservedLeadIds,omitempty"`
	NextDeliveryDate *time.Time  `json:"nextDeliveryDate,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

type InvoiceSummary struct {
	ID            uuid.UUID `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	AmountCents   int64     `json:"amountCents"`
	DueDate       time.Time `json:"dueDate"`
	PaymentURL    string    `json:"paymentUrl,omitempty"`
}

type CreatePackageResponse struct {
	Success    bool            `json:"success"`
	Package    PackageResponse `json:"package"`
	Invoice    InvoiceSummary  `json:"invoice"`
	EmailSent  bool            `json:"emailSent"`
	EmailError string          `json:"emailError,omitempty"`
}

// DeliveryResult reports one delivery run for one package.
type DeliveryResult struct {
	PackageID uuid.UUID `json:"packageId"`
	Delivered int       `json:"delivered"`
	Remaining int       `json:"remaining"`
	Completed bool      `json:"completed"`
	NoLeads   bool      `json:"noLeads"`
}

// SweepResult summarizes one distribution sweep across all due packages.
type SweepResult struct {
	Skipped   bool `json:"skipped"`
	Due       int  `json:"due"`
	Delivered int  `json:"delivered"`
	NoLeads   int  `json:"noLeads"`
	Failed    int  `json:"failed"`
}
