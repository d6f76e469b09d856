package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateContractRequest struct {
	BrokerID            uuid.UUID  `json:"brokerId" validate:"required"`
	CategoryID          *uuid.UUID `json:"categoryId,omitempty"`
	PricingModel        string     `json:"pricingModel" validate:"required,oneof=fixed subscription revenue_share"`
	PricePerLeadCents   *int64     `json:"pricePerLeadCents,omitempty" validate:"omitempty,min=0"`
	MonthlyFeeCents     *int64     `json:"monthlyFeeCents,omitempty" validate:"omitempty,min=0"`
	RevenueSharePercent *float64   `json:"revenueSharePercent,omitempty" validate:"omitempty,gt=0,lte=100"`
	FollowupDays        int        `json:"followupDays" validate:"omitempty,min=1,max=90"`
}

type ConfirmContractRequest struct {
	Token string `json:"token" validate:"required"`
}

type ContractResponse struct {
	ID                  uuid.UUID  `json:"id"`
	BrokerID            uuid.UUID  `json:"brokerId"`
	CategoryID          *uuid.UUID `json:"categoryId,omitempty"`
	PricingModel        string     `json:"pricingModel"`
	PricePerLeadCents   *int64     `json:"pricePerLeadCents,omitempty"`
	MonthlyFeeCents     *int64     `json:"monthlyFeeCents,omitempty"`
	RevenueSharePercent *float64   `json:"revenueSharePercent,omitempty"`
	FollowupDays        int        `json:"followupDays"`
	Status              string     `json:"status"`
	ConfirmedAt         *time.Time `json:"confirmedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ContractPublicView is the sanitized confirmation page payload. It omits
// internal ids beyond the contract's own and carries display names instead.
type ContractPublicView struct {
	ID                  uuid.UUID `json:"id"`
	BrokerName          string    `json:"brokerName"`
	CategoryName        string    `json:"categoryName,omitempty"`
	PricingModel        string    `json:"pricingModel"`
	PricePerLeadCents   *int64    `json:"pricePerLeadCents,omitempty"`
	MonthlyFeeCents     *int64    `json:"monthlyFeeCents,omitempty"`
	RevenueSharePercent *float64  `json:"revenueSharePercent,omitempty"`
	FollowupDays        int       `json:"followupDays"`
	Status              string    `json:"status"`
}
