package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateBrokerRequest struct {
	CompanyName string  `json:"companyName" validate:"required,min=1,max=200"`
	ContactName string  `json:"contactName" validate:"required,max=120"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	AddressLine *string `json:"addressLine,omitempty" validate:"omitempty,max=200"`
	PostalCode  *string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	City        *string `json:"city,omitempty" validate:"omitempty,max=120"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type UpdateBrokerRequest struct {
	CompanyName *string `json:"companyName,omitempty" validate:"omitempty,min=1,max=200"`
	ContactName *string `json:"contactName,omitempty" validate:"omitempty,max=120"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	AddressLine *string `json:"addressLine,omitempty" validate:"omitempty,max=200"`
	PostalCode  *string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	City        *string `json:"city,omitempty" validate:"omitempty,max=120"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Active      *bool   `json:"active,omitempty"`
}

type BrokerResponse struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"companyName"`
	ContactName string    `json:"contactName"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	AddressLine *string   `json:"addressLine,omitempty"`
	PostalCode  *string   `json:"postalCode,omitempty"`
	City        *string   `json:"city,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ListBrokersRequest struct {
	ActiveOnly bool `form:"activeOnly"`
}
