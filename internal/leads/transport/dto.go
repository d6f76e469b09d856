package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	CategoryID uuid.UUID         `json:"categoryId" validate:"required"`
	FirstName  string            `json:"firstName" validate:"omitempty,max=120"`
	LastName   string            `json:"lastName" validate:"omitempty,max=120"`
	Email      string            `json:"email" validate:"omitempty,email"`
	Phone      string            `json:"phone" validate:"omitempty,max=50"`
	PostalCode string            `json:"postalCode" validate:"omitempty,max=20"`
	City       string            `json:"city" validate:"omitempty,max=120"`
	ExtraData  map[string]string `json:"extraData,omitempty"`
	Ownership  string            `json:"ownership" validate:"omitempty,oneof=sold managed"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new available reserved assigned closed"`
}

type ListLeadsRequest struct {
	Status     string     `form:"status"`
	CategoryID *uuid.UUID `form:"categoryId"`
	Limit      int        `form:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int        `form:"offset" validate:"omitempty,min=0"`
}

type LeadResponse struct {
	ID              uuid.UUID         `json:"id"`
	LeadNumber      int64             `json:"leadNumber"`
	CategoryID      uuid.UUID         `json:"categoryId"`
	CategoryName    string            `json:"categoryName,omitempty"`
	SourceID        *uuid.UUID        `json:"sourceId,omitempty"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	Email           *string           `json:"email,omitempty"`
	Phone           *string           `json:"phone,omitempty"`
	PostalCode      *string           `json:"postalCode,omitempty"`
	City            *string           `json:"city,omitempty"`
	ExtraData       map[string]string `json:"extraData,omitempty"`
	Ownership       string            `json:"ownership"`
	Status          string            `json:"status"`
	AssignmentCount int               `json:"assignmentCount"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
	Slug string `json:"slug" validate:"omitempty,max=120"`
}

type CategoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}
