package handler

import (
	"net/http"
	"time"

	"leadbroker_backend/internal/billing/service"
	"leadbroker_backend/internal/billing/transport"
	"leadbroker_backend/platform/httpkit"
	"leadbroker_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid invoice id"
)

// Handler handles HTTP requests for invoices and payments.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new billing handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers operator invoice routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/invoices", h.List)
	rg.GET("/invoices/:id", h.GetByID)
	rg.GET("/invoices/:id/document", h.Document)
	rg.POST("/invoices/commission-run", h.RunCommissions)
}

// RegisterPublicRoutes registers the payment confirmation routes. The
// webhook is authenticated by its provider signature, the verify path by
// knowledge of the invoice number from the post-payment redirect.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhook", h.Webhook)
	rg.POST("/verify", h.Verify)
}

func (h *Handler) List(c *gin.Context) {
	var brokerID *uuid.UUID
	if raw := c.Query("brokerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid broker id", nil)
			return
		}
		brokerID = &id
	}

	result, err := h.svc.List(c.Request.Context(), brokerID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) Document(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Document(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// RunCommissions triggers the monthly commission invoicing for the
// previous calendar month.
func (h *Handler) RunCommissions(c *gin.Context) {
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := monthStart.AddDate(0, -1, 0)

	result, err := h.svc.RunCommissionInvoicing(c.Request.Context(), from, monthStart)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) Verify(c *gin.Context) {
	var req transport.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.VerifyManual(c.Request.Context(), req.InvoiceNumber)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
