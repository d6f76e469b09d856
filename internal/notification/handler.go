package notification

import (
	"net/http"

	"leadbroker_backend/internal/notification/outbox"
	"leadbroker_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the operator outbox surface: inspect recent notifications
// and trigger a manual resend.
type Handler struct {
	module *Module
	repo   *outbox.Repository
}

// NewHandler creates a new notification handler.
func NewHandler(module *Module, repo *outbox.Repository) *Handler {
	return &Handler{module: module, repo: repo}
}

// OutboxEntryResponse is the operator view of an outbox row.
type OutboxEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Template  string    `json:"template"`
	Recipient string    `json:"recipient"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"lastError,omitempty"`
	RunAt     string    `json:"runAt"`
	CreatedAt string    `json:"createdAt"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// HandleListOutbox lists recent notification attempts.
// GET /api/v1/admin/notifications
func (h *Handler) HandleListOutbox(c *gin.Context) {
	records, err := h.repo.ListRecent(c.Request.Context(), 100)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]OutboxEntryResponse, len(records))
	for i, rec := range records {
		result[i] = OutboxEntryResponse{
			ID:        rec.ID,
			Template:  rec.Template,
			Recipient: rec.Recipient,
			Status:    string(rec.Status),
			Attempts:  rec.Attempts,
			LastError: rec.LastError,
			RunAt:     rec.RunAt.Format(timeFormat),
			CreatedAt: rec.CreatedAt.Format(timeFormat),
		}
	}

	httpkit.OK(c, result)
}

// HandleResend re-queues a notification and attempts immediate delivery.
// POST /api/v1/admin/notifications/:outboxId/resend
func (h *Handler) HandleResend(c *gin.Context) {
	outboxID, err := uuid.Parse(c.Param("outboxId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid outbox ID", nil)
		return
	}

	if err := h.repo.Requeue(c.Request.Context(), outboxID); err != nil {
		if err == outbox.ErrNotFound {
			httpkit.Error(c, http.StatusNotFound, "notification not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	sendErr := h.module.Process(c.Request.Context(), outboxID)
	c.JSON(http.StatusOK, gin.H{
		"resent":     sendErr == nil,
		"emailError": errString(sendErr),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
