package webhook

import (
	"net/http"
	"time"

	"leadbroker_backend/platform/httpkit"
	"leadbroker_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles inbound submissions and lead source administration.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a new webhook handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

type createSourceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type setSourceActiveRequest struct {
	Active bool `json:"active"`
}

type sourceResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	TokenPrefix string    `json:"tokenPrefix"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HandleIngest accepts an arbitrary JSON submission on the token-protected
// public endpoint. The resolved source is placed in the context by the
// token middleware.
func (h *Handler) HandleIngest(c *gin.Context) {
	source := MustGetSource(c)
	if source == nil {
		return
	}

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "body must be a JSON object", nil)
		return
	}

	leadID, err := h.svc.ProcessSubmission(c.Request.Context(), *source, payload)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "leadId": leadID})
}

func (h *Handler) HandleCreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	src, plaintext, err := h.svc.CreateSource(c.Request.Context(), req.Name)
	if httpkit.HandleError(c, err) {
		return
	}

	// The plaintext token is shown exactly once.
	c.JSON(http.StatusCreated, gin.H{
		"source": mapSourceResponse(src),
		"token":  plaintext,
	})
}

func (h *Handler) HandleListSources(c *gin.Context) {
	sources, err := h.svc.ListSources(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, mapSourceResponse(src))
	}
	httpkit.OK(c, out)
}

func (h *Handler) HandleSetSourceActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid source id", nil)
		return
	}

	var req setSourceActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	if err := h.svc.SetSourceActive(c.Request.Context(), id, req.Active); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"active": req.Active})
}

func (h *Handler) HandleDeleteSource(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid source id", nil)
		return
	}

	if err := h.svc.DeleteSource(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"deleted": true})
}

func mapSourceResponse(src LeadSource) sourceResponse {
	return sourceResponse{
		ID:          src.ID,
		Name:        src.Name,
		TokenPrefix: src.TokenPrefix,
		Active:      src.Active,
		CreatedAt:   src.CreatedAt,
	}
}
