package webhook

import (
	"leadbroker_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const contextSourceKey = "leadSource"

// TokenAuth resolves the :token path parameter to an active lead source and
// stores it in the request context. Unknown or inactive tokens get a 401.
func (s *Service) TokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		source, err := s.ResolveSource(c.Request.Context(), c.Param("token"))
		if err != nil {
			httpkit.HandleError(c, err)
			c.Abort()
			return
		}
		c.Set(contextSourceKey, source)
		c.Next()
	}
}

// MustGetSource fetches the lead source placed in the context by TokenAuth.
func MustGetSource(c *gin.Context) *LeadSource {
	value, exists := c.Get(contextSourceKey)
	if !exists {
		httpkit.Error(c, 401, "missing ingestion token", nil)
		c.Abort()
		return nil
	}
	source, ok := value.(LeadSource)
	if !ok {
		httpkit.Error(c, 500, "invalid source context", nil)
		c.Abort()
		return nil
	}
	return &source
}
