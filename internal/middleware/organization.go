package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OrgHeader carries the calling organization on every request, and is
// forwarded verbatim to the fee engine.
const OrgHeader = "X-Organization-Id"

const orgIDKey = contextKey("organizationID")

// OrganizationMiddleware extracts the organization ID header into the
// request context. When required is true, requests without the header are
// rejected with 400 before reaching a handler.
func OrganizationMiddleware(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetHeader(OrgHeader)
		if orgID == "" && required {
			GetLoggerFromCtx(c.Request.Context()).Warn("Organization header missing")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": OrgHeader + " header is required"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), orgIDKey, orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetOrgIDFromContext retrieves the organization ID from the request
// context. It returns the ID and a boolean indicating if it was found.
func GetOrgIDFromContext(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(orgIDKey).(string)
	if !ok || orgID == "" {
		return "", false
	}
	return orgID, true
}
