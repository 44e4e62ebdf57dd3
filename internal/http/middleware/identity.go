package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/treechat-backend/internal/http/response"
	"github.com/yungbote/treechat-backend/internal/requestdata"
)

// RequireIdentity extracts the caller identity from X-User-ID and an
// optional per-request provider key from X-OpenAI-Key or a bearer token.
// Requests without a well-formed identity are rejected.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := requestdata.SanitizeUserID(c.GetHeader("X-User-ID"))
		if userID == "" {
			response.RespondError(c, http.StatusUnauthorized, "missing_identity", errors.New("X-User-ID header required"))
			c.Abort()
			return
		}

		apiKey := strings.TrimSpace(c.GetHeader("X-OpenAI-Key"))
		if apiKey == "" {
			if auth := strings.TrimSpace(c.GetHeader("Authorization")); strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}

		rd := &requestdata.RequestData{UserID: userID, APIKey: apiKey}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}
