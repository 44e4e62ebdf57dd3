package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/treechat-backend/internal/http/response"
	"github.com/yungbote/treechat-backend/internal/pkg/apierr"
)

// respondServiceError maps a service error onto its HTTP status and code.
func respondServiceError(c *gin.Context, err error) {
	response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
}
