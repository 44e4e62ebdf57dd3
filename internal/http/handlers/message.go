package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/http/response"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/requestdata"
	"github.com/yungbote/treechat-backend/internal/services"
)

type MessageHandler struct {
	messages services.MessageService
	fork     services.ForkService
}

func NewMessageHandler(messages services.MessageService, fork services.ForkService) *MessageHandler {
	return &MessageHandler{messages: messages, fork: fork}
}

type appendTurnReq struct {
	TreeID        uuid.UUID   `json:"tree_id" binding:"required"`
	Content       string      `json:"content" binding:"required"`
	ParentID      *uuid.UUID  `json:"parent_id"`
	AttachmentIDs []uuid.UUID `json:"attachment_ids"`
}

func (h *MessageHandler) buildRequest(c *gin.Context, req appendTurnReq) (string, services.AppendTurnRequest) {
	rd := requestdata.GetRequestData(c.Request.Context())
	userID := ""
	apiKey := ""
	if rd != nil {
		userID = rd.UserID
		apiKey = rd.APIKey
	}
	return userID, services.AppendTurnRequest{
		TreeID:        req.TreeID,
		Content:       req.Content,
		ParentID:      req.ParentID,
		AttachmentIDs: req.AttachmentIDs,
		APIKey:        apiKey,
	}
}

// POST /api/messages
func (h *MessageHandler) AppendTurn(c *gin.Context) {
	var req appendTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID, svcReq := h.buildRequest(c, req)
	result, err := h.messages.AppendTurn(c.Request.Context(), userID, svcReq)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// POST /api/messages/stream
//
// Emits server-sent events: one "event: <type>" block per TurnEvent.
func (h *MessageHandler) AppendTurnStream(c *gin.Context) {
	var req appendTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID, svcReq := h.buildRequest(c, req)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	emit := func(ev services.TurnEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := c.Writer.WriteString("event: " + ev.Type + "\ndata: " + string(payload) + "\n\n"); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if err := h.messages.AppendTurnStream(c.Request.Context(), userID, svcReq, emit); err != nil {
		// Headers are already sent, so failures become a terminal error
		// frame instead of a status code.
		_ = emit(services.TurnEvent{Type: services.TurnEventError, Error: err.Error()})
	}
}

// DELETE /api/messages/:id
func (h *MessageHandler) DeleteSubtree(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
		return
	}
	deleted, err := h.messages.DeleteSubtree(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": deleted})
}

// GET /api/messages/path/:id
func (h *MessageHandler) GetPath(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	path, err := h.messages.GetPath(dbc, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"path": path})
}

// POST /api/messages/fork/:id
func (h *MessageHandler) Fork(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
		return
	}
	result, err := h.fork.Fork(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
