package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/http/response"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/services"
)

type TreeHandler struct {
	trees    services.TreeService
	messages services.MessageService
	graph    services.GraphService
}

func NewTreeHandler(trees services.TreeService, messages services.MessageService, graph services.GraphService) *TreeHandler {
	return &TreeHandler{trees: trees, messages: messages, graph: graph}
}

type createTreeReq struct {
	Title *string `json:"title"`
}

// POST /api/trees
func (h *TreeHandler) CreateTree(c *gin.Context) {
	var req createTreeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tree, root, err := h.trees.CreateTree(c.Request.Context(), req.Title)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tree": tree, "root": root})
}

// GET /api/trees?limit=100
func (h *TreeHandler) ListTrees(c *gin.Context) {
	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	trees, err := h.trees.ListTrees(dbc, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trees": trees})
}

type renameTreeReq struct {
	Title *string `json:"title"`
}

// PATCH /api/trees/:id
func (h *TreeHandler) RenameTree(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_tree_id", err)
		return
	}
	var req renameTreeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	tree, err := h.trees.RenameTree(dbc, id, req.Title)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tree": tree})
}

// DELETE /api/trees/:id
func (h *TreeHandler) DeleteTree(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_tree_id", err)
		return
	}
	deleted, err := h.trees.DeleteTree(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted_messages": deleted})
}

// GET /api/trees/:id/messages
func (h *TreeHandler) ListTreeMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_tree_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.messages.ListTreeMessages(dbc, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// GET /api/trees/:id/graph
func (h *TreeHandler) GetGraph(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_tree_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	view, err := h.graph.GraphView(dbc, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, view)
}
