package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/http/response"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/requestdata"
	"github.com/yungbote/treechat-backend/internal/services"
)

type FileHandler struct {
	files services.FileService
}

func NewFileHandler(files services.FileService) *FileHandler {
	return &FileHandler{files: files}
}

func callerID(c *gin.Context) string {
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return ""
}

type signFileReq struct {
	Filename    string     `json:"filename" binding:"required"`
	ContentType string     `json:"content_type" binding:"required"`
	Size        int64      `json:"size" binding:"required"`
	TreeID      *uuid.UUID `json:"tree_id"`
}

// POST /api/files/sign
func (h *FileHandler) Sign(c *gin.Context) {
	var req signFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	authorized, err := h.files.AuthorizeUpload(dbc, callerID(c), services.UploadRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        req.Size,
		TreeID:      req.TreeID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"file":       h.files.Serialize(c.Request.Context(), authorized.Attachment),
		"upload_url": authorized.UploadURL,
	})
}

type completeFileReq struct {
	Checksum string `json:"checksum"`
}

// POST /api/files/:id/complete
func (h *FileHandler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file_id", err)
		return
	}
	var req completeFileReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	att, err := h.files.ConfirmUpload(dbc, id, callerID(c), req.Checksum)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"file": h.files.Serialize(c.Request.Context(), att)})
}

// GET /api/files/:id
func (h *FileHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	att, err := h.files.GetFile(dbc, id, callerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"file": h.files.Serialize(c.Request.Context(), att)})
}

// GET /api/files?limit=50
func (h *FileHandler) List(c *gin.Context) {
	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.files.ListFiles(dbc, callerID(c), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, att := range rows {
		out = append(out, h.files.Serialize(c.Request.Context(), att))
	}
	response.RespondOK(c, gin.H{"files": out})
}

// DELETE /api/files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	deleted, err := h.files.DeleteFiles(dbc, callerID(c), []uuid.UUID{id})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": deleted})
}

// GET /api/files/:id/download
func (h *FileHandler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	att, err := h.files.GetFile(dbc, id, callerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	url, err := h.files.DownloadURL(c.Request.Context(), att)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"url": url})
}

// GET /api/files/:id/thumbnail
func (h *FileHandler) ThumbnailURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	att, err := h.files.GetFile(dbc, id, callerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	url, err := h.files.ThumbnailURL(c.Request.Context(), att)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"url": url})
}
