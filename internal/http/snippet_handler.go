package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"online-ide/internal/service"
)

const fileIDHeader = "X-File-ID"

type SnippetHandler struct {
	logger   *zap.Logger
	snippets *service.SnippetShareService
}

func NewSnippetHandler(logger *zap.Logger, snippets *service.SnippetShareService) *SnippetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnippetHandler{logger: logger, snippets: snippets}
}

// Upload maneja POST /temp-file-upload.
func (h *SnippetHandler) Upload(c *gin.Context) {
	var req struct {
		Code       string `json:"code"`
		Language   string `json:"language"`
		Title      string `json:"title"`
		ExpiryTime int    `json:"expiryTime"`
	}
	if !bindJSON(c, h.logger, "snippet upload", &req) {
		return
	}
	share, err := h.snippets.Upload(c.Request.Context(), sessionUserID(c), service.SnippetUpload{
		Code:          req.Code,
		Language:      req.Language,
		Title:         req.Title,
		ExpiryMinutes: req.ExpiryTime,
	})
	if err != nil {
		writeError(c, h.logger, "snippet upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Code uploaded successfully",
		"shareId":     share.ShareID,
		"fileUrl":     share.FileURL,
		"expiry_time": share.ExpiresAt,
	})
}

// Get maneja GET /file/:shareId.
func (h *SnippetHandler) Get(c *gin.Context) {
	snippet, err := h.snippets.Get(c.Request.Context(), c.Param("shareId"), c.GetHeader(fileIDHeader))
	if err != nil {
		writeError(c, h.logger, "snippet get", err)
		return
	}
	c.JSON(http.StatusOK, snippet)
}

// Delete maneja DELETE /file/:shareId/delete.
func (h *SnippetHandler) Delete(c *gin.Context) {
	if err := h.snippets.Delete(c.Request.Context(), sessionUserID(c), c.Param("shareId")); err != nil {
		writeError(c, h.logger, "snippet delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}
