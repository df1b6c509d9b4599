package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"online-ide/internal/domain"
	"online-ide/internal/service"
)

// UsageHandler expone los contadores por lenguaje y el registro de enlaces.
type UsageHandler struct {
	logger *zap.Logger
	usage  *service.UsageService
}

func NewUsageHandler(logger *zap.Logger, usage *service.UsageService) *UsageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageHandler{logger: logger, usage: usage}
}

// RunCount maneja POST /runCode/count; el usuario llega por nombre en el body.
func (h *UsageHandler) RunCount(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Language string `json:"language"`
	}
	if !bindJSON(c, h.logger, "run count", &req) {
		return
	}
	ref := service.UserRef{Username: req.Username}
	if err := h.usage.IncrementCounter(c.Request.Context(), ref, domain.CounterRun, req.Language); err != nil {
		writeError(c, h.logger, "run count", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SessionCount devuelve el handler de POST /generateCode/count o
// /refactorCode/count segun kind.
func (h *UsageHandler) SessionCount(kind domain.CounterKind) gin.HandlerFunc {
	op := kind.String() + " count"
	return func(c *gin.Context) {
		var req struct {
			Language string `json:"language"`
		}
		if !bindJSON(c, h.logger, op, &req) {
			return
		}
		ref := service.UserRef{ID: sessionUserID(c)}
		if err := h.usage.IncrementCounter(c.Request.Context(), ref, kind, req.Language); err != nil {
			writeError(c, h.logger, op, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// AddSharedLink maneja POST /sharedLink/count.
func (h *UsageHandler) AddSharedLink(c *gin.Context) {
	var req struct {
		ShareID    string `json:"shareId"`
		Title      string `json:"title"`
		ExpiryTime int    `json:"expiryTime"`
	}
	if !bindJSON(c, h.logger, "add shared link", &req) {
		return
	}
	err := h.usage.AddSharedLink(c.Request.Context(), sessionUserID(c), req.ShareID, req.Title, req.ExpiryTime)
	if err != nil {
		writeError(c, h.logger, "add shared link", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSharedLinks maneja POST /user/sharedLinks.
func (h *UsageHandler) ListSharedLinks(c *gin.Context) {
	links, err := h.usage.ListSharedLinks(c.Request.Context(), sessionUserID(c))
	if err != nil {
		writeError(c, h.logger, "list shared links", err)
		return
	}
	if links == nil {
		links = []domain.SharedLink{}
	}
	c.JSON(http.StatusOK, gin.H{"sharedLinks": links})
}

// RemoveSharedLink maneja DELETE /sharedLink (shareId en el body) y
// DELETE /user/sharedLink/:shareId. Sin sesion se usa el dueño del enlace.
func (h *UsageHandler) RemoveSharedLink(c *gin.Context) {
	shareID := c.Param("shareId")
	if shareID == "" {
		var req struct {
			ShareID string `json:"shareId"`
		}
		if !bindJSON(c, h.logger, "remove shared link", &req) {
			return
		}
		shareID = req.ShareID
	}
	if err := h.usage.RemoveSharedLink(c.Request.Context(), sessionUserID(c), shareID); err != nil {
		writeError(c, h.logger, "remove shared link", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Shared link deleted successfully"})
}
