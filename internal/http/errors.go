package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"online-ide/internal/service"
)

// statusOverrides fija el status de errores que no siguen a su categoria.
var statusOverrides = map[*service.Error]int{
	service.ErrInvalidGoogleToken: http.StatusUnauthorized,
	service.ErrEmailSendFailure:   http.StatusServiceUnavailable,
	service.ErrSnippetStoreDown:   http.StatusServiceUnavailable,
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation, service.KindConflict, service.KindState:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// statusFor devuelve el status HTTP de un error de negocio, o false si el error
// es inesperado.
func statusFor(err error) (int, *service.Error, bool) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return 0, nil, false
	}
	if status, ok := statusOverrides[svcErr]; ok {
		return status, svcErr, true
	}
	return statusForKind(svcErr.Kind), svcErr, true
}

// writeError responde {"msg": ...}. Los errores inesperados se registran y se
// ocultan detras de "Server error".
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, svcErr, ok := statusFor(err)
	if !ok {
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "Server error"})
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Warn(op+" failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"msg": svcErr.Msg})
}

// bindJSON decodifica el body; un body invalido responde 400.
func bindJSON(c *gin.Context, logger *zap.Logger, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("invalid "+op+" request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Invalid request"})
		return false
	}
	return true
}
