package service

import (
	"context"

	"go.uber.org/zap"

	"online-ide/internal/domain"
)

// AuditLogger refleja el estado de un usuario en el registro de auditoria.
type AuditLogger interface {
	Mirror(ctx context.Context, userID string, action domain.AuditAction) error
}

// auditor envuelve AuditLogger; sus fallas nunca afectan la operacion principal.
type auditor struct {
	logger *zap.Logger
	audit  AuditLogger
}

func (a auditor) mirror(ctx context.Context, userID string, action domain.AuditAction) {
	if a.audit == nil {
		return
	}
	if err := a.audit.Mirror(ctx, userID, action); err != nil && a.logger != nil {
		a.logger.Warn("audit mirror failed",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("action", string(action)),
		)
	}
}
