package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/logger"
	"giftledger/internal/models"
	"giftledger/internal/pagination"
)

// Audited resource types.
const (
	ResourceAccount  = "account"
	ResourceBudget   = "budget"
	ResourceTransfer = "transfer"
	ResourceUser     = "user"
)

type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log records who changed a holder, transfer or user. A failed write is
// logged and swallowed; a zero userID records a system action.
func (s *auditService) Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}
	if userID != 0 {
		entry.UserID = &userID
	}
	if len(changes) > 0 {
		data, err := json.Marshal(changes)
		if err != nil {
			s.log.Warnw("audit changes not serialisable", "action", action, "error", err)
			data = []byte("{}")
		}
		entry.Changes = string(data)
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("audit entry lost",
			"action", action,
			"resource", resourceType,
			"resource_id", resourceID,
			"user_id", userID,
			"error", err,
		)
	}
}

// History lists the audit entries of one resource, newest first.
func (s *auditService) History(ctx context.Context, resourceType string, resourceID uint, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID)
	}
	resp, err := pagination.Find[models.AuditLog](s.db.WithContext(ctx), scope, "created_at DESC, id DESC", page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}
