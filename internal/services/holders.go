package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/models"
	"giftledger/internal/money"
	"giftledger/internal/pagination"
)

// creditLimit converts a requested limit into minor units. Unlimited wins
// over any amount; an absent limit means no overdraft.
func creditLimit(limit *decimal.Decimal, unlimited bool) (*int64, error) {
	if unlimited {
		return nil, nil
	}
	var minor int64
	if limit != nil {
		v, err := money.ToMinor(*limit)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidAmount, err)
		}
		if v < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Credit limit must not be negative")
		}
		minor = v
	}
	return &minor, nil
}

// checkDateRange rejects a window whose start falls after its end.
func checkDateRange(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if models.DateOnly(*start).After(models.DateOnly(*end)) {
		return apperrors.ErrInvalidDateRange
	}
	return nil
}

// dateOnly truncates an optional timestamp to its calendar date.
func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOnly(*t)
	return &d
}

// optionalString returns nil for blank input.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// checkUnique fails with sentinel when another row of model already uses
// value in column.
func checkUnique(tx *gorm.DB, model any, column string, value *string, excludeID uint, sentinel *apperrors.AppError) error {
	if value == nil {
		return nil
	}
	var count int64
	q := tx.Model(model).Where(column+" = ?", *value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return sentinel
	}
	return nil
}

// uniqueConflict maps a unique-index violation from a write that raced
// past checkUnique onto the matching duplicate error. It must run outside
// the failed transaction. Other errors are returned unchanged.
func uniqueConflict(db *gorm.DB, model any, err error, name *string, excludeID uint, fallback *apperrors.AppError) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	if dup := checkUnique(db, model, "name", name, excludeID, apperrors.ErrDuplicateName); dup != nil {
		return dup
	}
	return fallback
}

// holderTransfers lists the transfers touching a holder, newest first.
func holderTransfers(db *gorm.DB, book models.Book, holderID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	resp, err := pagination.Find[models.Transfer](db, models.TransfersTouching(book, holderID), "created_at DESC, id DESC", page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// notFound maps gorm's missing-record error onto sentinel.
func notFound(err error, sentinel *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
