package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/logger"
	"giftledger/internal/models"
	"giftledger/internal/money"
)

type holderBalance struct {
	ID      uint
	Balance int64
}

type entrySum struct {
	HolderID uint
	Total    int64
}

// reconcileService checks cached balances against the entries.
type reconcileService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.SugaredLogger
}

// NewReconcileService creates a new ReconcileServicer.
func NewReconcileService(db *gorm.DB) ReconcileServicer {
	return &reconcileService{db: db, now: time.Now, log: logger.Named("reconcile")}
}

// Check reads every holder of both books and reports cached balances that
// differ from the entry sums, plus each book's overall total. It writes
// nothing; the next transfer touching a drifted holder repairs its cache.
func (s *reconcileService) Check(ctx context.Context) (*ReconcileReport, error) {
	db := s.db.WithContext(ctx)
	report := &ReconcileReport{
		CheckedAt:  s.now(),
		Drifts:     []Drift{},
		BookTotals: map[models.Book]string{},
		Balanced:   true,
	}

	for _, book := range []models.Book{models.BookAccounts, models.BookBudgets} {
		var sums []entrySum
		if err := db.Model(&models.Entry{}).
			Select("holder_id, SUM(amount) AS total").
			Where("book = ?", book).
			Group("holder_id").
			Scan(&sums).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		derived := make(map[uint]int64, len(sums))
		var total int64
		for _, sum := range sums {
			derived[sum.HolderID] = sum.Total
			total += sum.Total
		}

		var holders []holderBalance
		if err := db.Table(string(book)).Select("id, balance").Order("id").Scan(&holders).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, h := range holders {
			if h.Balance != derived[h.ID] {
				report.Drifts = append(report.Drifts, Drift{
					Book:     book,
					HolderID: h.ID,
					Cached:   money.Format(h.Balance),
					Derived:  money.Format(derived[h.ID]),
				})
			}
		}

		report.Holders += len(holders)
		report.BookTotals[book] = money.Format(total)
		if total != 0 {
			report.Balanced = false
		}
	}
	if len(report.Drifts) > 0 {
		report.Balanced = false
	}

	if report.Balanced {
		s.log.Infow("ledger reconciled", "holders", report.Holders)
	} else {
		s.log.Warnw("ledger out of balance",
			"holders", report.Holders,
			"drifts", len(report.Drifts),
			"totals", report.BookTotals,
		)
	}
	return report, nil
}
