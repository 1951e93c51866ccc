package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/events"
	"giftledger/internal/ledger"
	"giftledger/internal/logger"
	"giftledger/internal/models"
	"giftledger/internal/money"
)

// errNegativeBalance marks an expired account that owes money; it is left
// open for an operator.
var errNegativeBalance = errors.New("expired account has a negative balance")

// expiryService sweeps expired accounts.
type expiryService struct {
	db       *gorm.DB
	book     *ledger.AccountBook
	settings AccountSettings
	log      *zap.SugaredLogger
}

// NewExpiryService creates a new ExpiryServicer.
func NewExpiryService(db *gorm.DB, book *ledger.AccountBook, settings AccountSettings) ExpiryServicer {
	return &expiryService{db: db, book: book, settings: settings, log: logger.Named("expiry")}
}

// CloseExpired moves the remaining balance of every open account whose end
// date has passed to the expired account, then closes it. Each account is
// handled in its own transaction; a failure is logged and the sweep goes on.
func (s *expiryService) CloseExpired(ctx context.Context) (*ExpiryReport, error) {
	db := s.db.WithContext(ctx)

	var sink models.Account
	if err := db.Where("name = ?", s.settings.ExpiredName).First(&sink).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expired []models.Account
	if err := db.Scopes(models.ExpiredScope(s.book.Today()), models.StatusScope(models.StatusOpen)).
		Where("id <> ?", sink.ID).
		Order("id").
		Find(&expired).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := &ExpiryReport{Closed: []uint{}, Skipped: []uint{}}
	var swept int64
	for _, account := range expired {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		amount, err := s.sweep(ctx, account.ID, sink.ID)
		if err != nil {
			report.Skipped = append(report.Skipped, account.ID)
			s.log.Warnw("expired account not closed", "account_id", account.ID, "error", err)
			continue
		}
		swept += amount
		report.Closed = append(report.Closed, account.ID)
	}
	report.Swept = money.Format(swept)

	s.log.Infow("expiry sweep finished",
		"closed", len(report.Closed),
		"skipped", len(report.Skipped),
		"swept", report.Swept,
	)
	return report, nil
}

func (s *expiryService) sweep(ctx context.Context, accountID, sinkID uint) (int64, error) {
	unlock := s.book.Lock(accountID, sinkID)
	defer unlock()

	var (
		transfer *models.Transfer
		closed   *models.Account
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.book.BalanceTx(tx, accountID)
		if err != nil {
			return err
		}
		if balance < 0 {
			return errNegativeBalance
		}
		if balance > 0 {
			transfer, err = s.book.TransferTx(tx, ledger.TransferRequest{
				SourceID:            accountID,
				DestinationID:       sinkID,
				Amount:              money.FromMinor(balance),
				Description:         "Expired account sweep",
				AllowInactiveSource: true,
			})
			if err != nil {
				return err
			}
		}
		closed, err = s.book.TransitionTx(tx, accountID, models.StatusClosed)
		return err
	})
	if err != nil {
		return 0, err
	}

	var evs []events.Event
	var amount int64
	if transfer != nil {
		evs = append(evs, s.book.TransferEvent(transfer))
		amount = transfer.Amount
	}
	evs = append(evs, s.book.StatusEvent(closed))
	s.book.Publish(ctx, evs...)
	return amount, nil
}
