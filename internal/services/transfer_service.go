package services

import (
	"context"

	"gorm.io/gorm"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/ledger"
	"giftledger/internal/models"
	"giftledger/internal/pagination"
)

// transferService handles transfers between accounts.
type transferService struct {
	db   *gorm.DB
	book *ledger.AccountBook
}

// NewTransferService creates a new TransferServicer.
func NewTransferService(db *gorm.DB, book *ledger.AccountBook) TransferServicer {
	return &transferService{db: db, book: book}
}

// Transfer moves money between two accounts.
func (s *transferService) Transfer(ctx context.Context, in TransferInput) (*models.Transfer, error) {
	return s.book.Transfer(ctx, ledger.TransferRequest{
		SourceID:      in.SourceID,
		DestinationID: in.DestinationID,
		Amount:        in.Amount,
		OrderNumber:   in.OrderNumber,
		Description:   in.Description,
		User:          in.User,
	})
}

// Reverse undoes an earlier account transfer.
func (s *transferService) Reverse(ctx context.Context, id uint, orderNumber string, user *models.User) (*models.Transfer, error) {
	return s.book.Reverse(ctx, id, ledger.ReverseRequest{OrderNumber: orderNumber, User: user})
}

// GetTransfer loads a transfer with its accounts and, for a reversal, the
// transfer it reverses.
func (s *transferService) GetTransfer(ctx context.Context, id uint) (*TransferDetail, error) {
	transfer, err := s.book.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &TransferDetail{Transfer: transfer}

	if detail.Source, err = s.book.Get(ctx, transfer.SourceID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if detail.Destination, err = s.book.Get(ctx, transfer.DestinationID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if transfer.ParentID != nil {
		if detail.Parent, err = s.book.GetTransfer(ctx, *transfer.ParentID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return detail, nil
}

// ListTransfers lists account transfers, newest first.
func (s *transferService) ListTransfers(ctx context.Context, filter TransferFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	resp, err := pagination.Find[models.Transfer](s.db.WithContext(ctx), filter.scope(), "created_at DESC, id DESC", page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// DeleteTransfer always fails with DELETION_FORBIDDEN.
func (s *transferService) DeleteTransfer(ctx context.Context, id uint) error {
	return s.book.DeleteTransfer(ctx, id)
}

func (f TransferFilter) scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("book = ?", models.BookAccounts)
		if f.OrderNumber != "" {
			db = db.Where("order_number = ?", f.OrderNumber)
		}
		if f.FromDate != nil {
			db = db.Where("created_at >= ?", *f.FromDate)
		}
		if f.ToDate != nil {
			db = db.Where("created_at <= ?", *f.ToDate)
		}
		return db
	}
}
