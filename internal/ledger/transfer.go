package ledger

import (
	"context"
	"errors"
	"fmt"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/events"
	"giftledger/internal/models"
	"giftledger/internal/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferRequest describes a movement of Amount from Source to Destination.
type TransferRequest struct {
	SourceID      uint
	DestinationID uint
	Amount        decimal.Decimal
	OrderNumber   string
	Description   string
	User          *models.User
	ParentID      *uint

	// AllowInactiveSource skips the source activity-window check. The
	// expiry sweep uses it to empty holders whose window has closed.
	AllowInactiveSource bool
}

// ReverseRequest carries the metadata of a reversal.
type ReverseRequest struct {
	OrderNumber string
	User        *models.User
}

// Transfer validates and commits a transfer. The source and destination are
// locked for the duration of the database transaction; on any error nothing
// is written.
func (b *Book[E, P]) Transfer(ctx context.Context, req TransferRequest) (*models.Transfer, error) {
	if _, err := MinorAmount(req.Amount); err != nil {
		return nil, err
	}

	unlock := b.Lock(req.SourceID, req.DestinationID)
	defer unlock()

	var transfer *models.Transfer
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		transfer, txErr = b.TransferTx(tx, req)
		return txErr
	})
	if err != nil {
		b.log.Infow("transfer rejected",
			"source_id", req.SourceID,
			"destination_id", req.DestinationID,
			"amount", req.Amount.StringFixed(money.Places),
			"error", err.Error(),
		)
		return nil, err
	}

	b.log.Infow("transfer committed",
		"reference", transfer.Reference(),
		"source_id", transfer.SourceID,
		"destination_id", transfer.DestinationID,
		"amount", money.Format(transfer.Amount),
	)
	b.Publish(ctx, b.TransferEvent(transfer))
	return transfer, nil
}

// TransferTx runs the transfer inside an open transaction. Callers are
// responsible for holding Lock on both holders and for publishing the
// returned transfer once the transaction commits.
func (b *Book[E, P]) TransferTx(tx *gorm.DB, req TransferRequest) (*models.Transfer, error) {
	amount, err := MinorAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.SourceID == req.DestinationID {
		return nil, apperrors.ErrSameAccountTransfer
	}

	holders, err := b.lockRows(tx, req.SourceID, req.DestinationID)
	if err != nil {
		return nil, err
	}
	source, destination := holders[req.SourceID], holders[req.DestinationID]

	today := b.Today()
	if !req.AllowInactiveSource && !source.Holder().IsActive(today) {
		return nil, b.inactive(source)
	}
	if !destination.Holder().IsActive(today) {
		return nil, b.inactive(destination)
	}
	if err := b.requireOpen(source); err != nil {
		return nil, err
	}
	if err := b.requireOpen(destination); err != nil {
		return nil, err
	}

	sourceBalance, err := b.derive(tx, source.GetID())
	if err != nil {
		return nil, err
	}
	if !source.Holder().IsDebitPermitted(amount, sourceBalance) {
		return nil, b.insufficient(source, amount, sourceBalance)
	}
	destinationBalance, err := b.derive(tx, destination.GetID())
	if err != nil {
		return nil, err
	}
	newSource, ok := addMinor(sourceBalance, -amount)
	if !ok {
		return nil, b.outOfRange(source)
	}
	newDestination, ok := addMinor(destinationBalance, amount)
	if !ok {
		return nil, b.outOfRange(destination)
	}

	transfer := &models.Transfer{
		Book:          b.book,
		SourceID:      source.GetID(),
		DestinationID: destination.GetID(),
		Amount:        amount,
		ParentID:      req.ParentID,
		OrderNumber:   optional(req.OrderNumber),
		Description:   optional(req.Description),
	}
	if req.User != nil {
		transfer.UserID = &req.User.ID
		transfer.Username = req.User.Username
	}
	if err := tx.Create(transfer).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entries := []models.Entry{
		{TransferID: transfer.ID, Book: b.book, HolderID: source.GetID(), Amount: -amount},
		{TransferID: transfer.ID, Book: b.book, HolderID: destination.GetID(), Amount: amount},
	}
	if err := tx.Create(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	transfer.Entries = entries

	if err := b.writeBalance(tx, source, sourceBalance, newSource); err != nil {
		return nil, err
	}
	if err := b.writeBalance(tx, destination, destinationBalance, newDestination); err != nil {
		return nil, err
	}
	return transfer, nil
}

// Reverse moves the amount of an earlier transfer back, linking the new
// transfer to the original. The reversal is validated like any transfer.
func (b *Book[E, P]) Reverse(ctx context.Context, transferID uint, req ReverseRequest) (*models.Transfer, error) {
	original, err := b.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	return b.Transfer(ctx, ReversalOf(original, req))
}

// ReversalOf builds the request that undoes original.
func ReversalOf(original *models.Transfer, req ReverseRequest) TransferRequest {
	parent := original.ID
	return TransferRequest{
		SourceID:      original.DestinationID,
		DestinationID: original.SourceID,
		Amount:        money.FromMinor(original.Amount),
		OrderNumber:   req.OrderNumber,
		Description:   fmt.Sprintf("Reversal of #%s", original.Reference()),
		User:          req.User,
		ParentID:      &parent,
	}
}

// GetTransfer loads a transfer of this book with its entries.
func (b *Book[E, P]) GetTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	var transfer models.Transfer
	err := b.db.WithContext(ctx).
		Preload("Entries").
		Where("book = ?", b.book).
		First(&transfer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransferNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transfer, nil
}

// DeleteTransfer always fails: ledger rows are append-only. The attempt
// goes through gorm so the model hook and the database guard both apply.
func (b *Book[E, P]) DeleteTransfer(ctx context.Context, id uint) error {
	transfer, err := b.GetTransfer(ctx, id)
	if err != nil {
		return err
	}
	err = b.db.WithContext(ctx).Delete(transfer).Error
	switch {
	case err == nil:
		b.log.Errorw("ledger delete was not rejected", "reference", transfer.Reference())
		return apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("transfer %d deleted", id))
	case errors.Is(err, apperrors.ErrDeletionForbidden):
		return apperrors.ErrDeletionForbidden
	default:
		return apperrors.Wrap(apperrors.ErrDeletionForbidden, err)
	}
}

// TransferEvent describes a committed transfer.
func (b *Book[E, P]) TransferEvent(t *models.Transfer) events.Event {
	e := events.Event{
		Type:          events.TransferCreated,
		Book:          b.book,
		TransferID:    t.ID,
		Reference:     t.Reference(),
		SourceID:      t.SourceID,
		DestinationID: t.DestinationID,
		Amount:        money.Format(t.Amount),
		ParentID:      t.ParentID,
		OccurredAt:    t.CreatedAt,
	}
	if t.OrderNumber != nil {
		e.OrderNumber = *t.OrderNumber
	}
	return e
}

// MinorAmount converts a transfer amount to minor units, rejecting
// amounts that are not positive or carry more than two decimal places.
func MinorAmount(amount decimal.Decimal) (int64, error) {
	minor, err := money.ToMinor(amount)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInvalidAmount, err)
	}
	if minor <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidAmount, "Debits must use a positive amount")
	}
	return minor, nil
}

func (b *Book[E, P]) outOfRange(holder P) error {
	return apperrors.WithMessage(apperrors.ErrInvalidAmount,
		fmt.Sprintf("Amount would take the balance of %s %s out of range", b.noun, holder.Holder().Label(holder.GetID())))
}

// addMinor returns a+b and false when the sum does not fit in an int64.
func addMinor(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func (b *Book[E, P]) inactive(holder P) error {
	return apperrors.WithMessage(apperrors.ErrInactiveAccount,
		fmt.Sprintf("%s %s is not active", b.noun, holder.Holder().Label(holder.GetID())))
}

func (b *Book[E, P]) requireOpen(holder P) error {
	h := holder.Holder()
	switch h.Status {
	case models.StatusOpen:
		return nil
	case models.StatusClosed:
		return apperrors.WithMessage(apperrors.ErrClosedAccount,
			fmt.Sprintf("%s %s is closed", b.noun, h.Label(holder.GetID())))
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidStatus,
			fmt.Sprintf("%s %s is %s", b.noun, h.Label(holder.GetID()), h.Status))
	}
}

func (b *Book[E, P]) insufficient(holder P, amount, balance int64) error {
	detail := &apperrors.InsufficientFundsError{
		HolderID:  holder.GetID(),
		Requested: money.FromMinor(amount),
		Available: money.FromMinor(holder.Holder().Available(balance)),
	}
	return apperrors.Newf(apperrors.ErrInsufficientFunds, detail,
		"Unable to debit %s from %s #%d", money.Format(amount), b.noun, holder.GetID())
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
