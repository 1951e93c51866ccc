package ledger

import (
	"context"
	"fmt"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/events"
	"giftledger/internal/models"
	"giftledger/internal/money"

	"gorm.io/gorm"
)

// Freeze suspends an open holder. Only accounts can be frozen.
func (b *Book[E, P]) Freeze(ctx context.Context, id uint) (P, error) {
	return b.transition(ctx, id, models.StatusFrozen)
}

// Thaw reopens a frozen holder.
func (b *Book[E, P]) Thaw(ctx context.Context, id uint) (P, error) {
	return b.transition(ctx, id, models.StatusOpen)
}

// Close closes an open or frozen holder whose derived balance is zero.
func (b *Book[E, P]) Close(ctx context.Context, id uint) (P, error) {
	return b.transition(ctx, id, models.StatusClosed)
}

func (b *Book[E, P]) transition(ctx context.Context, id uint, target models.Status) (P, error) {
	unlock := b.Lock(id)
	defer unlock()

	var holder P
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		holder, txErr = b.TransitionTx(tx, id, target)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	b.log.Infow("status changed", "holder_id", id, "status", target)
	b.Publish(ctx, b.StatusEvent(holder))
	return holder, nil
}

// TransitionTx changes the status inside an open transaction. The caller
// must hold Lock on the holder.
func (b *Book[E, P]) TransitionTx(tx *gorm.DB, id uint, target models.Status) (P, error) {
	rows, err := b.lockRows(tx, id)
	if err != nil {
		return nil, err
	}
	holder := rows[id]
	h := holder.Holder()

	if err := b.checkTransition(holder, target); err != nil {
		return nil, err
	}
	if target == models.StatusClosed {
		balance, err := b.derive(tx, id)
		if err != nil {
			return nil, err
		}
		if balance != 0 {
			return nil, apperrors.WithMessage(apperrors.ErrNotEmpty,
				fmt.Sprintf("%s %s has a balance of %s", b.noun, h.Label(id), money.Format(balance)))
		}
	}

	if err := tx.Model(holder).Update("status", target).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	h.Status = target
	return holder, nil
}

func (b *Book[E, P]) checkTransition(holder P, target models.Status) error {
	h := holder.Holder()
	label := h.Label(holder.GetID())

	if !holder.AllowsStatus(target) {
		return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition,
			fmt.Sprintf("%s %s cannot be %s", b.noun, label, target))
	}

	var allowed bool
	switch target {
	case models.StatusFrozen:
		allowed = h.IsOpen()
	case models.StatusOpen:
		allowed = h.IsFrozen()
	case models.StatusClosed:
		allowed = h.IsOpen() || h.IsFrozen()
	}
	if !allowed {
		return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition,
			fmt.Sprintf("%s %s cannot go from %s to %s", b.noun, label, h.Status, target))
	}
	return nil
}

// StatusEvent describes a committed status change.
func (b *Book[E, P]) StatusEvent(holder P) events.Event {
	return events.Event{
		Type:       events.StatusChanged,
		Book:       b.book,
		HolderID:   holder.GetID(),
		Status:     holder.Holder().Status,
		OccurredAt: b.now(),
	}
}
