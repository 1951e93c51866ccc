// Package ledger implements the double-entry core shared by accounts and
// budgets: balance derivation, validated transfers, reversals and the
// status lifecycle. A Book is bound to one holder type; all of its writes
// happen inside a single database transaction with the holder rows locked.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/events"
	"giftledger/internal/locks"
	"giftledger/internal/logger"
	"giftledger/internal/models"
	"giftledger/internal/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entity is satisfied by *models.Account and *models.Budget.
type entity[E any] interface {
	*E
	models.LedgerEntity
}

// Clock returns the current time. Activity windows are evaluated on its date.
type Clock func() time.Time

// Book is the ledger for one holder type.
type Book[E any, P entity[E]] struct {
	db        *gorm.DB
	book      models.Book
	noun      string
	notFound  *apperrors.AppError
	locks     *locks.Keyed
	publisher events.Publisher
	now       Clock
	log       *zap.SugaredLogger
}

// AccountBook is the ledger of prepaid accounts.
type AccountBook = Book[models.Account, *models.Account]

// BudgetBook is the ledger of budgets.
type BudgetBook = Book[models.Budget, *models.Budget]

type options struct {
	locks     *locks.Keyed
	publisher events.Publisher
	now       Clock
}

// Option configures a Book.
type Option func(*options)

// WithLocks shares a lock table between books.
func WithLocks(k *locks.Keyed) Option { return func(o *options) { o.locks = k } }

// WithPublisher sets where committed changes are announced.
func WithPublisher(p events.Publisher) Option { return func(o *options) { o.publisher = p } }

// WithClock overrides time.Now.
func WithClock(c Clock) Option { return func(o *options) { o.now = c } }

// NewBook creates the ledger for holder type E.
func NewBook[E any, P entity[E]](db *gorm.DB, opts ...Option) *Book[E, P] {
	o := options{publisher: events.NopPublisher{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locks == nil {
		o.locks = locks.NewKeyed()
	}

	var zero E
	book := P(&zero).Book()
	noun, notFound := "Account", apperrors.ErrAccountNotFound
	if book == models.BookBudgets {
		noun, notFound = "Budget", apperrors.ErrBudgetNotFound
	}

	return &Book[E, P]{
		db:        db,
		book:      book,
		noun:      noun,
		notFound:  notFound,
		locks:     o.locks,
		publisher: o.publisher,
		now:       o.now,
		log:       logger.Named("ledger").With("book", string(book)),
	}
}

// Name returns the book identifier stored on transfers and entries.
func (b *Book[E, P]) Name() models.Book { return b.book }

// Today returns the current date according to the book's clock.
func (b *Book[E, P]) Today() time.Time { return models.DateOnly(b.now()) }

// Now returns the current time according to the book's clock.
func (b *Book[E, P]) Now() time.Time { return b.now() }

// Lock serialises writers of the given holders inside this process and
// returns the release function. Locks are taken in a fixed order.
func (b *Book[E, P]) Lock(ids ...uint) func() {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("%s:%d", b.book, id)
	}
	return b.locks.Lock(keys...)
}

// Get loads a holder by id.
func (b *Book[E, P]) Get(ctx context.Context, id uint) (P, error) {
	return b.load(b.db.WithContext(ctx), id)
}

func (b *Book[E, P]) load(tx *gorm.DB, id uint) (P, error) {
	holder := P(new(E))
	if err := tx.First(holder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, b.notFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holder, nil
}

// lockRows loads the holders with SELECT ... FOR UPDATE in id order. SQLite
// has no row locks; there the in-process lock and the single writer
// connection provide the same guarantee.
func (b *Book[E, P]) lockRows(tx *gorm.DB, ids ...uint) (map[uint]P, error) {
	var rows []E
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	found := make(map[uint]P, len(rows))
	for i := range rows {
		p := P(&rows[i])
		found[p.GetID()] = p
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, apperrors.WithMessage(b.notFound, fmt.Sprintf("%s #%d not found", b.noun, id))
		}
	}
	return found, nil
}

// derive sums the holder's entries.
func (b *Book[E, P]) derive(tx *gorm.DB, id uint) (int64, error) {
	var balance int64
	if err := tx.Model(&models.Entry{}).
		Scopes(models.EntriesOf(b.book, id)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return balance, nil
}

// Balance returns the holder's balance derived from its entries.
func (b *Book[E, P]) Balance(ctx context.Context, id uint) (decimal.Decimal, error) {
	db := b.db.WithContext(ctx)
	if _, err := b.load(db, id); err != nil {
		return decimal.Zero, err
	}
	minor, err := b.derive(db, id)
	if err != nil {
		return decimal.Zero, err
	}
	return money.FromMinor(minor), nil
}

// BalanceMinor is Balance in minor units.
func (b *Book[E, P]) BalanceMinor(ctx context.Context, id uint) (int64, error) {
	db := b.db.WithContext(ctx)
	if _, err := b.load(db, id); err != nil {
		return 0, err
	}
	return b.derive(db, id)
}

// BalanceTx derives the balance inside an open transaction.
func (b *Book[E, P]) BalanceTx(tx *gorm.DB, id uint) (int64, error) {
	return b.derive(tx, id)
}

// writeBalance refreshes the cached balance column from the derived value.
func (b *Book[E, P]) writeBalance(tx *gorm.DB, holder P, derived, next int64) error {
	h := holder.Holder()
	if h.Balance != derived {
		b.log.Warnw("cached balance drifted from entries",
			"holder_id", holder.GetID(),
			"cached", money.Format(h.Balance),
			"derived", money.Format(derived),
		)
	}
	if err := tx.Model(holder).UpdateColumn("balance", next).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	h.Balance = next
	return nil
}

// Publish announces committed changes. Failures are logged, never returned:
// the ledger write has already committed.
func (b *Book[E, P]) Publish(ctx context.Context, evs ...events.Event) {
	for _, e := range evs {
		if err := b.publisher.Publish(ctx, e); err != nil {
			b.log.Warnw("failed to publish ledger event", "type", e.Type, "error", err)
		}
	}
}
