package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"giftledger/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active user with a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		Username: fmt.Sprintf("user%d", n),
		Email:    fmt.Sprintf("user%d@test.com", n),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// AccountOption customises a fixture account before it is inserted.
type AccountOption func(*models.Account)

// WithCreditLimit sets the credit limit in minor units; nil means unlimited.
func WithCreditLimit(limit *int64) AccountOption {
	return func(a *models.Account) { a.CreditLimit = limit }
}

// Unlimited removes the credit limit.
func Unlimited() AccountOption {
	return WithCreditLimit(nil)
}

// WithStatus sets the initial status.
func WithStatus(status models.Status) AccountOption {
	return func(a *models.Account) { a.Status = status }
}

// WithDates sets the activity window.
func WithDates(start, end *time.Time) AccountOption {
	return func(a *models.Account) {
		a.StartDate = start
		a.EndDate = end
	}
}

// WithName sets the unique account name.
func WithName(name string) AccountOption {
	return func(a *models.Account) { a.Name = &name }
}

// CreateTestAccount creates an open account with a unique code.
func CreateTestAccount(t *testing.T, db *gorm.DB, opts ...AccountOption) *models.Account {
	t.Helper()

	code := fmt.Sprintf("test%d", nextID())
	account := models.NewAccount()
	account.Code = &code
	for _, opt := range opts {
		opt(account)
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestBankAccount creates an unlimited funding account.
func CreateTestBankAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	return CreateTestAccount(t, db, Unlimited(), WithName(fmt.Sprintf("Bank %d", nextID())))
}

// CreateTestBudget creates an open budget owned by the user.
func CreateTestBudget(t *testing.T, db *gorm.DB, ownerID uint) *models.Budget {
	t.Helper()

	name := fmt.Sprintf("Budget %d", nextID())
	budget := models.NewBudget()
	budget.Name = &name
	budget.PrimaryUserID = &ownerID
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// Fund writes a balanced transfer from source to destination directly,
// bypassing validation, and refreshes both cached balances. It is meant for
// arranging ledger state in tests.
func Fund(t *testing.T, db *gorm.DB, source, destination models.LedgerEntity, amount int64) *models.Transfer {
	t.Helper()

	transfer := &models.Transfer{
		Book:          source.Book(),
		SourceID:      source.GetID(),
		DestinationID: destination.GetID(),
		Amount:        amount,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transfer).Error; err != nil {
			return err
		}
		entries := []models.Entry{
			{TransferID: transfer.ID, Book: source.Book(), HolderID: source.GetID(), Amount: -amount},
			{TransferID: transfer.ID, Book: destination.Book(), HolderID: destination.GetID(), Amount: amount},
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}
		table := string(source.Book())
		if err := tx.Table(table).Where("id = ?", source.GetID()).
			UpdateColumn("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
			return err
		}
		return tx.Table(table).Where("id = ?", destination.GetID()).
			UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error
	})
	if err != nil {
		t.Fatalf("failed to fund holder: %v", err)
	}
	source.Holder().Balance -= amount
	destination.Holder().Balance += amount
	return transfer
}

// Date returns the calendar date offset by the given number of days from now.
func Date(days int) *time.Time {
	d := models.DateOnly(time.Now().AddDate(0, 0, days))
	return &d
}
