package testutil_test

import (
	"testing"

	"giftledger/internal/errors"
	"giftledger/internal/models"
	"giftledger/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"users", "accounts", "budgets", "transfers", "entries", "audit_logs", "budget_secondary_users"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == 0 {
		t.Fatal("user should have a non-zero ID")
	}

	bank := testutil.CreateTestBankAccount(t, db)
	if !bank.HasUnlimitedCredit() {
		t.Error("bank fixture should have unlimited credit")
	}

	account := testutil.CreateTestAccount(t, db)
	if account.Code == nil || *account.Code != models.NormalizeCode(*account.Code) {
		t.Errorf("expected upper-case code, got %v", account.Code)
	}

	testutil.Fund(t, db, bank, account, 5000)
	testutil.AssertBalance(t, db, account, 5000)
	testutil.AssertBalance(t, db, bank, -5000)
	testutil.AssertLedgerBalanced(t, db, models.BookAccounts)

	budget := testutil.CreateTestBudget(t, db, user.ID)
	if budget.PrimaryUserID == nil || *budget.PrimaryUserID != user.ID {
		t.Error("budget should be owned by the user")
	}
}

func TestLedgerGuards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	bank := testutil.CreateTestBankAccount(t, db)
	account := testutil.CreateTestAccount(t, db)
	transfer := testutil.Fund(t, db, bank, account, 1000)

	if err := db.Exec("DELETE FROM entries WHERE transfer_id = ?", transfer.ID).Error; err == nil {
		t.Error("raw delete of entries should be rejected")
	}
	if err := db.Exec("UPDATE transfers SET amount = 1 WHERE id = ?", transfer.ID).Error; err == nil {
		t.Error("raw update of transfer amount should be rejected")
	}
	if err := db.Exec("UPDATE transfers SET user_id = NULL WHERE id = ?", transfer.ID).Error; err != nil {
		t.Errorf("clearing user_id should be allowed: %v", err)
	}

	testutil.AssertBalance(t, db, account, 1000)
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrAccountNotFound, "custom message")
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
