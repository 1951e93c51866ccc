package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"giftledger/internal/ledger"
	"giftledger/internal/locks"
	"giftledger/internal/models"
	"giftledger/internal/pagination"
	"giftledger/internal/testutil"
)

func testSettings() AccountSettings {
	lo, hi := decimal.RequireFromString("5.00"), decimal.RequireFromString("500.00")
	return AccountSettings{
		BankName:        "Bank",
		RedemptionsName: "Redemptions",
		ExpiredName:     "Expired",
		MinInitialValue: &lo,
		MaxInitialValue: &hi,
	}
}

type testLedger struct {
	accounts *ledger.AccountBook
	budgets  *ledger.BudgetBook
	account  AccountServicer
}

func newTestLedger(t *testing.T, db *gorm.DB) *testLedger {
	t.Helper()
	k := locks.NewKeyed()
	l := &testLedger{
		accounts: ledger.NewBook[models.Account](db, ledger.WithLocks(k)),
		budgets:  ledger.NewBook[models.Budget](db, ledger.WithLocks(k)),
	}
	l.account = NewAccountService(db, l.accounts, testSettings())
	testutil.AssertNoError(t, l.account.EnsureCoreAccounts(context.Background()))
	return l
}

func namedAccount(t *testing.T, db *gorm.DB, name string) *models.Account {
	t.Helper()
	var account models.Account
	if err := db.Where("name = ?", name).First(&account).Error; err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return &account
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEnsureCoreAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	l := newTestLedger(t, db)

	testutil.AssertNoError(t, l.account.EnsureCoreAccounts(context.Background()))

	var count int64
	db.Model(&models.Account{}).Count(&count)
	if count != 3 {
		t.Errorf("expected 3 core accounts, got %d", count)
	}
	if !namedAccount(t, db, "Bank").HasUnlimitedCredit() {
		t.Error("bank should have unlimited credit")
	}
	if !namedAccount(t, db, "Redemptions").HasUnlimitedCredit() {
		t.Error("redemptions should have unlimited credit")
	}
	if namedAccount(t, db, "Expired").HasUnlimitedCredit() {
		t.Error("expired should not be allowed to go negative")
	}
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("loads_initial_amount_from_bank", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)
		user := testutil.CreateTestUser(t, db)

		account, err := l.account.CreateAccount(ctx, CreateAccountInput{
			StartDate:     testutil.Date(-1),
			EndDate:       testutil.Date(365),
			InitialAmount: dec("100.00"),
			User:          user,
		})
		testutil.AssertNoError(t, err)

		if account.Code == nil || len(*account.Code) != 12 {
			t.Fatalf("expected a generated 12 character code, got %v", account.Code)
		}
		if account.CreditLimit == nil || *account.CreditLimit != 0 {
			t.Errorf("expected credit limit 0, got %v", account.CreditLimit)
		}
		testutil.AssertBalance(t, db, account, 10000)
		testutil.AssertBalance(t, db, namedAccount(t, db, "Bank"), -10000)

		var transfer models.Transfer
		db.Where("destination_id = ?", account.ID).First(&transfer)
		if transfer.Description == nil || *transfer.Description != "Load from bank" {
			t.Errorf("expected load description, got %v", transfer.Description)
		}
		if transfer.Username != user.Username {
			t.Errorf("expected transfer by %s, got %q", user.Username, transfer.Username)
		}
	})

	t.Run("code_is_upper_cased", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)

		account, err := l.account.CreateAccount(ctx, CreateAccountInput{Code: "abc123"})
		testutil.AssertNoError(t, err)
		if *account.Code != "ABC123" {
			t.Errorf("expected ABC123, got %s", *account.Code)
		}

		found, err := l.account.GetAccountByCode(ctx, "abc123")
		testutil.AssertNoError(t, err)
		if found.ID != account.ID {
			t.Errorf("expected account %d, got %d", account.ID, found.ID)
		}

		_, err = l.account.CreateAccount(ctx, CreateAccountInput{Code: "ABC123"})
		testutil.AssertAppError(t, err, "DUPLICATE_CODE")
	})

	t.Run("duplicate_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)

		_, err := l.account.CreateAccount(ctx, CreateAccountInput{Name: "Bank"})
		testutil.AssertAppError(t, err, "DUPLICATE_NAME")
	})

	t.Run("failed_load_rolls_back", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)

		_, err := l.account.CreateAccount(ctx, CreateAccountInput{
			StartDate:     testutil.Date(10),
			InitialAmount: dec("20.00"),
		})
		testutil.AssertAppError(t, err, "INACTIVE_ACCOUNT")

		var count int64
		db.Model(&models.Account{}).Count(&count)
		if count != 3 {
			t.Errorf("expected only the core accounts, got %d", count)
		}
	})

	t.Run("start_after_end", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)

		_, err := l.account.CreateAccount(ctx, CreateAccountInput{
			StartDate: testutil.Date(5),
			EndDate:   testutil.Date(1),
		})
		testutil.AssertAppError(t, err, "INVALID_DATE_RANGE")
	})

	t.Run("initial_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)

		_, err := l.account.CreateAccount(ctx, CreateAccountInput{InitialAmount: dec("4.99"), EnforceInitialRange: true})
		testutil.AssertAppError(t, err, "INITIAL_AMOUNT_OUT_OF_RANGE")

		_, err = l.account.CreateAccount(ctx, CreateAccountInput{InitialAmount: dec("500.01"), EnforceInitialRange: true})
		testutil.AssertAppError(t, err, "INITIAL_AMOUNT_OUT_OF_RANGE")

		account, err := l.account.CreateAccount(ctx, CreateAccountInput{InitialAmount: dec("500.00"), EnforceInitialRange: true})
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, db, account, 50000)
	})

	t.Run("unlimited_credit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)
		limit := dec("50.00")

		unlimited, err := l.account.CreateAccount(ctx, CreateAccountInput{CreditLimit: &limit, Unlimited: true})
		testutil.AssertNoError(t, err)
		if unlimited.CreditLimit != nil {
			t.Errorf("expected no credit limit, got %d", *unlimited.CreditLimit)
		}

		limited, err := l.account.CreateAccount(ctx, CreateAccountInput{CreditLimit: &limit})
		testutil.AssertNoError(t, err)
		if limited.CreditLimit == nil || *limited.CreditLimit != 5000 {
			t.Errorf("expected credit limit 5000, got %v", limited.CreditLimit)
		}
	})
}

func TestRedeemAndRefund(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	l := newTestLedger(t, db)

	account, err := l.account.CreateAccount(ctx, CreateAccountInput{InitialAmount: dec("100.00")})
	testutil.AssertNoError(t, err)
	code := *account.Code

	redemption, err := l.account.Redeem(ctx, code, dec("60.00"), "1001", nil)
	testutil.AssertNoError(t, err)
	if redemption.OrderNumber == nil || *redemption.OrderNumber != "1001" {
		t.Errorf("expected order number 1001, got %v", redemption.OrderNumber)
	}
	testutil.AssertBalance(t, db, account, 4000)
	testutil.AssertBalance(t, db, namedAccount(t, db, "Redemptions"), 6000)

	_, err = l.account.Redeem(ctx, code, dec("60.00"), "1002", nil)
	testutil.AssertAppError(t, err, "INSUFFICIENT_FUNDS")

	_, err = l.account.Refund(ctx, code, dec("15.00"), "1001", nil)
	testutil.AssertNoError(t, err)
	testutil.AssertBalance(t, db, account, 5500)

	_, err = l.account.Redeem(ctx, "NOPE", dec("1.00"), "1003", nil)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	_, err = l.account.Redeem(ctx, "NOPE", dec("-5"), "1003", nil)
	testutil.AssertAppError(t, err, "INVALID_AMOUNT")
	_, err = l.account.Refund(ctx, "NOPE", dec("0"), "1003", nil)
	testutil.AssertAppError(t, err, "INVALID_AMOUNT")

	testutil.AssertLedgerBalanced(t, db, models.BookAccounts)
}

func TestTopUpAndClose(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	l := newTestLedger(t, db)

	account, err := l.account.CreateAccount(ctx, CreateAccountInput{})
	testutil.AssertNoError(t, err)

	_, err = l.account.TopUp(ctx, account.ID, dec("30.00"), nil)
	testutil.AssertNoError(t, err)

	balance, err := l.account.Balance(ctx, account.ID)
	testutil.AssertNoError(t, err)
	if balance.StringFixed(2) != "30.00" {
		t.Errorf("expected 30.00, got %s", balance.StringFixed(2))
	}

	_, err = l.account.Close(ctx, account.ID)
	testutil.AssertAppError(t, err, "NOT_EMPTY")

	_, err = l.account.Freeze(ctx, account.ID)
	testutil.AssertNoError(t, err)
	_, err = l.account.TopUp(ctx, account.ID, dec("1.00"), nil)
	testutil.AssertAppError(t, err, "INVALID_STATUS")
	_, err = l.account.Thaw(ctx, account.ID)
	testutil.AssertNoError(t, err)

	_, err = l.account.Redeem(ctx, *account.Code, dec("30.00"), "X", nil)
	testutil.AssertNoError(t, err)

	closed, err := l.account.Close(ctx, account.ID)
	testutil.AssertNoError(t, err)
	if closed.Status != models.StatusClosed {
		t.Errorf("expected Closed, got %s", closed.Status)
	}

	_, err = l.account.TopUp(ctx, account.ID, dec("1.00"), nil)
	testutil.AssertAppError(t, err, "CLOSED_ACCOUNT")
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("changes_attributes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)
		account := testutil.CreateTestAccount(t, db)

		name, category := "Staff card", "staff"
		unlimited := true
		updated, err := l.account.UpdateAccount(ctx, account.ID, UpdateAccountInput{
			Name:      &name,
			Category:  &category,
			EndDate:   testutil.Date(30),
			Unlimited: &unlimited,
		})
		testutil.AssertNoError(t, err)

		if updated.Name == nil || *updated.Name != name {
			t.Errorf("expected name %q, got %v", name, updated.Name)
		}
		if updated.Category != category {
			t.Errorf("expected category %q, got %q", category, updated.Category)
		}
		if updated.EndDate == nil {
			t.Error("expected an end date")
		}
		if !updated.HasUnlimitedCredit() {
			t.Error("expected unlimited credit")
		}
	})

	t.Run("end_before_existing_start", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)
		account := testutil.CreateTestAccount(t, db, testutil.WithDates(testutil.Date(10), nil))

		_, err := l.account.UpdateAccount(ctx, account.ID, UpdateAccountInput{EndDate: testutil.Date(5)})
		testutil.AssertAppError(t, err, "INVALID_DATE_RANGE")
	})

	t.Run("name_taken", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)
		account := testutil.CreateTestAccount(t, db)

		name := "Redemptions"
		_, err := l.account.UpdateAccount(ctx, account.ID, UpdateAccountInput{Name: &name})
		testutil.AssertAppError(t, err, "DUPLICATE_NAME")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)

		_, err := l.account.UpdateAccount(ctx, 999, UpdateAccountInput{})
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})
}

func TestSearchAccounts(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	l := newTestLedger(t, db)

	testutil.CreateTestAccount(t, db, testutil.WithName("Alice gift"))
	testutil.CreateTestAccount(t, db, testutil.WithName("Bob gift"), testutil.WithStatus(models.StatusFrozen))
	target, err := l.account.CreateAccount(ctx, CreateAccountInput{Code: "findme"})
	testutil.AssertNoError(t, err)

	page, err := l.account.SearchAccounts(ctx, models.HolderSearch{Name: "GIFT"}, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 {
		t.Errorf("expected 2 name matches, got %d", page.TotalItems)
	}

	page, err = l.account.SearchAccounts(ctx, models.HolderSearch{Name: "gift", Status: models.StatusFrozen}, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 1 {
		t.Errorf("expected 1 frozen match, got %d", page.TotalItems)
	}

	page, err = l.account.SearchAccounts(ctx, models.HolderSearch{Code: "FindMe"}, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if len(page.Data) != 1 || page.Data[0].ID != target.ID {
		t.Errorf("expected code match %d, got %+v", target.ID, page.Data)
	}

	page, err = l.account.SearchAccounts(ctx, models.HolderSearch{}, pagination.PageRequest{Page: 2, PageSize: 2})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 6 || page.TotalPages != 3 || len(page.Data) != 2 {
		t.Errorf("unexpected page: total=%d pages=%d len=%d", page.TotalItems, page.TotalPages, len(page.Data))
	}
}

func TestAccountTransfers(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	l := newTestLedger(t, db)

	account, err := l.account.CreateAccount(ctx, CreateAccountInput{InitialAmount: dec("10.00")})
	testutil.AssertNoError(t, err)
	time.Sleep(5 * time.Millisecond)
	latest, err := l.account.Redeem(ctx, *account.Code, dec("2.00"), "A", nil)
	testutil.AssertNoError(t, err)

	page, err := l.account.AccountTransfers(ctx, account.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 {
		t.Fatalf("expected 2 transfers, got %d", page.TotalItems)
	}
	if page.Data[0].ID != latest.ID {
		t.Errorf("expected newest transfer first")
	}

	_, err = l.account.AccountTransfers(ctx, 999, pagination.PageRequest{})
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}
