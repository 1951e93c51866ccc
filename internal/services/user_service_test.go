package services

import (
	"context"
	"testing"

	"giftledger/internal/models"
	"giftledger/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.CreateUser(ctx, " alice ", "Alice@Example.com")
		testutil.AssertNoError(t, err)

		if user.ID == 0 {
			t.Fatal("expected non-zero user ID")
		}
		if user.Username != "alice" {
			t.Errorf("expected username alice, got %q", user.Username)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected email alice@example.com, got %s", user.Email)
		}
		if !user.IsActive {
			t.Error("expected user to be active")
		}
	})

	t.Run("duplicate_username", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser(ctx, "dup", "")
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser(ctx, "dup", "")
		testutil.AssertAppError(t, err, "DUPLICATE_USERNAME")
	})

	t.Run("empty_username", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser(ctx, "  ", "x@example.com")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db)
	user := testutil.CreateTestUser(t, db)

	found, err := svc.GetUserByID(context.Background(), user.ID)
	testutil.AssertNoError(t, err)
	if found.Username != user.Username {
		t.Errorf("expected %s, got %s", user.Username, found.Username)
	}

	_, err = svc.GetUserByID(context.Background(), 999)
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps_transfer_attribution", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		l := newTestLedger(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		account, err := l.account.CreateAccount(ctx, CreateAccountInput{InitialAmount: dec("25.00"), User: user})
		testutil.AssertNoError(t, err)
		budget := testutil.CreateTestBudget(t, db, user.ID)
		db.Exec("INSERT INTO budget_secondary_users (budget_id, user_id) VALUES (?, ?)", budget.ID, user.ID)

		testutil.AssertNoError(t, svc.DeleteUser(ctx, user.ID))

		var transfer models.Transfer
		if err := db.Where("destination_id = ? AND book = ?", account.ID, models.BookAccounts).First(&transfer).Error; err != nil {
			t.Fatalf("transfer should survive user deletion: %v", err)
		}
		if transfer.UserID != nil {
			t.Errorf("expected user link cleared, got %d", *transfer.UserID)
		}
		if transfer.Username != user.Username {
			t.Errorf("expected username snapshot %q, got %q", user.Username, transfer.Username)
		}
		testutil.AssertBalance(t, db, account, 2500)

		var reloaded models.Budget
		db.First(&reloaded, budget.ID)
		if reloaded.PrimaryUserID != nil {
			t.Error("expected budget owner cleared")
		}
		var members int64
		db.Table("budget_secondary_users").Where("user_id = ?", user.ID).Count(&members)
		if members != 0 {
			t.Errorf("expected membership removed, got %d rows", members)
		}

		_, err = svc.GetUserByID(ctx, user.ID)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		err := svc.DeleteUser(ctx, 404)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}
