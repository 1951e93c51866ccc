package testutil

import (
	"errors"
	"testing"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/models"

	"gorm.io/gorm"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertBalance checks both the derived and the cached balance of a holder.
func AssertBalance(t *testing.T, db *gorm.DB, holder models.LedgerEntity, want int64) {
	t.Helper()

	var derived int64
	if err := db.Model(&models.Entry{}).
		Scopes(models.EntriesOf(holder.Book(), holder.GetID())).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&derived).Error; err != nil {
		t.Fatalf("failed to derive balance: %v", err)
	}
	if derived != want {
		t.Errorf("holder %d: derived balance = %d, want %d", holder.GetID(), derived, want)
	}

	var cached int64
	if err := db.Table(string(holder.Book())).
		Where("id = ?", holder.GetID()).
		Select("balance").
		Scan(&cached).Error; err != nil {
		t.Fatalf("failed to read cached balance: %v", err)
	}
	if cached != want {
		t.Errorf("holder %d: cached balance = %d, want %d", holder.GetID(), cached, want)
	}
}

// AssertLedgerBalanced checks that every transfer and the whole book sum to zero.
func AssertLedgerBalanced(t *testing.T, db *gorm.DB, book models.Book) {
	t.Helper()

	var total int64
	if err := db.Model(&models.Entry{}).Where("book = ?", book).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		t.Fatalf("failed to sum entries: %v", err)
	}
	if total != 0 {
		t.Errorf("book %s: entries sum to %d, want 0", book, total)
	}

	var unbalanced []uint
	if err := db.Model(&models.Entry{}).Where("book = ?", book).
		Group("transfer_id").
		Having("SUM(amount) <> 0 OR COUNT(*) <> 2").
		Pluck("transfer_id", &unbalanced).Error; err != nil {
		t.Fatalf("failed to check transfers: %v", err)
	}
	if len(unbalanced) != 0 {
		t.Errorf("book %s: transfers %v are not balanced pairs", book, unbalanced)
	}
}
