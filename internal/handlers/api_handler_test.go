package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/models"
	"giftledger/internal/services"
)

func setupAPIRouter(handler *APIHandler) *gin.Engine {
	r := gin.New()
	api := r.Group(APIBasePath, injectUserID(1))
	api.POST("/accounts", handler.CreateAccount)
	api.GET("/accounts/:code", handler.GetAccount)
	api.POST("/accounts/:code/redemptions", handler.Redeem)
	api.POST("/accounts/:code/refunds", handler.Refund)
	api.GET("/transfers/:reference", handler.GetTransfer)
	api.POST("/transfers/:reference/reverse", handler.ReverseTransfer)
	api.DELETE("/transfers/:reference", handler.DeleteTransfer)
	return r
}

func newAPIHandler(acct *mockAccountService, tr *mockTransferService) (*APIHandler, *mockAuditService) {
	audit := &mockAuditService{}
	return NewAPIHandler(acct, tr, &mockUserService{}, audit), audit
}

func cardAccount(id uint, code string) *models.Account {
	a := models.NewAccount()
	a.ID = id
	a.Code = &code
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	a.StartDate, a.EndDate = &start, &end
	return a
}

const validCreateBody = `{"start_date":"2030-01-01T00:00:00Z","end_date":"2031-01-01T00:00:00Z","amount":"60.00","name":"Gift"}`

func TestAPIHandler_CreateAccount(t *testing.T) {
	t.Run("returns_201_with_location", func(t *testing.T) {
		var got services.CreateAccountInput
		acct := &mockAccountService{
			createAccountFn: func(in services.CreateAccountInput) (*models.Account, error) {
				got = in
				return cardAccount(5, "ABCDEFGHJKMN"), nil
			},
		}
		handler, audit := newAPIHandler(acct, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts", validCreateBody)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "/api/v1/accounts/ABCDEFGHJKMN" {
			t.Errorf("unexpected Location %q", loc)
		}
		result := parseJSON(t, rec)
		if result["balance"] != "60.00" || result["start_date"] != "2030-01-01" {
			t.Errorf("unexpected body %v", result)
		}
		if result["redemptions_url"] != "/api/v1/accounts/ABCDEFGHJKMN/redemptions" {
			t.Errorf("unexpected redemptions_url %v", result["redemptions_url"])
		}
		if !got.InitialAmount.Equal(decimal.RequireFromString("60")) || got.Name != "Gift" {
			t.Errorf("unexpected service input %+v", got)
		}
		if got.User == nil || got.User.ID != 1 {
			t.Error("expected the caller to be attributed")
		}
		if got.EnforceInitialRange {
			t.Error("the public API does not apply the dashboard bounds")
		}
		if len(audit.calls) != 1 || audit.calls[0].action != "CREATE_ACCOUNT" {
			t.Errorf("expected one audit call, got %v", audit.calls)
		}
	})

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "missing_amount",
			body:        `{"start_date":"2030-01-01T00:00:00Z","end_date":"2031-01-01T00:00:00Z"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "MALFORMED_REQUEST",
		},
		{
			name:        "form_content_type",
			body:        validCreateBody,
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "MALFORMED_REQUEST",
		},
		{
			name:        "invalid_json",
			body:        `{"amount":`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "MALFORMED_REQUEST",
		},
		{
			name:        "naive_date",
			body:        `{"start_date":"2030-01-01T00:00:00","end_date":"2031-01-01T00:00:00Z","amount":"60.00"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "MALFORMED_REQUEST",
		},
		{
			name:        "three_decimal_places",
			body:        `{"start_date":"2030-01-01T00:00:00Z","end_date":"2031-01-01T00:00:00Z","amount":"1.005"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_AMOUNT",
		},
		{
			name:        "zero_amount",
			body:        `{"start_date":"2030-01-01T00:00:00Z","end_date":"2031-01-01T00:00:00Z","amount":"0"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_AMOUNT",
		},
		{
			name:        "start_after_end",
			body:        `{"start_date":"2031-01-02T00:00:00Z","end_date":"2031-01-01T00:00:00Z","amount":"5"}`,
			contentType: "application/json",
			wantStatus:  http.StatusForbidden,
			wantCode:    "INVALID_DATE_RANGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			acct := &mockAccountService{
				createAccountFn: func(in services.CreateAccountInput) (*models.Account, error) {
					called = true
					return cardAccount(1, "X"), nil
				},
			}
			handler, _ := newAPIHandler(acct, &mockTransferService{})
			rec := doRequestWithType(setupAPIRouter(handler), "POST", "/api/v1/accounts", tt.body, tt.contentType)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			assertErrorCode(t, parseJSON(t, rec), tt.wantCode)
			if called {
				t.Error("service must not be called for a rejected payload")
			}
		})
	}

	t.Run("bank_cannot_fund", func(t *testing.T) {
		acct := &mockAccountService{
			createAccountFn: func(in services.CreateAccountInput) (*models.Account, error) {
				return nil, apperrors.ErrInsufficientFunds
			},
		}
		handler, _ := newAPIHandler(acct, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts", validCreateBody)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INSUFFICIENT_FUNDS")
	})

	t.Run("deleted_caller", func(t *testing.T) {
		users := &mockUserService{
			getUserByIDFn: func(id uint) (*models.User, error) { return nil, apperrors.ErrUserNotFound },
		}
		handler := NewAPIHandler(&mockAccountService{}, &mockTransferService{}, users, &mockAuditService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts", validCreateBody)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAPIHandler_GetAccount(t *testing.T) {
	t.Run("returns_derived_balance", func(t *testing.T) {
		acct := &mockAccountService{
			getAccountByCodeFn: func(code string) (*models.Account, error) {
				if code != "abc123" {
					t.Errorf("expected raw code, got %s", code)
				}
				return cardAccount(3, "ABC123"), nil
			},
			balanceFn: func(id uint) (decimal.Decimal, error) {
				return decimal.RequireFromString("12.5"), nil
			},
		}
		handler, _ := newAPIHandler(acct, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "GET", "/api/v1/accounts/abc123", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["balance"] != "12.50" || result["code"] != "ABC123" || result["status"] != "Open" {
			t.Errorf("unexpected body %v", result)
		}
		if result["refunds_url"] != "/api/v1/accounts/ABC123/refunds" {
			t.Errorf("unexpected refunds_url %v", result["refunds_url"])
		}
	})

	t.Run("unknown_code", func(t *testing.T) {
		acct := &mockAccountService{
			getAccountByCodeFn: func(code string) (*models.Account, error) { return nil, apperrors.ErrAccountNotFound },
		}
		handler, _ := newAPIHandler(acct, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "GET", "/api/v1/accounts/NOPE", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ACCOUNT_NOT_FOUND")
	})
}

func TestAPIHandler_Redeem(t *testing.T) {
	t.Run("returns_201_with_transfer_location", func(t *testing.T) {
		acct := &mockAccountService{
			redeemFn: func(code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error) {
				if code != "ABC123" || orderNumber != "9001" || !amount.Equal(decimal.RequireFromString("15")) {
					t.Errorf("unexpected arguments %s %s %s", code, amount, orderNumber)
				}
				return &models.Transfer{ID: 42}, nil
			},
		}
		handler, audit := newAPIHandler(acct, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts/ABC123/redemptions",
			`{"amount":15,"order_number":"9001"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "/api/v1/transfers/00000042" {
			t.Errorf("unexpected Location %q", loc)
		}
		if len(audit.calls) != 1 || audit.calls[0].action != "REDEEM" {
			t.Errorf("unexpected audit calls %v", audit.calls)
		}
	})

	t.Run("insufficient_funds", func(t *testing.T) {
		acct := &mockAccountService{
			redeemFn: func(string, decimal.Decimal, string, *models.User) (*models.Transfer, error) {
				return nil, apperrors.WithMessage(apperrors.ErrInsufficientFunds, "Unable to debit 60.00 from account #1")
			},
		}
		handler, _ := newAPIHandler(acct, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts/ABC123/redemptions",
			`{"amount":"60.00","order_number":"1"}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INSUFFICIENT_FUNDS")
	})

	t.Run("missing_order_number", func(t *testing.T) {
		handler, _ := newAPIHandler(&mockAccountService{}, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts/ABC123/redemptions", `{"amount":"1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "MALFORMED_REQUEST")
	})
}

func TestAPIHandler_Refund(t *testing.T) {
	acct := &mockAccountService{
		refundFn: func(code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error) {
			return &models.Transfer{ID: 7}, nil
		},
	}
	handler, _ := newAPIHandler(acct, &mockTransferService{})
	rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/accounts/ABC123/refunds",
		`{"amount":"5.00","order_number":"9001"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/transfers/00000007" {
		t.Errorf("unexpected Location %q", loc)
	}
}

func TestAPIHandler_GetTransfer(t *testing.T) {
	t.Run("resolves_codes_and_parent", func(t *testing.T) {
		order := "9001-R"
		tr := &mockTransferService{
			getTransferFn: func(id uint) (*services.TransferDetail, error) {
				if id != 42 {
					t.Errorf("expected id 42, got %d", id)
				}
				redemptions := models.NewAccount()
				redemptions.Name = strPtr("Redemptions")
				return &services.TransferDetail{
					Transfer:    &models.Transfer{ID: 42, Amount: 1500, OrderNumber: &order},
					Source:      redemptions,
					Destination: cardAccount(3, "ABC123"),
					Parent:      &models.Transfer{ID: 41},
				}, nil
			},
		}
		handler, _ := newAPIHandler(&mockAccountService{}, tr)
		rec := doRequest(setupAPIRouter(handler), "GET", "/api/v1/transfers/00000042", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["reference"] != "00000042" || result["amount"] != "15.00" {
			t.Errorf("unexpected body %v", result)
		}
		if result["source_name"] != "Redemptions" || result["source_code"] != nil {
			t.Errorf("unexpected source %v / %v", result["source_name"], result["source_code"])
		}
		if result["destination_code"] != "ABC123" || result["parent_reference"] != "00000041" {
			t.Errorf("unexpected destination or parent %v", result)
		}
	})

	t.Run("non_numeric_reference", func(t *testing.T) {
		handler, _ := newAPIHandler(&mockAccountService{}, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "GET", "/api/v1/transfers/abc", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TRANSFER_NOT_FOUND")
	})
}

func TestAPIHandler_ReverseTransfer(t *testing.T) {
	t.Run("returns_201", func(t *testing.T) {
		tr := &mockTransferService{
			reverseFn: func(id uint, orderNumber string, user *models.User) (*models.Transfer, error) {
				if id != 42 || orderNumber != "R-1" {
					t.Errorf("unexpected arguments %d %s", id, orderNumber)
				}
				return &models.Transfer{ID: 43}, nil
			},
		}
		handler, _ := newAPIHandler(&mockAccountService{}, tr)
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/transfers/00000042/reverse", `{"order_number":"R-1"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "/api/v1/transfers/00000043" {
			t.Errorf("unexpected Location %q", loc)
		}
	})

	t.Run("missing_order_number", func(t *testing.T) {
		handler, _ := newAPIHandler(&mockAccountService{}, &mockTransferService{})
		rec := doRequest(setupAPIRouter(handler), "POST", "/api/v1/transfers/00000042/reverse", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAPIHandler_DeleteTransfer(t *testing.T) {
	handler, _ := newAPIHandler(&mockAccountService{}, &mockTransferService{})
	rec := doRequest(setupAPIRouter(handler), "DELETE", "/api/v1/transfers/00000042", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "DELETION_FORBIDDEN")
}
