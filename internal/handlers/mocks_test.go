package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/models"
	"giftledger/internal/pagination"
	"giftledger/internal/services"
	"giftledger/internal/validator"
)

// --- mock services ---

type mockUserService struct {
	createUserFn  func(username, email string) (*models.User, error)
	getUserByIDFn func(id uint) (*models.User, error)
	deleteUserFn  func(id uint) error
}

func (m *mockUserService) CreateUser(_ context.Context, username, email string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(username, email)
	}
	return &models.User{Username: username, Email: email}, nil
}

func (m *mockUserService) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}, Username: "cashier"}, nil
}

func (m *mockUserService) DeleteUser(_ context.Context, id uint) error {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(id)
	}
	return nil
}

type mockAccountService struct {
	createAccountFn    func(in services.CreateAccountInput) (*models.Account, error)
	getAccountFn       func(id uint) (*models.Account, error)
	getAccountByCodeFn func(code string) (*models.Account, error)
	searchAccountsFn   func(q models.HolderSearch, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	updateAccountFn    func(id uint, in services.UpdateAccountInput) (*models.Account, error)
	balanceFn          func(id uint) (decimal.Decimal, error)
	freezeFn           func(id uint) (*models.Account, error)
	thawFn             func(id uint) (*models.Account, error)
	closeFn            func(id uint) (*models.Account, error)
	topUpFn            func(id uint, amount decimal.Decimal, user *models.User) (*models.Transfer, error)
	redeemFn           func(code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error)
	refundFn           func(code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error)
	accountTransfersFn func(id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error)
}

func (m *mockAccountService) EnsureCoreAccounts(_ context.Context) error { return nil }

func (m *mockAccountService) CreateAccount(_ context.Context, in services.CreateAccountInput) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(in)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) GetAccount(_ context.Context, id uint) (*models.Account, error) {
	if m.getAccountFn != nil {
		return m.getAccountFn(id)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) GetAccountByCode(_ context.Context, code string) (*models.Account, error) {
	if m.getAccountByCodeFn != nil {
		return m.getAccountByCodeFn(code)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) SearchAccounts(_ context.Context, q models.HolderSearch, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	if m.searchAccountsFn != nil {
		return m.searchAccountsFn(q, page)
	}
	resp := pagination.NewPageResponse([]models.Account{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAccountService) UpdateAccount(_ context.Context, id uint, in services.UpdateAccountInput) (*models.Account, error) {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(id, in)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) Balance(_ context.Context, id uint) (decimal.Decimal, error) {
	if m.balanceFn != nil {
		return m.balanceFn(id)
	}
	return decimal.Zero, nil
}

func (m *mockAccountService) Freeze(_ context.Context, id uint) (*models.Account, error) {
	if m.freezeFn != nil {
		return m.freezeFn(id)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) Thaw(_ context.Context, id uint) (*models.Account, error) {
	if m.thawFn != nil {
		return m.thawFn(id)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) Close(_ context.Context, id uint) (*models.Account, error) {
	if m.closeFn != nil {
		return m.closeFn(id)
	}
	return models.NewAccount(), nil
}

func (m *mockAccountService) TopUp(_ context.Context, id uint, amount decimal.Decimal, user *models.User) (*models.Transfer, error) {
	if m.topUpFn != nil {
		return m.topUpFn(id, amount, user)
	}
	return &models.Transfer{}, nil
}

func (m *mockAccountService) Redeem(_ context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error) {
	if m.redeemFn != nil {
		return m.redeemFn(code, amount, orderNumber, user)
	}
	return &models.Transfer{}, nil
}

func (m *mockAccountService) Refund(_ context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error) {
	if m.refundFn != nil {
		return m.refundFn(code, amount, orderNumber, user)
	}
	return &models.Transfer{}, nil
}

func (m *mockAccountService) AccountTransfers(_ context.Context, id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	if m.accountTransfersFn != nil {
		return m.accountTransfersFn(id, page)
	}
	resp := pagination.NewPageResponse([]models.Transfer{}, 1, 20, 0)
	return &resp, nil
}

type mockTransferService struct {
	transferFn       func(in services.TransferInput) (*models.Transfer, error)
	reverseFn        func(id uint, orderNumber string, user *models.User) (*models.Transfer, error)
	getTransferFn    func(id uint) (*services.TransferDetail, error)
	listTransfersFn  func(filter services.TransferFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error)
	deleteTransferFn func(id uint) error
}

func (m *mockTransferService) Transfer(_ context.Context, in services.TransferInput) (*models.Transfer, error) {
	if m.transferFn != nil {
		return m.transferFn(in)
	}
	return &models.Transfer{}, nil
}

func (m *mockTransferService) Reverse(_ context.Context, id uint, orderNumber string, user *models.User) (*models.Transfer, error) {
	if m.reverseFn != nil {
		return m.reverseFn(id, orderNumber, user)
	}
	return &models.Transfer{}, nil
}

func (m *mockTransferService) GetTransfer(_ context.Context, id uint) (*services.TransferDetail, error) {
	if m.getTransferFn != nil {
		return m.getTransferFn(id)
	}
	return &services.TransferDetail{Transfer: &models.Transfer{ID: id}}, nil
}

func (m *mockTransferService) ListTransfers(_ context.Context, filter services.TransferFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	if m.listTransfersFn != nil {
		return m.listTransfersFn(filter, page)
	}
	resp := pagination.NewPageResponse([]models.Transfer{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransferService) DeleteTransfer(_ context.Context, id uint) error {
	if m.deleteTransferFn != nil {
		return m.deleteTransferFn(id)
	}
	return apperrors.ErrDeletionForbidden
}

type mockBudgetService struct {
	createBudgetFn    func(in services.CreateBudgetInput) (*models.Budget, error)
	getBudgetFn       func(id uint) (*models.Budget, error)
	listBudgetsFn     func(filter services.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	updateBudgetFn    func(id uint, in services.UpdateBudgetInput) (*models.Budget, error)
	balanceFn         func(id uint) (decimal.Decimal, error)
	closeFn           func(id uint) (*models.Budget, error)
	transferFn        func(in services.TransferInput) (*models.Transfer, error)
	reverseFn         func(id uint, orderNumber string, user *models.User) (*models.Transfer, error)
	budgetTransfersFn func(id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error)
}

func (m *mockBudgetService) CreateBudget(_ context.Context, in services.CreateBudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(in)
	}
	return models.NewBudget(), nil
}

func (m *mockBudgetService) GetBudget(_ context.Context, id uint) (*models.Budget, error) {
	if m.getBudgetFn != nil {
		return m.getBudgetFn(id)
	}
	return models.NewBudget(), nil
}

func (m *mockBudgetService) ListBudgets(_ context.Context, filter services.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	if m.listBudgetsFn != nil {
		return m.listBudgetsFn(filter, page)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) UpdateBudget(_ context.Context, id uint, in services.UpdateBudgetInput) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(id, in)
	}
	return models.NewBudget(), nil
}

func (m *mockBudgetService) Balance(_ context.Context, id uint) (decimal.Decimal, error) {
	if m.balanceFn != nil {
		return m.balanceFn(id)
	}
	return decimal.Zero, nil
}

func (m *mockBudgetService) Close(_ context.Context, id uint) (*models.Budget, error) {
	if m.closeFn != nil {
		return m.closeFn(id)
	}
	return models.NewBudget(), nil
}

func (m *mockBudgetService) Transfer(_ context.Context, in services.TransferInput) (*models.Transfer, error) {
	if m.transferFn != nil {
		return m.transferFn(in)
	}
	return &models.Transfer{}, nil
}

func (m *mockBudgetService) Reverse(_ context.Context, id uint, orderNumber string, user *models.User) (*models.Transfer, error) {
	if m.reverseFn != nil {
		return m.reverseFn(id, orderNumber, user)
	}
	return &models.Transfer{}, nil
}

func (m *mockBudgetService) BudgetTransfers(_ context.Context, id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	if m.budgetTransfersFn != nil {
		return m.budgetTransfersFn(id, page)
	}
	resp := pagination.NewPageResponse([]models.Transfer{}, 1, 20, 0)
	return &resp, nil
}

type mockExpiryService struct {
	closeExpiredFn func() (*services.ExpiryReport, error)
}

func (m *mockExpiryService) CloseExpired(_ context.Context) (*services.ExpiryReport, error) {
	if m.closeExpiredFn != nil {
		return m.closeExpiredFn()
	}
	return &services.ExpiryReport{Closed: []uint{}, Skipped: []uint{}, Swept: "0.00"}, nil
}

type mockReconcileService struct {
	checkFn func() (*services.ReconcileReport, error)
}

func (m *mockReconcileService) Check(_ context.Context) (*services.ReconcileReport, error) {
	if m.checkFn != nil {
		return m.checkFn()
	}
	return &services.ReconcileReport{Balanced: true}, nil
}

type auditCall struct {
	userID     uint
	action     string
	resourceID uint
}

type mockAuditService struct {
	calls     []auditCall
	historyFn func(resourceType string, resourceID uint, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}

func (m *mockAuditService) Log(userID uint, action, _ string, resourceID uint, _ string, _ map[string]interface{}) {
	m.calls = append(m.calls, auditCall{userID: userID, action: action, resourceID: resourceID})
}

func (m *mockAuditService) History(_ context.Context, resourceType string, resourceID uint, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	if m.historyFn != nil {
		return m.historyFn(resourceType, resourceID, page)
	}
	resp := pagination.NewPageResponse[models.AuditLog](nil, 1, 20, 0)
	return &resp, nil
}

// verify interface compliance
var (
	_ services.UserServicer      = (*mockUserService)(nil)
	_ services.AccountServicer   = (*mockAccountService)(nil)
	_ services.TransferServicer  = (*mockTransferService)(nil)
	_ services.BudgetServicer    = (*mockBudgetService)(nil)
	_ services.ExpiryServicer    = (*mockExpiryService)(nil)
	_ services.ReconcileServicer = (*mockReconcileService)(nil)
	_ services.AuditServicer     = (*mockAuditService)(nil)
)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	return doRequestWithType(r, method, path, body, "application/json")
}

func doRequestWithType(r *gin.Engine, method, path, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func strPtr(s string) *string { return &s }
