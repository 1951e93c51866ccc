package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"giftledger/internal/models"
	"giftledger/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(ctx context.Context, username, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error
}

// CreateAccountInput holds the attributes of a new account. A zero
// InitialAmount creates an empty account; a positive one is loaded from the
// bank account in the same transaction.
type CreateAccountInput struct {
	Name          string
	Code          string
	Description   string
	Category      string
	StartDate     *time.Time
	EndDate       *time.Time
	CreditLimit   *decimal.Decimal
	Unlimited     bool
	PrimaryUserID *uint
	InitialAmount decimal.Decimal
	User          *models.User

	// EnforceInitialRange applies the configured minimum and maximum
	// initial value.
	EnforceInitialRange bool
}

// UpdateAccountInput holds the mutable account attributes. Nil fields are
// left unchanged.
type UpdateAccountInput struct {
	Name        *string
	Description *string
	Category    *string
	StartDate   *time.Time
	EndDate     *time.Time
	CreditLimit *decimal.Decimal
	Unlimited   *bool
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	EnsureCoreAccounts(ctx context.Context) error
	CreateAccount(ctx context.Context, in CreateAccountInput) (*models.Account, error)
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*models.Account, error)
	SearchAccounts(ctx context.Context, q models.HolderSearch, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	UpdateAccount(ctx context.Context, id uint, in UpdateAccountInput) (*models.Account, error)
	Balance(ctx context.Context, id uint) (decimal.Decimal, error)
	Freeze(ctx context.Context, id uint) (*models.Account, error)
	Thaw(ctx context.Context, id uint) (*models.Account, error)
	Close(ctx context.Context, id uint) (*models.Account, error)
	TopUp(ctx context.Context, id uint, amount decimal.Decimal, user *models.User) (*models.Transfer, error)
	Redeem(ctx context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error)
	Refund(ctx context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error)
	AccountTransfers(ctx context.Context, id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error)
}

// TransferInput describes a transfer requested through the dashboard or
// the budget API.
type TransferInput struct {
	SourceID      uint
	DestinationID uint
	Amount        decimal.Decimal
	OrderNumber   string
	Description   string
	User          *models.User
}

// TransferFilter holds optional filter parameters for listing transfers.
type TransferFilter struct {
	OrderNumber string
	FromDate    *time.Time
	ToDate      *time.Time
}

// TransferDetail is a transfer with both of its accounts resolved.
type TransferDetail struct {
	Transfer    *models.Transfer
	Source      *models.Account
	Destination *models.Account
	Parent      *models.Transfer
}

// TransferServicer defines the contract for account transfers.
type TransferServicer interface {
	Transfer(ctx context.Context, in TransferInput) (*models.Transfer, error)
	Reverse(ctx context.Context, id uint, orderNumber string, user *models.User) (*models.Transfer, error)
	GetTransfer(ctx context.Context, id uint) (*TransferDetail, error)
	ListTransfers(ctx context.Context, filter TransferFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error)
	DeleteTransfer(ctx context.Context, id uint) error
}

// CreateBudgetInput holds the attributes of a new budget.
type CreateBudgetInput struct {
	Name             string
	Code             string
	StartDate        *time.Time
	EndDate          *time.Time
	CreditLimit      *decimal.Decimal
	Unlimited        bool
	PrimaryUserID    *uint
	SecondaryUserIDs []uint
}

// UpdateBudgetInput holds the mutable budget attributes. Nil fields are
// left unchanged; a non-nil SecondaryUserIDs replaces the member list.
type UpdateBudgetInput struct {
	Name             *string
	StartDate        *time.Time
	EndDate          *time.Time
	CreditLimit      *decimal.Decimal
	Unlimited        *bool
	PrimaryUserID    *uint
	SecondaryUserIDs []uint
}

// BudgetFilter holds optional filter parameters for listing budgets.
type BudgetFilter struct {
	UserID     *uint
	ActiveOnly bool
	Status     models.Status
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, in CreateBudgetInput) (*models.Budget, error)
	GetBudget(ctx context.Context, id uint) (*models.Budget, error)
	ListBudgets(ctx context.Context, filter BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	UpdateBudget(ctx context.Context, id uint, in UpdateBudgetInput) (*models.Budget, error)
	Balance(ctx context.Context, id uint) (decimal.Decimal, error)
	Close(ctx context.Context, id uint) (*models.Budget, error)
	Transfer(ctx context.Context, in TransferInput) (*models.Transfer, error)
	Reverse(ctx context.Context, id uint, orderNumber string, user *models.User) (*models.Transfer, error)
	BudgetTransfers(ctx context.Context, id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error)
}

// ExpiryReport summarises one expiry sweep.
type ExpiryReport struct {
	Closed  []uint `json:"closed"`
	Skipped []uint `json:"skipped"`
	Swept   string `json:"swept"`
}

// ExpiryServicer closes accounts whose activity window has ended.
type ExpiryServicer interface {
	CloseExpired(ctx context.Context) (*ExpiryReport, error)
}

// Drift is a holder whose cached balance disagrees with its entries.
type Drift struct {
	Book     models.Book `json:"book"`
	HolderID uint        `json:"holder_id"`
	Cached   string      `json:"cached"`
	Derived  string      `json:"derived"`
}

// ReconcileReport is the outcome of a reconciliation run.
type ReconcileReport struct {
	CheckedAt  time.Time              `json:"checked_at"`
	Holders    int                    `json:"holders"`
	Drifts     []Drift                `json:"drifts"`
	BookTotals map[models.Book]string `json:"book_totals"`
	Balanced   bool                   `json:"balanced"`
}

// ReconcileServicer compares cached balances with the ledger.
type ReconcileServicer interface {
	Check(ctx context.Context) (*ReconcileReport, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]any)
	History(ctx context.Context, resourceType string, resourceID uint, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}
