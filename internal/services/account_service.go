package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"giftledger/internal/codes"
	"giftledger/internal/config"
	apperrors "giftledger/internal/errors"
	"giftledger/internal/ledger"
	"giftledger/internal/logger"
	"giftledger/internal/models"
	"giftledger/internal/money"
	"giftledger/internal/pagination"
)

// AccountSettings names the designated accounts and bounds the initial
// value of dashboard-created accounts.
type AccountSettings struct {
	BankName        string
	RedemptionsName string
	ExpiredName     string
	MinInitialValue *decimal.Decimal
	MaxInitialValue *decimal.Decimal
}

// SettingsFromConfig reads AccountSettings from the application config.
func SettingsFromConfig(cfg *config.Config) AccountSettings {
	return AccountSettings{
		BankName:        cfg.BankAccountName,
		RedemptionsName: cfg.RedemptionsAccountName,
		ExpiredName:     cfg.ExpiredAccountName,
		MinInitialValue: cfg.MinInitialValue,
		MaxInitialValue: cfg.MaxInitialValue,
	}
}

// accountService handles account-related business logic.
type accountService struct {
	db       *gorm.DB
	book     *ledger.AccountBook
	settings AccountSettings
	log      *zap.SugaredLogger
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB, book *ledger.AccountBook, settings AccountSettings) AccountServicer {
	return &accountService{db: db, book: book, settings: settings, log: logger.Named("accounts")}
}

// EnsureCoreAccounts creates the bank, redemptions and expired accounts
// when they are missing. Bank and redemptions may go negative without limit.
func (s *accountService) EnsureCoreAccounts(ctx context.Context) error {
	core := []struct {
		name      string
		unlimited bool
	}{
		{s.settings.BankName, true},
		{s.settings.RedemptionsName, true},
		{s.settings.ExpiredName, false},
	}

	db := s.db.WithContext(ctx)
	for _, c := range core {
		var count int64
		if err := db.Model(&models.Account{}).Where("name = ?", c.name).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			continue
		}

		account := models.NewAccount()
		name := c.name
		account.Name = &name
		account.Description = "Designated account"
		if c.unlimited {
			account.CreditLimit = nil
		}
		if err := db.Create(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		s.log.Infow("created core account", "name", c.name, "id", account.ID)
	}
	return nil
}

// CreateAccount creates an account and, for a positive initial amount,
// loads it from the bank account within the same transaction.
func (s *accountService) CreateAccount(ctx context.Context, in CreateAccountInput) (*models.Account, error) {
	if err := checkDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if in.InitialAmount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "Initial amount must not be negative")
	}
	if in.EnforceInitialRange {
		if err := s.checkInitialRange(in.InitialAmount); err != nil {
			return nil, err
		}
	}
	limit, err := creditLimit(in.CreditLimit, in.Unlimited)
	if err != nil {
		return nil, err
	}

	account := models.NewAccount()
	account.Name = optionalString(in.Name)
	account.Description = in.Description
	account.Category = in.Category
	account.StartDate = dateOnly(in.StartDate)
	account.EndDate = dateOnly(in.EndDate)
	account.CreditLimit = limit
	account.PrimaryUserID = in.PrimaryUserID
	if code := models.NormalizeCode(in.Code); code != "" {
		account.Code = &code
	}

	load := in.InitialAmount.IsPositive()
	var bank *models.Account
	if load {
		if bank, err = s.named(ctx, s.settings.BankName); err != nil {
			return nil, err
		}
		unlock := s.book.Lock(bank.ID)
		defer unlock()
	}

	var transfer *models.Transfer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, &models.Account{}, "name", account.Name, 0, apperrors.ErrDuplicateName); err != nil {
			return err
		}
		if account.Code == nil {
			code, err := codes.Unique(func(c string) (bool, error) {
				var n int64
				err := tx.Model(&models.Account{}).Where("code = ?", c).Count(&n).Error
				return n > 0, err
			})
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			account.Code = &code
		} else if err := checkUnique(tx, &models.Account{}, "code", account.Code, 0, apperrors.ErrDuplicateCode); err != nil {
			return err
		}

		if err := tx.Create(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !load {
			return nil
		}

		var txErr error
		transfer, txErr = s.book.TransferTx(tx, ledger.TransferRequest{
			SourceID:      bank.ID,
			DestinationID: account.ID,
			Amount:        in.InitialAmount,
			Description:   "Load from bank",
			User:          in.User,
		})
		return txErr
	})
	if err != nil {
		return nil, uniqueConflict(s.db.WithContext(ctx), &models.Account{}, err, account.Name, 0, apperrors.ErrDuplicateCode)
	}

	s.log.Infow("account created", "id", account.ID, "code", *account.Code)
	if transfer != nil {
		s.book.Publish(ctx, s.book.TransferEvent(transfer))
		account.Balance = transfer.Amount
	}
	return account, nil
}

func (s *accountService) checkInitialRange(amount decimal.Decimal) error {
	lo, hi := s.settings.MinInitialValue, s.settings.MaxInitialValue
	if lo != nil && amount.LessThan(*lo) {
		return apperrors.WithMessage(apperrors.ErrInitialAmountOutOfRange,
			fmt.Sprintf("The initial amount must be at least %s", lo.StringFixed(money.Places)))
	}
	if hi != nil && amount.GreaterThan(*hi) {
		return apperrors.WithMessage(apperrors.ErrInitialAmountOutOfRange,
			fmt.Sprintf("The initial amount must not exceed %s", hi.StringFixed(money.Places)))
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *accountService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return s.book.Get(ctx, id)
}

// GetAccountByCode retrieves an account by its code, ignoring case.
func (s *accountService) GetAccountByCode(ctx context.Context, code string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("code = ?", models.NormalizeCode(code)).First(&account).Error; err != nil {
		return nil, notFound(err, apperrors.ErrAccountNotFound)
	}
	return &account, nil
}

// SearchAccounts lists accounts matching the dashboard search, newest first.
func (s *accountService) SearchAccounts(ctx context.Context, q models.HolderSearch, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	resp, err := pagination.Find[models.Account](s.db.WithContext(ctx), models.SearchScope(q), "created_at DESC, id DESC", page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// UpdateAccount changes the descriptive attributes, window and credit
// limit. Status and balance only change through the ledger.
func (s *accountService) UpdateAccount(ctx context.Context, id uint, in UpdateAccountInput) (*models.Account, error) {
	unlock := s.book.Lock(id)
	defer unlock()

	var account *models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Account
		if err := tx.First(&current, id).Error; err != nil {
			return notFound(err, apperrors.ErrAccountNotFound)
		}

		updates := map[string]any{}
		if in.Name != nil {
			name := optionalString(*in.Name)
			if err := checkUnique(tx, &models.Account{}, "name", name, id, apperrors.ErrDuplicateName); err != nil {
				return err
			}
			updates["name"] = name
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Category != nil {
			updates["category"] = *in.Category
		}

		start, end := current.StartDate, current.EndDate
		if in.StartDate != nil {
			start = dateOnly(in.StartDate)
			updates["start_date"] = start
		}
		if in.EndDate != nil {
			end = dateOnly(in.EndDate)
			updates["end_date"] = end
		}
		if err := checkDateRange(start, end); err != nil {
			return err
		}

		if in.CreditLimit != nil || in.Unlimited != nil {
			unlimited := in.Unlimited != nil && *in.Unlimited
			limit := in.CreditLimit
			if limit == nil && !unlimited && current.CreditLimit != nil {
				existing := money.FromMinor(*current.CreditLimit)
				limit = &existing
			}
			minor, err := creditLimit(limit, unlimited)
			if err != nil {
				return err
			}
			updates["credit_limit"] = minor
		}

		if len(updates) > 0 {
			if err := tx.Model(&current).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		if err := tx.First(&current, id).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		account = &current
		return nil
	})
	if err != nil {
		return nil, uniqueConflict(s.db.WithContext(ctx), &models.Account{}, err, nil, id, apperrors.ErrDuplicateName)
	}
	return account, nil
}

// Balance returns the balance derived from the account's entries.
func (s *accountService) Balance(ctx context.Context, id uint) (decimal.Decimal, error) {
	return s.book.Balance(ctx, id)
}

// Freeze suspends an open account.
func (s *accountService) Freeze(ctx context.Context, id uint) (*models.Account, error) {
	return s.book.Freeze(ctx, id)
}

// Thaw reopens a frozen account.
func (s *accountService) Thaw(ctx context.Context, id uint) (*models.Account, error) {
	return s.book.Thaw(ctx, id)
}

// Close closes an account with a zero balance.
func (s *accountService) Close(ctx context.Context, id uint) (*models.Account, error) {
	return s.book.Close(ctx, id)
}

// TopUp adds funds to an account from the bank account.
func (s *accountService) TopUp(ctx context.Context, id uint, amount decimal.Decimal, user *models.User) (*models.Transfer, error) {
	if _, err := ledger.MinorAmount(amount); err != nil {
		return nil, err
	}
	bank, err := s.named(ctx, s.settings.BankName)
	if err != nil {
		return nil, err
	}
	return s.book.Transfer(ctx, ledger.TransferRequest{
		SourceID:      bank.ID,
		DestinationID: id,
		Amount:        amount,
		Description:   "Top-up account",
		User:          user,
	})
}

// Redeem moves funds from the account identified by code to the
// redemptions account.
func (s *accountService) Redeem(ctx context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error) {
	account, redemptions, err := s.withRedemptions(ctx, code, amount)
	if err != nil {
		return nil, err
	}
	return s.book.Transfer(ctx, ledger.TransferRequest{
		SourceID:      account.ID,
		DestinationID: redemptions.ID,
		Amount:        amount,
		OrderNumber:   orderNumber,
		User:          user,
	})
}

// Refund moves funds from the redemptions account back to the account
// identified by code.
func (s *accountService) Refund(ctx context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error) {
	account, redemptions, err := s.withRedemptions(ctx, code, amount)
	if err != nil {
		return nil, err
	}
	return s.book.Transfer(ctx, ledger.TransferRequest{
		SourceID:      redemptions.ID,
		DestinationID: account.ID,
		Amount:        amount,
		OrderNumber:   orderNumber,
		User:          user,
	})
}

// AccountTransfers lists the account's transfers, newest first.
func (s *accountService) AccountTransfers(ctx context.Context, id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	if _, err := s.book.Get(ctx, id); err != nil {
		return nil, err
	}
	return holderTransfers(s.db.WithContext(ctx), models.BookAccounts, id, page)
}

func (s *accountService) withRedemptions(ctx context.Context, code string, amount decimal.Decimal) (*models.Account, *models.Account, error) {
	if _, err := ledger.MinorAmount(amount); err != nil {
		return nil, nil, err
	}
	account, err := s.GetAccountByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	redemptions, err := s.named(ctx, s.settings.RedemptionsName)
	if err != nil {
		return nil, nil, err
	}
	return account, redemptions, nil
}

// named loads a designated account. A missing one is a configuration
// problem, not a client error.
func (s *accountService) named(ctx context.Context, name string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("designated account %q: %w", name, err))
	}
	return &account, nil
}
