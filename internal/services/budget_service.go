package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/ledger"
	"giftledger/internal/models"
	"giftledger/internal/money"
	"giftledger/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db   *gorm.DB
	book *ledger.BudgetBook
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, book *ledger.BudgetBook) BudgetServicer {
	return &budgetService{db: db, book: book}
}

// CreateBudget creates an empty budget with its users.
func (s *budgetService) CreateBudget(ctx context.Context, in CreateBudgetInput) (*models.Budget, error) {
	if err := checkDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	limit, err := creditLimit(in.CreditLimit, in.Unlimited)
	if err != nil {
		return nil, err
	}

	budget := models.NewBudget()
	budget.Name = optionalString(in.Name)
	budget.StartDate = dateOnly(in.StartDate)
	budget.EndDate = dateOnly(in.EndDate)
	budget.CreditLimit = limit
	budget.PrimaryUserID = in.PrimaryUserID
	if code := models.NormalizeCode(in.Code); code != "" {
		budget.Code = &code
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, &models.Budget{}, "name", budget.Name, 0, apperrors.ErrDuplicateName); err != nil {
			return err
		}
		if err := checkUnique(tx, &models.Budget{}, "code", budget.Code, 0, apperrors.ErrDuplicateCode); err != nil {
			return err
		}
		if in.PrimaryUserID != nil {
			if _, err := loadUsers(tx, []uint{*in.PrimaryUserID}); err != nil {
				return err
			}
		}
		members, err := loadUsers(tx, in.SecondaryUserIDs)
		if err != nil {
			return err
		}
		budget.SecondaryUsers = members

		if err := tx.Create(budget).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, uniqueConflict(s.db.WithContext(ctx), &models.Budget{}, err, budget.Name, 0, apperrors.ErrDuplicateCode)
	}
	return budget, nil
}

// GetBudget retrieves a budget with its users.
func (s *budgetService) GetBudget(ctx context.Context, id uint) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ctx).
		Preload("PrimaryUser").
		Preload("SecondaryUsers").
		First(&budget, id).Error; err != nil {
		return nil, notFound(err, apperrors.ErrBudgetNotFound)
	}
	return &budget, nil
}

// ListBudgets lists budgets, optionally only the active ones a user can use.
func (s *budgetService) ListBudgets(ctx context.Context, filter BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	resp, err := pagination.Find[models.Budget](s.db.WithContext(ctx), s.filterScope(filter), "id ASC", page, preloadMembers)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

func preloadMembers(db *gorm.DB) *gorm.DB { return db.Preload("SecondaryUsers") }

func (s *budgetService) filterScope(f BudgetFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.ActiveOnly {
			db = db.Scopes(models.ActiveScope(s.book.Today()), models.StatusScope(models.StatusOpen))
		} else if f.Status != "" {
			db = db.Scopes(models.StatusScope(f.Status))
		}
		if f.UserID != nil {
			db = db.Where("primary_user_id = ? OR id IN (?)", *f.UserID,
				db.Session(&gorm.Session{NewDB: true}).
					Table("budget_secondary_users").
					Select("budget_id").
					Where("user_id = ?", *f.UserID))
		}
		return db
	}
}

// UpdateBudget changes the descriptive attributes, users, window and
// credit limit.
func (s *budgetService) UpdateBudget(ctx context.Context, id uint, in UpdateBudgetInput) (*models.Budget, error) {
	unlock := s.book.Lock(id)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Budget
		if err := tx.First(&current, id).Error; err != nil {
			return notFound(err, apperrors.ErrBudgetNotFound)
		}

		updates := map[string]any{}
		if in.Name != nil {
			name := optionalString(*in.Name)
			if err := checkUnique(tx, &models.Budget{}, "name", name, id, apperrors.ErrDuplicateName); err != nil {
				return err
			}
			updates["name"] = name
		}
		if in.PrimaryUserID != nil {
			if _, err := loadUsers(tx, []uint{*in.PrimaryUserID}); err != nil {
				return err
			}
			updates["primary_user_id"] = *in.PrimaryUserID
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

		if in.SecondaryUserIDs != nil {
			members, err := loadUsers(tx, in.SecondaryUserIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&current).Association("SecondaryUsers").Replace(members); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, uniqueConflict(s.db.WithContext(ctx), &models.Budget{}, err, nil, id, apperrors.ErrDuplicateName)
	}
	return s.GetBudget(ctx, id)
}

// Balance returns the balance derived from the budget's entries.
func (s *budgetService) Balance(ctx context.Context, id uint) (decimal.Decimal, error) {
	return s.book.Balance(ctx, id)
}

// Close closes a budget with a zero balance.
func (s *budgetService) Close(ctx context.Context, id uint) (*models.Budget, error) {
	return s.book.Close(ctx, id)
}

// Transfer moves money between two budgets. When a user is given, the
// source budget must be shared or usable by that user.
func (s *budgetService) Transfer(ctx context.Context, in TransferInput) (*models.Transfer, error) {
	if _, err := ledger.MinorAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.User != nil {
		source, err := s.GetBudget(ctx, in.SourceID)
		if err != nil {
			return nil, err
		}
		if !source.IsShared() && !source.CanBeUsedBy(in.User.ID) {
			return nil, apperrors.WithMessage(apperrors.ErrForbidden,
				fmt.Sprintf("%s cannot use budget %s", in.User.Username, source.Label(source.ID)))
		}
	}
	return s.book.Transfer(ctx, ledger.TransferRequest{
		SourceID:      in.SourceID,
		DestinationID: in.DestinationID,
		Amount:        in.Amount,
		OrderNumber:   in.OrderNumber,
		Description:   in.Description,
		User:          in.User,
	})
}

// Reverse undoes an earlier budget transfer.
func (s *budgetService) Reverse(ctx context.Context, id uint, orderNumber string, user *models.User) (*models.Transfer, error) {
	return s.book.Reverse(ctx, id, ledger.ReverseRequest{OrderNumber: orderNumber, User: user})
}

// BudgetTransfers lists the budget's transfers, newest first.
func (s *budgetService) BudgetTransfers(ctx context.Context, id uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transfer], error) {
	if _, err := s.book.Get(ctx, id); err != nil {
		return nil, err
	}
	return holderTransfers(s.db.WithContext(ctx), models.BookBudgets, id, page)
}

// loadUsers loads the given users, failing when any is missing.
func loadUsers(tx *gorm.DB, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	found := make(map[uint]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, apperrors.WithMessage(apperrors.ErrUserNotFound, fmt.Sprintf("User #%d not found", id))
		}
	}
	return users, nil
}
