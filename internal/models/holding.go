package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an account or budget.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusFrozen Status = "Frozen"
	StatusClosed Status = "Closed"
)

// Book identifies which holder table a transfer or entry belongs to.
type Book string

const (
	BookAccounts Book = "accounts"
	BookBudgets  Book = "budgets"
)

// LedgerEntity is implemented by every model that can hold a balance.
type LedgerEntity interface {
	GetID() uint
	Book() Book
	Holder() *Holding
	AllowsStatus(Status) bool
}

// Holding contains the columns shared by accounts and budgets. Money
// columns are minor units.
type Holding struct {
	Name          *string    `gorm:"size:128;uniqueIndex" json:"name,omitempty"`
	Code          *string    `gorm:"size:128;uniqueIndex" json:"code,omitempty"`
	Status        Status     `gorm:"size:32;not null;index" json:"status"`
	CreditLimit   *int64     `gorm:"type:bigint" json:"credit_limit"`
	Balance       int64      `gorm:"type:bigint;not null;default:0" json:"balance"`
	StartDate     *time.Time `gorm:"type:date" json:"start_date,omitempty"`
	EndDate       *time.Time `gorm:"type:date" json:"end_date,omitempty"`
	PrimaryUserID *uint      `gorm:"index" json:"primary_user_id,omitempty"`
}

// NewHolding returns an open holding with no negative balance allowed.
func NewHolding() Holding {
	var zero int64
	return Holding{Status: StatusOpen, CreditLimit: &zero}
}

// IsOpen reports whether the holder accepts transfers.
func (h *Holding) IsOpen() bool { return h.Status == StatusOpen }

// IsFrozen reports whether the holder is temporarily suspended.
func (h *Holding) IsFrozen() bool { return h.Status == StatusFrozen }

// IsClosed reports whether the holder has been closed.
func (h *Holding) IsClosed() bool { return h.Status == StatusClosed }

// IsActive applies the activity window to the given day. The start date is
// inclusive, the end date exclusive.
func (h *Holding) IsActive(today time.Time) bool {
	day := DateOnly(today)
	if h.StartDate != nil && day.Before(DateOnly(*h.StartDate)) {
		return false
	}
	if h.EndDate != nil && !day.Before(DateOnly(*h.EndDate)) {
		return false
	}
	return true
}

// HasUnlimitedCredit reports whether any debit is permitted.
func (h *Holding) HasUnlimitedCredit() bool { return h.CreditLimit == nil }

// IsDebitPermitted checks amount against balance plus the credit limit.
// balance must be derived from the entries, not read from the cached column.
func (h *Holding) IsDebitPermitted(amount, balance int64) bool {
	if h.CreditLimit == nil {
		return true
	}
	return amount <= balance+*h.CreditLimit
}

// Available is the largest debit currently permitted. It is meaningless for
// unlimited holders.
func (h *Holding) Available(balance int64) int64 {
	if h.CreditLimit == nil {
		return balance
	}
	return balance + *h.CreditLimit
}

// Label returns a human readable identifier.
func (h *Holding) Label(id uint) string {
	switch {
	case h.Name != nil && *h.Name != "":
		return *h.Name
	case h.Code != nil && *h.Code != "":
		return *h.Code
	}
	return fmt.Sprintf("#%d", id)
}

func (h *Holding) normalize() {
	if h.Code != nil {
		code := NormalizeCode(*h.Code)
		h.Code = &code
	}
	if h.Name != nil && strings.TrimSpace(*h.Name) == "" {
		h.Name = nil
	}
	if h.Status == "" {
		h.Status = StatusOpen
	}
	if h.StartDate != nil {
		d := DateOnly(*h.StartDate)
		h.StartDate = &d
	}
	if h.EndDate != nil {
		d := DateOnly(*h.EndDate)
		h.EndDate = &d
	}
}

// NormalizeCode trims and upper-cases a holder code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DateOnly truncates t to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
