package models

import "gorm.io/gorm"

// Account is a prepaid account such as a gift card. Unlike a budget it
// can be frozen.
type Account struct {
	Base
	Holding
	Description string `gorm:"size:512" json:"description"`
	Category    string `gorm:"size:64;index" json:"category,omitempty"`
}

// NewAccount returns an open account with a zero credit limit.
func NewAccount() *Account {
	return &Account{Holding: NewHolding()}
}

func (a *Account) GetID() uint      { return a.ID }
func (a *Account) Book() Book       { return BookAccounts }
func (a *Account) Holder() *Holding { return &a.Holding }

// AllowsStatus reports whether s is a valid account status.
func (a *Account) AllowsStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusFrozen, StatusClosed:
		return true
	}
	return false
}

// BeforeSave upper-cases the code and normalises the activity window.
func (a *Account) BeforeSave(tx *gorm.DB) error {
	a.normalize()
	return nil
}
