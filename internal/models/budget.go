package models

import "gorm.io/gorm"

// Budget is the generalized holder: optional code and name, a primary user
// and any number of secondary users. Budgets are never frozen.
type Budget struct {
	Base
	Holding
	PrimaryUser    *User  `gorm:"foreignKey:PrimaryUserID;constraint:OnDelete:SET NULL" json:"primary_user,omitempty"`
	SecondaryUsers []User `gorm:"many2many:budget_secondary_users" json:"secondary_users,omitempty"`
}

// NewBudget returns an open budget with a zero credit limit.
func NewBudget() *Budget {
	return &Budget{Holding: NewHolding()}
}

func (b *Budget) GetID() uint      { return b.ID }
func (b *Budget) Book() Book       { return BookBudgets }
func (b *Budget) Holder() *Holding { return &b.Holding }

// AllowsStatus reports whether s is a valid budget status.
func (b *Budget) AllowsStatus(s Status) bool {
	return s == StatusOpen || s == StatusClosed
}

// BeforeSave upper-cases the code and normalises the activity window.
func (b *Budget) BeforeSave(tx *gorm.DB) error {
	b.normalize()
	return nil
}

// IsShared reports whether the budget has no users attached.
func (b *Budget) IsShared() bool {
	return b.PrimaryUserID == nil && len(b.SecondaryUsers) == 0
}

// CanBeUsedBy reports whether the user owns or shares the budget.
func (b *Budget) CanBeUsedBy(userID uint) bool {
	if b.PrimaryUserID != nil && *b.PrimaryUserID == userID {
		return true
	}
	for _, u := range b.SecondaryUsers {
		if u.ID == userID {
			return true
		}
	}
	return false
}
