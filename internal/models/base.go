package models

import "time"

// Base contains common columns for all mutable tables. Ledger rows
// (Transfer, Entry) do not embed it: they have no UpdatedAt.
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Account{},
		&Budget{},
		&Transfer{},
		&Entry{},
		&AuditLog{},
	}
}
