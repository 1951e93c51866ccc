package models

import (
	"fmt"
	"time"

	apperrors "giftledger/internal/errors"

	"gorm.io/gorm"
)

// Transfer is the header of a double-entry movement. Rows are append-only:
// the only column that may change after insert is UserID, which is cleared
// when the user is removed.
type Transfer struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Book          Book      `gorm:"size:16;not null;index:idx_transfers_book_created,priority:1" json:"book"`
	SourceID      uint      `gorm:"not null;index" json:"source_id"`
	DestinationID uint      `gorm:"not null;index" json:"destination_id"`
	Amount        int64     `gorm:"type:bigint;not null" json:"amount"`
	ParentID      *uint     `gorm:"index" json:"parent_id,omitempty"`
	OrderNumber   *string   `gorm:"size:128;index" json:"order_number,omitempty"`
	Description   *string   `gorm:"size:256" json:"description,omitempty"`
	UserID        *uint     `gorm:"index" json:"user_id,omitempty"`
	Username      string    `gorm:"size:128" json:"username,omitempty"`
	CreatedAt     time.Time `gorm:"index:idx_transfers_book_created,priority:2" json:"created_at"`

	Entries []Entry `gorm:"foreignKey:TransferID" json:"entries,omitempty"`
}

// Reference is the zero padded public identifier of the transfer.
func (t *Transfer) Reference() string {
	return fmt.Sprintf("%08d", t.ID)
}

// IsReversal reports whether the transfer compensates another one.
func (t *Transfer) IsReversal() bool { return t.ParentID != nil }

// BeforeDelete rejects every delete issued through gorm.
func (t *Transfer) BeforeDelete(tx *gorm.DB) error {
	return apperrors.ErrDeletionForbidden
}

// Entry is one signed leg of a transfer. HolderID points into the table
// named by Book.
type Entry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TransferID uint      `gorm:"not null;uniqueIndex:idx_entries_transfer_holder,priority:1" json:"transfer_id"`
	Book       Book      `gorm:"size:16;not null;index:idx_entries_book_holder,priority:1" json:"book"`
	HolderID   uint      `gorm:"not null;uniqueIndex:idx_entries_transfer_holder,priority:2;index:idx_entries_book_holder,priority:2" json:"holder_id"`
	Amount     int64     `gorm:"type:bigint;not null" json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeDelete rejects every delete issued through gorm.
func (e *Entry) BeforeDelete(tx *gorm.DB) error {
	return apperrors.ErrDeletionForbidden
}
