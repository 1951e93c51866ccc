package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ActiveScope keeps holders whose activity window contains today.
func ActiveScope(today time.Time) func(*gorm.DB) *gorm.DB {
	day := DateOnly(today)
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("start_date IS NULL OR start_date <= ?", day).
			Where("end_date IS NULL OR end_date > ?", day)
	}
}

// ExpiredScope keeps holders whose end date is before today.
func ExpiredScope(today time.Time) func(*gorm.DB) *gorm.DB {
	day := DateOnly(today)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("end_date IS NOT NULL AND end_date < ?", day)
	}
}

// StatusScope keeps holders in the given status.
func StatusScope(status Status) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}
}

// HolderSearch holds the optional dashboard search criteria.
type HolderSearch struct {
	Name   string
	Code   string
	Status Status
}

// SearchScope applies a case-insensitive name match, an exact code match
// and a status filter, skipping empty criteria.
func SearchScope(q HolderSearch) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if name := strings.TrimSpace(q.Name); name != "" {
			db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
		}
		if code := NormalizeCode(q.Code); code != "" {
			db = db.Where("code = ?", code)
		}
		if q.Status != "" {
			db = db.Where("status = ?", q.Status)
		}
		return db
	}
}

// EntriesOf keeps the entries of one holder.
func EntriesOf(book Book, holderID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("book = ? AND holder_id = ?", book, holderID)
	}
}

// TransfersTouching keeps the transfers where the holder is either side.
func TransfersTouching(book Book, holderID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("book = ? AND (source_id = ? OR destination_id = ?)", book, holderID, holderID)
	}
}
