package models

// User is the identity transfers are attributed to. Authentication happens
// elsewhere; the bearer token carries the user id.
type User struct {
	Base
	Username string `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:254" json:"email"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
