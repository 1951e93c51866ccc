package models

// AuditLog records mutating operations on holders and transfers.
type AuditLog struct {
	Base
	UserID       *uint  `gorm:"index" json:"user_id,omitempty"`
	Action       string `gorm:"size:64;not null" json:"action"`
	ResourceType string `gorm:"size:32;not null" json:"resource_type"`
	ResourceID   uint   `json:"resource_id"`
	IPAddress    string `gorm:"size:64" json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
