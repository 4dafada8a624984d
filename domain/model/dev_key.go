package model

import "time"

// APIKey is a credential as reported by the key store.
type APIKey struct {
	Key    string `json:"key"`
	Active bool   `json:"active"`
}

// DevKey is the persisted developer key row managed by the admin side.
type DevKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:key;size:255;uniqueIndex;not null" json:"key"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	Reason    string    `gorm:"column:reason;type:json" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table used by the admin application.
func (DevKey) TableName() string {
	return "dev_key"
}

// ToAPIKey drops the bookkeeping columns.
func (k DevKey) ToAPIKey() APIKey {
	return APIKey{Key: k.Key, Active: k.IsActive}
}

// KeyChange describes an enable/disable action on a key.
type KeyChange struct {
	Key       string                 `json:"key"`
	Active    bool                   `json:"active"`
	Reason    map[string]interface{} `json:"reason,omitempty"`
	ChangedAt time.Time              `json:"changed_at"`
}
