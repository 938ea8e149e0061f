package entity

import "time"

// Report is a user-submitted record whose status and admin reply are edited by administrators.
type Report struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      int64     `gorm:"not null;index" json:"user_id"`
	Description string    `json:"description"`
	Status      string    `gorm:"not null" json:"status"`
	AdminReply  string    `json:"admin_reply"`
}
