package entity

import "time"

// User is a reminder recipient. ID is the Telegram user id.
//
// DeviceToken is the push address for the configured transport (chat id or e-mail);
// an empty token means the user has no registered device.
type User struct {
	ID          int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FirstName   string
	Username    string
	Email       string
	DeviceToken string
}
