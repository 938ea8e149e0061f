package entity

import (
	"time"
)

// Event is a user-owned calendar entry. Date is the due timestamp.
type Event struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    int64     `gorm:"not null;index:idx_event_user_date,priority:1" json:"user_id"`
	Title     string    `gorm:"not null" json:"title"`
	Date      time.Time `gorm:"not null;index:idx_event_user_date,priority:2" json:"date"`
}

// Remaining returns the time left until the event is due, relative to now.
func (e *Event) Remaining(now time.Time) time.Duration {
	return e.Date.Sub(now)
}

// InWindow reports whether the event falls into the reminder window (now, now+window].
func (e *Event) InWindow(now time.Time, window time.Duration) bool {
	remaining := e.Remaining(now)
	return remaining > 0 && remaining <= window
}
