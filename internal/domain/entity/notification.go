package entity

import "time"

type NotificationType string

const (
	NotificationTypeCalendar NotificationType = "calendar"
)

// ReminderTitle is the display title of every calendar reminder.
const ReminderTitle = "Event Reminder"

// Notification is a pending alert shown to a user.
//
// At most one calendar reminder exists per (user, event): the unique index
// idx_notification_key is what closes the concurrent insert race.
type Notification struct {
	ID         string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     int64            `gorm:"not null;uniqueIndex:idx_notification_key,priority:1" json:"user_id"`
	EventID    string           `gorm:"not null;uniqueIndex:idx_notification_key,priority:2" json:"event_id"`
	Type       NotificationType `gorm:"not null;uniqueIndex:idx_notification_key,priority:3" json:"type"`
	Title      string           `gorm:"not null" json:"title"`
	Body       string           `gorm:"not null" json:"body"`
	EventTitle string           `json:"event_title"`
	EventDate  time.Time        `json:"event_date"`
	IsRead     bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
}

// NotificationKey identifies the single reminder slot of an event.
type NotificationKey struct {
	UserID  int64
	EventID string
	Type    NotificationType
}

// CalendarKey returns the reminder key for the given user's event.
func CalendarKey(userID int64, eventID string) NotificationKey {
	return NotificationKey{
		UserID:  userID,
		EventID: eventID,
		Type:    NotificationTypeCalendar,
	}
}

// Key returns the notification's reminder key.
func (n *Notification) Key() NotificationKey {
	return NotificationKey{
		UserID:  n.UserID,
		EventID: n.EventID,
		Type:    n.Type,
	}
}

// Matches reports whether the stored reminder reflects the event's current title and due time.
// Due times are compared at microsecond precision, the resolution of timestamptz.
func (n *Notification) Matches(event *Event) bool {
	return n.EventTitle == event.Title &&
		n.EventDate.Truncate(time.Microsecond).Equal(event.Date.Truncate(time.Microsecond))
}
