package model

import "time"

// NotificationType classifies an inbox entry.
type NotificationType string

const (
    NotificationWin      NotificationType = "WIN"
    NotificationLose     NotificationType = "LOSE"
    NotificationWaitlist NotificationType = "WAITLIST"
    NotificationReplace  NotificationType = "REPLACE"
    NotificationOther    NotificationType = "OTHER"
)

// Title returns the default headline for a notification about eventTitle.
func (t NotificationType) Title(eventTitle string) string {
    switch t {
    case NotificationWin:
        return "Congratulations! You won " + eventTitle + "!"
    case NotificationLose:
        return "Sorry! You lost " + eventTitle + "."
    case NotificationWaitlist:
        return "You have been added to the waitlist for " + eventTitle + "."
    case NotificationReplace:
        return "You have been replaced in the waitlist for " + eventTitle + "."
    default:
        return "Notification"
    }
}

// Notification is a single entry in an entrant's inbox.  ID and CreatedAt
// make every send distinct, so two textually identical notices to the same
// entrant are both kept.  Only Read changes after creation.
type Notification struct {
    ID        string           `json:"id"`
    Type      NotificationType `json:"type"`
    EventID   string           `json:"eventId"`
    Title     string           `json:"title"`
    Message   string           `json:"message,omitempty"`
    Read      bool             `json:"read"`
    CreatedAt time.Time        `json:"createdAt"`
}

// NotificationLogEntry is the audit row written for administrators after a
// notification reached an inbox.
//
// Fields:
//  ID          – notification_log.id
//  RecipientID – entrant that received the notification.
//  EventID     – event the notification refers to.
//  EventTitle  – title carried by the notification.
//  Type        – notification type.
//  CreatedAt   – when the delivery was recorded.
type NotificationLogEntry struct {
    ID          uint64           `json:"id"`
    RecipientID string           `json:"recipientId"`
    EventID     string           `json:"eventId"`
    EventTitle  string           `json:"eventTitle"`
    Type        NotificationType `json:"type"`
    CreatedAt   time.Time        `json:"createdAt"`
}
