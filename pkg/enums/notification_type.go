package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
	NotificationTypeMessage NotificationType = "message"
	NotificationTypeMention NotificationType = "mention"
	NotificationTypeTask    NotificationType = "task"
	NotificationTypeLead    NotificationType = "lead"
	NotificationTypeDeal    NotificationType = "deal"
	NotificationTypeSystem  NotificationType = "system"
)

// NotificationTypes lists every member of the closed enum. Default-policy
// tables range over this slice so a new type cannot be added silently.
var NotificationTypes = []NotificationType{
	NotificationTypeInfo,
	NotificationTypeSuccess,
	NotificationTypeWarning,
	NotificationTypeError,
	NotificationTypeMessage,
	NotificationTypeMention,
	NotificationTypeTask,
	NotificationTypeLead,
	NotificationTypeDeal,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range NotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range NotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
