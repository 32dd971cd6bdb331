package enums

import "fmt"

// QueueStatus is the lifecycle state of an outbound queue item.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusSent    QueueStatus = "sent"
	QueueStatusFailed  QueueStatus = "failed"
	QueueStatusBounced QueueStatus = "bounced"
)

var validQueueStatuses = []QueueStatus{
	QueueStatusPending,
	QueueStatusSent,
	QueueStatusFailed,
	QueueStatusBounced,
}

// IsTerminal reports whether the status permits no further transitions.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusSent || s == QueueStatusFailed || s == QueueStatusBounced
}

// IsValid checks whether the given status matches the canonical enum.
func (s QueueStatus) IsValid() bool {
	for _, candidate := range validQueueStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseQueueStatus converts raw strings into QueueStatus.
func ParseQueueStatus(value string) (QueueStatus, error) {
	for _, candidate := range validQueueStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid queue status %q", value)
}
