package enums

import "fmt"

// DeliveryFrequency controls when an enabled channel actually fires.
type DeliveryFrequency string

const (
	FrequencyImmediate DeliveryFrequency = "immediate"
	FrequencyDaily     DeliveryFrequency = "daily"
	FrequencyWeekly    DeliveryFrequency = "weekly"
	FrequencyNever     DeliveryFrequency = "never"
)

var validDeliveryFrequencies = []DeliveryFrequency{
	FrequencyImmediate,
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyNever,
}

// IsDigest reports whether the frequency batches notifications for later.
func (f DeliveryFrequency) IsDigest() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// IsValid checks whether the given frequency matches the canonical enum.
func (f DeliveryFrequency) IsValid() bool {
	for _, candidate := range validDeliveryFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseDeliveryFrequency converts raw strings into DeliveryFrequency.
func ParseDeliveryFrequency(value string) (DeliveryFrequency, error) {
	for _, candidate := range validDeliveryFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery frequency %q", value)
}
