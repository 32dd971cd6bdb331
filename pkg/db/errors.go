package db

import "strings"

// IsUniqueViolation reports whether err looks like a Postgres unique
// constraint failure. The check is textual because gorm flattens driver
// errors; pass constraint to match one specific index, such as the
// preference (user, type, channel) key.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	if constraint != "" {
		return strings.Contains(message, constraint)
	}
	return strings.Contains(message, "duplicate key value")
}
