package enums

// CommunicationStatus records the outcome of a mirror relay attempt.
type CommunicationStatus string

const (
	CommunicationStatusSent   CommunicationStatus = "sent"
	CommunicationStatusFailed CommunicationStatus = "failed"
)
