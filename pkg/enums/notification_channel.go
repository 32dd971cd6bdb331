package enums

import "fmt"

// NotificationChannel is a delivery channel, not a chat room.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationChannels lists every delivery channel.
var NotificationChannels = []NotificationChannel{
	ChannelInApp,
	ChannelEmail,
	ChannelPush,
	ChannelSMS,
}

// OutboundChannels are the channels that go through the delivery queue; the
// in-app row is written synchronously and never queued.
var OutboundChannels = []NotificationChannel{
	ChannelEmail,
	ChannelPush,
	ChannelSMS,
}

// IsValid checks whether the given channel matches the canonical enum.
func (c NotificationChannel) IsValid() bool {
	for _, candidate := range NotificationChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseNotificationChannel converts raw strings into NotificationChannel.
func ParseNotificationChannel(value string) (NotificationChannel, error) {
	for _, candidate := range NotificationChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification channel %q", value)
}
