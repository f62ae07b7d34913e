package events

import "time"

// StateChange is published every time the streaming client changes connection state.
type StateChange struct {
	Session string
	From    string
	To      string
	Err     error
	At      time.Time
}

// SubscriptionChange is published when a topic is added to or removed from the registry.
type SubscriptionChange struct {
	Topic      string
	Subscribed bool
}
