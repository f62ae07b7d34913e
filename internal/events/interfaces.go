package events

// Topic names a stream of events on the bus.
type Topic string

const (
	// TopicConnectionState carries StateChange events from the streaming client.
	TopicConnectionState Topic = "connection.state"
	// TopicSubscription carries SubscriptionChange events from the registry.
	TopicSubscription Topic = "connection.subscription"
)

// Bus defines the interface for event bus operations
type Bus interface {
	// Publish sends an event to all subscribers of the specified topic
	Publish(topic Topic, event interface{})
	// Subscribe returns a channel that receives events for the specified topic
	Subscribe(topic Topic) <-chan interface{}
	// Unsubscribe removes a subscriber channel from the specified topic
	Unsubscribe(topic Topic, ch <-chan interface{})
}
