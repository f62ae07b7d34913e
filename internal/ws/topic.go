package ws

import (
	"fmt"
	"strings"

	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

// Well-known topics.
const (
	TopicPing  = "ping"
	TopicError = "error"
)

// ResolveTopic maps a message to its canonical topic key. The same rule applies to
// outbound subscription requests and inbound frames, so a handler registered through
// Subscribe is found again by the data frames of that stream.
func ResolveTopic(msg shrimpy.Message) (string, error) {
	if msg.Type != "" && !strings.Contains(msg.Type, "subscribe") {
		return strings.ToLower(msg.Type), nil
	}
	if msg.Channel == "" {
		return "", fmt.Errorf("%w: message has no channel", ErrInvalidSubscription)
	}

	keys := make([]string, 0, 3)
	for _, k := range []string{msg.Exchange, msg.Pair, msg.Channel} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return strings.ToLower(strings.Join(keys, "-")), nil
}
