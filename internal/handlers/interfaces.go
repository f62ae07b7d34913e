// Package handlers holds the frame consumers wired by the CLI: a console printer and a
// Kafka forwarder.
package handlers

import "github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"

// MessageHandler defines the interface that all message handlers must implement.
// This allows for a pluggable architecture where new handlers can be easily added.
type MessageHandler interface {
	Handle(msg shrimpy.Message) error
}
