//go:generate mockgen -destination=mock_sender.go -package=mocks github.com/alejoacosta74/shrimpy-stream/internal/kafka MessageSender

package mocks
