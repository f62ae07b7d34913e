//go:generate mockgen -destination=mock_bus.go -package=mocks github.com/alejoacosta74/shrimpy-stream/internal/events Bus

package mocks
