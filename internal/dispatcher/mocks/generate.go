//go:generate mockgen -destination=mock_recorder.go -package=mocks github.com/alejoacosta74/shrimpy-stream/internal/dispatcher Recorder

package mocks
