//go:generate mockgen -destination=mock_transport.go -package=mocks github.com/alejoacosta74/shrimpy-stream/internal/ws Conn,Dialer
//go:generate mockgen -destination=mock_observer.go -package=mocks github.com/alejoacosta74/shrimpy-stream/internal/ws Observer

package mocks
