package ws

// Observer receives connection statistics. internal/metrics provides the prometheus
// implementation.
type Observer interface {
	FrameReceived(topic string)
	FrameSent(kind string)
	FrameDropped(topic string)
	HeartbeatAnswered()
	ConnectionError(reason string)
	StateChanged(state string)
	HandlerDispatched(topic string)
	HandlerPanicked(topic string)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(string)     {}
func (nopObserver) FrameSent(string)         {}
func (nopObserver) FrameDropped(string)      {}
func (nopObserver) HeartbeatAnswered()       {}
func (nopObserver) ConnectionError(string)   {}
func (nopObserver) StateChanged(string)      {}
func (nopObserver) HandlerDispatched(string) {}
func (nopObserver) HandlerPanicked(string)   {}
