package ws

// State is the connection state of a Client.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFaulted
)

var stateNames = [...]string{"idle", "connecting", "open", "closing", "closed", "faulted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
