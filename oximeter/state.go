package oximeter

// State is the session lifecycle state. A session is created Disconnected,
// passes through Scanning during discovery, holds Connected between
// acquisitions and Streaming while a run is active, and returns to
// Disconnected on any disconnect. Disconnected is both initial and terminal
// and the machine is re-entrant.
type State int

const (
	StateDisconnected State = iota
	StateScanning
	StateConnected
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateScanning:
		return "scanning"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}
