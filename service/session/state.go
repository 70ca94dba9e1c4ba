package session

// State 连接状态机：
// Disconnected → Connecting → Connected → (Disconnected | Reconnecting) → Connecting …
// Disconnected 从任何状态都可以通过显式 Disconnect 到达。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}
