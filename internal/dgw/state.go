package dgw

// State is DGW's connection state machine:
// Disconnected -> Authenticating -> Connected -> Degraded -> Connected -> Disconnected.
type State string

const (
	StateDisconnected  State = "DISCONNECTED"
	StateAuthenticating State = "AUTHENTICATING"
	StateConnected     State = "CONNECTED"
	StateDegraded      State = "DEGRADED"
)
