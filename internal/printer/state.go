package printer

type State int32

const (
	Idle State = iota
	Connecting
	AwaitingHandshake
	Ready
	Sending
	AwaitingCompletion
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case AwaitingHandshake:
		return "awaiting handshake"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	case AwaitingCompletion:
		return "awaiting completion"
	case Failed:
		return "failed"
	}
	return "unknown"
}
