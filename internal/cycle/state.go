package cycle

import "fmt"

// State is the orchestrator's position in a cycle.
type State int32

const (
	StateIdle State = iota
	StateCaptured
	StateDetected
	StateExtracted
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCaptured:
		return "CAPTURED"
	case StateDetected:
		return "DETECTED"
	case StateExtracted:
		return "EXTRACTED"
	case StateEmitted:
		return "EMITTED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
