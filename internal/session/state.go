package session

import "fmt"

// State is the lifecycle state of a TrackSession.
//
// State transitions:
//
//	Idle → Buffering → Streaming → Draining → Closed
//	           │            │
//	           └────────────┴──→ Failed
//
// Rules:
//   - Buffering: frames are queued, bounded, until the downstream
//     connection signals open
//   - Streaming: frames (and gap padding) are forwarded immediately
//   - Draining: end-of-audio sent; late results are still accepted
//   - Closed / Failed: terminal
type State int

const (
	StateIdle State = iota
	StateBuffering
	StateStreaming
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsTerminal reports whether the state is CLOSED or FAILED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}
