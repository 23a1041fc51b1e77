package save

import (
	"fmt"
	"time"
)

// Outcome is the result of one dual write.
type Outcome int

const (
	// OutcomeNone means no write has completed yet.
	OutcomeNone Outcome = iota
	// BothOK means both destinations accepted the payload.
	BothOK
	// BothFailed means neither destination accepted the payload.
	BothFailed
	// LocalOnly means the remote store failed. The session is offline.
	LocalOnly
	// RemoteOnly means the local cache failed.
	RemoteOnly
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case BothOK:
		return "both_ok"
	case BothFailed:
		return "both_failed"
	case LocalOnly:
		return "local_only"
	case RemoteOnly:
		return "remote_only"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

func outcomeOf(localErr, remoteErr error) Outcome {
	switch {
	case localErr == nil && remoteErr == nil:
		return BothOK
	case localErr != nil && remoteErr != nil:
		return BothFailed
	case remoteErr != nil:
		return LocalOnly
	default:
		return RemoteOnly
	}
}

// CriticalFailure is a defect in the save orchestration itself, as opposed
// to a destination refusing a write. Sessions surface it to the learner.
type CriticalFailure struct {
	// Op is where the panic was recovered: "poll" or "write".
	Op    string
	Value any
	Stack []byte
	At    time.Time
}

func (c *CriticalFailure) Error() string {
	return fmt.Sprintf("save %s panicked: %v", c.Op, c.Value)
}

// Observer receives save-path events. Implementations must be cheap and must
// not block.
type Observer interface {
	ObserveWrite(outcome Outcome, elapsed time.Duration)
	ObserveBackup(ok bool)
	ObserveCritical()
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(Outcome, time.Duration) {}
func (nopObserver) ObserveBackup(bool)                  {}
func (nopObserver) ObserveCritical()                    {}
