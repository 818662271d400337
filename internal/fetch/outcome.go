package fetch

import (
	"sync"

	"github.com/marcus/mailgrab/pkg/types"
)

// OutcomeKind classifies how a fetch session terminated.
type OutcomeKind int

const (
	// OutcomeFound means a matching message was fetched and parsed.
	OutcomeFound OutcomeKind = iota
	// OutcomeNotFound means the mailbox was empty or no message matched.
	OutcomeNotFound
	// OutcomeTimedOut means the deadline elapsed before a terminal state.
	OutcomeTimedOut
	// OutcomeCanceled means the caller abandoned the request before a
	// terminal state; nobody is waiting for the answer.
	OutcomeCanceled
	// OutcomeAuthFailed means the server rejected the credentials.
	OutcomeAuthFailed
	// OutcomeTransportError covers every other connect/open/search/fetch/parse failure.
	OutcomeTransportError
)

// String returns the journal/log name for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeAuthFailed:
		return "auth_failed"
	default:
		return "transport_error"
	}
}

// Outcome is the single terminal result of one fetch session. Message is
// set only for OutcomeFound; Err carries detail for OutcomeTransportError.
type Outcome struct {
	Kind    OutcomeKind
	Message *types.NormalizedMessage
	Err     error
}

// outcomeSlot holds the one terminal outcome of a session. The first record
// wins; anything recorded after that is discarded, which is what guarantees
// single resolution when completion and timeout race.
type outcomeSlot struct {
	mu       sync.Mutex
	recorded bool
	outcome  Outcome
}

// record stores the outcome if none has been recorded yet and reports
// whether this call won.
func (s *outcomeSlot) record(out Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded {
		return false
	}
	s.recorded = true
	s.outcome = out
	return true
}

// get returns the recorded outcome. If the session ended with nothing
// recorded it resolves as NotFound, mirroring a connection that closed
// cleanly without producing a result.
func (s *outcomeSlot) get() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recorded {
		s.recorded = true
		s.outcome = Outcome{Kind: OutcomeNotFound}
	}
	return s.outcome
}
