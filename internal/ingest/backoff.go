// backoff.go implements the poll-interval policy as a pure state machine.
//
// No timers live here: the ingestor loop owns the clock and feeds each
// poll's outcome back in, which keeps the policy unit-testable without
// real time.
package ingest

import "time"

// Outcome is what the last poll produced.
type Outcome int

const (
	// OutcomeFound: at least one mention came back.
	OutcomeFound Outcome = iota
	// OutcomeEmpty: the poll succeeded but returned nothing new.
	OutcomeEmpty
	// OutcomeRateLimited: the feed told us to go away.
	OutcomeRateLimited
)

// Policy holds the interval bounds. All fields come from config and are
// immutable for the process lifetime.
type Policy struct {
	Base           time.Duration // interval while mentions are flowing
	FirstTimeIdle  time.Duration // interval before the first mention ever
	Max            time.Duration // geometric growth ceiling
	Cooldown       time.Duration // fixed pause after a rate limit
	EmptyThreshold int           // consecutive empty polls before growth starts
}

// State is the governor's full state. It is threaded through the ingestor
// loop as a value: one State in, one State out per poll.
type State struct {
	Interval         time.Duration
	ConsecutiveEmpty int
	EverMatched      bool
}

// Initial returns the state before the first poll.
func (p Policy) Initial() State {
	return State{Interval: p.Base}
}

// Next computes the state after a poll with the given outcome.
//
//   - found: back to the base interval, empty-streak reset.
//   - empty before anything was ever found: the long first-time idle
//     interval; the account may simply have no audience yet, and the
//     geometric path is reserved for lulls after real activity.
//   - empty after activity: once the streak passes the threshold, double
//     the interval up to Max.
//   - rate limited: the fixed cooldown, regardless of prior state.
func (p Policy) Next(s State, o Outcome) State {
	switch o {
	case OutcomeFound:
		return State{Interval: p.Base, ConsecutiveEmpty: 0, EverMatched: true}

	case OutcomeRateLimited:
		s.Interval = p.Cooldown
		return s

	default: // OutcomeEmpty
		s.ConsecutiveEmpty++
		if !s.EverMatched {
			s.Interval = p.FirstTimeIdle
			return s
		}
		if s.ConsecutiveEmpty < p.EmptyThreshold {
			s.Interval = p.Base
			return s
		}
		next := s.Interval * 2
		if next > p.Max {
			next = p.Max
		}
		if next < p.Base {
			// Growth starts from base, not from a cooldown remnant.
			next = p.Base
		}
		s.Interval = next
		return s
	}
}
