//go:build property
// +build property

package arbiter

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allStates = []State{
	StateInitialized, StateRuleEvaluation, StateEvidenceCollection,
	StateVerdictGeneration, StateWaiverEvaluation, StateAppealReview,
	StateDebateInProgress, StateCompleted, StateFailed,
}

func genState() gopter.Gen {
	return gen.IntRange(0, len(allStates)-1).Map(func(i int) State { return allStates[i] })
}

// TestTransitionClosure verifies the session state never escapes the
// transition table: a rejected transition leaves the state untouched and an
// accepted one lands exactly on the requested state.
func TestTransitionClosure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("state only changes along table edges", prop.ForAll(
		func(from, to State) bool {
			s := &Session{ID: "ARB-prop", State: from}
			err := s.transition(to, time.Now())
			if CanTransition(from, to) {
				return err == nil && s.State == to && len(s.Transitions) == 1
			}
			return err != nil && s.State == from && len(s.Transitions) == 0
		},
		genState(), genState(),
	))

	properties.TestingRun(t)
}

// TestFailedAbsorbs verifies FAILED is absorbing under any walk.
func TestFailedAbsorbs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no transition leaves FAILED", prop.ForAll(
		func(to State) bool {
			return !CanTransition(StateFailed, to)
		},
		genState(),
	))

	properties.Property("every non-terminal state can fail", prop.ForAll(
		func(from State) bool {
			if from.Terminal() {
				return true
			}
			return CanTransition(from, StateFailed)
		},
		genState(),
	))

	properties.TestingRun(t)
}

// TestRandomWalkHistoryConsistent verifies the transition history of any
// random walk is gap-free: each record's From equals the previous record's To.
func TestRandomWalkHistoryConsistent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("history chains without gaps", prop.ForAll(
		func(steps []int) bool {
			s := &Session{ID: "ARB-walk", State: StateInitialized}
			for _, pick := range steps {
				to := allStates[pick%len(allStates)]
				_ = s.transition(to, time.Now())
			}
			prev := StateInitialized
			for _, tr := range s.Transitions {
				if tr.From != prev {
					return false
				}
				prev = tr.To
			}
			return prev == s.State
		},
		gen.SliceOf(gen.IntRange(0, len(allStates)-1)),
	))

	properties.TestingRun(t)
}
