// Package appeal accepts appeal submissions and reviewer votes for a
// verdict and aggregates them into a single appeal decision.
package appeal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// DefaultMajorityThreshold is the reviewer fraction required to take a
// split vote's majority outcome instead of remanding.
const DefaultMajorityThreshold = 2.0 / 3.0

// Clock provides authority time, injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Arbitrator owns the appeal registry and the review protocol.
type Arbitrator struct {
	mu                sync.Mutex
	appeals           map[string]*contracts.Appeal
	active            map[string]string // sessionID+appellantID -> appealID
	decisions         map[string]*contracts.AppealDecision
	clock             Clock
	majorityThreshold float64
	onePerAppellant   bool
}

// Option configures an Arbitrator.
type Option func(*Arbitrator)

// WithMajorityThreshold overrides the split-vote majority threshold.
func WithMajorityThreshold(t float64) Option {
	return func(a *Arbitrator) {
		if t > 0.5 && t <= 1.0 {
			a.majorityThreshold = t
		}
	}
}

// WithMultipleAppealsPerAppellant lifts the one-active-appeal-per-appellant
// restriction.
func WithMultipleAppealsPerAppellant() Option {
	return func(a *Arbitrator) { a.onePerAppellant = false }
}

// WithClock injects an authority clock.
func WithClock(c Clock) Option {
	return func(a *Arbitrator) {
		if c != nil {
			a.clock = c
		}
	}
}

// NewArbitrator creates an arbitrator with the given options.
func NewArbitrator(opts ...Option) *Arbitrator {
	a := &Arbitrator{
		appeals:           make(map[string]*contracts.Appeal),
		active:            make(map[string]string),
		decisions:         make(map[string]*contracts.AppealDecision),
		clock:             wallClock{},
		majorityThreshold: DefaultMajorityThreshold,
		onePerAppellant:   true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SubmitAppeal records a new appeal against the verdict. At most one active
// appeal per appellant per session is accepted unless configured otherwise.
func (a *Arbitrator) SubmitAppeal(sessionID string, verdict *contracts.Verdict, appellantID, grounds string, newEvidence []string) (*contracts.Appeal, error) {
	if verdict == nil {
		return nil, fmt.Errorf("appeal requires an existing verdict")
	}
	if appellantID == "" {
		return nil, fmt.Errorf("appeal requires an appellant")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := sessionID + "/" + appellantID
	if a.onePerAppellant {
		if existing, ok := a.active[key]; ok {
			return nil, fmt.Errorf("appellant %s already has active appeal %s for session %s", appellantID, existing, sessionID)
		}
	}

	ap := &contracts.Appeal{
		ID:          "APL-" + uuid.New().String(),
		SessionID:   sessionID,
		VerdictID:   verdict.ID,
		AppellantID: appellantID,
		Grounds:     grounds,
		NewEvidence: newEvidence,
		SubmittedAt: a.clock.Now().UTC(),
	}
	a.appeals[ap.ID] = ap
	a.active[key] = ap.ID
	return ap, nil
}

// Clear drops every recorded appeal, active-appeal marker, and decision.
func (a *Arbitrator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appeals = make(map[string]*contracts.Appeal)
	a.active = make(map[string]string)
	a.decisions = make(map[string]*contracts.AppealDecision)
}

// Appeal returns a previously submitted appeal.
func (a *Arbitrator) Appeal(appealID string) (*contracts.Appeal, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ap, ok := a.appeals[appealID]
	return ap, ok
}

// Decision returns the recorded decision for an appeal, if reviewed.
func (a *Arbitrator) Decision(appealID string) (*contracts.AppealDecision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.decisions[appealID]
	return d, ok
}

// ReviewAppeal aggregates reviewer votes into one decision. Unanimous
// agreement yields the voted outcome. A split vote is remanded unless the
// majority fraction meets the configured threshold, in which case the
// majority outcome is taken with confidence equal to that fraction. An
// overturn outcome requires a proposed replacement verdict from at least
// one overturn voter; without one the appeal is remanded for re-review.
func (a *Arbitrator) ReviewAppeal(appealID string, votes []contracts.ReviewerVote) (*contracts.AppealDecision, error) {
	a.mu.Lock()
	ap, ok := a.appeals[appealID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown appeal %s", appealID)
	}
	if len(votes) == 0 {
		return nil, fmt.Errorf("appeal %s: at least one reviewer vote is required", appealID)
	}

	tally := make(map[contracts.AppealOutcome]int, 3)
	var proposed *contracts.Verdict
	for _, v := range votes {
		switch v.Recommendation {
		case contracts.AppealUpheld, contracts.AppealOverturned, contracts.AppealRemanded:
		default:
			return nil, fmt.Errorf("appeal %s: reviewer %s cast invalid recommendation %q", appealID, v.ReviewerID, v.Recommendation)
		}
		tally[v.Recommendation]++
		if v.Recommendation == contracts.AppealOverturned && proposed == nil && v.NewVerdict != nil {
			proposed = v.NewVerdict
		}
	}

	outcome, confidence := aggregate(tally, len(votes), a.majorityThreshold)

	if outcome == contracts.AppealOverturned && proposed == nil {
		outcome = contracts.AppealRemanded
		confidence = 0
	}

	decision := &contracts.AppealDecision{
		AppealID:   appealID,
		SessionID:  ap.SessionID,
		Decision:   outcome,
		Confidence: confidence,
		Reasoning:  reviewReasoning(tally, votes, outcome),
		Votes:      votes,
		DecidedAt:  a.clock.Now().UTC(),
	}
	if outcome == contracts.AppealOverturned {
		decision.NewVerdict = proposed
	}

	a.mu.Lock()
	a.decisions[appealID] = decision
	if outcome != contracts.AppealRemanded {
		delete(a.active, ap.SessionID+"/"+ap.AppellantID)
	}
	a.mu.Unlock()

	return decision, nil
}

func aggregate(tally map[contracts.AppealOutcome]int, total int, threshold float64) (contracts.AppealOutcome, float64) {
	var top contracts.AppealOutcome
	var topCount int
	for _, outcome := range []contracts.AppealOutcome{contracts.AppealOverturned, contracts.AppealUpheld, contracts.AppealRemanded} {
		if tally[outcome] > topCount {
			top, topCount = outcome, tally[outcome]
		}
	}

	if topCount == total {
		return top, 1.0
	}
	fraction := float64(topCount) / float64(total)
	if fraction >= threshold {
		return top, fraction
	}
	return contracts.AppealRemanded, fraction
}

func reviewReasoning(tally map[contracts.AppealOutcome]int, votes []contracts.ReviewerVote, outcome contracts.AppealOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d reviewers: %d uphold, %d overturn, %d remand; outcome %s",
		len(votes), tally[contracts.AppealUpheld], tally[contracts.AppealOverturned], tally[contracts.AppealRemanded], outcome)
	for _, v := range votes {
		if v.Argument == "" {
			continue
		}
		fmt.Fprintf(&b, " | %s (%s): %s", v.ReviewerID, v.Recommendation, v.Argument)
	}
	return b.String()
}
