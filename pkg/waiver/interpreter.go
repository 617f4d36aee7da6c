// Package waiver decides whether a confirmed violation can be excused.
package waiver

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// minJustificationLen is the shortest justification considered substantive.
const minJustificationLen = 20

// Clock provides authority time, injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Interpreter evaluates waiver requests against the primary rule in
// question. It is independent of the other arbitration components.
type Interpreter struct {
	clock Clock

	// nonWaivableCategories are rejected outright regardless of the
	// rule's own Waivable flag.
	nonWaivableCategories map[string]struct{}
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithNonWaivableCategories marks rule categories that can never be waived.
func WithNonWaivableCategories(categories ...string) Option {
	return func(i *Interpreter) {
		for _, c := range categories {
			i.nonWaivableCategories[strings.ToLower(c)] = struct{}{}
		}
	}
}

// WithClock injects an authority clock.
func WithClock(c Clock) Option {
	return func(i *Interpreter) {
		if c != nil {
			i.clock = c
		}
	}
}

// NewInterpreter creates an interpreter with the given options.
func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{
		clock:                 wallClock{},
		nonWaivableCategories: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ProcessWaiver decides whether the violation covered by rule is waived,
// partially waived, or denied, with a rationale.
func (i *Interpreter) ProcessWaiver(req *contracts.WaiverRequest, rule *contracts.ConstitutionalRule, decidedBy string) (*contracts.WaiverDecision, error) {
	if req == nil {
		return nil, fmt.Errorf("waiver request is required")
	}

	decision := &contracts.WaiverDecision{
		SessionID: req.SessionID,
		DecidedBy: decidedBy,
		DecidedAt: i.clock.Now().UTC(),
	}

	if rule != nil {
		if _, blocked := i.nonWaivableCategories[strings.ToLower(rule.Category)]; blocked {
			decision.Outcome = contracts.WaiverDenied
			decision.Rationale = fmt.Sprintf("rule category %q is non-waivable", rule.Category)
			return decision, nil
		}
		if !rule.Waivable {
			decision.Outcome = contracts.WaiverDenied
			decision.Rationale = fmt.Sprintf("rule %s is marked non-waivable", rule.ID)
			return decision, nil
		}
	}

	justification := strings.TrimSpace(req.Justification)
	switch {
	case justification == "":
		decision.Outcome = contracts.WaiverDenied
		decision.Rationale = "no justification provided"
	case len(justification) < minJustificationLen:
		decision.Outcome = contracts.WaiverPartialGranted
		decision.Rationale = "justification accepted but insufficiently substantiated; violation excused with conditions"
	default:
		decision.Outcome = contracts.WaiverGranted
		decision.Rationale = fmt.Sprintf("justification accepted for rule %s", ruleID(rule))
	}
	return decision, nil
}

func ruleID(rule *contracts.ConstitutionalRule) string {
	if rule == nil {
		return "unknown"
	}
	return rule.ID
}
