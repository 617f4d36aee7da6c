// Package arbiter implements the arbitration protocol engine: the session
// state machine and the orchestrator coordinating rule evaluation,
// precedent matching, verdict generation, waiver interpretation, and
// appeal review.
package arbiter

import (
	"sync"
	"time"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// State is one lifecycle phase of an arbitration session.
type State string

const (
	StateInitialized        State = "INITIALIZED"
	StateRuleEvaluation     State = "RULE_EVALUATION"
	StateEvidenceCollection State = "EVIDENCE_COLLECTION"
	StateVerdictGeneration  State = "VERDICT_GENERATION"
	StateWaiverEvaluation   State = "WAIVER_EVALUATION"
	StateAppealReview       State = "APPEAL_REVIEW"
	StateDebateInProgress   State = "DEBATE_IN_PROGRESS"
	StateCompleted          State = "COMPLETED"
	StateFailed             State = "FAILED"
)

// Terminal reports whether the state ends the session lifecycle. COMPLETED
// is terminal for endTime purposes even though a late appeal may reopen it.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions is the explicit edge table. Two generic rules extend it:
// any non-terminal state may transition to FAILED or directly to COMPLETED.
// FAILED has no outgoing edges.
var transitions = map[State][]State{
	StateInitialized:        {StateRuleEvaluation},
	StateRuleEvaluation:     {StateEvidenceCollection, StateVerdictGeneration},
	StateEvidenceCollection: {StateVerdictGeneration},
	StateVerdictGeneration:  {StateWaiverEvaluation, StateAppealReview, StateCompleted},
	StateWaiverEvaluation:   {StateCompleted, StateAppealReview},
	StateAppealReview:       {StateCompleted},
	StateDebateInProgress:   {StateVerdictGeneration},
	StateCompleted:          {StateAppealReview}, // reopening for late appeal
	StateFailed:             nil,
}

// CanTransition reports whether from -> to is a valid walk of the table.
func CanTransition(from, to State) bool {
	if from == StateFailed {
		return false
	}
	if !from.Terminal() && (to == StateFailed || to == StateCompleted) {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionRecord is one append-only entry of a session's transition
// history.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// FailureDetail records why a session was failed.
type FailureDetail struct {
	Message string    `json:"message"`
	Phase   State     `json:"phase"`
	At      time.Time `json:"at"`
}

// Session is one adjudication workflow instance for a single violation.
// Lifecycle operations on a session are serialized by the orchestrator via
// the session's lock; the session record is effectively single-writer.
type Session struct {
	ID              string                             `json:"id"`
	State           State                              `json:"state"`
	Violation       *contracts.ConstitutionalViolation `json:"violation"`
	RulesEvaluated  []*contracts.ConstitutionalRule    `json:"rules_evaluated"`
	Evidence        []string                           `json:"evidence"`
	Participants    []string                           `json:"participants"`
	Precedents      []contracts.PrecedentMatch         `json:"precedents,omitempty"`
	RuleResults     []contracts.RuleEvaluation         `json:"rule_results,omitempty"`
	Verdict         *contracts.Verdict                 `json:"verdict,omitempty"`
	PriorVerdicts   []*contracts.Verdict               `json:"prior_verdicts,omitempty"` // superseded by appeal overturns
	WaiverRequest   *contracts.WaiverRequest           `json:"waiver_request,omitempty"`
	WaiverDecision  *contracts.WaiverDecision          `json:"waiver_decision,omitempty"`
	Appeals         []*contracts.Appeal                `json:"appeals,omitempty"`
	AppealDecisions []*contracts.AppealDecision        `json:"appeal_decisions,omitempty"`
	StartTime       time.Time                          `json:"start_time"`
	EndTime         *time.Time                         `json:"end_time,omitempty"`
	ReopenedAt      *time.Time                         `json:"reopened_at,omitempty"`
	Transitions     []TransitionRecord                 `json:"transitions"`
	Failure         *FailureDetail                     `json:"failure,omitempty"`
	Metrics         *contracts.SessionMetrics          `json:"metrics,omitempty"`

	mu sync.Mutex
}

// transition moves the session along a table edge, appending to the
// transition history. The caller must hold the session lock. On an invalid
// edge the state is left unchanged.
func (s *Session) transition(to State, now time.Time) error {
	if !CanTransition(s.State, to) {
		return newError(CodeInvalidStateTransition, s.ID, "transition %s -> %s not permitted", s.State, to)
	}
	s.Transitions = append(s.Transitions, TransitionRecord{
		From:      s.State,
		To:        to,
		Timestamp: now.UTC(),
	})
	s.State = to
	return nil
}

// snapshotVerdict moves the current verdict into the superseded list before
// an appeal overturn replaces it; the audit trail keeps every verdict.
func (s *Session) snapshotVerdict() {
	if s.Verdict != nil {
		s.PriorVerdicts = append(s.PriorVerdicts, s.Verdict)
	}
}
