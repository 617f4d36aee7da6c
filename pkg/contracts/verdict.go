package contracts

import "time"

// ReasoningStep is one entry of the ordered explanation trail attached to a
// verdict. The trail must be sufficient to reconstruct the confidence value.
type ReasoningStep struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight,omitempty"` // contribution to confidence, if any
}

// Verdict is the decision output of a session. A verdict is written once;
// an overturned appeal replaces the session's verdict with a new Verdict
// object, the old one survives in the transition history.
type Verdict struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Decision   string          `json:"decision"` // e.g. "violation_confirmed", "no_violation"
	Confidence float64         `json:"confidence"` // [0,1]
	Reasoning  []ReasoningStep `json:"reasoning"`
	Conditions []string        `json:"conditions,omitempty"`
	Evidence   []string        `json:"evidence,omitempty"`
	IssuedBy   string          `json:"issued_by"`
	IssuedAt   time.Time       `json:"issued_at"`
}

// Decision values for Verdict.Decision.
const (
	DecisionViolationConfirmed = "violation_confirmed"
	DecisionNoViolation        = "no_violation"
	DecisionInconclusive       = "inconclusive"
)
