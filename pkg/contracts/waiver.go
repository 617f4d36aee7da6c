package contracts

import "time"

// WaiverRequest asks for a violation to be excused. Justification is
// applicant-provided free text weighed by the interpreter.
type WaiverRequest struct {
	SessionID     string    `json:"session_id"`
	RequestedBy   string    `json:"requested_by"`
	Justification string    `json:"justification"`
	RequestedAt   time.Time `json:"requested_at"`
}

// WaiverOutcome is the graded result of a waiver evaluation.
type WaiverOutcome string

const (
	WaiverGranted        WaiverOutcome = "granted"
	WaiverPartialGranted WaiverOutcome = "partially_granted"
	WaiverDenied         WaiverOutcome = "denied"
)

// WaiverDecision records the outcome of interpreting a waiver request.
// At most one waiver decision is active per session lifecycle.
type WaiverDecision struct {
	SessionID string        `json:"session_id"`
	Outcome   WaiverOutcome `json:"outcome"`
	Rationale string        `json:"rationale"`
	DecidedBy string        `json:"decided_by"`
	DecidedAt time.Time     `json:"decided_at"`
}
