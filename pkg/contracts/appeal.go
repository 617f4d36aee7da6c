package contracts

import "time"

// Appeal is a request to re-review an existing verdict. Multiple appeals per
// session are possible; each must reference the verdict in force when it was
// submitted.
type Appeal struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	VerdictID   string    `json:"verdict_id"`
	AppellantID string    `json:"appellant_id"`
	Grounds     string    `json:"grounds"`
	NewEvidence []string  `json:"new_evidence,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AppealOutcome is the aggregated result of an appeal review.
type AppealOutcome string

const (
	AppealUpheld     AppealOutcome = "upheld"
	AppealOverturned AppealOutcome = "overturned"
	AppealRemanded   AppealOutcome = "remanded"
)

// ReviewerVote is one reviewer's recommendation on an appeal, with the
// argument backing it. Arguments are retained so the deliberation trail
// can be reconstructed from the decision.
type ReviewerVote struct {
	ReviewerID     string        `json:"reviewer_id"`
	Recommendation AppealOutcome `json:"recommendation"`
	Argument       string        `json:"argument,omitempty"`
	NewVerdict     *Verdict      `json:"new_verdict,omitempty"` // proposed replacement on overturn
}

// AppealDecision aggregates reviewer votes into a single outcome.
// NewVerdict is present iff Decision is AppealOverturned.
type AppealDecision struct {
	AppealID   string         `json:"appeal_id"`
	SessionID  string         `json:"session_id"`
	Decision   AppealOutcome  `json:"decision"`
	Reasoning  string         `json:"reasoning"`
	Confidence float64        `json:"confidence"`
	Votes      []ReviewerVote `json:"votes"`
	NewVerdict *Verdict       `json:"new_verdict,omitempty"`
	DecidedAt  time.Time      `json:"decided_at"`
}
