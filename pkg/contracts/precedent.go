package contracts

import "time"

// Precedent is an immutable record derived from a high-confidence verdict
// (confidence strictly above the creation threshold) or from an appeal that
// overturned a verdict. Once created it is never mutated and is retained
// indefinitely.
type Precedent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reasoning   string    `json:"reasoning"` // folded from the originating verdict
	Category    string    `json:"category"`
	Severity    Severity  `json:"severity"`
	Conditions  []string  `json:"conditions,omitempty"`
	RuleIDs     []string  `json:"rule_ids,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	VerdictID   string    `json:"verdict_id"`
	SessionID   string    `json:"session_id"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// PrecedentMatch pairs a precedent with the similarity score it was
// retrieved under, so callers can audit the ranking.
type PrecedentMatch struct {
	Precedent *Precedent `json:"precedent"`
	Score     float64    `json:"score"`
}
