package contracts

import "time"

// Severity orders how serious a violation is. The numeric ordering is
// load-bearing: precedent similarity scoring uses severity distance.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank maps each severity onto an ordinal scale.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the severity. Unknown severities
// rank below low so malformed input never outranks a real finding.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the severity is one of the defined levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Distance returns the absolute ordinal distance between two severities.
func (s Severity) Distance(other Severity) int {
	d := s.Rank() - other.Rank()
	if d < 0 {
		d = -d
	}
	return d
}

// ConstitutionalViolation is the immutable report handed to the engine by
// the violation-detection collaborator. Context is an opaque bag forwarded
// verbatim to rule evaluation.
type ConstitutionalViolation struct {
	RuleID      string         `json:"rule_id"`
	Violator    string         `json:"violator"` // participant id, or "unknown"
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
	DetectedAt  time.Time      `json:"detected_at"`
	Evidence    []string       `json:"evidence,omitempty"`
}
