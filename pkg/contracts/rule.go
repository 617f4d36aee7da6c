package contracts

// ConstitutionalRule is immutable reference data describing one rule of the
// shared rulebook. Condition is a CEL expression evaluated by the rule
// engine against the violation context; the orchestrator never interprets it.
type ConstitutionalRule struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"` // semver, validated on load
	Condition   string   `json:"condition"`         // CEL boolean expression
	Weight      float64  `json:"weight,omitempty"`  // evaluation strength when matched, (0,1]
	Waivable    bool     `json:"waivable"`
	Keywords    []string `json:"keywords,omitempty"`
}

// RuleEvaluation is the per-rule result produced by the rule engine.
type RuleEvaluation struct {
	RuleID   string  `json:"rule_id"`
	Category string  `json:"category"`
	Applies  bool    `json:"applies"`
	Strength float64 `json:"strength"` // 0 when Applies is false
	Detail   string  `json:"detail,omitempty"`
}
