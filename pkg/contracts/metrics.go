package contracts

import "time"

// SessionMetrics is the per-session performance record. Created at session
// start, updated at each phase boundary, read-only once FinalState is
// terminal.
type SessionMetrics struct {
	SessionID           string     `json:"session_id"`
	RuleEvaluationMs    int64      `json:"rule_evaluation_ms"`
	PrecedentLookupMs   int64      `json:"precedent_lookup_ms"`
	VerdictGenerationMs int64      `json:"verdict_generation_ms"`
	WaiverEvaluationMs  int64      `json:"waiver_evaluation_ms,omitempty"`
	RulesEvaluated      int        `json:"rules_evaluated"`
	PrecedentsFound     int        `json:"precedents_found"`
	TotalDurationMs     int64      `json:"total_duration_ms"`
	FinalState          string     `json:"final_state,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	ReopenedAt          *time.Time `json:"reopened_at,omitempty"`
}

// Statistics aggregates counts and averages across all sessions handled by
// one orchestrator instance.
type Statistics struct {
	TotalSessions        int            `json:"total_sessions"`
	ActiveSessions       int            `json:"active_sessions"`
	SessionsByFinalState map[string]int `json:"sessions_by_final_state"`
	PrecedentsCreated    int            `json:"precedents_created"`
	AppealsSubmitted     int            `json:"appeals_submitted"`
	AppealsByOutcome     map[string]int `json:"appeals_by_outcome"`
	WaiversByOutcome     map[string]int `json:"waivers_by_outcome"`
	AvgRuleEvaluationMs  float64        `json:"avg_rule_evaluation_ms"`
	AvgVerdictMs         float64        `json:"avg_verdict_ms"`
	AvgTotalDurationMs   float64        `json:"avg_total_duration_ms"`
}
