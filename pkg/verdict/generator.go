// Package verdict synthesizes a confidence-scored verdict from rule
// evaluation results, precedent matches, and evidence.
package verdict

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// Confidence weights. Rule-evaluation strength carries half of the score,
// precedent agreement and evidence completeness split the rest.
const (
	weightRules     = 0.5
	weightPrecedent = 0.3
	weightEvidence  = 0.2

	// evidenceSaturation is the distinct-evidence count at which the
	// evidence component reaches full weight.
	evidenceSaturation = 3
)

// Clock provides authority time, injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Input is the session data the generator consumes. The generator never
// mutates other components; everything it needs is carried here.
type Input struct {
	SessionID   string
	Violation   *contracts.ConstitutionalViolation
	Evaluations []contracts.RuleEvaluation
	Precedents  []contracts.PrecedentMatch
	Evidence    []string
}

// Result pairs the generated verdict with the measured generation time.
type Result struct {
	Verdict        *contracts.Verdict
	GenerationTime time.Duration
}

// Generator produces verdicts. It is stateless apart from the injected
// clock; given identical input the decision, confidence, and reasoning
// trail are identical, supporting reproducible audits.
type Generator struct {
	clock Clock
}

// NewGenerator creates a generator. If clock is nil the wall clock is used.
func NewGenerator(clock ...Clock) *Generator {
	c := Clock(wallClock{})
	if len(clock) > 0 && clock[0] != nil {
		c = clock[0]
	}
	return &Generator{clock: c}
}

// Generate synthesizes a verdict for the session input. The reasoning trail
// records each scoring component so the confidence value can be
// reconstructed step by step.
func (g *Generator) Generate(in Input, issuedBy string) (*Result, error) {
	if in.Violation == nil {
		return nil, fmt.Errorf("verdict requires a violation")
	}
	start := g.clock.Now()

	reasoning := make([]contracts.ReasoningStep, 0, 8)

	ruleScore, applied := scoreRules(in.Evaluations)
	reasoning = append(reasoning, contracts.ReasoningStep{
		Description: fmt.Sprintf("%d of %d candidate rules apply; rule-evaluation strength %.3f (weight %.1f)",
			applied, len(in.Evaluations), ruleScore, weightRules),
		Weight: weightRules * ruleScore,
	})

	precScore, supporting, conflicting := scorePrecedents(in)
	reasoning = append(reasoning, contracts.ReasoningStep{
		Description: fmt.Sprintf("%d precedents consulted: %d supporting, %d conflicting; precedent agreement %.3f (weight %.1f)",
			len(in.Precedents), supporting, conflicting, precScore, weightPrecedent),
		Weight: weightPrecedent * precScore,
	})

	evScore, distinct := scoreEvidence(in.Evidence)
	reasoning = append(reasoning, contracts.ReasoningStep{
		Description: fmt.Sprintf("%d distinct evidence items; evidence completeness %.3f (weight %.1f)",
			distinct, evScore, weightEvidence),
		Weight: weightEvidence * evScore,
	})

	confidence := clamp01(weightRules*ruleScore + weightPrecedent*precScore + weightEvidence*evScore)

	decision := contracts.DecisionInconclusive
	switch {
	case applied == 0:
		decision = contracts.DecisionNoViolation
	case ruleScore >= 0.5:
		decision = contracts.DecisionViolationConfirmed
	}
	reasoning = append(reasoning, contracts.ReasoningStep{
		Description: fmt.Sprintf("decision %q with confidence %.3f", decision, confidence),
	})

	v := &contracts.Verdict{
		ID:         "VRD-" + uuid.New().String(),
		SessionID:  in.SessionID,
		Decision:   decision,
		Confidence: confidence,
		Reasoning:  reasoning,
		Conditions: verdictConditions(in, decision),
		Evidence:   in.Evidence,
		IssuedBy:   issuedBy,
		IssuedAt:   start.UTC(),
	}

	elapsed := g.clock.Now().Sub(start)
	if elapsed < time.Millisecond {
		// Guarantee a non-zero, auditable duration.
		elapsed = time.Millisecond
	}
	return &Result{Verdict: v, GenerationTime: elapsed}, nil
}

// scoreRules returns the mean strength across all evaluated rules (rules
// that do not apply contribute zero) and the count of applying rules.
func scoreRules(evals []contracts.RuleEvaluation) (float64, int) {
	if len(evals) == 0 {
		return 0, 0
	}
	var sum float64
	applied := 0
	for _, e := range evals {
		if e.Applies {
			sum += e.Strength
			applied++
		}
	}
	return sum / float64(len(evals)), applied
}

// scorePrecedents maps precedent agreement onto [0,1]. A precedent with a
// matching category and adjacent-or-equal severity supports the verdict,
// anything else retrieved by similarity counts as conflicting. No
// precedents at all is neutral (0.5).
func scorePrecedents(in Input) (score float64, supporting, conflicting int) {
	if len(in.Precedents) == 0 {
		return 0.5, 0, 0
	}
	category := dominantCategory(in.Evaluations)
	for _, m := range in.Precedents {
		p := m.Precedent
		if p == nil {
			continue
		}
		if (category == "" || p.Category == category) && p.Severity.Distance(in.Violation.Severity) <= 1 {
			supporting++
		} else {
			conflicting++
		}
	}
	total := supporting + conflicting
	if total == 0 {
		return 0.5, 0, 0
	}
	return 0.5 + 0.5*float64(supporting-conflicting)/float64(total), supporting, conflicting
}

func scoreEvidence(evidence []string) (float64, int) {
	seen := make(map[string]struct{}, len(evidence))
	for _, e := range evidence {
		if e != "" {
			seen[e] = struct{}{}
		}
	}
	n := len(seen)
	if n >= evidenceSaturation {
		return 1.0, n
	}
	return float64(n) / float64(evidenceSaturation), n
}

// dominantCategory is the category of the first applying rule, matching the
// category used when the verdict is folded into a precedent.
func dominantCategory(evals []contracts.RuleEvaluation) string {
	for _, e := range evals {
		if e.Applies {
			return e.Category
		}
	}
	return ""
}

func verdictConditions(in Input, decision string) []string {
	if decision != contracts.DecisionViolationConfirmed {
		return nil
	}
	conditions := make([]string, 0, 2)
	if in.Violation.Severity.Rank() >= contracts.SeverityHigh.Rank() {
		conditions = append(conditions, "escalate to participant registry for sanction review")
	}
	conditions = append(conditions, fmt.Sprintf("record against violator %q", in.Violation.Violator))
	return conditions
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
