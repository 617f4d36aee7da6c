package verdict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func violation(severity contracts.Severity) *contracts.ConstitutionalViolation {
	return &contracts.ConstitutionalViolation{
		RuleID:      "R1",
		Violator:    "agent-7",
		Severity:    severity,
		Description: "quota overrun",
	}
}

func TestGenerate_RequiresViolation(t *testing.T) {
	g := NewGenerator()
	_, err := g.Generate(Input{SessionID: "ARB-1"}, "tester")
	assert.Error(t, err)
}

func TestGenerate_NoApplyingRules(t *testing.T) {
	g := NewGenerator()

	res, err := g.Generate(Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityLow),
		Evaluations: []contracts.RuleEvaluation{
			{RuleID: "R1", Applies: false},
			{RuleID: "R2", Applies: false},
		},
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionNoViolation, res.Verdict.Decision)
	assert.Empty(t, res.Verdict.Conditions)
}

func TestGenerate_ConfirmedViolation(t *testing.T) {
	g := NewGenerator()

	res, err := g.Generate(Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityHigh),
		Evaluations: []contracts.RuleEvaluation{
			{RuleID: "R1", Category: "resource", Applies: true, Strength: 0.9},
			{RuleID: "R2", Category: "conduct", Applies: true, Strength: 0.7},
		},
		Evidence: []string{"log-a", "log-b", "log-c"},
	}, "tester")
	require.NoError(t, err)

	v := res.Verdict
	assert.Equal(t, contracts.DecisionViolationConfirmed, v.Decision)

	// rules (0.9+0.7)/2 = 0.8, precedents neutral 0.5, evidence saturated 1.0
	expected := 0.5*0.8 + 0.3*0.5 + 0.2*1.0
	assert.InDelta(t, expected, v.Confidence, 1e-9)

	// confirmed high-severity verdicts carry escalation conditions
	require.Len(t, v.Conditions, 2)
	assert.Contains(t, v.Conditions[0], "escalate")
	assert.Contains(t, v.Conditions[1], "agent-7")

	assert.Equal(t, "tester", v.IssuedBy)
	assert.Equal(t, "ARB-1", v.SessionID)
	assert.NotEmpty(t, v.ID)
}

func TestGenerate_InconclusiveOnWeakRules(t *testing.T) {
	g := NewGenerator()

	res, err := g.Generate(Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityMedium),
		Evaluations: []contracts.RuleEvaluation{
			{RuleID: "R1", Applies: true, Strength: 0.3},
			{RuleID: "R2", Applies: false},
			{RuleID: "R3", Applies: false},
		},
	}, "tester")
	require.NoError(t, err)

	// one weak rule of three applies: some signal, not enough to confirm
	assert.Equal(t, contracts.DecisionInconclusive, res.Verdict.Decision)
}

func TestGenerate_PrecedentAgreement(t *testing.T) {
	g := NewGenerator()

	supporting := contracts.PrecedentMatch{Precedent: &contracts.Precedent{
		Category: "resource", Severity: contracts.SeverityHigh,
	}}
	conflicting := contracts.PrecedentMatch{Precedent: &contracts.Precedent{
		Category: "conduct", Severity: contracts.SeverityLow,
	}}

	base := Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityHigh),
		Evaluations: []contracts.RuleEvaluation{
			{RuleID: "R1", Category: "resource", Applies: true, Strength: 1.0},
		},
	}

	agree := base
	agree.Precedents = []contracts.PrecedentMatch{supporting, supporting}
	resAgree, err := g.Generate(agree, "tester")
	require.NoError(t, err)

	disagree := base
	disagree.Precedents = []contracts.PrecedentMatch{conflicting, conflicting}
	resDisagree, err := g.Generate(disagree, "tester")
	require.NoError(t, err)

	assert.Greater(t, resAgree.Verdict.Confidence, resDisagree.Verdict.Confidence)
}

func TestGenerate_ReasoningTrailReconstructsConfidence(t *testing.T) {
	g := NewGenerator()

	res, err := g.Generate(Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityHigh),
		Evaluations: []contracts.RuleEvaluation{
			{RuleID: "R1", Applies: true, Strength: 0.8},
		},
		Evidence: []string{"log-a"},
	}, "tester")
	require.NoError(t, err)

	require.Len(t, res.Verdict.Reasoning, 4)
	var sum float64
	for _, step := range res.Verdict.Reasoning {
		sum += step.Weight
	}
	assert.InDelta(t, res.Verdict.Confidence, sum, 1e-9)
}

func TestGenerate_EvidenceDeduplicated(t *testing.T) {
	g := NewGenerator()

	res, err := g.Generate(Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityLow),
		Evaluations: []contracts.RuleEvaluation{
			{RuleID: "R1", Applies: true, Strength: 1.0},
		},
		Evidence: []string{"log-a", "log-a", ""},
	}, "tester")
	require.NoError(t, err)

	// 1 distinct item of a 3-item saturation window
	assert.Contains(t, res.Verdict.Reasoning[2].Description, "1 distinct evidence items")
}

func TestGenerate_DurationFloor(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	g := NewGenerator(clock)

	res, err := g.Generate(Input{
		SessionID: "ARB-1",
		Violation: violation(contracts.SeverityLow),
	}, "tester")
	require.NoError(t, err)

	// a frozen clock measures zero; the floor guarantees 1ms
	assert.Equal(t, time.Millisecond, res.GenerationTime)
}
