package arbiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_TableEdges(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateInitialized, StateRuleEvaluation, true},
		{StateRuleEvaluation, StateEvidenceCollection, true},
		{StateRuleEvaluation, StateVerdictGeneration, true},
		{StateEvidenceCollection, StateVerdictGeneration, true},
		{StateVerdictGeneration, StateWaiverEvaluation, true},
		{StateVerdictGeneration, StateAppealReview, true},
		{StateWaiverEvaluation, StateCompleted, true},
		{StateWaiverEvaluation, StateAppealReview, true}, // appeal after waiver denial
		{StateAppealReview, StateCompleted, true},
		{StateDebateInProgress, StateVerdictGeneration, true},
		{StateCompleted, StateAppealReview, true}, // reopening

		{StateInitialized, StateVerdictGeneration, false},
		{StateEvidenceCollection, StateRuleEvaluation, false},
		{StateAppealReview, StateWaiverEvaluation, false},
		{StateCompleted, StateRuleEvaluation, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransition_GenericRules(t *testing.T) {
	nonTerminal := []State{
		StateInitialized, StateRuleEvaluation, StateEvidenceCollection,
		StateVerdictGeneration, StateWaiverEvaluation, StateAppealReview,
		StateDebateInProgress,
	}
	for _, s := range nonTerminal {
		assert.Truef(t, CanTransition(s, StateFailed), "%s -> FAILED", s)
		assert.Truef(t, CanTransition(s, StateCompleted), "%s -> COMPLETED", s)
	}
}

func TestCanTransition_FailedIsTerminal(t *testing.T) {
	for _, to := range []State{
		StateInitialized, StateRuleEvaluation, StateEvidenceCollection,
		StateVerdictGeneration, StateWaiverEvaluation, StateAppealReview,
		StateDebateInProgress, StateCompleted, StateFailed,
	} {
		assert.Falsef(t, CanTransition(StateFailed, to), "FAILED -> %s", to)
	}
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateAppealReview.Terminal())
}

func TestSession_TransitionRecordsHistory(t *testing.T) {
	s := &Session{ID: "ARB-1", State: StateInitialized}
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.transition(StateRuleEvaluation, now))
	require.NoError(t, s.transition(StateVerdictGeneration, now.Add(time.Second)))

	require.Len(t, s.Transitions, 2)
	assert.Equal(t, StateInitialized, s.Transitions[0].From)
	assert.Equal(t, StateRuleEvaluation, s.Transitions[0].To)
	assert.Equal(t, StateRuleEvaluation, s.Transitions[1].From)
	assert.Equal(t, StateVerdictGeneration, s.Transitions[1].To)
	assert.Equal(t, StateVerdictGeneration, s.State)
}

func TestSession_InvalidTransitionLeavesStateUnchanged(t *testing.T) {
	s := &Session{ID: "ARB-1", State: StateInitialized}

	err := s.transition(StateAppealReview, time.Now())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidStateTransition))
	assert.Equal(t, StateInitialized, s.State)
	assert.Empty(t, s.Transitions)
}
