package appeal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

func verdict() *contracts.Verdict {
	return &contracts.Verdict{ID: "VRD-1", SessionID: "ARB-1", Decision: contracts.DecisionViolationConfirmed}
}

func vote(reviewer string, rec contracts.AppealOutcome) contracts.ReviewerVote {
	return contracts.ReviewerVote{ReviewerID: reviewer, Recommendation: rec}
}

func TestSubmitAppeal(t *testing.T) {
	a := NewArbitrator()

	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "new evidence surfaced", []string{"log-x"})
	require.NoError(t, err)

	assert.NotEmpty(t, ap.ID)
	assert.Equal(t, "VRD-1", ap.VerdictID)
	assert.Equal(t, []string{"log-x"}, ap.NewEvidence)

	got, ok := a.Appeal(ap.ID)
	require.True(t, ok)
	assert.Equal(t, ap.ID, got.ID)
}

func TestClear(t *testing.T) {
	a := NewArbitrator()

	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "new evidence surfaced", nil)
	require.NoError(t, err)

	a.Clear()

	_, ok := a.Appeal(ap.ID)
	assert.False(t, ok)

	// the active-appeal marker is gone too: the same appellant may resubmit
	_, err = a.SubmitAppeal("ARB-1", verdict(), "agent-7", "second attempt", nil)
	assert.NoError(t, err)
}

func TestSubmitAppeal_Validation(t *testing.T) {
	a := NewArbitrator()

	_, err := a.SubmitAppeal("ARB-1", nil, "agent-7", "g", nil)
	assert.Error(t, err)

	_, err = a.SubmitAppeal("ARB-1", verdict(), "", "g", nil)
	assert.Error(t, err)
}

func TestSubmitAppeal_OneActivePerAppellant(t *testing.T) {
	a := NewArbitrator()

	_, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "first", nil)
	require.NoError(t, err)

	_, err = a.SubmitAppeal("ARB-1", verdict(), "agent-7", "second", nil)
	assert.ErrorContains(t, err, "already has active appeal")

	// a different session is unaffected
	_, err = a.SubmitAppeal("ARB-2", verdict(), "agent-7", "other session", nil)
	assert.NoError(t, err)
}

func TestSubmitAppeal_MultipleAllowedWhenConfigured(t *testing.T) {
	a := NewArbitrator(WithMultipleAppealsPerAppellant())

	_, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "first", nil)
	require.NoError(t, err)
	_, err = a.SubmitAppeal("ARB-1", verdict(), "agent-7", "second", nil)
	assert.NoError(t, err)
}

func TestReviewAppeal_Unanimous(t *testing.T) {
	a := NewArbitrator()
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealUpheld),
		vote("rev-2", contracts.AppealUpheld),
		vote("rev-3", contracts.AppealUpheld),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.AppealUpheld, d.Decision)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Nil(t, d.NewVerdict)
}

func TestReviewAppeal_MajorityMeetsThreshold(t *testing.T) {
	a := NewArbitrator()
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealUpheld),
		vote("rev-2", contracts.AppealUpheld),
		vote("rev-3", contracts.AppealRemanded),
	})
	require.NoError(t, err)

	// 2/3 meets the default threshold
	assert.Equal(t, contracts.AppealUpheld, d.Decision)
	assert.InDelta(t, 2.0/3.0, d.Confidence, 1e-9)
}

func TestReviewAppeal_SplitVoteRemanded(t *testing.T) {
	a := NewArbitrator()
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealUpheld),
		vote("rev-2", contracts.AppealOverturned),
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.AppealRemanded, d.Decision)
}

func TestReviewAppeal_OverturnRequiresProposedVerdict(t *testing.T) {
	a := NewArbitrator()
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealOverturned),
		vote("rev-2", contracts.AppealOverturned),
	})
	require.NoError(t, err)

	// unanimous overturn without a replacement verdict is remanded
	assert.Equal(t, contracts.AppealRemanded, d.Decision)
	assert.Nil(t, d.NewVerdict)
}

func TestReviewAppeal_OverturnWithProposedVerdict(t *testing.T) {
	a := NewArbitrator()
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	replacement := &contracts.Verdict{ID: "VRD-2", Decision: contracts.DecisionNoViolation}
	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		{ReviewerID: "rev-1", Recommendation: contracts.AppealOverturned, NewVerdict: replacement, Argument: "original misread the quota report"},
		vote("rev-2", contracts.AppealOverturned),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.AppealOverturned, d.Decision)
	require.NotNil(t, d.NewVerdict)
	assert.Equal(t, "VRD-2", d.NewVerdict.ID)
	assert.Contains(t, d.Reasoning, "rev-1")
	assert.Contains(t, d.Reasoning, "misread")
}

func TestReviewAppeal_RemandKeepsAppealActive(t *testing.T) {
	a := NewArbitrator()
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	_, err = a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealUpheld),
		vote("rev-2", contracts.AppealOverturned),
	})
	require.NoError(t, err)

	// remanded: the appellant's slot stays occupied until a final outcome
	_, err = a.SubmitAppeal("ARB-1", verdict(), "agent-7", "again", nil)
	assert.Error(t, err)

	// re-review can reach a final outcome
	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealUpheld),
		vote("rev-2", contracts.AppealUpheld),
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.AppealUpheld, d.Decision)

	_, err = a.SubmitAppeal("ARB-1", verdict(), "agent-7", "post-decision", nil)
	assert.NoError(t, err)
}

func TestReviewAppeal_Validation(t *testing.T) {
	a := NewArbitrator()

	_, err := a.ReviewAppeal("missing", []contracts.ReviewerVote{vote("rev-1", contracts.AppealUpheld)})
	assert.Error(t, err)

	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	_, err = a.ReviewAppeal(ap.ID, nil)
	assert.Error(t, err)

	_, err = a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{vote("rev-1", "maybe")})
	assert.ErrorContains(t, err, "invalid recommendation")
}

func TestWithMajorityThreshold(t *testing.T) {
	a := NewArbitrator(WithMajorityThreshold(0.75))
	ap, err := a.SubmitAppeal("ARB-1", verdict(), "agent-7", "grounds", nil)
	require.NoError(t, err)

	// 2/3 < 0.75: remand instead of taking the majority
	d, err := a.ReviewAppeal(ap.ID, []contracts.ReviewerVote{
		vote("rev-1", contracts.AppealUpheld),
		vote("rev-2", contracts.AppealUpheld),
		vote("rev-3", contracts.AppealOverturned),
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.AppealRemanded, d.Decision)
}
