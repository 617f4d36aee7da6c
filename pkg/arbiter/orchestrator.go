package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/tribune/pkg/appeal"
	"github.com/Mindburn-Labs/tribune/pkg/audit"
	"github.com/Mindburn-Labs/tribune/pkg/capacity"
	"github.com/Mindburn-Labs/tribune/pkg/canonicalize"
	"github.com/Mindburn-Labs/tribune/pkg/contracts"
	"github.com/Mindburn-Labs/tribune/pkg/observability"
	"github.com/Mindburn-Labs/tribune/pkg/precedent"
	"github.com/Mindburn-Labs/tribune/pkg/rules"
	"github.com/Mindburn-Labs/tribune/pkg/verdict"
	"github.com/Mindburn-Labs/tribune/pkg/waiver"
)

// precedentThreshold is the strict confidence bound above which a verdict
// is folded into a new precedent.
const precedentThreshold = 0.8

// Clock provides authority time, injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Options are the recognized arbitration protocol options.
type Options struct {
	AutoApplyPrecedents   bool
	EnableWaivers         bool
	EnableAppeals         bool
	MaxConcurrentSessions int
	SessionTimeout        time.Duration
	TrackPerformance      bool
}

// DefaultOptions returns the protocol defaults.
func DefaultOptions() Options {
	return Options{
		AutoApplyPrecedents:   true,
		EnableWaivers:         true,
		EnableAppeals:         true,
		MaxConcurrentSessions: 10,
		SessionTimeout:        5 * time.Minute,
		TrackPerformance:      true,
	}
}

// Deps are the collaborating components the orchestrator drives. Slots,
// AuditLog, Observability, and Clock are optional; in-process defaults are
// used when nil.
type Deps struct {
	Rules         *rules.Engine
	Precedents    *precedent.Manager
	Verdicts      *verdict.Generator
	Waivers       *waiver.Interpreter
	Appeals       *appeal.Arbitrator
	Slots         capacity.SlotStore
	AuditLog      *audit.Log
	Observability *observability.Provider
	Clock         Clock
}

// Orchestrator owns the session registry and drives the state machine.
// Lifecycle operations on one session are serialized via a per-session
// lock; sessions are independent of each other.
type Orchestrator struct {
	opts   Options
	engine *rules.Engine
	precs  *precedent.Manager
	gen    *verdict.Generator
	waiv   *waiver.Interpreter
	apl    *appeal.Arbitrator
	slots  capacity.SlotStore
	alog   *audit.Log
	obs    *observability.Provider
	clock  Clock
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	counter           atomic.Uint64
	precedentsCreated atomic.Int64

	statsMu          sync.Mutex
	appealsByOutcome map[string]int
	waiversByOutcome map[string]int
}

// NewOrchestrator creates an orchestrator over the given components.
func NewOrchestrator(opts Options, deps Deps) (*Orchestrator, error) {
	if deps.Rules == nil || deps.Precedents == nil || deps.Verdicts == nil || deps.Waivers == nil || deps.Appeals == nil {
		return nil, fmt.Errorf("orchestrator requires all five arbitration components")
	}
	if opts.MaxConcurrentSessions <= 0 {
		opts.MaxConcurrentSessions = DefaultOptions().MaxConcurrentSessions
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = DefaultOptions().SessionTimeout
	}
	slots := deps.Slots
	if slots == nil {
		slots = capacity.NewInMemorySlotStore()
	}
	clock := deps.Clock
	if clock == nil {
		clock = wallClock{}
	}
	return &Orchestrator{
		opts:             opts,
		engine:           deps.Rules,
		precs:            deps.Precedents,
		gen:              deps.Verdicts,
		waiv:             deps.Waivers,
		apl:              deps.Appeals,
		slots:            slots,
		alog:             deps.AuditLog,
		obs:              deps.Observability,
		clock:            clock,
		logger:           slog.Default().With("component", "arbiter"),
		sessions:         make(map[string]*Session),
		appealsByOutcome: make(map[string]int),
		waiversByOutcome: make(map[string]int),
	}, nil
}

// StartSession creates a session for the violation and immediately enters
// RULE_EVALUATION. Fails fast with SESSION_LIMIT_EXCEEDED when the
// active-session count has reached MaxConcurrentSessions.
func (o *Orchestrator) StartSession(ctx context.Context, violation *contracts.ConstitutionalViolation, candidates []*contracts.ConstitutionalRule, participants []string) (*Session, error) {
	if violation == nil {
		return nil, fmt.Errorf("violation is required")
	}

	now := o.clock.Now()
	id := fmt.Sprintf("ARB-%d-%d", now.UnixMilli(), o.counter.Add(1))

	ok, err := o.slots.Acquire(ctx, id, o.opts.MaxConcurrentSessions)
	if err != nil {
		return nil, fmt.Errorf("acquire session slot: %w", err)
	}
	if !ok {
		return nil, newError(CodeSessionLimitExceeded, "",
			"active session limit %d reached", o.opts.MaxConcurrentSessions)
	}

	s := &Session{
		ID:             id,
		State:          StateInitialized,
		Violation:      violation,
		RulesEvaluated: candidates,
		Evidence:       violation.Evidence,
		Participants:   participants,
		StartTime:      now.UTC(),
	}
	if o.opts.TrackPerformance {
		s.Metrics = &contracts.SessionMetrics{
			SessionID: id,
			StartedAt: now.UTC(),
		}
	}
	if err := s.transition(StateRuleEvaluation, now); err != nil {
		// INITIALIZED -> RULE_EVALUATION is always a table edge.
		return nil, err
	}

	o.mu.Lock()
	o.sessions[id] = s
	o.mu.Unlock()

	o.audit("orchestrator", "SESSION_STARTED", id, violation)
	if o.obs != nil {
		o.obs.RecordSessionStart(ctx, attribute.String("tribune.severity", string(violation.Severity)))
	}
	o.logger.InfoContext(ctx, "session started",
		"session", id, "rule", violation.RuleID, "severity", violation.Severity)
	return s, nil
}

// EvaluateRules loads each candidate rule into the rule engine and
// evaluates the violation against it. With automatic precedent application
// enabled the session passes through EVIDENCE_COLLECTION and precedent
// lookup; otherwise it moves straight to VERDICT_GENERATION.
func (o *Orchestrator) EvaluateRules(ctx context.Context, sessionID string) error {
	s, err := o.session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateRuleEvaluation {
		return newError(CodeInvalidState, s.ID, "evaluateRules requires %s, session is %s", StateRuleEvaluation, s.State)
	}

	ctx, done := o.trackPhase(ctx, "arbiter.evaluate_rules", s.ID)
	start := o.clock.Now()

	ruleIDs := make([]string, 0, len(s.RulesEvaluated))
	for _, r := range s.RulesEvaluated {
		if err := o.engine.LoadRule(r); err != nil {
			done(err)
			return o.failLocked(ctx, s, fmt.Errorf("load rule %s: %w", r.ID, err))
		}
		ruleIDs = append(ruleIDs, r.ID)
	}

	results, err := o.engine.EvaluateAction(ctx, o.actionContext(s), ruleIDs)
	if err != nil {
		done(err)
		return o.failLocked(ctx, s, fmt.Errorf("rule evaluation: %w", err))
	}
	s.RuleResults = results
	if s.Metrics != nil {
		s.Metrics.RuleEvaluationMs = o.clock.Now().Sub(start).Milliseconds()
		s.Metrics.RulesEvaluated = len(results)
	}
	done(nil)
	o.audit("orchestrator", "RULES_EVALUATED", s.ID, results)

	if o.opts.AutoApplyPrecedents {
		if err := s.transition(StateEvidenceCollection, o.clock.Now()); err != nil {
			return err
		}
		return o.findPrecedentsLocked(ctx, s)
	}
	return s.transition(StateVerdictGeneration, o.clock.Now())
}

// FindPrecedents queries the precedent manager for up to 5 precedents
// similar to the session's violation and moves on to VERDICT_GENERATION.
func (o *Orchestrator) FindPrecedents(ctx context.Context, sessionID string) error {
	s, err := o.session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateEvidenceCollection {
		return newError(CodeInvalidState, s.ID, "findPrecedents requires %s, session is %s", StateEvidenceCollection, s.State)
	}
	return o.findPrecedentsLocked(ctx, s)
}

func (o *Orchestrator) findPrecedentsLocked(ctx context.Context, s *Session) error {
	ctx, done := o.trackPhase(ctx, "arbiter.find_precedents", s.ID)
	start := o.clock.Now()

	matches, err := o.precs.FindSimilar(ctx, precedent.Query{
		Category: o.primaryCategory(s),
		Severity: s.Violation.Severity,
		Keywords: descriptionKeywords(s.Violation.Description),
		RuleIDs:  ruleIDsOf(s),
		Limit:    5,
	})
	if err != nil {
		done(err)
		return o.failLocked(ctx, s, fmt.Errorf("precedent lookup: %w", err))
	}
	s.Precedents = matches
	if s.Metrics != nil {
		s.Metrics.PrecedentLookupMs = o.clock.Now().Sub(start).Milliseconds()
		s.Metrics.PrecedentsFound = len(matches)
	}
	done(nil)
	o.audit("orchestrator", "PRECEDENTS_FOUND", s.ID, len(matches))

	return s.transition(StateVerdictGeneration, o.clock.Now())
}

// GenerateVerdict delegates to the verdict generator and stores the result
// on the session. A verdict with confidence strictly above the precedent
// threshold is folded into a new precedent. The session is NOT
// auto-transitioned: the caller chooses waiver, appeal, or completion.
func (o *Orchestrator) GenerateVerdict(ctx context.Context, sessionID, issuedBy string) (*contracts.Verdict, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateVerdictGeneration {
		return nil, newError(CodeInvalidState, s.ID, "generateVerdict requires %s, session is %s", StateVerdictGeneration, s.State)
	}

	ctx, done := o.trackPhase(ctx, "arbiter.generate_verdict", s.ID)
	res, err := o.gen.Generate(verdict.Input{
		SessionID:   s.ID,
		Violation:   s.Violation,
		Evaluations: s.RuleResults,
		Precedents:  s.Precedents,
		Evidence:    s.Evidence,
	}, issuedBy)
	if err != nil {
		done(err)
		return nil, o.failLocked(ctx, s, fmt.Errorf("verdict generation: %w", err))
	}
	s.Verdict = res.Verdict
	if s.Metrics != nil {
		ms := res.GenerationTime.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		s.Metrics.VerdictGenerationMs = ms
	}
	done(nil)
	o.audit("orchestrator", "VERDICT_GENERATED", s.ID, res.Verdict)
	o.logger.InfoContext(ctx, "verdict generated",
		"session", s.ID, "decision", res.Verdict.Decision, "confidence", res.Verdict.Confidence)

	if res.Verdict.Confidence > precedentThreshold {
		if _, err := o.createPrecedentLocked(ctx, s, res.Verdict, precedentTitle(s), s.Evidence); err != nil {
			return nil, o.failLocked(ctx, s, err)
		}
	}
	return res.Verdict, nil
}

// EvaluateWaiver delegates the waiver request to the interpreter and
// completes the session. Fails with WAIVERS_DISABLED, leaving the session
// state untouched, when waivers are disabled by configuration.
func (o *Orchestrator) EvaluateWaiver(ctx context.Context, sessionID string, req *contracts.WaiverRequest, decidedBy string) (*contracts.WaiverDecision, error) {
	if !o.opts.EnableWaivers {
		return nil, newError(CodeWaiversDisabled, sessionID, "waivers are disabled by configuration")
	}
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Verdict == nil {
		return nil, newError(CodeNoVerdict, s.ID, "waiver requires a verdict")
	}
	if s.State != StateVerdictGeneration {
		return nil, newError(CodeInvalidState, s.ID, "evaluateWaiver not permitted in state %s", s.State)
	}
	if err := s.transition(StateWaiverEvaluation, o.clock.Now()); err != nil {
		return nil, err
	}

	ctx, done := o.trackPhase(ctx, "arbiter.evaluate_waiver", s.ID)
	start := o.clock.Now()

	decision, err := o.waiv.ProcessWaiver(req, o.primaryRule(s), decidedBy)
	if err != nil {
		done(err)
		return nil, o.failLocked(ctx, s, fmt.Errorf("waiver evaluation: %w", err))
	}
	s.WaiverRequest = req
	s.WaiverDecision = decision
	if s.Metrics != nil {
		s.Metrics.WaiverEvaluationMs = o.clock.Now().Sub(start).Milliseconds()
	}
	done(nil)

	o.statsMu.Lock()
	o.waiversByOutcome[string(decision.Outcome)]++
	o.statsMu.Unlock()

	o.audit("orchestrator", "WAIVER_DECIDED", s.ID, decision)
	if err := o.completeLocked(ctx, s); err != nil {
		return nil, err
	}
	return decision, nil
}

// SubmitAppeal records an appeal against the session's verdict, moving the
// session into APPEAL_REVIEW. Submitting against a COMPLETED session
// reopens it, which requires a free session slot.
func (o *Orchestrator) SubmitAppeal(ctx context.Context, sessionID, appellantID, grounds string, newEvidence []string) (*contracts.Appeal, error) {
	if !o.opts.EnableAppeals {
		return nil, newError(CodeAppealsDisabled, sessionID, "appeals are disabled by configuration")
	}
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Verdict == nil {
		return nil, newError(CodeNoVerdict, s.ID, "appeal requires a verdict")
	}

	switch s.State {
	case StateVerdictGeneration, StateWaiverEvaluation:
		if err := s.transition(StateAppealReview, o.clock.Now()); err != nil {
			return nil, err
		}
	case StateCompleted:
		if err := o.reopenLocked(ctx, s); err != nil {
			return nil, err
		}
	case StateAppealReview:
		// additional appeal during review
	default:
		return nil, newError(CodeInvalidState, s.ID, "submitAppeal not permitted in state %s", s.State)
	}

	ap, err := o.apl.SubmitAppeal(s.ID, s.Verdict, appellantID, grounds, newEvidence)
	if err != nil {
		return nil, fmt.Errorf("submit appeal: %w", err)
	}
	s.Appeals = append(s.Appeals, ap)

	o.audit("orchestrator", "APPEAL_SUBMITTED", s.ID, ap)
	o.logger.InfoContext(ctx, "appeal submitted", "session", s.ID, "appeal", ap.ID, "appellant", appellantID)
	return ap, nil
}

// reopenLocked moves a COMPLETED session back into APPEAL_REVIEW for a late
// appeal. The original EndTime is kept; ReopenedAt marks the reopening and
// the final completion recomputes TotalDuration.
func (o *Orchestrator) reopenLocked(ctx context.Context, s *Session) error {
	ok, err := o.slots.Acquire(ctx, s.ID, o.opts.MaxConcurrentSessions)
	if err != nil {
		return fmt.Errorf("acquire session slot: %w", err)
	}
	if !ok {
		return newError(CodeSessionLimitExceeded, s.ID,
			"cannot reopen: active session limit %d reached", o.opts.MaxConcurrentSessions)
	}
	now := o.clock.Now()
	if err := s.transition(StateAppealReview, now); err != nil {
		_ = o.slots.Release(ctx, s.ID)
		return err
	}
	reopened := now.UTC()
	s.ReopenedAt = &reopened
	if s.Metrics != nil {
		s.Metrics.ReopenedAt = &reopened
		s.Metrics.FinalState = ""
	}
	if o.obs != nil {
		o.obs.RecordSessionStart(ctx, attribute.String("tribune.reopened", "true"))
	}
	o.audit("orchestrator", "SESSION_REOPENED", s.ID, reopened)
	return nil
}

// ReviewAppeal aggregates reviewer votes for the appeal. An overturn
// replaces the session's verdict with the reviewers' replacement and folds
// the replacement into a new precedent. The session then completes.
func (o *Orchestrator) ReviewAppeal(ctx context.Context, sessionID, appealID string, votes []contracts.ReviewerVote) (*contracts.AppealDecision, error) {
	if !o.opts.EnableAppeals {
		return nil, newError(CodeAppealsDisabled, sessionID, "appeals are disabled by configuration")
	}
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Verdict == nil {
		return nil, newError(CodeNoVerdict, s.ID, "appeal review requires a verdict")
	}
	if s.State != StateAppealReview {
		return nil, newError(CodeInvalidState, s.ID, "reviewAppeal requires %s, session is %s", StateAppealReview, s.State)
	}

	ctx, done := o.trackPhase(ctx, "arbiter.review_appeal", s.ID)
	decision, err := o.apl.ReviewAppeal(appealID, votes)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("review appeal: %w", err)
	}
	s.AppealDecisions = append(s.AppealDecisions, decision)
	done(nil)

	o.statsMu.Lock()
	o.appealsByOutcome[string(decision.Decision)]++
	o.statsMu.Unlock()

	if decision.Decision == contracts.AppealOverturned && decision.NewVerdict != nil {
		originalEvidence := s.Verdict.Evidence
		nv := *decision.NewVerdict
		nv.SessionID = s.ID
		nv.Evidence = mergeEvidence(originalEvidence, appealEvidence(s, appealID), nv.Evidence)
		if nv.IssuedAt.IsZero() {
			nv.IssuedAt = o.clock.Now().UTC()
		}
		s.snapshotVerdict()
		s.Verdict = &nv

		title := precedentTitle(s) + " Appeal Overturn"
		if _, err := o.createPrecedentLocked(ctx, s, &nv, title, nv.Evidence); err != nil {
			return nil, o.failLocked(ctx, s, err)
		}
	}

	o.audit("orchestrator", "APPEAL_REVIEWED", s.ID, decision)
	if err := o.completeLocked(ctx, s); err != nil {
		return nil, err
	}
	return decision, nil
}

// CompleteSession finalizes the session. Idempotent: completing an
// already-COMPLETED session is a no-op.
func (o *Orchestrator) CompleteSession(ctx context.Context, sessionID string) error {
	s, err := o.session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == StateCompleted {
		return nil
	}
	return o.completeLocked(ctx, s)
}

func (o *Orchestrator) completeLocked(ctx context.Context, s *Session) error {
	now := o.clock.Now()
	if err := s.transition(StateCompleted, now); err != nil {
		return err
	}
	o.finalizeLocked(ctx, s, now)
	o.logger.InfoContext(ctx, "session completed", "session", s.ID)
	return nil
}

// FailSession records the error on the session, finalizes metrics, and
// transitions to FAILED. This is the single terminal failure path; audits
// always find a FAILED state with an attached error.
func (o *Orchestrator) FailSession(ctx context.Context, sessionID string, cause error) error {
	s, err := o.session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !CanTransition(s.State, StateFailed) {
		return newError(CodeInvalidStateTransition, s.ID, "transition %s -> %s not permitted", s.State, StateFailed)
	}
	_ = o.failLocked(ctx, s, cause)
	return nil
}

func (o *Orchestrator) failLocked(ctx context.Context, s *Session, cause error) error {
	now := o.clock.Now()
	phase := s.State
	if err := s.transition(StateFailed, now); err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	s.Failure = &FailureDetail{Message: msg, Phase: phase, At: now.UTC()}
	o.finalizeLocked(ctx, s, now)

	o.audit("orchestrator", "SESSION_FAILED", s.ID, s.Failure)
	if o.obs != nil && cause != nil {
		o.obs.RecordError(ctx, cause, attribute.String("tribune.session", s.ID))
	}
	o.logger.ErrorContext(ctx, "session failed", "session", s.ID, "phase", phase, "error", msg)
	return cause
}

// finalizeLocked sets the end time and freezes the metrics record. On a
// reopened session the original EndTime is kept; TotalDuration always
// reflects the last completion.
func (o *Orchestrator) finalizeLocked(ctx context.Context, s *Session, now time.Time) {
	end := now.UTC()
	if s.EndTime == nil {
		s.EndTime = &end
	}
	if s.Metrics != nil {
		s.Metrics.FinalState = string(s.State)
		s.Metrics.EndedAt = &end
		s.Metrics.TotalDurationMs = end.Sub(s.StartTime).Milliseconds()
	}
	if err := o.slots.Release(ctx, s.ID); err != nil {
		o.logger.WarnContext(ctx, "slot release failed", "session", s.ID, "error", err)
	}
	if o.obs != nil {
		o.obs.RecordSessionEnd(ctx, attribute.String("tribune.final_state", string(s.State)))
	}
}

// FailExpiredSessions fails every active session whose lifetime has
// exceeded the configured SessionTimeout. Intended to be run periodically
// by a supervisor; sessions are never silently left open.
func (o *Orchestrator) FailExpiredSessions(ctx context.Context) int {
	now := o.clock.Now()
	failed := 0
	for _, s := range o.GetActiveSessions() {
		s.mu.Lock()
		started := s.StartTime
		s.mu.Unlock()
		if now.Sub(started) <= o.opts.SessionTimeout {
			continue
		}
		if err := o.FailSession(ctx, s.ID, fmt.Errorf("session exceeded timeout %s", o.opts.SessionTimeout)); err == nil {
			failed++
		}
	}
	return failed
}

// GetSession returns the session for id.
func (o *Orchestrator) GetSession(id string) (*Session, error) {
	return o.session(id)
}

// GetActiveSessions returns all sessions in a non-terminal state. Session
// state is read under the per-session lock; queries are safe concurrently
// with lifecycle operations.
func (o *Orchestrator) GetActiveSessions() []*Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		s.mu.Lock()
		active := !s.State.Terminal()
		s.mu.Unlock()
		if active {
			out = append(out, s)
		}
	}
	return out
}

// GetSessionMetrics returns the metrics record for a session, or nil when
// performance tracking is disabled.
func (o *Orchestrator) GetSessionMetrics(id string) (*contracts.SessionMetrics, error) {
	s, err := o.session(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Metrics, nil
}

// GetStatistics aggregates counts and averages across all sessions.
func (o *Orchestrator) GetStatistics(ctx context.Context) (*contracts.Statistics, error) {
	o.mu.RLock()
	sessions := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.RUnlock()

	stats := &contracts.Statistics{
		SessionsByFinalState: make(map[string]int),
		AppealsByOutcome:     make(map[string]int),
		WaiversByOutcome:     make(map[string]int),
	}

	var ruleMs, verdictMs, totalMs int64
	var finished int
	for _, s := range sessions {
		s.mu.Lock()
		stats.TotalSessions++
		if !s.State.Terminal() {
			stats.ActiveSessions++
		} else {
			stats.SessionsByFinalState[string(s.State)]++
		}
		stats.AppealsSubmitted += len(s.Appeals)
		if s.Metrics != nil && s.Metrics.FinalState != "" {
			finished++
			ruleMs += s.Metrics.RuleEvaluationMs
			verdictMs += s.Metrics.VerdictGenerationMs
			totalMs += s.Metrics.TotalDurationMs
		}
		s.mu.Unlock()
	}
	if finished > 0 {
		stats.AvgRuleEvaluationMs = float64(ruleMs) / float64(finished)
		stats.AvgVerdictMs = float64(verdictMs) / float64(finished)
		stats.AvgTotalDurationMs = float64(totalMs) / float64(finished)
	}

	stats.PrecedentsCreated = int(o.precedentsCreated.Load())
	o.statsMu.Lock()
	for k, v := range o.appealsByOutcome {
		stats.AppealsByOutcome[k] = v
	}
	for k, v := range o.waiversByOutcome {
		stats.WaiversByOutcome[k] = v
	}
	o.statsMu.Unlock()
	return stats, nil
}

// Clear resets all in-memory orchestrator state: the session registry,
// slots, counters, and the appeal arbitrator's registries. The precedent
// ledger is deliberately left alone; precedents are immutable once created
// and may live in a durable store. Test/reset scenarios only.
func (o *Orchestrator) Clear(ctx context.Context) {
	o.mu.Lock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	o.sessions = make(map[string]*Session)
	o.mu.Unlock()

	for _, id := range ids {
		_ = o.slots.Release(ctx, id)
	}

	o.apl.Clear()
	o.precedentsCreated.Store(0)
	o.statsMu.Lock()
	o.appealsByOutcome = make(map[string]int)
	o.waiversByOutcome = make(map[string]int)
	o.statsMu.Unlock()
}

// --- internals ---

func (o *Orchestrator) session(id string) (*Session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, newError(CodeSessionNotFound, id, "unknown session")
	}
	return s, nil
}

func (o *Orchestrator) createPrecedentLocked(ctx context.Context, s *Session, v *contracts.Verdict, title string, evidence []string) (*contracts.Precedent, error) {
	p, err := o.precs.CreatePrecedent(ctx, v, precedent.CreateArgs{
		Title:      title,
		Category:   o.primaryCategory(s),
		Severity:   s.Violation.Severity,
		Conditions: v.Conditions,
		RuleIDs:    ruleIDsOf(s),
		Keywords:   append(descriptionKeywords(s.Violation.Description), evidenceKeywords(evidence)...),
	})
	if err != nil {
		return nil, fmt.Errorf("create precedent: %w", err)
	}
	o.precedentsCreated.Add(1)
	o.audit("orchestrator", "PRECEDENT_CREATED", s.ID, p)
	return p, nil
}

// primaryCategory is the category of the first evaluated rule, falling back
// to the violation's rule when no candidates were supplied.
func (o *Orchestrator) primaryCategory(s *Session) string {
	if len(s.RulesEvaluated) > 0 {
		return s.RulesEvaluated[0].Category
	}
	if r, ok := o.engine.Rule(s.Violation.RuleID); ok {
		return r.Category
	}
	return ""
}

// primaryRule resolves the rule named by the violation, preferring the
// session's candidate list.
func (o *Orchestrator) primaryRule(s *Session) *contracts.ConstitutionalRule {
	for _, r := range s.RulesEvaluated {
		if r.ID == s.Violation.RuleID {
			return r
		}
	}
	if r, ok := o.engine.Rule(s.Violation.RuleID); ok {
		return r
	}
	if len(s.RulesEvaluated) > 0 {
		return s.RulesEvaluated[0]
	}
	return nil
}

func (o *Orchestrator) actionContext(s *Session) map[string]any {
	ctx := make(map[string]any, len(s.Violation.Context)+4)
	for k, v := range s.Violation.Context {
		ctx[k] = v
	}
	ctx["violator"] = s.Violation.Violator
	ctx["severity"] = string(s.Violation.Severity)
	ctx["description"] = s.Violation.Description
	ctx["evidence_count"] = len(s.Evidence)
	return ctx
}

func (o *Orchestrator) trackPhase(ctx context.Context, phase, sessionID string) (context.Context, func(error)) {
	if o.obs == nil {
		return ctx, func(error) {}
	}
	return o.obs.TrackPhase(ctx, phase, attribute.String("tribune.session", sessionID))
}

func (o *Orchestrator) audit(actor, action, target string, details any) {
	if o.alog == nil {
		return
	}
	payload := ""
	if details != nil {
		b, err := canonicalize.JCS(details)
		if err != nil {
			o.logger.Warn("audit payload canonicalization failed", "action", action, "target", target, "error", err)
		} else {
			payload = string(b)
		}
	}
	if _, err := o.alog.Append(actor, action, target, payload); err != nil {
		o.logger.Warn("audit append failed", "action", action, "target", target, "error", err)
	}
}

func precedentTitle(s *Session) string {
	desc := s.Violation.Description
	if len(desc) > 60 {
		desc = desc[:60]
	}
	return fmt.Sprintf("%s: %s", strings.ToUpper(string(s.Violation.Severity)), desc)
}

func ruleIDsOf(s *Session) []string {
	ids := make([]string, 0, len(s.RulesEvaluated))
	for _, r := range s.RulesEvaluated {
		ids = append(ids, r.ID)
	}
	return ids
}

// descriptionKeywords derives lookup keywords from a violation description:
// lowercase words longer than three characters, capped at eight.
func descriptionKeywords(description string) []string {
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == 8 {
			break
		}
	}
	return out
}

func evidenceKeywords(evidence []string) []string {
	out := make([]string, 0, len(evidence))
	for _, e := range evidence {
		out = append(out, descriptionKeywords(e)...)
	}
	return out
}

func appealEvidence(s *Session, appealID string) []string {
	for _, ap := range s.Appeals {
		if ap.ID == appealID {
			return ap.NewEvidence
		}
	}
	return nil
}

func mergeEvidence(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, e := range list {
			if e == "" {
				continue
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
