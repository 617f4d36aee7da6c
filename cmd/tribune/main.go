// Command tribune runs the arbitration protocol engine: it wires the rule
// engine, precedent store, verdict generator, waiver interpreter, and
// appeal arbitrator into an orchestrator and drives a demo adjudication.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Mindburn-Labs/tribune/pkg/appeal"
	"github.com/Mindburn-Labs/tribune/pkg/arbiter"
	"github.com/Mindburn-Labs/tribune/pkg/audit"
	"github.com/Mindburn-Labs/tribune/pkg/capacity"
	"github.com/Mindburn-Labs/tribune/pkg/config"
	"github.com/Mindburn-Labs/tribune/pkg/contracts"
	"github.com/Mindburn-Labs/tribune/pkg/observability"
	"github.com/Mindburn-Labs/tribune/pkg/precedent"
	"github.com/Mindburn-Labs/tribune/pkg/rules"
	"github.com/Mindburn-Labs/tribune/pkg/verdict"
	"github.com/Mindburn-Labs/tribune/pkg/waiver"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := "demo"
	if len(args) > 1 {
		cmd = args[1]
	}

	switch cmd {
	case "demo":
		return runDemo(stdout, stderr, false)
	case "verify-audit":
		return runDemo(stdout, stderr, true)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tribune <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  demo          Run a full arbitration session end to end (default)")
	fmt.Fprintln(w, "  verify-audit  Run the demo and verify the audit chain")
	fmt.Fprintln(w, "  help          Show this help")
}

//nolint:gocognit
func runDemo(stdout, stderr io.Writer, verifyAudit bool) int {
	ctx := context.Background()
	cfg := config.Load()

	nonWaivable := []string{"safety"}
	majorityThreshold := 0.0
	if name := os.Getenv("TRIBUNE_PROFILE"); name != "" {
		profile, err := config.LoadProfile(envOr("TRIBUNE_PROFILES_DIR", "profiles"), name)
		if err != nil {
			log.Fatalf("Failed to load profile: %v", err)
		}
		profile.Apply(cfg)
		if len(profile.NonWaivableCategories) > 0 {
			nonWaivable = profile.NonWaivableCategories
		}
		majorityThreshold = profile.MajorityThreshold
	}

	setupLogging(cfg.LogLevel)
	logger := slog.Default().With("component", "tribune")

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "tribune-arbitration",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
		Insecure:       true,
	})
	if err != nil {
		log.Fatalf("Failed to init observability: %v", err)
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	store, cleanup, err := openPrecedentStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open precedent store: %v", err)
	}
	defer cleanup()

	slots := openSlotStore(cfg, logger)

	engine, err := rules.NewEngine()
	if err != nil {
		log.Fatalf("Failed to init rule engine: %v", err)
	}

	alog := audit.NewLog()
	orch, err := arbiter.NewOrchestrator(arbiter.Options{
		AutoApplyPrecedents:   cfg.AutoApplyPrecedents,
		EnableWaivers:         cfg.EnableWaivers,
		EnableAppeals:         cfg.EnableAppeals,
		MaxConcurrentSessions: cfg.MaxConcurrentSessions,
		SessionTimeout:        cfg.SessionTimeout,
		TrackPerformance:      cfg.TrackPerformance,
	}, arbiter.Deps{
		Rules:         engine,
		Precedents:    precedent.NewManager(store),
		Verdicts:      verdict.NewGenerator(),
		Waivers:       waiver.NewInterpreter(waiver.WithNonWaivableCategories(nonWaivable...)),
		Appeals:       appeal.NewArbitrator(appealOptions(majorityThreshold)...),
		Slots:         slots,
		AuditLog:      alog,
		Observability: obs,
	})
	if err != nil {
		log.Fatalf("Failed to init orchestrator: %v", err)
	}

	logger.Info("tribune ready",
		"max_sessions", cfg.MaxConcurrentSessions,
		"waivers", cfg.EnableWaivers,
		"appeals", cfg.EnableAppeals,
	)

	rulebook := demoRulebook()
	violation := &contracts.ConstitutionalViolation{
		RuleID:      "RULE-RESOURCE-001",
		Violator:    "agent-delta",
		Severity:    contracts.SeverityHigh,
		Description: "agent exceeded its allotted compute quota during consensus round",
		Context:     map[string]any{"quota_used": 1.8},
		DetectedAt:  time.Now().UTC(),
		Evidence:    []string{"scheduler log 2026-08-23T10:14Z", "quota report Q-4411"},
	}

	session, err := orch.StartSession(ctx, violation, rulebook, []string{"agent-delta", "monitor-1"})
	if err != nil {
		fmt.Fprintf(stderr, "start session: %v\n", err)
		return 1
	}
	if err := orch.EvaluateRules(ctx, session.ID); err != nil {
		fmt.Fprintf(stderr, "evaluate rules: %v\n", err)
		return 1
	}
	v, err := orch.GenerateVerdict(ctx, session.ID, "tribune-demo")
	if err != nil {
		fmt.Fprintf(stderr, "generate verdict: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "verdict: %s (confidence %.3f)\n", v.Decision, v.Confidence)
	for _, step := range v.Reasoning {
		fmt.Fprintf(stdout, "  - %s\n", step.Description)
	}

	if cfg.EnableWaivers && v.Decision == contracts.DecisionViolationConfirmed {
		decision, werr := orch.EvaluateWaiver(ctx, session.ID, &contracts.WaiverRequest{
			SessionID:     session.ID,
			RequestedBy:   "agent-delta",
			Justification: "quota overrun caused by a burst of retries after a transient network partition",
		}, "tribune-demo")
		if werr != nil {
			fmt.Fprintf(stderr, "evaluate waiver: %v\n", werr)
			return 1
		}
		fmt.Fprintf(stdout, "waiver: %s (%s)\n", decision.Outcome, decision.Rationale)
	} else if err := orch.CompleteSession(ctx, session.ID); err != nil {
		fmt.Fprintf(stderr, "complete session: %v\n", err)
		return 1
	}

	stats, err := orch.GetStatistics(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "statistics: %v\n", err)
		return 1
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Fprintf(stdout, "statistics:\n%s\n", out)

	if verifyAudit {
		ok, verr := alog.VerifyChain()
		if verr != nil || !ok {
			fmt.Fprintf(stderr, "audit chain verification failed: %v\n", verr)
			return 1
		}
		fmt.Fprintf(stdout, "audit chain verified: %d entries\n", len(alog.Entries()))
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func appealOptions(majorityThreshold float64) []appeal.Option {
	if majorityThreshold > 0 {
		return []appeal.Option{appeal.WithMajorityThreshold(majorityThreshold)}
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// openPrecedentStore selects postgres when DATABASE_URL is set, the embedded
// sqlite store otherwise.
func openPrecedentStore(ctx context.Context, cfg *config.Config) (precedent.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		s, err := precedent.NewPostgresStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Println("[tribune] postgres precedent store: connected")
		return s, func() { _ = db.Close() }, nil
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	s, err := precedent.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Printf("[tribune] sqlite precedent store: %s", cfg.SQLitePath)
	return s, func() { _ = db.Close() }, nil
}

// openSlotStore selects the shared Redis slot store when REDIS_ADDR is set.
func openSlotStore(cfg *config.Config, logger *slog.Logger) capacity.SlotStore {
	if cfg.RedisAddr == "" {
		return capacity.NewInMemorySlotStore()
	}
	logger.Info("redis slot store", "addr", cfg.RedisAddr)
	return capacity.NewRedisSlotStore(cfg.RedisAddr, "", 0, int(cfg.SessionTimeout.Seconds())*2)
}

func demoRulebook() []*contracts.ConstitutionalRule {
	return []*contracts.ConstitutionalRule{
		{
			ID:        "RULE-RESOURCE-001",
			Category:  "resource",
			Version:   "1.2.0",
			Condition: `context.quota_used > 1.0`,
			Weight:    0.9,
			Waivable:  true,
			Keywords:  []string{"quota", "compute", "resource"},
		},
		{
			ID:       "RULE-CONDUCT-007",
			Category: "conduct",
			Version:  "1.0.0",
			// no condition: applies categorically
			Weight:   0.8,
			Waivable: true,
			Keywords: []string{"conduct", "consensus"},
		},
		{
			ID:        "RULE-SAFETY-002",
			Category:  "safety",
			Version:   "2.0.1",
			Condition: `severity == "critical"`,
			Weight:    1.0,
			Waivable:  false,
			Keywords:  []string{"safety", "harm"},
		},
	}
}
