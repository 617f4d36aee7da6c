// Package rules implements the constitutional rule engine: a stateless
// evaluator that decides which rules of the shared rulebook apply to a
// violation context, and how strongly.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// Engine holds the loaded rulebook. The loaded-rule set is append-only for
// the lifetime of the engine instance, so a single Engine is safe to share
// across concurrent sessions. Evaluation is pure with respect to its inputs.
type Engine struct {
	env      *cel.Env
	mu       sync.RWMutex
	rules    map[string]*contracts.ConstitutionalRule
	programs map[string]cel.Program
}

// NewEngine creates an engine with the standard evaluation environment.
// Rule conditions see the violation fields plus the opaque context map.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("context", cel.DynType),
		cel.Variable("violator", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("evidence_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Engine{
		env:      env,
		rules:    make(map[string]*contracts.ConstitutionalRule),
		programs: make(map[string]cel.Program),
	}, nil
}

// LoadRule registers a rule for the lifetime of the engine. Loading is
// idempotent per rule id: re-loading an already-registered id is a no-op,
// rules are immutable reference data.
func (e *Engine) LoadRule(rule *contracts.ConstitutionalRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("rule must have an id")
	}

	e.mu.RLock()
	_, loaded := e.rules[rule.ID]
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	if rule.Version != "" {
		if _, err := semver.NewVersion(rule.Version); err != nil {
			return fmt.Errorf("rule %s: invalid version %q: %w", rule.ID, rule.Version, err)
		}
	}

	var prg cel.Program
	if rule.Condition != "" {
		ast, issues := e.env.Compile(rule.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s: compile condition: %w", rule.ID, issues.Err())
		}
		p, err := e.env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return fmt.Errorf("rule %s: build program: %w", rule.ID, err)
		}
		prg = p
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[rule.ID]; exists {
		return nil
	}
	cp := *rule
	e.rules[rule.ID] = &cp
	if prg != nil {
		e.programs[rule.ID] = prg
	}
	return nil
}

// Rule returns the loaded rule for id, if any.
func (e *Engine) Rule(id string) (*contracts.ConstitutionalRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	return r, ok
}

// EvaluateAction evaluates the action context against each requested rule
// and returns one result per rule id, in request order. Unknown rule ids
// yield a non-applying result with detail rather than an error, so one
// stale candidate cannot sink a whole session.
func (e *Engine) EvaluateAction(ctx context.Context, actionContext map[string]any, ruleIDs []string) ([]contracts.RuleEvaluation, error) {
	input := evalInput(actionContext)

	results := make([]contracts.RuleEvaluation, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.mu.RLock()
		rule, ok := e.rules[id]
		prg := e.programs[id]
		e.mu.RUnlock()

		if !ok {
			results = append(results, contracts.RuleEvaluation{
				RuleID: id,
				Detail: "rule not loaded",
			})
			continue
		}

		res := contracts.RuleEvaluation{RuleID: id, Category: rule.Category}

		// A rule with no condition applies categorically.
		applies := true
		if prg != nil {
			out, _, err := prg.Eval(input)
			if err != nil {
				res.Detail = fmt.Sprintf("condition error: %v", err)
				results = append(results, res)
				continue
			}
			b, ok := out.Value().(bool)
			if !ok {
				res.Detail = "condition did not evaluate to bool"
				results = append(results, res)
				continue
			}
			applies = b
		}

		if applies {
			res.Applies = true
			res.Strength = ruleStrength(rule)
		}
		results = append(results, res)
	}
	return results, nil
}

func ruleStrength(rule *contracts.ConstitutionalRule) float64 {
	if rule.Weight > 0 && rule.Weight <= 1 {
		return rule.Weight
	}
	return 1.0
}

// evalInput flattens the violation fields the orchestrator places in the
// action context into top-level CEL variables, keeping the raw map
// available as "context".
func evalInput(actionContext map[string]any) map[string]any {
	in := map[string]any{
		"context":        map[string]any{},
		"violator":       "",
		"severity":       "",
		"description":    "",
		"evidence_count": 0,
	}
	if actionContext == nil {
		return in
	}
	in["context"] = actionContext
	if v, ok := actionContext["violator"].(string); ok {
		in["violator"] = v
	}
	if v, ok := actionContext["severity"].(string); ok {
		in["severity"] = v
	}
	if v, ok := actionContext["description"].(string); ok {
		in["description"] = v
	}
	switch n := actionContext["evidence_count"].(type) {
	case int:
		in["evidence_count"] = n
	case int64:
		in["evidence_count"] = int(n)
	case float64:
		in["evidence_count"] = int(n)
	}
	return in
}
