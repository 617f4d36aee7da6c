package precedent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// Similarity weights. Category identity dominates, severity proximity and
// keyword/rule overlap refine the ranking within a category.
const (
	weightCategory = 0.4
	weightSeverity = 0.3
	weightKeywords = 0.2
	weightRuleIDs  = 0.1
)

// Clock provides authority time, injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Manager owns precedent creation and similarity search over a Store.
type Manager struct {
	store Store
	clock Clock
}

// NewManager creates a manager over the given store. If clock is nil the
// wall clock is used.
func NewManager(store Store, clock ...Clock) *Manager {
	c := Clock(wallClock{})
	if len(clock) > 0 && clock[0] != nil {
		c = clock[0]
	}
	return &Manager{store: store, clock: c}
}

// CreateArgs carries the precedent fields derived by the caller.
type CreateArgs struct {
	Title      string
	Category   string
	Severity   contracts.Severity
	Conditions []string
	RuleIDs    []string
	Keywords   []string
}

// CreatePrecedent folds a verdict into a new immutable precedent and
// appends it to the store. The returned precedent is already visible to
// concurrent lookups when this returns.
func (m *Manager) CreatePrecedent(ctx context.Context, verdict *contracts.Verdict, args CreateArgs) (*contracts.Precedent, error) {
	if verdict == nil {
		return nil, fmt.Errorf("precedent requires a verdict")
	}

	p := &contracts.Precedent{
		ID:          uuid.New().String(),
		Title:       args.Title,
		Description: fmt.Sprintf("Precedent from session %s: %s", verdict.SessionID, verdict.Decision),
		Reasoning:   foldReasoning(verdict.Reasoning),
		Category:    args.Category,
		Severity:    args.Severity,
		Conditions:  args.Conditions,
		RuleIDs:     args.RuleIDs,
		Keywords:    normalizeKeywords(args.Keywords),
		VerdictID:   verdict.ID,
		SessionID:   verdict.SessionID,
		Confidence:  verdict.Confidence,
		CreatedAt:   m.clock.Now().UTC(),
	}
	if err := m.store.Append(ctx, p); err != nil {
		return nil, fmt.Errorf("append precedent: %w", err)
	}
	return p, nil
}

// Query describes a similarity lookup.
type Query struct {
	Category string
	Severity contracts.Severity
	Keywords []string
	RuleIDs  []string
	Limit    int
}

// FindSimilar returns up to Limit precedents ranked by similarity score,
// most similar first; ties broken by recency. Precedents with a zero score
// are never returned.
func (m *Manager) FindSimilar(ctx context.Context, q Query) ([]contracts.PrecedentMatch, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list precedents: %w", err)
	}

	keywords := normalizeKeywords(q.Keywords)
	matches := make([]contracts.PrecedentMatch, 0, len(all))
	for _, p := range all {
		score := similarity(p, q.Category, q.Severity, keywords, q.RuleIDs)
		if score <= 0 {
			continue
		}
		matches = append(matches, contracts.PrecedentMatch{Precedent: p, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Precedent.CreatedAt.After(matches[j].Precedent.CreatedAt)
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// Count returns the total number of stored precedents.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

func similarity(p *contracts.Precedent, category string, severity contracts.Severity, keywords, ruleIDs []string) float64 {
	var score float64

	if category != "" && strings.EqualFold(p.Category, category) {
		score += weightCategory
	}

	if severity.Valid() && p.Severity.Valid() {
		// Distance 0 scores full weight, the maximum distance scores zero.
		d := float64(severity.Distance(p.Severity))
		score += weightSeverity * (1.0 - d/3.0)
	}

	if overlap := keywordOverlap(keywords, p.Keywords); overlap > 0 {
		score += weightKeywords * overlap
	}

	if anyRuleOverlap(ruleIDs, p.RuleIDs) {
		score += weightRuleIDs
	}

	return score
}

// keywordOverlap returns the fraction of query keywords present in the
// precedent's keyword set.
func keywordOverlap(query, have []string) float64 {
	if len(query) == 0 || len(have) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(have))
	for _, k := range have {
		set[strings.ToLower(k)] = struct{}{}
	}
	hits := 0
	for _, k := range query {
		if _, ok := set[strings.ToLower(k)]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func anyRuleOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func foldReasoning(steps []contracts.ReasoningStep) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, s.Description)
	}
	return strings.Join(parts, "; ")
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
