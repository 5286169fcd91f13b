// Package mock provides an offline categorizer for tests and local development.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"docvault-backend/internal/categorize"
)

var keywords = map[categorize.Category][]string{
	categorize.Finance:      {"invoice", "budget", "revenue", "cost", "finance", "payment", "report"},
	categorize.Security:     {"security", "threat", "vulnerab", "encrypt", "auth", "access control", "pentest"},
	categorize.Architecture: {"architecture", "design", "diagram", "component", "service", "topology"},
	categorize.Compliance:   {"compliance", "gdpr", "soc 2", "soc2", "audit", "policy", "regulat"},
	categorize.Integrations: {"integration", "api", "webhook", "connector", "sync", "endpoint"},
}

// Categorizer scores keyword hits; ties go to the earlier category. Input
// with no keyword hit is rejected the way an unusable model answer would be.
// CategorizeFunc overrides the default behavior when set.
type Categorizer struct {
	CategorizeFunc func(ctx context.Context, in categorize.Input) (categorize.Category, error)

	calls atomic.Int64
}

// Categorize implements categorize.Categorizer.
func (m *Categorizer) Categorize(ctx context.Context, in categorize.Input) (categorize.Category, error) {
	m.calls.Add(1)
	if m.CategorizeFunc != nil {
		return m.CategorizeFunc(ctx, in)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := strings.ToLower(in.Text + " " + in.FileName)

	best := categorize.Category("")
	bestScore := 0
	for _, c := range categorize.All {
		score := 0
		for _, kw := range keywords[c] {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no keyword matched", categorize.ErrInvalidCategoryResponse)
	}
	return best, nil
}

// Calls returns how many times Categorize was invoked.
func (m *Categorizer) Calls() int {
	return int(m.calls.Load())
}

var _ categorize.Categorizer = (*Categorizer)(nil)
