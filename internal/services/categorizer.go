package services

import (
	"context"
	"fmt"
	"sort"
)

// DefaultCategory is assigned when no keyword matches a description.
const DefaultCategory = "other"

// KeywordSource provides the keyword sets of every category.
type KeywordSource interface {
	CategoriesWithKeywords(ctx context.Context) (map[string][]string, error)
}

// Categorizer picks a category for a description by exact keyword match.
type Categorizer struct {
	source KeywordSource
}

func NewCategorizer(source KeywordSource) *Categorizer {
	return &Categorizer{source: source}
}

// Resolve matches description against the current keyword sets.
func (c *Categorizer) Resolve(ctx context.Context, description string) (string, error) {
	kw, err := c.Load(ctx)
	if err != nil {
		return "", err
	}
	return kw.Match(description), nil
}

// Load snapshots the current keyword sets for repeated matching.
func (c *Categorizer) Load(ctx context.Context) (Keywords, error) {
	cats, err := c.source.CategoriesWithKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load category keywords: %w", err)
	}
	return Keywords(cats), nil
}

// Keywords maps category names to their keywords.
type Keywords map[string][]string

// Match returns the first category, by name, owning a keyword equal to
// description, or DefaultCategory. Matching is case-sensitive on the whole
// string.
func (k Keywords) Match(description string) string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, kw := range k[name] {
			if kw == description {
				return name
			}
		}
	}
	return DefaultCategory
}
