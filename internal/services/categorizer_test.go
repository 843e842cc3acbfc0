package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKeywords struct{}

func (failingKeywords) CategoriesWithKeywords(context.Context) (map[string][]string, error) {
	return nil, errors.New("database is locked")
}

func TestCategorizerResolve(t *testing.T) {
	c := NewCategorizer(staticKeywords{
		"food":          {"Coffee", "Lunch"},
		"subscriptions": {"Netflix", "Coffee"},
		"empty":         {},
	})

	tests := []struct {
		description string
		want        string
	}{
		{"Coffee", "food"},
		{"Netflix", "subscriptions"},
		{"coffee", DefaultCategory},
		{"Coffee beans", DefaultCategory},
		{"", DefaultCategory},
		{"Rent", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			got, err := c.Resolve(context.Background(), tt.description)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorizerResolveError(t *testing.T) {
	_, err := NewCategorizer(failingKeywords{}).Resolve(context.Background(), "Coffee")
	assert.ErrorContains(t, err, "database is locked")
}

func TestCategorizerAgainstStorage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.AddCategory(ctx, "transport")
	require.NoError(t, err)
	_, err = repo.AddKeyword(ctx, id, "Train")
	require.NoError(t, err)

	c := NewCategorizer(repo)
	got, err := c.Resolve(ctx, "Train")
	require.NoError(t, err)
	assert.Equal(t, "transport", got)

	got, err = c.Resolve(ctx, "Bus")
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}
