package services

import (
	"context"
	"fmt"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// ResolveOrCreate returns the user's category with the given name, matched
// case-insensitively, creating it when absent. With systemHint an existing
// user category is promoted to system; a system category is never demoted.
// It runs on the caller's Queries so it joins the caller's transaction.
func ResolveOrCreate(ctx context.Context, q *storage.Queries, userID core.UserID, name string, systemHint bool, now time.Time) (core.Category, error) {
	name = core.NormalizeName(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}

	c, found, err := q.FindCategoryByName(ctx, userID, name)
	if err != nil {
		return core.Category{}, err
	}
	if !found {
		// Two callers may race here; the unique key keeps one row.
		if _, err := q.InsertCategoryIfAbsent(ctx, userID, name, systemHint, now); err != nil {
			return core.Category{}, err
		}
		c, found, err = q.FindCategoryByName(ctx, userID, name)
		if err != nil {
			return core.Category{}, err
		}
		if !found {
			return core.Category{}, fmt.Errorf("category %q missing after insert", name)
		}
	}

	if systemHint && !c.IsSystem {
		if _, err := q.PromoteCategory(ctx, c.ID); err != nil {
			return core.Category{}, err
		}
		c.IsSystem = true
	}
	return c, nil
}

// ensureDefaultCategories resolves every default category as a system
// category. A user category with a default's name is promoted.
func ensureDefaultCategories(ctx context.Context, q *storage.Queries, userID core.UserID, now time.Time) error {
	for _, name := range core.DefaultCategories {
		if _, err := ResolveOrCreate(ctx, q, userID, name, true, now); err != nil {
			return fmt.Errorf("ensure category %q: %w", name, err)
		}
	}
	return nil
}
