package gamesync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

// DemoCatalog is published by SeedDemoCatalog.
var DemoCatalog = []brainy.Challenge{
	{
		ID:          "demo-commute",
		Title:       "Better commutes",
		Description: "Most of us lose an hour a day getting to school or work.",
		Category:    brainy.CategoryChallenge,
		HowMightWe:  "How might we make the daily commute something to look forward to?",
	},
	{
		ID:          "demo-lunch",
		Title:       "Lunch together",
		Description: "Many students eat lunch alone.",
		Category:    brainy.CategoryChallenge,
		HowMightWe:  "How might we help students who eat alone find company?",
	},
	{
		ID:          "demo-sketching",
		Title:       "Sketching ideas",
		Description: "A two minute primer on turning an idea into a sketch.",
		Category:    brainy.CategoryLesson,
	},
}

// SeedDemoCatalog publishes DemoCatalog when neither the challenge nor the
// lesson folder holds anything. It does nothing otherwise.
func SeedDemoCatalog(ctx context.Context, f feed.Feed, logger *slog.Logger) error {
	for _, folder := range []string{ChallengesFolder, LessonsFolder} {
		_, ok, err := f.ReadOnce(ctx, folder)
		if err != nil {
			return fmt.Errorf("reading %s: %w", folder, err)
		}
		if ok {
			return nil
		}
	}

	for _, ch := range DemoCatalog {
		if _, err := PublishChallenge(ctx, f, ch); err != nil {
			return err
		}
	}
	logger.Info("demo catalog seeded", "challenges", len(DemoCatalog))
	return nil
}
