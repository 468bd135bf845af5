// Package guard rejects catalog and weight mutations that would change the
// inputs of a ranking that has already been generated.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/metrics"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

type Guard struct {
	store  store.Store
	hermes hermes.Client
	logger *slog.Logger
}

func New(s store.Store, h hermes.Client, logger *slog.Logger) *Guard {
	return &Guard{store: s, hermes: h, logger: logger}
}

// RankedYears returns the subset of years that have at least one Rank,
// sorted and without duplicates.
func (g *Guard) RankedYears(ctx context.Context, years ...int) ([]int, error) {
	seen := make(map[int]bool, len(years))
	var ranked []int
	for _, y := range years {
		if seen[y] {
			continue
		}
		seen[y] = true
		n, err := g.store.CountRanksByYear(ctx, y)
		if err != nil {
			return nil, fmt.Errorf("count ranks for %d: %w", y, err)
		}
		if n > 0 {
			ranked = append(ranked, y)
		}
	}
	sort.Ints(ranked)
	return ranked, nil
}

// Check returns a ranking-exists conflict if any of years has a ranking.
func (g *Guard) Check(ctx context.Context, op string, years ...int) error {
	ranked, err := g.RankedYears(ctx, years...)
	if err != nil {
		return err
	}
	if len(ranked) > 0 {
		metrics.GuardBlocks.WithLabelValues(op).Inc()
		return apperr.RankingExists(op, ranked)
	}
	return nil
}

// Allow runs Check unless force is set. A forced mutation over existing
// rankings is logged and announced so consumers know the ranks may be stale.
func (g *Guard) Allow(ctx context.Context, op string, force bool, years ...int) error {
	if !force {
		return g.Check(ctx, op, years...)
	}

	ranked, err := g.RankedYears(ctx, years...)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		return nil
	}
	metrics.GuardForced.WithLabelValues(op).Inc()
	g.logger.Warn("forced mutation, existing rankings may be stale", "op", op, "years", ranked)
	for _, y := range ranked {
		hermes.Emit(g.hermes, g.logger, hermes.SubjectRankingInvalidated(y), hermes.RankingInvalidatedEvent{Year: y, Op: op})
	}
	return nil
}
