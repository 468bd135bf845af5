package admin

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/scoring"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

func (s *Service) GenerateRanking(ctx context.Context, year int) (*scoring.Ranking, error) {
	unlock, err := s.lockYear(ctx, year)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ranking *scoring.Ranking
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := s.clearOrphans(ctx, tx, year); err != nil {
			return err
		}
		var err error
		ranking, err = s.engine.WithStore(tx).GenerateRanking(ctx, year)
		return err
	})
	if err != nil {
		return nil, err
	}
	ev := hermes.RankingGeneratedEvent{Year: year, RunID: ranking.RunID, Ranked: len(ranking.Entries)}
	for _, sk := range ranking.Skipped {
		ev.Skipped = append(ev.Skipped, sk.CountryID)
	}
	s.emit(hermes.SubjectRankingGenerated(year), ev)
	return ranking, nil
}

// clearOrphans removes dimension scores left for an unranked year, which
// would otherwise make every country conflict.
func (s *Service) clearOrphans(ctx context.Context, tx store.Store, year int) error {
	n, err := tx.CountRanksByYear(ctx, year)
	if err != nil {
		return fmt.Errorf("count ranks: %w", err)
	}
	if n > 0 {
		return nil
	}
	del, err := tx.DeleteRankingByYear(ctx, year)
	if err != nil {
		return fmt.Errorf("delete orphan dimension scores: %w", err)
	}
	if del.DimensionScores > 0 {
		s.logger.Warn("orphan dimension scores removed", "year", year, "dimension_scores", del.DimensionScores)
	}
	return nil
}

// DeleteRankingByYear removes the year's ranks and dimension scores,
// including dimension scores left behind without any rank.
func (s *Service) DeleteRankingByYear(ctx context.Context, year int) (*store.RankingDeletion, error) {
	unlock, err := s.lockYear(ctx, year)
	if err != nil {
		return nil, err
	}
	defer unlock()

	del, err := s.store.DeleteRankingByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("delete ranking: %w", err)
	}
	if del.Ranks == 0 && del.DimensionScores == 0 {
		return nil, apperr.NotFound("no ranking for %d", year)
	}
	s.logger.Info("ranking deleted", "year", year, "ranks", del.Ranks, "dimension_scores", del.DimensionScores)
	s.emit(hermes.SubjectRankingDeleted(year), hermes.RankingDeletedEvent{Year: year, Ranks: del.Ranks, DimensionScores: del.DimensionScores})
	return del, nil
}

func (s *Service) YearRanking(ctx context.Context, year int) (*scoring.Ranking, error) {
	return s.engine.YearRanking(ctx, year)
}

func (s *Service) RankedYears(ctx context.Context) ([]int, error) {
	years, err := s.store.ListRankedYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ranked years: %w", err)
	}
	if years == nil {
		years = []int{}
	}
	return years, nil
}

func (s *Service) DimensionScoresByYear(ctx context.Context, year int) ([]*store.DimensionScore, error) {
	ds, err := s.store.ListDimensionScoresByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list dimension scores: %w", err)
	}
	return ds, nil
}

// Standings returns the top limit entries of year compared with the year
// before. A non-positive limit uses Options.StandingsLimit.
func (s *Service) Standings(ctx context.Context, year, limit int) ([]scoring.Standing, error) {
	if limit <= 0 {
		limit = s.opts.StandingsLimit
	}
	return s.engine.Standings(ctx, year, limit)
}
