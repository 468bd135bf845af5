package admin

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

func (s *Service) publishRewrite(res *weights.Result) {
	if !res.Changed {
		return
	}
	s.emit(hermes.SubjectWeightsNormalized, hermes.WeightsNormalizedEvent{
		Scope:  res.Scope.Key(),
		Before: res.Before,
		After:  res.After,
	})
}

func (s *Service) NormalizeWeights(ctx context.Context, scope weights.Scope, force bool) (*weights.Result, error) {
	if err := s.guard.Allow(ctx, "normalize weights", force, scope.Year); err != nil {
		return nil, err
	}
	res, err := s.normalizer.Normalize(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.publishRewrite(res)
	return res, nil
}

// NormalizeAllWeights normalizes every weighted scope. The guard covers
// every year that carries weights.
func (s *Service) NormalizeAllWeights(ctx context.Context, force bool) ([]*weights.Result, error) {
	years, err := s.store.ListDimensionWeightYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dimension weight years: %w", err)
	}
	indicatorYears, err := s.store.ListIndicatorWeightYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indicator weight years: %w", err)
	}
	if err := s.guard.Allow(ctx, "normalize all weights", force, append(years, indicatorYears...)...); err != nil {
		return nil, err
	}

	results, err := s.normalizer.NormalizeAll(ctx)
	for _, res := range results {
		s.publishRewrite(res)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DistributeWeights replaces the scope's weights with equal shares.
func (s *Service) DistributeWeights(ctx context.Context, scope weights.Scope, force bool) (*weights.Result, error) {
	if err := s.guard.Allow(ctx, "distribute weights", force, scope.Year); err != nil {
		return nil, err
	}
	res, err := s.normalizer.Distribute(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.publishRewrite(res)
	return res, nil
}

func (s *Service) WeightTotal(ctx context.Context, scope weights.Scope) (*weights.Total, error) {
	return s.normalizer.Total(ctx, scope)
}

func (s *Service) ValidateYear(ctx context.Context, year int) (*weights.YearReport, error) {
	return s.normalizer.ValidateYear(ctx, year)
}
