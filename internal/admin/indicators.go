package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

type IndicatorInput struct {
	Name              string `json:"name" validate:"required,max=200"`
	Description       string `json:"description,omitempty"`
	NormalizationType string `json:"normalization_type,omitempty"`
	DimensionID       int64  `json:"dimension_id" validate:"required,gt=0"`
	Year              int    `json:"year" validate:"required,min=1900,max=2200"`
	Weight            int    `json:"weight" validate:"min=0,max=100"`
}

// IndicatorView is an indicator with all of its yearly weights.
type IndicatorView struct {
	*store.Indicator
	Weights []*store.IndicatorWeight `json:"weights"`
}

func (s *Service) indicator(ctx context.Context, id int64) (*store.Indicator, error) {
	ind, err := s.store.GetIndicator(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get indicator: %w", err)
	}
	if ind == nil {
		return nil, apperr.NotFound("indicator %d not found", id)
	}
	return ind, nil
}

func (s *Service) indicatorView(ctx context.Context, ind *store.Indicator) (*IndicatorView, error) {
	ws, err := s.store.ListIndicatorWeightsByIndicator(ctx, ind.ID)
	if err != nil {
		return nil, fmt.Errorf("list indicator weights: %w", err)
	}
	return &IndicatorView{Indicator: ind, Weights: ws}, nil
}

// parentWeight returns the dimension weight an indicator weight for year
// hangs off. Indicators can only be weighted in years their dimension is.
func (s *Service) parentWeight(ctx context.Context, dimensionID int64, year int) (*store.DimensionWeight, error) {
	dw, err := s.store.GetDimensionWeight(ctx, dimensionID, year)
	if err != nil {
		return nil, fmt.Errorf("get dimension weight: %w", err)
	}
	if dw == nil {
		return nil, apperr.BadRequest("dimension %d has no weight for %d", dimensionID, year)
	}
	return dw, nil
}

func (s *Service) GetIndicator(ctx context.Context, id int64) (*IndicatorView, error) {
	ind, err := s.indicator(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.indicatorView(ctx, ind)
}

func (s *Service) ListIndicators(ctx context.Context, dimensionID *int64) ([]*IndicatorView, error) {
	inds, err := s.store.ListIndicators(ctx, store.IndicatorFilter{DimensionID: dimensionID})
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	out := make([]*IndicatorView, 0, len(inds))
	for _, ind := range inds {
		v, err := s.indicatorView(ctx, ind)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateIndicator adds an indicator weighted for in.Year. An indicator with
// the same name in the same dimension is reused and gains a weight for the
// new year instead.
func (s *Service) CreateIndicator(ctx context.Context, in IndicatorInput, force bool) (*IndicatorView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.BadRequest("indicator name is required")
	}
	if _, err := s.dimension(ctx, in.DimensionID); err != nil {
		return nil, err
	}
	dw, err := s.parentWeight(ctx, in.DimensionID, in.Year)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ctx, "create indicator", force, in.Year); err != nil {
		return nil, err
	}

	ind, err := s.store.FindIndicatorByName(ctx, in.DimensionID, name)
	if err != nil {
		return nil, fmt.Errorf("find indicator: %w", err)
	}
	if ind != nil {
		existing, err := s.store.GetIndicatorWeight(ctx, ind.ID, in.Year)
		if err != nil {
			return nil, fmt.Errorf("get indicator weight: %w", err)
		}
		if existing != nil {
			return nil, apperr.BadRequest("indicator %q already has a weight for %d", name, in.Year)
		}
	}
	shared := ind != nil
	if ind == nil {
		ind = &store.Indicator{
			Name:              name,
			Description:       in.Description,
			NormalizationType: in.NormalizationType,
			DimensionID:       in.DimensionID,
		}
		if ind.NormalizationType == "" {
			ind.NormalizationType = store.DefaultNormalizationType
		}
	}
	err = s.normalizer.SetWeight(ctx, weights.IndicatorScope(in.DimensionID, in.Year), in.Weight, 0, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Store) error {
			if !shared {
				if err := tx.CreateIndicator(ctx, ind); err != nil {
					return fmt.Errorf("create indicator: %w", err)
				}
			}
			iw := &store.IndicatorWeight{IndicatorID: ind.ID, DimensionWeightID: dw.ID, Year: in.Year, Weight: in.Weight}
			if err := tx.SaveIndicatorWeight(ctx, iw); err != nil {
				return fmt.Errorf("save indicator weight: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Info("indicator shared with new year", "indicator_id", ind.ID, "year", in.Year)
	} else {
		s.logger.Info("indicator created", "indicator_id", ind.ID, "dimension_id", in.DimensionID)
	}
	return s.indicatorView(ctx, ind)
}

// UpdateIndicator edits an indicator and upserts its weight for in.Year.
// Indicators stay in the dimension they were created in.
func (s *Service) UpdateIndicator(ctx context.Context, id int64, in IndicatorInput, force bool) (*IndicatorView, error) {
	ind, err := s.indicator(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.DimensionID != 0 && in.DimensionID != ind.DimensionID {
		return nil, apperr.BadRequest("indicator %d cannot move to dimension %d", id, in.DimensionID)
	}

	current, err := s.store.GetIndicatorWeight(ctx, id, in.Year)
	if err != nil {
		return nil, fmt.Errorf("get indicator weight: %w", err)
	}
	var dw *store.DimensionWeight
	if current == nil || current.Weight != in.Weight {
		if dw, err = s.parentWeight(ctx, ind.DimensionID, in.Year); err != nil {
			return nil, err
		}
		if err := s.guard.Allow(ctx, "update indicator", force, in.Year); err != nil {
			return nil, err
		}
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		ind.Name = name
	}
	ind.Description = in.Description
	if in.NormalizationType != "" {
		ind.NormalizationType = in.NormalizationType
	}
	write := func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Store) error {
			if err := tx.UpdateIndicator(ctx, ind); err != nil {
				return fmt.Errorf("update indicator: %w", err)
			}
			if dw == nil {
				return nil
			}
			iw := &store.IndicatorWeight{IndicatorID: id, DimensionWeightID: dw.ID, Year: in.Year, Weight: in.Weight}
			if err := tx.SaveIndicatorWeight(ctx, iw); err != nil {
				return fmt.Errorf("save indicator weight: %w", err)
			}
			return nil
		})
	}
	if dw != nil {
		err = s.normalizer.SetWeight(ctx, weights.IndicatorScope(ind.DimensionID, in.Year), in.Weight, id, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s.indicatorView(ctx, ind)
}

// SetIndicatorWeight adds or updates an indicator's weight for year.
func (s *Service) SetIndicatorWeight(ctx context.Context, indicatorID int64, year, weight int, force bool) (*store.IndicatorWeight, error) {
	ind, err := s.indicator(ctx, indicatorID)
	if err != nil {
		return nil, err
	}
	dw, err := s.parentWeight(ctx, ind.DimensionID, year)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ctx, "set indicator weight", force, year); err != nil {
		return nil, err
	}
	iw := &store.IndicatorWeight{IndicatorID: indicatorID, DimensionWeightID: dw.ID, Year: year, Weight: weight}
	err = s.normalizer.SetWeight(ctx, weights.IndicatorScope(ind.DimensionID, year), weight, indicatorID, func(ctx context.Context) error {
		if err := s.store.SaveIndicatorWeight(ctx, iw); err != nil {
			return fmt.Errorf("save indicator weight: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return iw, nil
}

func (s *Service) DeleteIndicator(ctx context.Context, id int64, force bool) error {
	return s.BulkDeleteIndicators(ctx, []int64{id}, force)
}

// BulkDeleteIndicators deletes the listed indicators with their weights and
// scores, after checking all of them.
func (s *Service) BulkDeleteIndicators(ctx context.Context, ids []int64, force bool) error {
	if len(ids) == 0 {
		return apperr.BadRequest("no indicator ids given")
	}
	var years []int
	for _, id := range ids {
		if _, err := s.indicator(ctx, id); err != nil {
			return err
		}
		ws, err := s.store.ListIndicatorWeightsByIndicator(ctx, id)
		if err != nil {
			return fmt.Errorf("list indicator weights: %w", err)
		}
		for _, w := range ws {
			years = append(years, w.Year)
		}
	}
	if err := s.guard.Allow(ctx, "delete indicator", force, years...); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.store.DeleteIndicator(ctx, id); err != nil {
			return fmt.Errorf("delete indicator %d: %w", id, err)
		}
		s.logger.Info("indicator deleted", "indicator_id", id, "forced", force)
	}
	return nil
}

// IndicatorYears lists the years that carry indicator weights, or every
// year from Options.DefaultYearsFrom to the current one when none do.
func (s *Service) IndicatorYears(ctx context.Context) ([]int, error) {
	years, err := s.store.ListIndicatorWeightYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indicator years: %w", err)
	}
	if len(years) > 0 {
		return years, nil
	}
	for y := s.opts.DefaultYearsFrom; y <= s.now().Year(); y++ {
		years = append(years, y)
	}
	return years, nil
}
