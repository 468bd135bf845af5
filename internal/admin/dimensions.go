package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

type DimensionInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Description  string `json:"description,omitempty"`
	Year         int    `json:"year" validate:"required,min=1900,max=2200"`
	DisplayOrder *int   `json:"display_order,omitempty"`
	Weight       int    `json:"weight" validate:"min=0,max=100"`
}

// DimensionView is a dimension with its weight for the dimension's own year.
type DimensionView struct {
	*store.Dimension
	Weight *int `json:"weight"`
}

func (s *Service) dimension(ctx context.Context, id int64) (*store.Dimension, error) {
	d, err := s.store.GetDimension(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get dimension: %w", err)
	}
	if d == nil {
		return nil, apperr.NotFound("dimension %d not found", id)
	}
	return d, nil
}

func (s *Service) dimensionView(ctx context.Context, d *store.Dimension) (*DimensionView, error) {
	dw, err := s.store.GetDimensionWeight(ctx, d.ID, d.Year)
	if err != nil {
		return nil, fmt.Errorf("get dimension weight: %w", err)
	}
	v := &DimensionView{Dimension: d}
	if dw != nil {
		w := dw.Weight
		v.Weight = &w
	}
	return v, nil
}

// dimensionYears lists every year the dimension carries weight in, plus its
// own year.
func (s *Service) dimensionYears(ctx context.Context, d *store.Dimension) ([]int, error) {
	dws, err := s.store.ListDimensionWeightsByDimension(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}
	years := []int{d.Year}
	for _, dw := range dws {
		years = append(years, dw.Year)
	}
	return years, nil
}

func (s *Service) GetDimension(ctx context.Context, id int64) (*DimensionView, error) {
	d, err := s.dimension(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.dimensionView(ctx, d)
}

func (s *Service) ListDimensions(ctx context.Context, year *int) ([]*DimensionView, error) {
	ds, err := s.store.ListDimensions(ctx, store.DimensionFilter{Year: year})
	if err != nil {
		return nil, fmt.Errorf("list dimensions: %w", err)
	}
	out := make([]*DimensionView, 0, len(ds))
	for _, d := range ds {
		v, err := s.dimensionView(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateDimension creates a dimension and its weight for in.Year.
func (s *Service) CreateDimension(ctx context.Context, in DimensionInput, force bool) (*DimensionView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.BadRequest("dimension name is required")
	}
	if err := s.guard.Allow(ctx, "create dimension", force, in.Year); err != nil {
		return nil, err
	}

	existing, err := s.store.GetDimensionByNameAndYear(ctx, name, in.Year)
	if err != nil {
		return nil, fmt.Errorf("find dimension: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("a dimension named %q already exists for %d", name, in.Year)
	}
	d := &store.Dimension{Name: name, Description: in.Description, Year: in.Year, DisplayOrder: in.DisplayOrder}
	dw := &store.DimensionWeight{Year: in.Year, Weight: in.Weight}
	err = s.normalizer.SetWeight(ctx, weights.DimensionScope(in.Year), in.Weight, 0, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Store) error {
			if err := tx.CreateDimension(ctx, d); err != nil {
				return duplicate(err, "create dimension", "a dimension named %q already exists for %d", name, in.Year)
			}
			dw.DimensionID = d.ID
			if err := tx.SaveDimensionWeight(ctx, dw); err != nil {
				return fmt.Errorf("save dimension weight: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("dimension created", "dimension_id", d.ID, "year", in.Year, "weight", in.Weight)
	w := dw.Weight
	return &DimensionView{Dimension: d, Weight: &w}, nil
}

// UpdateDimension edits a dimension and upserts its weight for in.Year. The
// ranking guard only applies when the year or the weight changes.
func (s *Service) UpdateDimension(ctx context.Context, id int64, in DimensionInput, force bool) (*DimensionView, error) {
	d, err := s.dimension(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = d.Name
	}

	current, err := s.store.GetDimensionWeight(ctx, id, in.Year)
	if err != nil {
		return nil, fmt.Errorf("get dimension weight: %w", err)
	}
	weightChanged := d.Year != in.Year || current == nil || current.Weight != in.Weight
	if weightChanged {
		years, err := s.dimensionYears(ctx, d)
		if err != nil {
			return nil, err
		}
		if err := s.guard.Allow(ctx, "update dimension", force, append(years, in.Year)...); err != nil {
			return nil, err
		}
	}

	other, err := s.store.GetDimensionByNameAndYear(ctx, name, in.Year)
	if err != nil {
		return nil, fmt.Errorf("find dimension: %w", err)
	}
	if other != nil && other.ID != id {
		return nil, apperr.Conflict("a dimension named %q already exists for %d", name, in.Year)
	}

	d.Name = name
	d.Description = in.Description
	d.Year = in.Year
	if in.DisplayOrder != nil {
		d.DisplayOrder = in.DisplayOrder
	}
	dw := &store.DimensionWeight{DimensionID: id, Year: in.Year, Weight: in.Weight}
	write := func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Store) error {
			if err := tx.UpdateDimension(ctx, d); err != nil {
				return duplicate(err, "update dimension", "a dimension named %q already exists for %d", name, in.Year)
			}
			if err := tx.SaveDimensionWeight(ctx, dw); err != nil {
				return fmt.Errorf("save dimension weight: %w", err)
			}
			return nil
		})
	}
	if weightChanged {
		err = s.normalizer.SetWeight(ctx, weights.DimensionScope(in.Year), in.Weight, id, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}
	w := dw.Weight
	return &DimensionView{Dimension: d, Weight: &w}, nil
}

// SetDimensionWeight adds or updates a dimension's weight for year.
func (s *Service) SetDimensionWeight(ctx context.Context, dimensionID int64, year, weight int, force bool) (*store.DimensionWeight, error) {
	if _, err := s.dimension(ctx, dimensionID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ctx, "set dimension weight", force, year); err != nil {
		return nil, err
	}
	dw := &store.DimensionWeight{DimensionID: dimensionID, Year: year, Weight: weight}
	err := s.normalizer.SetWeight(ctx, weights.DimensionScope(year), weight, dimensionID, func(ctx context.Context) error {
		if err := s.store.SaveDimensionWeight(ctx, dw); err != nil {
			return fmt.Errorf("save dimension weight: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dw, nil
}

func (s *Service) DeleteDimension(ctx context.Context, id int64, force bool) error {
	return s.BulkDeleteDimensions(ctx, []int64{id}, force)
}

// BulkDeleteDimensions deletes every listed dimension with its indicators,
// weights and dimension scores. Nothing is deleted unless every id exists
// and the guard allows all affected years.
func (s *Service) BulkDeleteDimensions(ctx context.Context, ids []int64, force bool) error {
	if len(ids) == 0 {
		return apperr.BadRequest("no dimension ids given")
	}
	var years []int
	for _, id := range ids {
		d, err := s.dimension(ctx, id)
		if err != nil {
			return err
		}
		ys, err := s.dimensionYears(ctx, d)
		if err != nil {
			return err
		}
		years = append(years, ys...)
	}
	if err := s.guard.Allow(ctx, "delete dimension", force, years...); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.store.DeleteDimension(ctx, id); err != nil {
			return fmt.Errorf("delete dimension %d: %w", id, err)
		}
		s.logger.Info("dimension deleted", "dimension_id", id, "forced", force)
	}
	return nil
}
