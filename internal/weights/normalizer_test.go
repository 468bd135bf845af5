package weights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenStore fails weight listings so the fail-open path can be exercised.
type brokenStore struct {
	store.Store
}

func (brokenStore) ListDimensionWeightsByYear(context.Context, int) ([]*store.DimensionWeight, error) {
	return nil, errors.New("connection reset")
}

func (brokenStore) ListIndicatorWeightsByDimension(context.Context, int64, int) ([]*store.IndicatorWeight, error) {
	return nil, errors.New("connection reset")
}

type seeded struct {
	ctx   context.Context
	store *store.MemoryStore
	norm  *Normalizer
}

func newSeeded() *seeded {
	s := store.NewMemoryStore()
	return &seeded{
		ctx:   context.Background(),
		store: s,
		norm:  NewNormalizer(s, NewMutexLocker(), Options{}, discardLogger()),
	}
}

func (s *seeded) dimension(t *testing.T, name string, year, weight int) *store.DimensionWeight {
	t.Helper()
	d := &store.Dimension{Name: name, Year: year}
	require.NoError(t, s.store.CreateDimension(s.ctx, d))
	dw := &store.DimensionWeight{DimensionID: d.ID, Year: year, Weight: weight}
	require.NoError(t, s.store.SaveDimensionWeight(s.ctx, dw))
	return dw
}

func (s *seeded) indicator(t *testing.T, dw *store.DimensionWeight, name string, weight int) int64 {
	t.Helper()
	ind := &store.Indicator{Name: name, DimensionID: dw.DimensionID}
	require.NoError(t, s.store.CreateIndicator(s.ctx, ind))
	require.NoError(t, s.store.SaveIndicatorWeight(s.ctx, &store.IndicatorWeight{
		IndicatorID: ind.ID, DimensionWeightID: dw.ID, Year: dw.Year, Weight: weight,
	}))
	return ind.ID
}

func (s *seeded) indicatorWeights(t *testing.T, dimensionID int64, year int) []int {
	t.Helper()
	ws, err := s.store.ListIndicatorWeightsByDimension(s.ctx, dimensionID, year)
	require.NoError(t, err)
	out := make([]int, len(ws))
	for i, w := range ws {
		out[i] = w.Weight
	}
	return out
}

func TestValidateLimit(t *testing.T) {
	s := newSeeded()
	dw := s.dimension(t, "Research", 2024, 100)
	a := s.indicator(t, dw, "A", 50)
	s.indicator(t, dw, "B", 30)
	scope := IndicatorScope(dw.DimensionID, 2024)

	t.Run("over limit rejected", func(t *testing.T) {
		err := s.norm.ValidateLimit(s.ctx, scope, 25, 0)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindBadRequest))
		assert.Contains(t, err.Error(), "current total is 80%")
		assert.Contains(t, err.Error(), "20% remaining")
	})

	t.Run("exactly at limit accepted", func(t *testing.T) {
		assert.NoError(t, s.norm.ValidateLimit(s.ctx, scope, 20, 0))
	})

	t.Run("updated member excluded", func(t *testing.T) {
		assert.NoError(t, s.norm.ValidateLimit(s.ctx, scope, 70, a))
		assert.Error(t, s.norm.ValidateLimit(s.ctx, scope, 71, a))
	})

	t.Run("out of range", func(t *testing.T) {
		assert.True(t, apperr.Is(s.norm.ValidateLimit(s.ctx, scope, -1, 0), apperr.KindBadRequest))
		assert.True(t, apperr.Is(s.norm.ValidateLimit(s.ctx, scope, 101, 0), apperr.KindBadRequest))
	})

	t.Run("dimension scope", func(t *testing.T) {
		assert.Error(t, s.norm.ValidateLimit(s.ctx, DimensionScope(2024), 1, 0))
		assert.NoError(t, s.norm.ValidateLimit(s.ctx, DimensionScope(2024), 40, dw.DimensionID))
		assert.NoError(t, s.norm.ValidateLimit(s.ctx, DimensionScope(2025), 100, 0))
	})
}

func TestValidateLimit_InternalError(t *testing.T) {
	scope := DimensionScope(2024)

	t.Run("fail open by default", func(t *testing.T) {
		n := NewNormalizer(brokenStore{}, nil, Options{}, discardLogger())
		assert.NoError(t, n.ValidateLimit(context.Background(), scope, 90, 0))
	})

	t.Run("strict mode", func(t *testing.T) {
		n := NewNormalizer(brokenStore{}, nil, Options{StrictLimit: true}, discardLogger())
		err := n.ValidateLimit(context.Background(), scope, 90, 0)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})

	t.Run("range checks still apply", func(t *testing.T) {
		n := NewNormalizer(brokenStore{}, nil, Options{}, discardLogger())
		assert.Error(t, n.ValidateLimit(context.Background(), scope, 150, 0))
	})
}

func TestNormalize(t *testing.T) {
	s := newSeeded()
	dw := s.dimension(t, "Research", 2024, 100)
	s.indicator(t, dw, "A", 10)
	s.indicator(t, dw, "B", 10)
	s.indicator(t, dw, "C", 10)
	scope := IndicatorScope(dw.DimensionID, 2024)

	res, err := s.norm.Normalize(s.ctx, scope)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []int{10, 10, 10}, res.Before)
	assert.Equal(t, []int{34, 33, 33}, res.After)
	assert.Equal(t, []int{34, 33, 33}, s.indicatorWeights(t, dw.DimensionID, 2024))

	again, err := s.norm.Normalize(s.ctx, scope)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, []int{34, 33, 33}, again.After)
}

func TestNormalize_EmptyAndZeroScopesAreNoOps(t *testing.T) {
	s := newSeeded()

	res, err := s.norm.Normalize(s.ctx, DimensionScope(2030))
	require.NoError(t, err)
	assert.False(t, res.Changed)

	dw := s.dimension(t, "Zero", 2024, 0)
	s.indicator(t, dw, "A", 0)
	res, err = s.norm.Normalize(s.ctx, IndicatorScope(dw.DimensionID, 2024))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []int{0}, s.indicatorWeights(t, dw.DimensionID, 2024))
}

func TestNormalizeAll(t *testing.T) {
	s := newSeeded()
	a := s.dimension(t, "A", 2024, 30)
	b := s.dimension(t, "B", 2024, 30)
	s.indicator(t, a, "A1", 20)
	s.indicator(t, a, "A2", 20)
	s.indicator(t, b, "B1", 40)
	c := s.dimension(t, "C", 2023, 100)
	s.indicator(t, c, "C1", 100)

	results, err := s.norm.NormalizeAll(s.ctx)
	require.NoError(t, err)
	// two dimension scopes and three indicator scopes
	assert.Len(t, results, 5)

	dws, err := s.store.ListDimensionWeightsByYear(s.ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 50, dws[0].Weight)
	assert.Equal(t, 50, dws[1].Weight)
	assert.Equal(t, []int{50, 50}, s.indicatorWeights(t, a.DimensionID, 2024))
	assert.Equal(t, []int{100}, s.indicatorWeights(t, b.DimensionID, 2024))
}

func TestDistribute(t *testing.T) {
	s := newSeeded()
	dw := s.dimension(t, "Research", 2024, 100)
	s.indicator(t, dw, "A", 80)
	s.indicator(t, dw, "B", 15)
	s.indicator(t, dw, "C", 5)

	res, err := s.norm.Distribute(s.ctx, IndicatorScope(dw.DimensionID, 2024))
	require.NoError(t, err)
	assert.Equal(t, []int{34, 33, 33}, res.After)
	assert.Equal(t, []int{34, 33, 33}, s.indicatorWeights(t, dw.DimensionID, 2024))

	_, err = s.norm.Distribute(s.ctx, IndicatorScope(dw.DimensionID, 1999))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestTotal(t *testing.T) {
	s := newSeeded()
	s.dimension(t, "A", 2024, 45)
	s.dimension(t, "B", 2024, 35)

	total, err := s.norm.Total(s.ctx, DimensionScope(2024))
	require.NoError(t, err)
	assert.Equal(t, 80, total.CurrentTotal)
	assert.Equal(t, 20, total.Remaining)

	empty, err := s.norm.Total(s.ctx, DimensionScope(2020))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.CurrentTotal)
	assert.Equal(t, 100, empty.Remaining)
}

func TestValidateYear(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s := newSeeded()
		a := s.dimension(t, "A", 2024, 60)
		b := s.dimension(t, "B", 2024, 41)
		s.indicator(t, a, "A1", 100)
		s.indicator(t, b, "B1", 50)
		s.indicator(t, b, "B2", 49)

		rep, err := s.norm.ValidateYear(s.ctx, 2024)
		require.NoError(t, err)
		assert.True(t, rep.CanGenerateRanking, rep.Message)
		assert.Equal(t, 101, rep.DimensionWeightSum)
		assert.Zero(t, rep.ScoreCount)
		assert.Contains(t, rep.Message, "no scores")
	})

	t.Run("missing pieces", func(t *testing.T) {
		s := newSeeded()
		a := s.dimension(t, "A", 2024, 50)
		s.dimension(t, "B", 2024, 20)
		s.indicator(t, a, "A1", 90)
		require.NoError(t, s.store.CreateDimension(s.ctx, &store.Dimension{Name: "Unweighted", Year: 2024}))

		rep, err := s.norm.ValidateYear(s.ctx, 2024)
		require.NoError(t, err)
		assert.False(t, rep.CanGenerateRanking)
		require.Len(t, rep.Dimensions, 3)
		assert.Equal(t, "indicator weights sum to 90%", rep.Dimensions[0].Error)
		assert.Equal(t, "no indicators", rep.Dimensions[1].Error)
		assert.Equal(t, "dimension weight missing", rep.Dimensions[2].Error)
		assert.Contains(t, rep.Message, "dimension weights sum to 70%")
	})

	t.Run("dimension weighted from another year", func(t *testing.T) {
		s := newSeeded()
		d := &store.Dimension{Name: "Moved", Year: 2023}
		require.NoError(t, s.store.CreateDimension(s.ctx, d))
		dw := &store.DimensionWeight{DimensionID: d.ID, Year: 2024, Weight: 100}
		require.NoError(t, s.store.SaveDimensionWeight(s.ctx, dw))
		s.indicator(t, dw, "M1", 100)

		rep, err := s.norm.ValidateYear(s.ctx, 2024)
		require.NoError(t, err)
		assert.True(t, rep.CanGenerateRanking, rep.Message)
		require.Len(t, rep.Dimensions, 1)
		assert.Equal(t, "Moved", rep.Dimensions[0].DimensionName)
		assert.Equal(t, 100, rep.DimensionWeightSum)
	})

	t.Run("no dimensions", func(t *testing.T) {
		s := newSeeded()
		rep, err := s.norm.ValidateYear(s.ctx, 2024)
		require.NoError(t, err)
		assert.False(t, rep.CanGenerateRanking)
	})
}
