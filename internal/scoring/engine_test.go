package scoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture builds a year's model in a MemoryStore.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.MemoryStore
	year  int
}

func newFixture(t *testing.T, year int) *fixture {
	return &fixture{t: t, ctx: context.Background(), store: store.NewMemoryStore(), year: year}
}

func (f *fixture) country(name, code string) int64 {
	c := &store.Country{Name: name, Code: code}
	require.NoError(f.t, f.store.CreateCountry(f.ctx, c))
	return c.ID
}

// dimension creates a dimension with the given weight and one indicator per
// entry of indicatorWeights. It returns the dimension and indicator ids.
func (f *fixture) dimension(name string, weight int, indicatorWeights ...int) (int64, []int64) {
	d := &store.Dimension{Name: name, Year: f.year}
	require.NoError(f.t, f.store.CreateDimension(f.ctx, d))
	dw := &store.DimensionWeight{DimensionID: d.ID, Year: f.year, Weight: weight}
	require.NoError(f.t, f.store.SaveDimensionWeight(f.ctx, dw))

	ids := make([]int64, len(indicatorWeights))
	for i, w := range indicatorWeights {
		ind := &store.Indicator{Name: name + "-" + string(rune('A'+i)), DimensionID: d.ID}
		require.NoError(f.t, f.store.CreateIndicator(f.ctx, ind))
		require.NoError(f.t, f.store.SaveIndicatorWeight(f.ctx, &store.IndicatorWeight{
			IndicatorID: ind.ID, DimensionWeightID: dw.ID, Year: f.year, Weight: w,
		}))
		ids[i] = ind.ID
	}
	return d.ID, ids
}

func (f *fixture) score(countryID, indicatorID int64, v float64) {
	require.NoError(f.t, f.store.CreateScore(f.ctx, &store.Score{
		CountryID: countryID, IndicatorID: indicatorID, Year: f.year, Score: v,
	}))
}

func (f *fixture) engine(workers int) *Engine {
	return NewEngine(f.store, workers, discardLogger())
}

func TestGenerateRanking_EndToEnd(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	dimID, ind := f.dimension("D", 60, 70, 30)
	f.score(x, ind[0], 80)
	f.score(x, ind[1], 60)

	ranking, err := f.engine(1).GenerateRanking(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, x, ranking.Entries[0].CountryID)
	assert.Equal(t, "XL", ranking.Entries[0].CountryCode)
	assert.InDelta(t, 74.0, ranking.Entries[0].FinalScore, 1e-9)
	assert.Equal(t, 1, ranking.Entries[0].Rank)
	assert.NotEmpty(t, ranking.RunID)
	assert.Empty(t, ranking.Skipped)

	ds, err := f.store.GetDimensionScore(f.ctx, x, dimID, 2024)
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.InDelta(t, 74.0, ds.Score, 1e-9)
}

func TestCalculateDimensionScores_MissingScoreCountsAsZero(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	_, ind := f.dimension("D", 100, 50, 30, 20)
	f.score(x, ind[0], 80)
	f.score(x, ind[1], 60)

	scores, err := f.engine(1).CalculateDimensionScores(f.ctx, x, 2024)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	// (80*50 + 60*30 + 0*20) / 100
	assert.InDelta(t, 58.0, scores[0].Score, 1e-9)

	synthesized, err := f.store.GetScoreByKey(f.ctx, x, ind[2], 2024)
	require.NoError(t, err)
	require.NotNil(t, synthesized)
	assert.Zero(t, synthesized.Score)
}

func TestCalculateDimensionScores_ZeroWeightDimension(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	f.dimension("Empty", 100)

	scores, err := f.engine(1).CalculateDimensionScores(f.ctx, x, 2024)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Zero(t, scores[0].Score)
}

func TestCalculateFinalScore_SecondCallConflicts(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	_, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 50)

	e := f.engine(1)
	r, err := e.CalculateFinalScore(f.ctx, x, 2024)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, r.FinalScore, 1e-9)
	assert.Zero(t, r.Position)

	_, err = e.CalculateFinalScore(f.ctx, x, 2024)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCalculateDimensionScores_ExistingConflicts(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	dimID, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 50)
	require.NoError(t, f.store.CreateDimensionScore(f.ctx, &store.DimensionScore{CountryID: x, DimensionID: dimID, Year: 2024}))

	_, err := f.engine(1).CalculateDimensionScores(f.ctx, x, 2024)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCalculateFinalScore_WeightedAcrossDimensions(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	_, a := f.dimension("Infrastructure", 60, 100)
	_, b := f.dimension("Research", 40, 100)
	f.score(x, a[0], 90)
	f.score(x, b[0], 40)

	r, err := f.engine(1).CalculateFinalScore(f.ctx, x, 2024)
	require.NoError(t, err)
	// (90*60 + 40*40) / 100
	assert.InDelta(t, 70.0, r.FinalScore, 1e-9)
}

func TestGenerateRanking_Errors(t *testing.T) {
	t.Run("no eligible countries", func(t *testing.T) {
		f := newFixture(t, 2024)
		f.country("Xland", "XL")
		f.dimension("D", 100, 100)

		_, err := f.engine(1).GenerateRanking(f.ctx, 2024)
		assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	})

	t.Run("no dimension weights", func(t *testing.T) {
		f := newFixture(t, 2024)
		x := f.country("Xland", "XL")
		f.score(x, 99, 10)

		_, err := f.engine(1).GenerateRanking(f.ctx, 2024)
		assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	})

	t.Run("ranking exists", func(t *testing.T) {
		f := newFixture(t, 2024)
		x := f.country("Xland", "XL")
		_, ind := f.dimension("D", 100, 100)
		f.score(x, ind[0], 10)

		e := f.engine(1)
		_, err := e.GenerateRanking(f.ctx, 2024)
		require.NoError(t, err)
		_, err = e.GenerateRanking(f.ctx, 2024)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})
}

func TestGenerateRanking_ExcludesCountriesWithoutScores(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	f.country("Yland", "YL")
	_, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 10)

	ranking, err := f.engine(1).GenerateRanking(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, x, ranking.Entries[0].CountryID)
}

func TestGenerateRanking_SkipsFailingCountry(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	y := f.country("Yland", "YL")
	dimID, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 10)
	f.score(y, ind[0], 20)
	// A leftover dimension score makes y's computation conflict.
	require.NoError(t, f.store.CreateDimensionScore(f.ctx, &store.DimensionScore{CountryID: y, DimensionID: dimID, Year: 2024}))

	ranking, err := f.engine(1).GenerateRanking(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, x, ranking.Entries[0].CountryID)
	require.Len(t, ranking.Skipped, 1)
	assert.Equal(t, y, ranking.Skipped[0].CountryID)
	assert.NotEmpty(t, ranking.Skipped[0].Reason)
}

func TestGenerateRanking_ParallelWorkersMatchSequential(t *testing.T) {
	build := func() *fixture {
		f := newFixture(t, 2024)
		_, ind := f.dimension("D", 100, 60, 40)
		for i, v := range []float64{90, 85, 85, 80, 70, 55} {
			c := f.country("Country"+string(rune('A'+i)), "C"+string(rune('A'+i)))
			f.score(c, ind[0], v)
			f.score(c, ind[1], v)
		}
		return f
	}

	seq := build()
	want, err := seq.engine(1).GenerateRanking(seq.ctx, 2024)
	require.NoError(t, err)

	par := build()
	got, err := par.engine(4).GenerateRanking(par.ctx, 2024)
	require.NoError(t, err)

	require.Len(t, got.Entries, len(want.Entries))
	for i := range want.Entries {
		assert.Equal(t, want.Entries[i].CountryID, got.Entries[i].CountryID)
		assert.Equal(t, want.Entries[i].Rank, got.Entries[i].Rank)
	}
	ranks := make([]int, len(got.Entries))
	for i, e := range got.Entries {
		ranks[i] = e.Rank
	}
	assert.Equal(t, []int{1, 2, 2, 4, 5, 6}, ranks)
}

func TestGenerateFinalScores_CancelledContext(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	_, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine(1).GenerateFinalScores(ctx, 2024)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestYearRanking(t *testing.T) {
	f := newFixture(t, 2024)
	e := f.engine(1)

	_, err := e.YearRanking(f.ctx, 2024)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	x := f.country("Xland", "XL")
	_, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 10)
	_, err = e.GenerateRanking(f.ctx, 2024)
	require.NoError(t, err)

	got, err := e.YearRanking(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "Xland", got.Entries[0].CountryName)
	assert.Empty(t, got.RunID)
}

// faultyStore fails selected calls. The fault state is shared with the
// transaction-bound stores it hands out.
type faultyStore struct {
	store.Store
	f *faults
}

type faults struct {
	mu sync.Mutex
	// indicatorWeightsFor fails ListIndicatorWeightsByDimension for this
	// dimension while remaining > 0.
	indicatorWeightsFor int64
	remaining           int
	// rankFor fails CreateRank for this country.
	rankFor int64
	// scoredCalls counts ListScoredCountries; calls after the first see
	// no countries when emptyAfterFirst is set.
	scoredCalls     int
	emptyAfterFirst bool
}

func (s *faultyStore) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.InTx(ctx, func(tx store.Store) error {
		return fn(&faultyStore{Store: tx, f: s.f})
	})
}

func (s *faultyStore) ListIndicatorWeightsByDimension(ctx context.Context, dimensionID int64, year int) ([]*store.IndicatorWeight, error) {
	s.f.mu.Lock()
	fail := dimensionID == s.f.indicatorWeightsFor && s.f.remaining > 0
	if fail {
		s.f.remaining--
	}
	s.f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListIndicatorWeightsByDimension(ctx, dimensionID, year)
}

func (s *faultyStore) CreateRank(ctx context.Context, r *store.Rank) error {
	if r.CountryID == s.f.rankFor {
		return errors.New("connection reset")
	}
	return s.Store.CreateRank(ctx, r)
}

func (s *faultyStore) ListScoredCountries(ctx context.Context, year int) ([]int64, error) {
	s.f.mu.Lock()
	s.f.scoredCalls++
	empty := s.f.emptyAfterFirst && s.f.scoredCalls > 1
	s.f.mu.Unlock()
	if empty {
		return nil, nil
	}
	return s.Store.ListScoredCountries(ctx, year)
}

func TestGenerateRanking_FailedRunWritesNothing(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	_, a := f.dimension("A", 50, 100)
	dimB, b := f.dimension("B", 50, 60, 40)
	f.score(x, a[0], 80)
	f.score(x, b[0], 70)

	faulty := &faultyStore{Store: f.store, f: &faults{indicatorWeightsFor: dimB, remaining: 1}}
	e := NewEngine(faulty, 1, discardLogger())

	_, err := e.GenerateRanking(f.ctx, 2024)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	dss, err := f.store.ListDimensionScoresByYear(f.ctx, 2024)
	require.NoError(t, err)
	assert.Empty(t, dss)
	zero, err := f.store.GetScoreByKey(f.ctx, x, b[1], 2024)
	require.NoError(t, err)
	assert.Nil(t, zero)

	// The year is not blocked once the fault clears.
	ranking, err := e.GenerateRanking(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	// A = 80, B = (70*60 + 0*40) / 100 = 42
	assert.InDelta(t, 61.0, ranking.Entries[0].FinalScore, 1e-9)
	assert.Equal(t, 1, ranking.Entries[0].Rank)
}

func TestGenerateRanking_SkippedCountryLeavesNoRows(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	y := f.country("Yland", "YL")
	_, ind := f.dimension("D", 100, 50, 50)
	f.score(x, ind[0], 10)
	f.score(y, ind[0], 20)

	faulty := &faultyStore{Store: f.store, f: &faults{rankFor: y}}
	ranking, err := NewEngine(faulty, 2, discardLogger()).GenerateRanking(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	require.Len(t, ranking.Skipped, 1)
	assert.Equal(t, y, ranking.Skipped[0].CountryID)

	dss, err := f.store.ListDimensionScoresByYear(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, dss, 1)
	assert.Equal(t, x, dss[0].CountryID)
	zero, err := f.store.GetScoreByKey(f.ctx, y, ind[1], 2024)
	require.NoError(t, err)
	assert.Nil(t, zero)
	kept, err := f.store.GetScoreByKey(f.ctx, x, ind[1], 2024)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestGenerateRanking_CountriesVanishDuringRun(t *testing.T) {
	f := newFixture(t, 2024)
	x := f.country("Xland", "XL")
	_, ind := f.dimension("D", 100, 100)
	f.score(x, ind[0], 10)

	faulty := &faultyStore{Store: f.store, f: &faults{emptyAfterFirst: true}}
	_, err := NewEngine(faulty, 1, discardLogger()).GenerateRanking(f.ctx, 2024)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}
