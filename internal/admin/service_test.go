package admin

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/files"
	"github.com/MikeSquared-Agency/Ranking/internal/guard"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/scoring"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

type mockHermes struct {
	mock.Mock
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	return m.Called(subject, data).Error(0)
}

func (m *mockHermes) Close() { m.Called() }

// published returns the subjects passed to Publish, in order.
func (m *mockHermes) published() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "Publish" {
			out = append(out, c.Arguments.String(0))
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	t      *testing.T
	ctx    context.Context
	store  *store.MemoryStore
	hermes *mockHermes
	svc    *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := store.NewMemoryStore()
	h := new(mockHermes)
	h.On("Publish", mock.Anything, mock.Anything).Return(nil)
	logger := discardLogger()
	svc := New(s,
		weights.NewNormalizer(s, nil, weights.Options{}, logger),
		scoring.NewEngine(s, 1, logger),
		guard.New(s, h, logger),
		h,
		Options{DefaultYearsFrom: 2022, Files: files.NewLocal(t.TempDir()), MaxUploadBytes: 1 << 10},
		logger,
	)
	return &env{t: t, ctx: context.Background(), store: s, hermes: h, svc: svc}
}

func (e *env) country(name, code string) *store.Country {
	c, err := e.svc.CreateCountry(e.ctx, CountryInput{Name: name, Code: code})
	require.NoError(e.t, err)
	return c
}

func (e *env) dimension(name string, year, weight int) *DimensionView {
	d, err := e.svc.CreateDimension(e.ctx, DimensionInput{Name: name, Year: year, Weight: weight}, false)
	require.NoError(e.t, err)
	return d
}

func (e *env) indicator(name string, dimensionID int64, year, weight int) *IndicatorView {
	ind, err := e.svc.CreateIndicator(e.ctx, IndicatorInput{Name: name, DimensionID: dimensionID, Year: year, Weight: weight}, false)
	require.NoError(e.t, err)
	return ind
}

func (e *env) score(countryID, indicatorID int64, year int, v float64) *store.Score {
	sc, err := e.svc.CreateScore(e.ctx, ScoreInput{CountryID: countryID, IndicatorID: indicatorID, Year: year, Score: v})
	require.NoError(e.t, err)
	return sc
}

// ranked seeds one dimension (60%) with indicators A (70%) and B (30%),
// scores for two countries and a generated ranking for 2024.
func (e *env) ranked() (chile, peru *store.Country, dim *DimensionView, a, b *IndicatorView) {
	chile = e.country("Chile", "CL")
	peru = e.country("Peru", "PE")
	dim = e.dimension("Economy", 2024, 60)
	a = e.indicator("GDP", dim.ID, 2024, 70)
	b = e.indicator("Trade", dim.ID, 2024, 30)
	e.score(chile.ID, a.ID, 2024, 80)
	e.score(chile.ID, b.ID, 2024, 60)
	e.score(peru.ID, a.ID, 2024, 50)
	_, err := e.svc.GenerateRanking(e.ctx, 2024)
	require.NoError(e.t, err)
	return
}

func TestCountries(t *testing.T) {
	e := newEnv(t)
	c := e.country("Chile", "cl")
	assert.Equal(t, "CL", c.Code)

	_, err := e.svc.CreateCountry(e.ctx, CountryInput{Name: "Chile", Code: "XX"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = e.svc.CreateCountry(e.ctx, CountryInput{Name: " ", Code: "XX"})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	updated, err := e.svc.UpdateCountry(e.ctx, c.ID, CountryInput{Name: "Republic of Chile", Region: "South America"})
	require.NoError(t, err)
	assert.Equal(t, "Republic of Chile", updated.Name)
	assert.Equal(t, "CL", updated.Code)

	_, err = e.svc.GetCountry(e.ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, e.svc.DeleteCountry(e.ctx, c.ID))
	list, err := e.svc.ListCountries(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateDimension(t *testing.T) {
	e := newEnv(t)
	d := e.dimension("Economy", 2024, 60)
	require.NotNil(t, d.Weight)
	assert.Equal(t, 60, *d.Weight)

	t.Run("duplicate name in year", func(t *testing.T) {
		_, err := e.svc.CreateDimension(e.ctx, DimensionInput{Name: "Economy", Year: 2024, Weight: 10}, false)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
		assert.False(t, apperr.IsRankingExists(err))
	})

	t.Run("same name other year", func(t *testing.T) {
		_, err := e.svc.CreateDimension(e.ctx, DimensionInput{Name: "Economy", Year: 2025, Weight: 10}, false)
		assert.NoError(t, err)
	})

	t.Run("over the limit", func(t *testing.T) {
		_, err := e.svc.CreateDimension(e.ctx, DimensionInput{Name: "Health", Year: 2024, Weight: 41}, false)
		require.True(t, apperr.Is(err, apperr.KindBadRequest))
		assert.Contains(t, err.Error(), "40% remaining")
	})

	t.Run("fills the rest", func(t *testing.T) {
		_, err := e.svc.CreateDimension(e.ctx, DimensionInput{Name: "Health", Year: 2024, Weight: 40}, false)
		assert.NoError(t, err)
	})
}

func TestWeightLimitExcludesUpdatedMember(t *testing.T) {
	e := newEnv(t)
	d := e.dimension("Economy", 2024, 80)
	e.dimension("Health", 2024, 20)

	_, err := e.svc.SetDimensionWeight(e.ctx, d.ID, 2024, 80, false)
	assert.NoError(t, err)
	_, err = e.svc.SetDimensionWeight(e.ctx, d.ID, 2024, 81, false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestUpdateDimension(t *testing.T) {
	e := newEnv(t)
	_, _, dim, _, _ := e.ranked()

	t.Run("description only skips the guard", func(t *testing.T) {
		v, err := e.svc.UpdateDimension(e.ctx, dim.ID, DimensionInput{Name: "Economy", Description: "GDP and trade", Year: 2024, Weight: 60}, false)
		require.NoError(t, err)
		assert.Equal(t, "GDP and trade", v.Description)
	})

	t.Run("weight change is guarded", func(t *testing.T) {
		_, err := e.svc.UpdateDimension(e.ctx, dim.ID, DimensionInput{Name: "Economy", Year: 2024, Weight: 50}, false)
		assert.True(t, apperr.IsRankingExists(err))
	})

	t.Run("forced weight change", func(t *testing.T) {
		v, err := e.svc.UpdateDimension(e.ctx, dim.ID, DimensionInput{Name: "Economy", Year: 2024, Weight: 50}, true)
		require.NoError(t, err)
		assert.Equal(t, 50, *v.Weight)
		assert.Contains(t, e.hermes.published(), hermes.SubjectRankingInvalidated(2024))
	})

	t.Run("name collision", func(t *testing.T) {
		other := e.dimension("Health", 2025, 10)
		_, err := e.svc.UpdateDimension(e.ctx, other.ID, DimensionInput{Name: "Economy", Year: 2024, Weight: 10}, true)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})
}

func TestDeleteDimensions(t *testing.T) {
	e := newEnv(t)
	_, _, dim, a, _ := e.ranked()
	free := e.dimension("Health", 2025, 50)

	err := e.svc.BulkDeleteDimensions(e.ctx, []int64{free.ID, dim.ID}, false)
	require.True(t, apperr.IsRankingExists(err))
	_, err = e.svc.GetDimension(e.ctx, free.ID)
	assert.NoError(t, err, "nothing is deleted when one dimension is blocked")

	err = e.svc.BulkDeleteDimensions(e.ctx, []int64{free.ID, 999}, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, e.svc.DeleteDimension(e.ctx, dim.ID, true))
	_, err = e.svc.GetIndicator(e.ctx, a.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	ds, err := e.svc.DimensionScoresByYear(e.ctx, 2024)
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestCreateIndicatorSharesByName(t *testing.T) {
	e := newEnv(t)
	d24 := e.dimension("Economy", 2024, 50)
	_, err := e.svc.SetDimensionWeight(e.ctx, d24.ID, 2025, 50, false)
	require.NoError(t, err)

	first := e.indicator("GDP", d24.ID, 2024, 60)
	assert.Equal(t, store.DefaultNormalizationType, first.NormalizationType)

	second := e.indicator("GDP", d24.ID, 2025, 40)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Weights, 2)

	_, err = e.svc.CreateIndicator(e.ctx, IndicatorInput{Name: "GDP", DimensionID: d24.ID, Year: 2025, Weight: 10}, false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = e.svc.CreateIndicator(e.ctx, IndicatorInput{Name: "Exports", DimensionID: d24.ID, Year: 2030, Weight: 10}, false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "dimension has no weight for 2030")

	_, err = e.svc.CreateIndicator(e.ctx, IndicatorInput{Name: "Exports", DimensionID: d24.ID, Year: 2024, Weight: 41}, false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	list, err := e.svc.ListIndicators(e.ctx, &d24.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateIndicator(t *testing.T) {
	e := newEnv(t)
	d := e.dimension("Economy", 2024, 50)
	gdp := e.indicator("GDP", d.ID, 2024, 60)
	e.indicator("Trade", d.ID, 2024, 40)

	v, err := e.svc.UpdateIndicator(e.ctx, gdp.ID, IndicatorInput{Name: "GDP per capita", Year: 2024, Weight: 60}, false)
	require.NoError(t, err)
	assert.Equal(t, "GDP per capita", v.Name)

	_, err = e.svc.UpdateIndicator(e.ctx, gdp.ID, IndicatorInput{Year: 2024, Weight: 61}, false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = e.svc.UpdateIndicator(e.ctx, gdp.ID, IndicatorInput{DimensionID: d.ID + 100, Year: 2024, Weight: 60}, false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	iw, err := e.svc.SetIndicatorWeight(e.ctx, gdp.ID, 2024, 55, false)
	require.NoError(t, err)
	assert.Equal(t, 55, iw.Weight)
}

func TestIndicatorGuard(t *testing.T) {
	e := newEnv(t)
	_, _, dim, a, _ := e.ranked()

	_, err := e.svc.SetIndicatorWeight(e.ctx, a.ID, 2024, 60, false)
	assert.True(t, apperr.IsRankingExists(err))

	_, err = e.svc.CreateIndicator(e.ctx, IndicatorInput{Name: "Debt", DimensionID: dim.ID, Year: 2024, Weight: 0}, false)
	assert.True(t, apperr.IsRankingExists(err))

	err = e.svc.BulkDeleteIndicators(e.ctx, []int64{a.ID}, false)
	assert.True(t, apperr.IsRankingExists(err))

	require.NoError(t, e.svc.DeleteIndicator(e.ctx, a.ID, true))
	scores, err := e.svc.ListScores(e.ctx, store.ScoreFilter{IndicatorID: &a.ID})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestNormalizeAndDistribute(t *testing.T) {
	e := newEnv(t)
	d := e.dimension("Economy", 2024, 30)
	e.dimension("Health", 2024, 30)
	e.dimension("Society", 2024, 30)

	res, err := e.svc.NormalizeWeights(e.ctx, weights.DimensionScope(2024), false)
	require.NoError(t, err)
	assert.Equal(t, []int{34, 33, 33}, res.After)
	assert.Contains(t, e.hermes.published(), hermes.SubjectWeightsNormalized)

	total, err := e.svc.WeightTotal(e.ctx, weights.DimensionScope(2024))
	require.NoError(t, err)
	assert.Equal(t, 100, total.CurrentTotal)
	assert.Equal(t, 0, total.Remaining)

	e.indicator("GDP", d.ID, 2024, 10)
	e.indicator("Trade", d.ID, 2024, 80)
	res, err = e.svc.DistributeWeights(e.ctx, weights.IndicatorScope(d.ID, 2024), false)
	require.NoError(t, err)
	assert.Equal(t, []int{50, 50}, res.After)

	_, err = e.svc.DistributeWeights(e.ctx, weights.IndicatorScope(d.ID, 2030), false)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	results, err := e.svc.NormalizeAllWeights(e.ctx, false)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Changed)
	}
}

func TestNormalizeGuarded(t *testing.T) {
	e := newEnv(t)
	e.ranked()

	_, err := e.svc.NormalizeWeights(e.ctx, weights.DimensionScope(2024), false)
	assert.True(t, apperr.IsRankingExists(err))
	_, err = e.svc.NormalizeAllWeights(e.ctx, false)
	assert.True(t, apperr.IsRankingExists(err))

	res, err := e.svc.NormalizeWeights(e.ctx, weights.DimensionScope(2024), true)
	require.NoError(t, err)
	assert.Equal(t, []int{100}, res.After)
}

func TestValidateYear(t *testing.T) {
	e := newEnv(t)
	d := e.dimension("Economy", 2024, 100)
	e.indicator("GDP", d.ID, 2024, 70)

	rep, err := e.svc.ValidateYear(e.ctx, 2024)
	require.NoError(t, err)
	assert.False(t, rep.CanGenerateRanking)

	e.indicator("Trade", d.ID, 2024, 30)
	rep, err = e.svc.ValidateYear(e.ctx, 2024)
	require.NoError(t, err)
	assert.True(t, rep.CanGenerateRanking)
}

func TestIndicatorYears(t *testing.T) {
	e := newEnv(t)
	e.svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	years, err := e.svc.IndicatorYears(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023, 2024}, years)

	d := e.dimension("Economy", 2019, 100)
	e.indicator("GDP", d.ID, 2019, 100)
	years, err = e.svc.IndicatorYears(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2019}, years)
}

func TestCreateScore(t *testing.T) {
	e := newEnv(t)
	c := e.country("Chile", "CL")
	d := e.dimension("Economy", 2024, 100)
	ind := e.indicator("GDP", d.ID, 2024, 100)

	sc := e.score(c.ID, ind.ID, 2024, 2.345)
	assert.Equal(t, 2.35, sc.Score)

	_, err := e.svc.CreateScore(e.ctx, ScoreInput{CountryID: c.ID, IndicatorID: ind.ID, Year: 2024, Score: 10})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = e.svc.CreateScore(e.ctx, ScoreInput{CountryID: c.ID, IndicatorID: ind.ID, Year: 2025, Score: 100.5})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = e.svc.CreateScore(e.ctx, ScoreInput{CountryID: 999, IndicatorID: ind.ID, Year: 2025, Score: 10})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSaveScoreUpsertsAndRegenerates(t *testing.T) {
	e := newEnv(t)
	chile, peru, _, a, _ := e.ranked()

	before, err := e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	require.Equal(t, chile.ID, before.Entries[0].CountryID)

	// Chile drops to (0*70 + 60*30)/100 = 18, below Peru's 35.
	sc, err := e.svc.SaveScore(e.ctx, ScoreInput{CountryID: chile.ID, IndicatorID: a.ID, Year: 2024, Score: 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sc.Score)

	after, err := e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, peru.ID, after.Entries[0].CountryID)
	assert.Contains(t, e.hermes.published(), hermes.SubjectRankingRegenerated(2024))

	scores, err := e.svc.ListScores(e.ctx, store.ScoreFilter{CountryID: &chile.ID, IndicatorID: &a.ID})
	require.NoError(t, err)
	assert.Len(t, scores, 1, "existing key is updated, not duplicated")
}

func TestSaveScoreWithoutRankingDoesNotGenerate(t *testing.T) {
	e := newEnv(t)
	c := e.country("Chile", "CL")
	d := e.dimension("Economy", 2024, 100)
	ind := e.indicator("GDP", d.ID, 2024, 100)

	_, err := e.svc.SaveScore(e.ctx, ScoreInput{CountryID: c.ID, IndicatorID: ind.ID, Year: 2024, Score: 70})
	require.NoError(t, err)
	years, err := e.svc.RankedYears(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestUpdateAndDeleteScoreRegenerate(t *testing.T) {
	e := newEnv(t)
	chile, _, _, a, _ := e.ranked()

	scores, err := e.svc.ListScores(e.ctx, store.ScoreFilter{CountryID: &chile.ID, IndicatorID: &a.ID})
	require.NoError(t, err)
	require.Len(t, scores, 1)

	updated, err := e.svc.UpdateScore(e.ctx, scores[0].ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, updated.Score)
	r, err := e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, r.Entries[len(r.Entries)-1].FinalScore, 1e-9)

	require.NoError(t, e.svc.DeleteScore(e.ctx, scores[0].ID))
	r, err = e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, r.Entries, 2)

	_, err = e.svc.UpdateScore(e.ctx, 999, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestImportScores(t *testing.T) {
	e := newEnv(t)
	chile := e.country("Chile", "CL")
	e.country("Peru", "PE")
	d := e.dimension("Economy", 2024, 100)
	ind := e.indicator("GDP", d.ID, 2024, 100)

	got, err := e.svc.ImportScores(e.ctx, 2024, []ImportedScore{
		{CountryCode: "cl", IndicatorID: ind.ID, Score: 81.255},
		{CountryCode: "PE", IndicatorID: ind.ID, Score: 40},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, chile.ID, got[0].CountryID)
	assert.Equal(t, 81.26, got[0].Score)
	assert.Contains(t, e.hermes.published(), hermes.SubjectScoresImported(2024))

	t.Run("existing scores reject the batch", func(t *testing.T) {
		_, err := e.svc.ImportScores(e.ctx, 2024, []ImportedScore{
			{CountryCode: "PE", IndicatorID: ind.ID, Score: 40},
			{CountryCode: "CL", IndicatorID: ind.ID, Score: 40},
		})
		require.True(t, apperr.Is(err, apperr.KindConflict))
		assert.True(t, strings.HasSuffix(apperr.Message(err), "Chile, Peru"))
	})

	t.Run("unknown country", func(t *testing.T) {
		_, err := e.svc.ImportScores(e.ctx, 2025, []ImportedScore{{CountryCode: "ZZ", IndicatorID: ind.ID, Score: 1}})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := e.svc.ImportScores(e.ctx, 2025, nil)
		assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	})
}

func TestRankingLifecycle(t *testing.T) {
	e := newEnv(t)
	chile, _, _, _, _ := e.ranked()
	assert.Contains(t, e.hermes.published(), hermes.SubjectRankingGenerated(2024))

	r, err := e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, chile.ID, r.Entries[0].CountryID)
	assert.InDelta(t, 74.0, r.Entries[0].FinalScore, 1e-9)
	assert.Equal(t, 1, r.Entries[0].Rank)

	_, err = e.svc.GenerateRanking(e.ctx, 2024)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	years, err := e.svc.RankedYears(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)

	standings, err := e.svc.Standings(e.ctx, 2024, 0)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, "NEW", standings[0].RankChange)

	del, err := e.svc.DeleteRankingByYear(e.ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, del.Ranks)
	assert.Equal(t, 2, del.DimensionScores)
	assert.Contains(t, e.hermes.published(), hermes.SubjectRankingDeleted(2024))

	_, err = e.svc.DeleteRankingByYear(e.ctx, 2024)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = e.svc.YearRanking(e.ctx, 2024)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteLastScoreOfRankedYearRollsBack(t *testing.T) {
	e := newEnv(t)
	chile := e.country("Chile", "CL")
	d := e.dimension("Economy", 2024, 100)
	ind := e.indicator("GDP", d.ID, 2024, 100)
	sc := e.score(chile.ID, ind.ID, 2024, 70)
	_, err := e.svc.GenerateRanking(e.ctx, 2024)
	require.NoError(t, err)

	err = e.svc.DeleteScore(e.ctx, sc.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	kept, err := e.store.GetScore(e.ctx, sc.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, 70.0, kept.Score)

	r, err := e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, r.Entries, 1)
	assert.InDelta(t, 70.0, r.Entries[0].FinalScore, 1e-9)
	dss, err := e.svc.DimensionScoresByYear(e.ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, dss, 1)
	assert.NotContains(t, e.hermes.published(), hermes.SubjectRankingRegenerated(2024))
}

func TestSaveScoreMovedToAnotherYearRegeneratesBoth(t *testing.T) {
	e := newEnv(t)
	chile := e.country("Chile", "CL")
	peru := e.country("Peru", "PE")
	brazil := e.country("Brazil", "BR")
	d := e.dimension("Economy", 2024, 100)
	ind := e.indicator("GDP", d.ID, 2024, 100)
	_, err := e.svc.SetDimensionWeight(e.ctx, d.ID, 2025, 100, false)
	require.NoError(t, err)
	_, err = e.svc.SetIndicatorWeight(e.ctx, ind.ID, 2025, 100, false)
	require.NoError(t, err)

	e.score(chile.ID, ind.ID, 2024, 80)
	e.score(peru.ID, ind.ID, 2024, 50)
	moved := e.score(brazil.ID, ind.ID, 2024, 70)
	e.score(chile.ID, ind.ID, 2025, 40)
	e.score(peru.ID, ind.ID, 2025, 60)
	for _, y := range []int{2024, 2025} {
		_, err := e.svc.GenerateRanking(e.ctx, y)
		require.NoError(t, err)
	}

	_, err = e.svc.SaveScore(e.ctx, ScoreInput{ID: moved.ID, CountryID: brazil.ID, IndicatorID: ind.ID, Year: 2025, Score: 90})
	require.NoError(t, err)

	old, err := e.svc.YearRanking(e.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, old.Entries, 2)
	for _, entry := range old.Entries {
		assert.NotEqual(t, brazil.ID, entry.CountryID)
	}

	cur, err := e.svc.YearRanking(e.ctx, 2025)
	require.NoError(t, err)
	require.Len(t, cur.Entries, 3)
	assert.Equal(t, brazil.ID, cur.Entries[0].CountryID)

	published := e.hermes.published()
	assert.Contains(t, published, hermes.SubjectRankingRegenerated(2024))
	assert.Contains(t, published, hermes.SubjectRankingRegenerated(2025))
}

func TestOrphanDimensionScoresDoNotBlockYear(t *testing.T) {
	e := newEnv(t)
	chile := e.country("Chile", "CL")
	d := e.dimension("Economy", 2024, 100)
	ind := e.indicator("GDP", d.ID, 2024, 100)
	e.score(chile.ID, ind.ID, 2024, 70)
	orphan := func() {
		require.NoError(t, e.store.CreateDimensionScore(e.ctx, &store.DimensionScore{CountryID: chile.ID, DimensionID: d.ID, Year: 2024, Score: 1}))
	}

	orphan()
	del, err := e.svc.DeleteRankingByYear(e.ctx, 2024)
	require.NoError(t, err)
	assert.Zero(t, del.Ranks)
	assert.Equal(t, 1, del.DimensionScores)

	orphan()
	r, err := e.svc.GenerateRanking(e.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, r.Entries, 1)
	assert.Empty(t, r.Skipped)
	assert.InDelta(t, 70.0, r.Entries[0].FinalScore, 1e-9)
}

func TestConcurrentDimensionWeightsStayWithinLimit(t *testing.T) {
	e := newEnv(t)
	e.dimension("Economy", 2024, 40)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, name := range []string{"Health", "Education"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.svc.CreateDimension(e.ctx, DimensionInput{Name: name, Year: 2024, Weight: 50}, false)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, apperr.Is(err, apperr.KindBadRequest), err)
		}
	}
	assert.Equal(t, 1, failed)

	total, err := e.svc.normalizer.Total(e.ctx, weights.DimensionScope(2024))
	require.NoError(t, err)
	assert.Equal(t, 90, total.CurrentTotal)
}
