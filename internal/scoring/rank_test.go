package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{2.345, 2.35},
		{2.344, 2.34},
		{1.005, 1.01},
		{0.125, 0.13},
		{99.999, 100},
		{50, 50},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundScore(tt.in), "RoundScore(%v)", tt.in)
	}
}

func TestAssignRanks(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []int
	}{
		{"skip style ties", []float64{90, 85, 85, 80}, []int{1, 2, 2, 4}},
		{"unsorted input", []float64{80, 90, 85, 85}, []int{1, 2, 2, 4}},
		{"all tied", []float64{50, 50, 50}, []int{1, 1, 1}},
		{"within epsilon", []float64{70, 70 + 1e-9, 60}, []int{1, 1, 3}},
		{"beyond epsilon", []float64{70, 70 + 1e-6, 60}, []int{1, 2, 3}},
		{"single", []float64{10}, []int{1}},
		{"empty", nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranks := make([]*store.Rank, len(tt.scores))
			for i, s := range tt.scores {
				ranks[i] = &store.Rank{CountryID: int64(i + 1), FinalScore: s}
			}
			AssignRanks(ranks)

			got := make([]int, len(ranks))
			for i, r := range ranks {
				got[i] = r.Position
			}
			assert.Equal(t, tt.want, got)
			for i := 1; i < len(ranks); i++ {
				assert.GreaterOrEqual(t, ranks[i-1].FinalScore, ranks[i].FinalScore-TieEpsilon)
			}
		})
	}
}

func TestRankChange(t *testing.T) {
	assert.Equal(t, "+2", RankChange(5, 3))
	assert.Equal(t, "-1", RankChange(2, 3))
	assert.Equal(t, "=", RankChange(4, 4))
}

func TestScoreChange(t *testing.T) {
	assert.Equal(t, "+2.5", ScoreChange(70, 72.5))
	assert.Equal(t, "-1.2", ScoreChange(70, 68.8))
	assert.Equal(t, "=", ScoreChange(70, 70.05))
}

func TestStandings(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	var ids []int64
	for _, c := range []struct{ name, code string }{{"Aland", "AL"}, {"Bland", "BL"}, {"Cland", "CL"}} {
		country := &store.Country{Name: c.name, Code: c.code, Region: "North"}
		require.NoError(t, s.CreateCountry(ctx, country))
		ids = append(ids, country.ID)
	}
	put := func(year int, country int64, score float64, pos int) {
		r := &store.Rank{CountryID: country, Year: year, FinalScore: score}
		require.NoError(t, s.CreateRank(ctx, r))
		r.Position = pos
		require.NoError(t, s.UpdateRankPositions(ctx, []*store.Rank{r}))
	}
	put(2023, ids[0], 60, 2)
	put(2023, ids[1], 70, 1)
	put(2024, ids[0], 75, 1)
	put(2024, ids[1], 70.02, 2)
	put(2024, ids[2], 50, 3)

	e := NewEngine(s, 1, discardLogger())
	got, err := e.Standings(ctx, 2024, 5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Aland", got[0].CountryName)
	assert.Equal(t, "North", got[0].Region)
	assert.Equal(t, "+1", got[0].RankChange)
	assert.Equal(t, "+15.0", got[0].ScoreChange)
	assert.Equal(t, "-1", got[1].RankChange)
	assert.Equal(t, "=", got[1].ScoreChange)
	assert.Equal(t, "NEW", got[2].RankChange)
	assert.Equal(t, "NEW", got[2].ScoreChange)

	top, err := e.Standings(ctx, 2024, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = e.Standings(ctx, 2030, 5)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
