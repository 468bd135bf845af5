package scoring

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

const changeNew = "NEW"

// Standing is a ranking entry compared with the previous year.
type Standing struct {
	Entry
	Region      string `json:"region,omitempty"`
	RankChange  string `json:"rank_change"`
	ScoreChange string `json:"score_change"`
}

// Standings returns the top limit entries of year with their rank and score
// movement against year-1.
func (e *Engine) Standings(ctx context.Context, year, limit int) ([]Standing, error) {
	current, err := e.store.ListRanksByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list ranks: %w", err)
	}
	if len(current) == 0 {
		return nil, apperr.NotFound("no ranking for %d", year)
	}
	previous, err := e.store.ListRanksByYear(ctx, year-1)
	if err != nil {
		return nil, fmt.Errorf("list ranks: %w", err)
	}
	prev := make(map[int64]*store.Rank, len(previous))
	for _, r := range previous {
		prev[r.CountryID] = r
	}

	if limit > 0 && limit < len(current) {
		current = current[:limit]
	}
	out := make([]Standing, 0, len(current))
	for _, r := range current {
		c, err := e.store.GetCountry(ctx, r.CountryID)
		if err != nil {
			return nil, fmt.Errorf("get country: %w", err)
		}
		s := Standing{
			Entry:       Entry{CountryID: r.CountryID, FinalScore: r.FinalScore, Rank: r.Position},
			RankChange:  changeNew,
			ScoreChange: changeNew,
		}
		if c != nil {
			s.CountryName, s.CountryCode, s.Region = c.Name, c.Code, c.Region
		}
		if old, ok := prev[r.CountryID]; ok {
			s.RankChange = RankChange(old.Position, r.Position)
			s.ScoreChange = ScoreChange(old.FinalScore, r.FinalScore)
		}
		out = append(out, s)
	}
	return out, nil
}

// RankChange formats a position move: "+2" for a climb, "-1" for a drop,
// "=" when unchanged.
func RankChange(oldRank, newRank int) string {
	diff := oldRank - newRank
	switch {
	case diff > 0:
		return "+" + strconv.Itoa(diff)
	case diff < 0:
		return strconv.Itoa(diff)
	default:
		return "="
	}
}

// ScoreChange formats a final-score move to one decimal. Moves under 0.1 are
// reported as "=".
func ScoreChange(oldScore, newScore float64) string {
	diff := newScore - oldScore
	if math.Abs(diff) < 0.1 {
		return "="
	}
	if diff > 0 {
		return fmt.Sprintf("+%.1f", diff)
	}
	return fmt.Sprintf("%.1f", diff)
}
