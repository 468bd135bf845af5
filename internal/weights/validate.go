package weights

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

// Tolerance is the allowed distance from 100 when checking weight sums.
const Tolerance = 1

type DimensionStatus struct {
	DimensionID   int64  `json:"dimension_id"`
	DimensionName string `json:"dimension_name"`
	Weight        *int   `json:"weight,omitempty"`
	IndicatorSum  int    `json:"indicator_sum"`
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
}

// YearReport tells whether a year's model is complete enough to rank.
type YearReport struct {
	Year               int               `json:"year"`
	CanGenerateRanking bool              `json:"can_generate_ranking"`
	Dimensions         []DimensionStatus `json:"dimensions"`
	DimensionWeightSum int               `json:"dimension_weight_sum"`
	ScoreCount         int               `json:"score_count"`
	Message            string            `json:"message"`
}

func withinTolerance(sum int) bool {
	d := sum - Full
	return d >= -Tolerance && d <= Tolerance
}

// ValidateYear checks that every dimension of year has a weight and
// indicator weights summing to 100, and that the dimension weights sum to
// 100. Missing scores are reported but do not block ranking.
func (n *Normalizer) ValidateYear(ctx context.Context, year int) (*YearReport, error) {
	dims, err := n.yearDimensions(ctx, year)
	if err != nil {
		return nil, err
	}
	scores, err := n.store.ListScores(ctx, store.ScoreFilter{Year: &year})
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	rep := &YearReport{Year: year, CanGenerateRanking: true, ScoreCount: len(scores)}
	var msgs []string
	if len(dims) == 0 {
		rep.CanGenerateRanking = false
		msgs = append(msgs, fmt.Sprintf("no dimensions for %d", year))
	}

	weighted := 0
	for _, d := range dims {
		st := DimensionStatus{DimensionID: d.ID, DimensionName: d.Name}
		dw, err := n.store.GetDimensionWeight(ctx, d.ID, year)
		if err != nil {
			return nil, fmt.Errorf("get dimension weight: %w", err)
		}
		switch {
		case dw == nil:
			st.Error = "dimension weight missing"
		default:
			w := dw.Weight
			st.Weight = &w
			weighted++
			rep.DimensionWeightSum += w

			iws, err := n.store.ListIndicatorWeightsByDimension(ctx, d.ID, year)
			if err != nil {
				return nil, fmt.Errorf("list indicator weights: %w", err)
			}
			for _, iw := range iws {
				st.IndicatorSum += iw.Weight
			}
			switch {
			case len(iws) == 0:
				st.Error = "no indicators"
			case !withinTolerance(st.IndicatorSum):
				st.Error = fmt.Sprintf("indicator weights sum to %d%%", st.IndicatorSum)
			}
		}
		st.Valid = st.Error == ""
		if !st.Valid {
			rep.CanGenerateRanking = false
			msgs = append(msgs, fmt.Sprintf("dimension %q: %s", d.Name, st.Error))
		}
		rep.Dimensions = append(rep.Dimensions, st)
	}

	if weighted > 0 && !withinTolerance(rep.DimensionWeightSum) {
		rep.CanGenerateRanking = false
		msgs = append(msgs, fmt.Sprintf("dimension weights sum to %d%% instead of 100%%", rep.DimensionWeightSum))
	}
	if len(scores) == 0 {
		msgs = append(msgs, fmt.Sprintf("no scores for %d", year))
	}
	if rep.CanGenerateRanking {
		msgs = append(msgs, fmt.Sprintf("weights for %d are valid", year))
	}
	rep.Message = strings.Join(msgs, "; ")
	return rep, nil
}

// yearDimensions returns the dimensions weighted in year, which is where the
// engine looks, plus the year's own dimensions that have no weight yet.
func (n *Normalizer) yearDimensions(ctx context.Context, year int) ([]*store.Dimension, error) {
	dws, err := n.store.ListDimensionWeightsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}
	seen := make(map[int64]bool, len(dws))
	var out []*store.Dimension
	for _, dw := range dws {
		d, err := n.store.GetDimension(ctx, dw.DimensionID)
		if err != nil {
			return nil, fmt.Errorf("get dimension: %w", err)
		}
		if d == nil {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}

	own, err := n.store.ListDimensions(ctx, store.DimensionFilter{Year: &year})
	if err != nil {
		return nil, fmt.Errorf("list dimensions: %w", err)
	}
	for _, d := range own {
		if !seen[d.ID] {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b *store.Dimension) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}
