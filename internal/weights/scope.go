package weights

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

type ScopeKind string

const (
	KindDimension ScopeKind = "dimension"
	KindIndicator ScopeKind = "indicator"
)

// Scope is a set of weights that must sum to 100: every dimension weight of
// a year, or the indicator weights of one dimension and year.
type Scope struct {
	Kind        ScopeKind `json:"kind"`
	DimensionID int64     `json:"dimension_id,omitempty"`
	Year        int       `json:"year"`
}

func DimensionScope(year int) Scope {
	return Scope{Kind: KindDimension, Year: year}
}

func IndicatorScope(dimensionID int64, year int) Scope {
	return Scope{Kind: KindIndicator, DimensionID: dimensionID, Year: year}
}

// Key identifies the scope for locking.
func (s Scope) Key() string {
	if s.Kind == KindIndicator {
		return fmt.Sprintf("ranking:weights:indicator:%d:%d", s.DimensionID, s.Year)
	}
	return fmt.Sprintf("ranking:weights:dimension:%d", s.Year)
}

func (s Scope) String() string {
	if s.Kind == KindIndicator {
		return fmt.Sprintf("indicators of dimension %d for %d", s.DimensionID, s.Year)
	}
	return fmt.Sprintf("dimensions for %d", s.Year)
}

// member is one weight row of a scope. MemberID is the dimension or
// indicator the weight belongs to.
type member struct {
	RowID    int64
	MemberID int64
	Weight   int
}

func loadMembers(ctx context.Context, s store.Store, scope Scope) ([]member, error) {
	if scope.Kind == KindIndicator {
		ws, err := s.ListIndicatorWeightsByDimension(ctx, scope.DimensionID, scope.Year)
		if err != nil {
			return nil, fmt.Errorf("list indicator weights: %w", err)
		}
		out := make([]member, len(ws))
		for i, w := range ws {
			out[i] = member{RowID: w.ID, MemberID: w.IndicatorID, Weight: w.Weight}
		}
		return out, nil
	}

	ws, err := s.ListDimensionWeightsByYear(ctx, scope.Year)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}
	out := make([]member, len(ws))
	for i, w := range ws {
		out[i] = member{RowID: w.ID, MemberID: w.DimensionID, Weight: w.Weight}
	}
	return out, nil
}

// storeMembers writes new weight values for the given rows in one batch.
func storeMembers(ctx context.Context, s store.Store, scope Scope, rows []member, values []int) error {
	if scope.Kind == KindIndicator {
		ws := make([]*store.IndicatorWeight, len(rows))
		for i, r := range rows {
			ws[i] = &store.IndicatorWeight{ID: r.RowID, IndicatorID: r.MemberID, Year: scope.Year, Weight: values[i]}
		}
		return s.UpdateIndicatorWeightValues(ctx, ws)
	}
	ws := make([]*store.DimensionWeight, len(rows))
	for i, r := range rows {
		ws[i] = &store.DimensionWeight{ID: r.RowID, DimensionID: r.MemberID, Year: scope.Year, Weight: values[i]}
	}
	return s.UpdateDimensionWeightValues(ctx, ws)
}

func weightsOf(rows []member) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Weight
	}
	return out
}
