package scoring

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

// TieEpsilon is the largest final-score difference treated as a tie.
const TieEpsilon = 1e-7

// AssignRanks orders ranks by final score descending and sets skip-style
// positions: [90, 85, 85, 80] becomes [1, 2, 2, 4]. Equal scores keep their
// input order. The slice is sorted in place.
func AssignRanks(ranks []*store.Rank) {
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].FinalScore > ranks[j].FinalScore
	})

	lastPosition := 0
	for i, r := range ranks {
		if i > 0 && math.Abs(r.FinalScore-ranks[i-1].FinalScore) < TieEpsilon {
			r.Position = lastPosition
			continue
		}
		r.Position = i + 1
		lastPosition = r.Position
	}
}
