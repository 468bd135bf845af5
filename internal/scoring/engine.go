package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/metrics"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

// Skip records an eligible country whose final score could not be computed.
type Skip struct {
	CountryID int64  `json:"country_id"`
	Reason    string `json:"reason"`
}

// Run is the outcome of GenerateFinalScores. Ranks are ordered by country id
// and carry no position yet.
type Run struct {
	ID      uuid.UUID
	Year    int
	Ranks   []*store.Rank
	Skipped []Skip
}

// Entry is one row of a year's ranking.
type Entry struct {
	CountryID   int64   `json:"country_id"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	FinalScore  float64 `json:"final_score"`
	Rank        int     `json:"rank"`
}

type Ranking struct {
	Year    int     `json:"year"`
	RunID   string  `json:"run_id,omitempty"`
	Entries []Entry `json:"entries"`
	Skipped []Skip  `json:"skipped,omitempty"`
}

// Engine folds indicator scores into dimension scores, final scores and
// ranks.
type Engine struct {
	store   store.Store
	workers int
	logger  *slog.Logger
}

func NewEngine(s store.Store, workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{store: s, workers: workers, logger: logger}
}

// WithStore returns a copy of the engine that reads and writes through s,
// typically a transaction-bound store.
func (e *Engine) WithStore(s store.Store) *Engine {
	c := *e
	c.store = s
	return &c
}

// countryScores is everything one country contributes to a ranking,
// computed before anything is written.
type countryScores struct {
	countryID  int64
	zeros      []*store.Score
	dimensions []*store.DimensionScore
	rank       *store.Rank
}

// CalculateDimensionScores computes and persists one DimensionScore per
// dimension weighted in year. Indicators without a score for the country get
// a persisted zero score, so their weight stays in the denominator.
func (e *Engine) CalculateDimensionScores(ctx context.Context, countryID int64, year int) ([]*store.DimensionScore, error) {
	dws, err := e.store.ListDimensionWeightsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}
	cs := &countryScores{countryID: countryID}
	if err := e.computeDimensions(ctx, cs, year, dws); err != nil {
		return nil, err
	}
	if err := e.store.InTx(ctx, func(tx store.Store) error {
		return cs.persist(ctx, tx)
	}); err != nil {
		return nil, err
	}
	return cs.dimensions, nil
}

// CalculateFinalScore computes the country's dimension scores and persists
// them with an unpositioned Rank holding their weighted average.
func (e *Engine) CalculateFinalScore(ctx context.Context, countryID int64, year int) (*store.Rank, error) {
	dws, err := e.store.ListDimensionWeightsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}
	cs, err := e.computeCountry(ctx, countryID, year, dws)
	if err != nil {
		return nil, err
	}
	if err := e.store.InTx(ctx, func(tx store.Store) error {
		return cs.persist(ctx, tx)
	}); err != nil {
		return nil, err
	}
	return cs.rank, nil
}

func (e *Engine) computeCountry(ctx context.Context, countryID int64, year int, dws []*store.DimensionWeight) (*countryScores, error) {
	existing, err := e.store.GetRank(ctx, countryID, year)
	if err != nil {
		return nil, fmt.Errorf("get rank: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("rank for country %d, year %d already exists", countryID, year)
	}

	cs := &countryScores{countryID: countryID}
	if err := e.computeDimensions(ctx, cs, year, dws); err != nil {
		return nil, err
	}

	var weighted float64
	var weightSum int
	for i, dw := range dws {
		weighted += cs.dimensions[i].Score * float64(dw.Weight)
		weightSum += dw.Weight
	}
	cs.rank = &store.Rank{CountryID: countryID, Year: year}
	if weightSum > 0 {
		cs.rank.FinalScore = weighted / float64(weightSum)
	}
	return cs, nil
}

// computeDimensions fills cs.dimensions in the order of dws.
func (e *Engine) computeDimensions(ctx context.Context, cs *countryScores, year int, dws []*store.DimensionWeight) error {
	for _, dw := range dws {
		existing, err := e.store.GetDimensionScore(ctx, cs.countryID, dw.DimensionID, year)
		if err != nil {
			return fmt.Errorf("get dimension score: %w", err)
		}
		if existing != nil {
			return apperr.Conflict("dimension score for country %d, dimension %d, year %d already exists", cs.countryID, dw.DimensionID, year)
		}
	}

	for _, dw := range dws {
		iws, err := e.store.ListIndicatorWeightsByDimension(ctx, dw.DimensionID, year)
		if err != nil {
			return fmt.Errorf("list indicator weights: %w", err)
		}

		var weighted float64
		var weightSum int
		for _, iw := range iws {
			sc, err := e.store.GetScoreByKey(ctx, cs.countryID, iw.IndicatorID, year)
			if err != nil {
				return fmt.Errorf("get score: %w", err)
			}
			if sc == nil {
				cs.zeros = append(cs.zeros, &store.Score{CountryID: cs.countryID, IndicatorID: iw.IndicatorID, Year: year})
			} else {
				weighted += sc.Score * float64(iw.Weight)
			}
			weightSum += iw.Weight
		}

		ds := &store.DimensionScore{CountryID: cs.countryID, DimensionID: dw.DimensionID, Year: year}
		if weightSum > 0 {
			ds.Score = weighted / float64(weightSum)
		}
		cs.dimensions = append(cs.dimensions, ds)
	}
	return nil
}

func (cs *countryScores) persist(ctx context.Context, st store.Store) error {
	for _, zero := range cs.zeros {
		if err := st.CreateScore(ctx, zero); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("score for country %d, indicator %d, year %d was written during generation", zero.CountryID, zero.IndicatorID, zero.Year)
			}
			return fmt.Errorf("create zero score: %w", err)
		}
	}
	for _, ds := range cs.dimensions {
		if err := st.CreateDimensionScore(ctx, ds); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("dimension score for country %d, dimension %d, year %d already exists", ds.CountryID, ds.DimensionID, ds.Year)
			}
			return fmt.Errorf("create dimension score: %w", err)
		}
	}
	if cs.rank == nil {
		return nil
	}
	if err := st.CreateRank(ctx, cs.rank); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("rank for country %d, year %d already exists", cs.countryID, cs.rank.Year)
		}
		return fmt.Errorf("create rank: %w", err)
	}
	return nil
}

// GenerateFinalScores computes a final score for every country with at least
// one score in year. Scores are computed by the worker pool and then written
// one country at a time, each in its own savepoint, so a country that fails
// leaves no rows behind. Failing countries are logged and recorded in
// Run.Skipped; only context cancellation aborts the run.
func (e *Engine) GenerateFinalScores(ctx context.Context, year int) (*Run, error) {
	countryIDs, err := e.store.ListScoredCountries(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list scored countries: %w", err)
	}
	dws, err := e.store.ListDimensionWeightsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}

	type outcome struct {
		scores *countryScores
		err    error
	}
	results := make([]outcome, len(countryIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range countryIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cs, err := e.computeCountry(gctx, id, year, dws)
			if err != nil && isCancel(err) {
				return err
			}
			results[i] = outcome{scores: cs, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.New(), Year: year}
	for i, res := range results {
		err := res.err
		if err == nil {
			err = e.store.InTx(ctx, func(tx store.Store) error {
				return res.scores.persist(ctx, tx)
			})
			if err != nil && isCancel(err) {
				return nil, err
			}
		}
		if err != nil {
			e.logger.Warn("country skipped", "run_id", run.ID, "country_id", countryIDs[i], "year", year, "error", err)
			run.Skipped = append(run.Skipped, Skip{CountryID: countryIDs[i], Reason: apperr.Message(err)})
			continue
		}
		if len(res.scores.zeros) > 0 {
			e.logger.Debug("missing scores counted as zero", "country_id", countryIDs[i], "year", year, "count", len(res.scores.zeros))
		}
		run.Ranks = append(run.Ranks, res.scores.rank)
	}
	metrics.CountriesRanked.Add(float64(len(run.Ranks)))
	metrics.CountriesSkipped.Add(float64(len(run.Skipped)))
	return run, nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// GenerateRanking computes final scores for year and assigns positions in
// one transaction: a run that fails writes nothing. A year that already has
// a ranking must be deleted first.
func (e *Engine) GenerateRanking(ctx context.Context, year int) (*Ranking, error) {
	start := time.Now()
	var ranking *Ranking
	err := e.store.InTx(ctx, func(tx store.Store) error {
		var err error
		ranking, err = e.WithStore(tx).generateRanking(ctx, year)
		return err
	})
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	switch {
	case err != nil:
		result = string(apperr.KindOf(err))
	case len(ranking.Skipped) > 0:
		result = "partial"
	}
	metrics.Generations.WithLabelValues(result).Inc()
	if err != nil {
		return nil, err
	}
	return ranking, nil
}

func (e *Engine) generateRanking(ctx context.Context, year int) (*Ranking, error) {
	n, err := e.store.CountRanksByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("count ranks: %w", err)
	}
	if n > 0 {
		return nil, apperr.Conflict("a ranking for %d already exists", year)
	}

	eligible, err := e.store.ListScoredCountries(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list scored countries: %w", err)
	}
	if len(eligible) == 0 {
		return nil, apperr.BadRequest("no country has scores for %d", year)
	}
	dws, err := e.store.ListDimensionWeightsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list dimension weights: %w", err)
	}
	if len(dws) == 0 {
		return nil, apperr.BadRequest("no dimension is weighted for %d", year)
	}

	run, err := e.GenerateFinalScores(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(run.Ranks) == 0 {
		if len(run.Skipped) == 0 {
			return nil, apperr.BadRequest("no country has scores for %d", year)
		}
		return nil, apperr.Internal(nil, "no country could be ranked for %d: %s", year, run.Skipped[0].Reason)
	}

	AssignRanks(run.Ranks)
	if err := e.store.UpdateRankPositions(ctx, run.Ranks); err != nil {
		return nil, fmt.Errorf("update rank positions: %w", err)
	}

	entries, err := e.entries(ctx, run.Ranks)
	if err != nil {
		return nil, err
	}
	e.logger.Info("ranking generated", "run_id", run.ID, "year", year, "ranked", len(run.Ranks), "skipped", len(run.Skipped))
	return &Ranking{Year: year, RunID: run.ID.String(), Entries: entries, Skipped: run.Skipped}, nil
}

// YearRanking returns the stored ranking for year, ordered by position.
func (e *Engine) YearRanking(ctx context.Context, year int) (*Ranking, error) {
	ranks, err := e.store.ListRanksByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list ranks: %w", err)
	}
	if len(ranks) == 0 {
		return nil, apperr.NotFound("no ranking for %d", year)
	}
	entries, err := e.entries(ctx, ranks)
	if err != nil {
		return nil, err
	}
	return &Ranking{Year: year, Entries: entries}, nil
}

func (e *Engine) entries(ctx context.Context, ranks []*store.Rank) ([]Entry, error) {
	out := make([]Entry, 0, len(ranks))
	for _, r := range ranks {
		c, err := e.store.GetCountry(ctx, r.CountryID)
		if err != nil {
			return nil, fmt.Errorf("get country: %w", err)
		}
		entry := Entry{CountryID: r.CountryID, FinalScore: r.FinalScore, Rank: r.Position}
		if c != nil {
			entry.CountryName = c.Name
			entry.CountryCode = c.Code
		}
		out = append(out, entry)
	}
	return out, nil
}
