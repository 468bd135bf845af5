package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/scoring"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

type ScoreInput struct {
	ID          int64    `json:"id,omitempty"`
	CountryID   int64    `json:"country_id" validate:"required,gt=0"`
	IndicatorID int64    `json:"indicator_id" validate:"required,gt=0"`
	Year        int      `json:"year" validate:"required,min=1900,max=2200"`
	Score       float64  `json:"score" validate:"min=0,max=100"`
	RawValue    *float64 `json:"raw_value,omitempty"`
}

// ImportedScore is a confirmed extraction result keyed by country code.
type ImportedScore struct {
	CountryCode string  `json:"country_code" validate:"required"`
	IndicatorID int64   `json:"indicator_id" validate:"required,gt=0"`
	Score       float64 `json:"score" validate:"min=0,max=100"`
}

func checkScore(v float64) error {
	if v < 0 || v > 100 {
		return apperr.BadRequest("score must be between 0 and 100, got %g", v)
	}
	return nil
}

func (s *Service) score(ctx context.Context, id int64) (*store.Score, error) {
	sc, err := s.store.GetScore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get score: %w", err)
	}
	if sc == nil {
		return nil, apperr.NotFound("score %d not found", id)
	}
	return sc, nil
}

func (s *Service) checkScoreRefs(ctx context.Context, countryID, indicatorID int64) error {
	if _, err := s.GetCountry(ctx, countryID); err != nil {
		return err
	}
	_, err := s.indicator(ctx, indicatorID)
	return err
}

func (s *Service) ListScores(ctx context.Context, filter store.ScoreFilter) ([]*store.Score, error) {
	scores, err := s.store.ListScores(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// CreateScore inserts a new score. A score already stored for the same
// country, indicator and year is a conflict.
func (s *Service) CreateScore(ctx context.Context, in ScoreInput) (*store.Score, error) {
	if err := checkScore(in.Score); err != nil {
		return nil, err
	}
	if err := s.checkScoreRefs(ctx, in.CountryID, in.IndicatorID); err != nil {
		return nil, err
	}
	sc := &store.Score{
		CountryID:   in.CountryID,
		IndicatorID: in.IndicatorID,
		Year:        in.Year,
		Score:       scoring.RoundScore(in.Score),
		RawValue:    in.RawValue,
	}
	if err := s.store.CreateScore(ctx, sc); err != nil {
		return nil, duplicate(err, "create score", "country %d already has a score for indicator %d in %d", in.CountryID, in.IndicatorID, in.Year)
	}
	return sc, nil
}

// SaveScore updates the score stored under the input's key, or under
// in.ID, and creates it otherwise. Existing rankings for the score's year,
// and for its previous year when the edit moves it, are regenerated.
func (s *Service) SaveScore(ctx context.Context, in ScoreInput) (*store.Score, error) {
	if err := checkScore(in.Score); err != nil {
		return nil, err
	}
	if err := s.checkScoreRefs(ctx, in.CountryID, in.IndicatorID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetScoreByKey(ctx, in.CountryID, in.IndicatorID, in.Year)
	if err != nil {
		return nil, fmt.Errorf("get score: %w", err)
	}
	if existing == nil && in.ID != 0 {
		if existing, err = s.score(ctx, in.ID); err != nil {
			return nil, err
		}
	}

	years := []int{in.Year}
	sc := &store.Score{RawValue: in.RawValue}
	if existing != nil {
		years = append(years, existing.Year)
		sc = existing
		if in.RawValue != nil {
			sc.RawValue = in.RawValue
		}
	}
	sc.CountryID = in.CountryID
	sc.IndicatorID = in.IndicatorID
	sc.Year = in.Year
	sc.Score = scoring.RoundScore(in.Score)

	err = s.rescore(ctx, years, "score saved", func(tx store.Store) error {
		if existing == nil {
			if err := tx.CreateScore(ctx, sc); err != nil {
				return duplicate(err, "create score", "country %d already has a score for indicator %d in %d", in.CountryID, in.IndicatorID, in.Year)
			}
			return nil
		}
		if err := tx.UpdateScore(ctx, sc); err != nil {
			return duplicate(err, "update score", "country %d already has a score for indicator %d in %d", in.CountryID, in.IndicatorID, in.Year)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// UpdateScore changes a score's value and regenerates the year's ranking
// if one exists.
func (s *Service) UpdateScore(ctx context.Context, id int64, value float64) (*store.Score, error) {
	if err := checkScore(value); err != nil {
		return nil, err
	}
	sc, err := s.score(ctx, id)
	if err != nil {
		return nil, err
	}
	sc.Score = scoring.RoundScore(value)
	err = s.rescore(ctx, []int{sc.Year}, "score updated", func(tx store.Store) error {
		if err := tx.UpdateScore(ctx, sc); err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// DeleteScore removes a score and regenerates the year's ranking if one
// exists. When the ranking cannot be rebuilt without the score, the score
// stays.
func (s *Service) DeleteScore(ctx context.Context, id int64) error {
	sc, err := s.score(ctx, id)
	if err != nil {
		return err
	}
	return s.rescore(ctx, []int{sc.Year}, "score deleted", func(tx store.Store) error {
		if err := tx.DeleteScore(ctx, id); err != nil {
			return fmt.Errorf("delete score: %w", err)
		}
		return nil
	})
}

// ImportScores stores confirmed extraction results for year. The whole
// batch is rejected when any country already has a score for one of the
// indicators.
func (s *Service) ImportScores(ctx context.Context, year int, in []ImportedScore) ([]*store.Score, error) {
	if len(in) == 0 {
		return nil, apperr.BadRequest("no scores to import")
	}

	countries := make(map[string]*store.Country)
	conflicts := make(map[string]bool)
	batch := make([]*store.Score, 0, len(in))
	for _, item := range in {
		if err := checkScore(item.Score); err != nil {
			return nil, err
		}
		code := strings.ToUpper(strings.TrimSpace(item.CountryCode))
		c, ok := countries[code]
		if !ok {
			var err error
			if c, err = s.store.GetCountryByCode(ctx, code); err != nil {
				return nil, fmt.Errorf("get country: %w", err)
			}
			if c == nil {
				return nil, apperr.NotFound("country with code %q not found", code)
			}
			countries[code] = c
		}
		if _, err := s.indicator(ctx, item.IndicatorID); err != nil {
			return nil, err
		}

		existing, err := s.store.GetScoreByKey(ctx, c.ID, item.IndicatorID, year)
		if err != nil {
			return nil, fmt.Errorf("get score: %w", err)
		}
		if existing != nil {
			conflicts[c.Name] = true
			continue
		}
		batch = append(batch, &store.Score{
			CountryID:   c.ID,
			IndicatorID: item.IndicatorID,
			Year:        year,
			Score:       scoring.RoundScore(item.Score),
		})
	}

	if len(conflicts) > 0 {
		names := make([]string, 0, len(conflicts))
		for n := range conflicts {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, apperr.Conflict("scores for %d already exist for: %s", year, strings.Join(names, ", "))
	}
	if err := s.store.CreateScores(ctx, batch); err != nil {
		return nil, duplicate(err, "import scores", "the import for %d contains duplicate scores", year)
	}

	s.logger.Info("scores imported", "year", year, "count", len(batch))
	s.emit(hermes.SubjectScoresImported(year), hermes.ScoresImportedEvent{Year: year, Count: len(batch)})
	return batch, nil
}
