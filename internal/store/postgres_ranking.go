package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Scores

var scoreColumns = []string{"id", "country_id", "indicator_id", "year", "score", "raw_value", "created_at", "updated_at"}

func scanScore(row pgx.Row) (*Score, error) {
	sc := &Score{}
	if err := row.Scan(&sc.ID, &sc.CountryID, &sc.IndicatorID, &sc.Year, &sc.Score, &sc.RawValue, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return sc, nil
}

const insertScore = `
	INSERT INTO scores (country_id, indicator_id, year, score, raw_value)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at, updated_at`

func (s *PostgresStore) CreateScore(ctx context.Context, sc *Score) error {
	err := s.db.QueryRow(ctx, insertScore,
		sc.CountryID, sc.IndicatorID, sc.Year, sc.Score, sc.RawValue,
	).Scan(&sc.ID, &sc.CreatedAt, &sc.UpdatedAt)
	return mapErr(err)
}

// CreateScores inserts the batch in a single transaction.
func (s *PostgresStore) CreateScores(ctx context.Context, scores []*Score) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sc := range scores {
		if err := tx.QueryRow(ctx, insertScore,
			sc.CountryID, sc.IndicatorID, sc.Year, sc.Score, sc.RawValue,
		).Scan(&sc.ID, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return mapErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) getScore(ctx context.Context, where sq.Sqlizer) (*Score, error) {
	query, args, err := psql.Select(scoreColumns...).From("scores").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	sc, err := scanScore(s.db.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return sc, err
}

func (s *PostgresStore) GetScore(ctx context.Context, id int64) (*Score, error) {
	return s.getScore(ctx, sq.Eq{"id": id})
}

func (s *PostgresStore) GetScoreByKey(ctx context.Context, countryID, indicatorID int64, year int) (*Score, error) {
	return s.getScore(ctx, sq.Eq{"country_id": countryID, "indicator_id": indicatorID, "year": year})
}

func (s *PostgresStore) ListScores(ctx context.Context, filter ScoreFilter) ([]*Score, error) {
	q := psql.Select(scoreColumns...).From("scores").OrderBy("id")
	if filter.Year != nil {
		q = q.Where(sq.Eq{"year": *filter.Year})
	}
	if filter.CountryID != nil {
		q = q.Where(sq.Eq{"country_id": *filter.CountryID})
	}
	if filter.IndicatorID != nil {
		q = q.Where(sq.Eq{"indicator_id": *filter.IndicatorID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListScoredCountries(ctx context.Context, year int) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT country_id FROM scores WHERE year = $1 ORDER BY country_id`, year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *PostgresStore) UpdateScore(ctx context.Context, sc *Score) error {
	err := s.db.QueryRow(ctx, `
		UPDATE scores SET country_id = $2, indicator_id = $3, year = $4, score = $5, raw_value = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		sc.ID, sc.CountryID, sc.IndicatorID, sc.Year, sc.Score, sc.RawValue,
	).Scan(&sc.CreatedAt, &sc.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil
	}
	return mapErr(err)
}

func (s *PostgresStore) DeleteScore(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM scores WHERE id = $1`, id)
	return err
}

// Dimension scores

const dimensionScoreColumns = `id, country_id, dimension_id, year, score, created_at`

func (s *PostgresStore) CreateDimensionScore(ctx context.Context, ds *DimensionScore) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO dimension_scores (country_id, dimension_id, year, score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		ds.CountryID, ds.DimensionID, ds.Year, ds.Score,
	).Scan(&ds.ID, &ds.CreatedAt)
	return mapErr(err)
}

func (s *PostgresStore) GetDimensionScore(ctx context.Context, countryID, dimensionID int64, year int) (*DimensionScore, error) {
	ds := &DimensionScore{}
	err := s.db.QueryRow(ctx, `
		SELECT `+dimensionScoreColumns+` FROM dimension_scores
		WHERE country_id = $1 AND dimension_id = $2 AND year = $3`,
		countryID, dimensionID, year,
	).Scan(&ds.ID, &ds.CountryID, &ds.DimensionID, &ds.Year, &ds.Score, &ds.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *PostgresStore) ListDimensionScoresByYear(ctx context.Context, year int) ([]*DimensionScore, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+dimensionScoreColumns+` FROM dimension_scores
		WHERE year = $1 ORDER BY id`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*DimensionScore
	for rows.Next() {
		ds := &DimensionScore{}
		if err := rows.Scan(&ds.ID, &ds.CountryID, &ds.DimensionID, &ds.Year, &ds.Score, &ds.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// Ranks

const rankColumns = `id, country_id, year, final_score, position, created_at`

func (s *PostgresStore) CreateRank(ctx context.Context, r *Rank) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO ranks (country_id, year, final_score, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		r.CountryID, r.Year, r.FinalScore, r.Position,
	).Scan(&r.ID, &r.CreatedAt)
	return mapErr(err)
}

func (s *PostgresStore) GetRank(ctx context.Context, countryID int64, year int) (*Rank, error) {
	r := &Rank{}
	err := s.db.QueryRow(ctx, `
		SELECT `+rankColumns+` FROM ranks WHERE country_id = $1 AND year = $2`,
		countryID, year,
	).Scan(&r.ID, &r.CountryID, &r.Year, &r.FinalScore, &r.Position, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRanksByYear(ctx context.Context, year int) ([]*Rank, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rankColumns+` FROM ranks
		WHERE year = $1
		ORDER BY position, final_score DESC, id`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Rank
	for rows.Next() {
		r := &Rank{}
		if err := rows.Scan(&r.ID, &r.CountryID, &r.Year, &r.FinalScore, &r.Position, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountRanksByYear(ctx context.Context, year int) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM ranks WHERE year = $1`, year).Scan(&n)
	return n, err
}

func (s *PostgresStore) ListRankedYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT year FROM ranks ORDER BY year`)
	if err != nil {
		return nil, err
	}
	return collectYears(rows)
}

func (s *PostgresStore) UpdateRankPositions(ctx context.Context, ranks []*Rank) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range ranks {
		if _, err := tx.Exec(ctx, `UPDATE ranks SET position = $2 WHERE id = $1`, r.ID, r.Position); err != nil {
			return fmt.Errorf("update rank %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteRankingByYear removes the year's ranks and dimension scores in one
// transaction.
func (s *PostgresStore) DeleteRankingByYear(ctx context.Context, year int) (*RankingDeletion, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	del := &RankingDeletion{Year: year}
	tag, err := tx.Exec(ctx, `DELETE FROM ranks WHERE year = $1`, year)
	if err != nil {
		return nil, fmt.Errorf("delete ranks: %w", err)
	}
	del.Ranks = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `DELETE FROM dimension_scores WHERE year = $1`, year)
	if err != nil {
		return nil, fmt.Errorf("delete dimension scores: %w", err)
	}
	del.DimensionScores = int(tag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return del, nil
}
