package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresStore struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool, db: pool}, nil
}

// Close releases the pool. It is a no-op on a transaction-bound store.
func (s *PostgresStore) Close() error {
	if _, ok := s.db.(*txConn); ok {
		return nil
	}
	s.pool.Close()
	return nil
}

// mapErr translates unique violations into ErrDuplicate.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func collectYears(rows pgx.Rows) ([]int, error) {
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// Countries

const countryColumns = `id, name, code, region, created_at, updated_at`

func scanCountry(row pgx.Row) (*Country, error) {
	c := &Country{}
	if err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Region, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) CreateCountry(ctx context.Context, c *Country) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO countries (name, code, region)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Code, c.Region,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapErr(err)
}

func (s *PostgresStore) GetCountry(ctx context.Context, id int64) (*Country, error) {
	c, err := scanCountry(s.db.QueryRow(ctx, `SELECT `+countryColumns+` FROM countries WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *PostgresStore) GetCountryByCode(ctx context.Context, code string) (*Country, error) {
	c, err := scanCountry(s.db.QueryRow(ctx, `SELECT `+countryColumns+` FROM countries WHERE code = $1`, code))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *PostgresStore) ListCountries(ctx context.Context) ([]*Country, error) {
	rows, err := s.db.Query(ctx, `SELECT `+countryColumns+` FROM countries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateCountry(ctx context.Context, c *Country) error {
	err := s.db.QueryRow(ctx, `
		UPDATE countries SET name = $2, code = $3, region = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Code, c.Region,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil
	}
	return mapErr(err)
}

func (s *PostgresStore) DeleteCountry(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM countries WHERE id = $1`, id)
	return err
}

// Dimensions

var dimensionColumns = []string{"id", "name", "description", "year", "display_order", "created_at", "updated_at"}

func scanDimension(row pgx.Row) (*Dimension, error) {
	d := &Dimension{}
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Year, &d.DisplayOrder, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) CreateDimension(ctx context.Context, d *Dimension) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO dimensions (name, description, year, display_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		d.Name, d.Description, d.Year, d.DisplayOrder,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	return mapErr(err)
}

func (s *PostgresStore) getDimension(ctx context.Context, where sq.Sqlizer) (*Dimension, error) {
	query, args, err := psql.Select(dimensionColumns...).From("dimensions").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	d, err := scanDimension(s.db.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *PostgresStore) GetDimension(ctx context.Context, id int64) (*Dimension, error) {
	return s.getDimension(ctx, sq.Eq{"id": id})
}

func (s *PostgresStore) GetDimensionByNameAndYear(ctx context.Context, name string, year int) (*Dimension, error) {
	return s.getDimension(ctx, sq.Eq{"name": name, "year": year})
}

func (s *PostgresStore) ListDimensions(ctx context.Context, filter DimensionFilter) ([]*Dimension, error) {
	q := psql.Select(dimensionColumns...).From("dimensions").OrderBy("id")
	if filter.Year != nil {
		q = q.Where(sq.Eq{"year": *filter.Year})
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
	var out []*Dimension
	for rows.Next() {
		d, err := scanDimension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateDimension(ctx context.Context, d *Dimension) error {
	err := s.db.QueryRow(ctx, `
		UPDATE dimensions SET name = $2, description = $3, year = $4, display_order = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Description, d.Year, d.DisplayOrder,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil
	}
	return mapErr(err)
}

// DeleteDimension relies on ON DELETE CASCADE for weights, indicators,
// indicator weights, scores and dimension scores.
func (s *PostgresStore) DeleteDimension(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM dimensions WHERE id = $1`, id)
	return err
}

// Dimension weights

const dimensionWeightColumns = `id, dimension_id, year, weight, created_at, updated_at`

func scanDimensionWeights(rows pgx.Rows) ([]*DimensionWeight, error) {
	defer rows.Close()
	var out []*DimensionWeight
	for rows.Next() {
		w := &DimensionWeight{}
		if err := rows.Scan(&w.ID, &w.DimensionID, &w.Year, &w.Weight, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveDimensionWeight(ctx context.Context, w *DimensionWeight) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO dimension_weights (dimension_id, year, weight)
		VALUES ($1, $2, $3)
		ON CONFLICT (dimension_id, year) DO UPDATE SET weight = EXCLUDED.weight, updated_at = now()
		RETURNING id, created_at, updated_at`,
		w.DimensionID, w.Year, w.Weight,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (s *PostgresStore) GetDimensionWeight(ctx context.Context, dimensionID int64, year int) (*DimensionWeight, error) {
	w := &DimensionWeight{}
	err := s.db.QueryRow(ctx, `
		SELECT `+dimensionWeightColumns+` FROM dimension_weights
		WHERE dimension_id = $1 AND year = $2`, dimensionID, year,
	).Scan(&w.ID, &w.DimensionID, &w.Year, &w.Weight, &w.CreatedAt, &w.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *PostgresStore) ListDimensionWeightsByYear(ctx context.Context, year int) ([]*DimensionWeight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+dimensionWeightColumns+` FROM dimension_weights
		WHERE year = $1 ORDER BY id`, year)
	if err != nil {
		return nil, err
	}
	return scanDimensionWeights(rows)
}

func (s *PostgresStore) ListDimensionWeightsByDimension(ctx context.Context, dimensionID int64) ([]*DimensionWeight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+dimensionWeightColumns+` FROM dimension_weights
		WHERE dimension_id = $1 ORDER BY id`, dimensionID)
	if err != nil {
		return nil, err
	}
	return scanDimensionWeights(rows)
}

func (s *PostgresStore) ListDimensionWeightYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT year FROM dimension_weights ORDER BY year`)
	if err != nil {
		return nil, err
	}
	return collectYears(rows)
}

func (s *PostgresStore) UpdateDimensionWeightValues(ctx context.Context, weights []*DimensionWeight) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, w := range weights {
		if _, err := tx.Exec(ctx, `
			UPDATE dimension_weights SET weight = $2, updated_at = now() WHERE id = $1`,
			w.ID, w.Weight); err != nil {
			return fmt.Errorf("update dimension weight %d: %w", w.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDimensionWeight(ctx context.Context, dimensionID int64, year int) error {
	_, err := s.db.Exec(ctx, `DELETE FROM dimension_weights WHERE dimension_id = $1 AND year = $2`, dimensionID, year)
	return err
}

// Indicators

var indicatorColumns = []string{"id", "name", "description", "normalization_type", "dimension_id", "created_at", "updated_at"}

func scanIndicator(row pgx.Row) (*Indicator, error) {
	i := &Indicator{}
	if err := row.Scan(&i.ID, &i.Name, &i.Description, &i.NormalizationType, &i.DimensionID, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *PostgresStore) CreateIndicator(ctx context.Context, i *Indicator) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO indicators (name, description, normalization_type, dimension_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		i.Name, i.Description, i.NormalizationType, i.DimensionID,
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
}

func (s *PostgresStore) getIndicator(ctx context.Context, where sq.Sqlizer) (*Indicator, error) {
	query, args, err := psql.Select(indicatorColumns...).From("indicators").Where(where).OrderBy("id").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	i, err := scanIndicator(s.db.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return i, err
}

func (s *PostgresStore) GetIndicator(ctx context.Context, id int64) (*Indicator, error) {
	return s.getIndicator(ctx, sq.Eq{"id": id})
}

func (s *PostgresStore) FindIndicatorByName(ctx context.Context, dimensionID int64, name string) (*Indicator, error) {
	return s.getIndicator(ctx, sq.Eq{"dimension_id": dimensionID, "name": name})
}

func (s *PostgresStore) ListIndicators(ctx context.Context, filter IndicatorFilter) ([]*Indicator, error) {
	q := psql.Select(indicatorColumns...).From("indicators").OrderBy("id")
	if filter.DimensionID != nil {
		q = q.Where(sq.Eq{"dimension_id": *filter.DimensionID})
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
	var out []*Indicator
	for rows.Next() {
		i, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateIndicator(ctx context.Context, i *Indicator) error {
	err := s.db.QueryRow(ctx, `
		UPDATE indicators SET name = $2, description = $3, normalization_type = $4, dimension_id = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		i.ID, i.Name, i.Description, i.NormalizationType, i.DimensionID,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil
	}
	return err
}

// DeleteIndicator relies on ON DELETE CASCADE for indicator weights and scores.
func (s *PostgresStore) DeleteIndicator(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM indicators WHERE id = $1`, id)
	return err
}

// Indicator weights

const indicatorWeightColumns = `iw.id, iw.indicator_id, iw.dimension_weight_id, iw.year, iw.weight, iw.created_at, iw.updated_at`

func scanIndicatorWeights(rows pgx.Rows) ([]*IndicatorWeight, error) {
	defer rows.Close()
	var out []*IndicatorWeight
	for rows.Next() {
		w := &IndicatorWeight{}
		if err := rows.Scan(&w.ID, &w.IndicatorID, &w.DimensionWeightID, &w.Year, &w.Weight, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveIndicatorWeight(ctx context.Context, w *IndicatorWeight) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO indicator_weights (indicator_id, dimension_weight_id, year, weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (indicator_id, year) DO UPDATE
			SET weight = EXCLUDED.weight, dimension_weight_id = EXCLUDED.dimension_weight_id, updated_at = now()
		RETURNING id, created_at, updated_at`,
		w.IndicatorID, w.DimensionWeightID, w.Year, w.Weight,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (s *PostgresStore) GetIndicatorWeight(ctx context.Context, indicatorID int64, year int) (*IndicatorWeight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+indicatorWeightColumns+` FROM indicator_weights iw
		WHERE iw.indicator_id = $1 AND iw.year = $2`, indicatorID, year)
	if err != nil {
		return nil, err
	}
	ws, err := scanIndicatorWeights(rows)
	if err != nil || len(ws) == 0 {
		return nil, err
	}
	return ws[0], nil
}

func (s *PostgresStore) ListIndicatorWeightsByDimension(ctx context.Context, dimensionID int64, year int) ([]*IndicatorWeight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+indicatorWeightColumns+`
		FROM indicator_weights iw
		JOIN dimension_weights dw ON dw.id = iw.dimension_weight_id
		WHERE dw.dimension_id = $1 AND dw.year = $2
		ORDER BY iw.id`, dimensionID, year)
	if err != nil {
		return nil, err
	}
	return scanIndicatorWeights(rows)
}

func (s *PostgresStore) ListIndicatorWeightsByIndicator(ctx context.Context, indicatorID int64) ([]*IndicatorWeight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+indicatorWeightColumns+` FROM indicator_weights iw
		WHERE iw.indicator_id = $1 ORDER BY iw.id`, indicatorID)
	if err != nil {
		return nil, err
	}
	return scanIndicatorWeights(rows)
}

func (s *PostgresStore) ListIndicatorScopes(ctx context.Context) ([]IndicatorScope, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT dw.dimension_id, dw.year
		FROM indicator_weights iw
		JOIN dimension_weights dw ON dw.id = iw.dimension_weight_id
		ORDER BY dw.year, dw.dimension_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IndicatorScope
	for rows.Next() {
		var sc IndicatorScope
		if err := rows.Scan(&sc.DimensionID, &sc.Year); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListIndicatorWeightYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT year FROM indicator_weights ORDER BY year`)
	if err != nil {
		return nil, err
	}
	return collectYears(rows)
}

func (s *PostgresStore) UpdateIndicatorWeightValues(ctx context.Context, weights []*IndicatorWeight) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, w := range weights {
		if _, err := tx.Exec(ctx, `
			UPDATE indicator_weights SET weight = $2, updated_at = now() WHERE id = $1`,
			w.ID, w.Weight); err != nil {
			return fmt.Errorf("update indicator weight %d: %w", w.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteIndicatorWeight(ctx context.Context, indicatorID int64, year int) error {
	_, err := s.db.Exec(ctx, `DELETE FROM indicator_weights WHERE indicator_id = $1 AND year = $2`, indicatorID, year)
	return err
}
