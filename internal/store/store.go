package store

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned when a write would violate a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate key")

// DefaultNormalizationType is applied to indicators created without one.
const DefaultNormalizationType = "MinMax"

type Country struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Region    string    `json:"region,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Dimension struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Year         int       `json:"year"`
	DisplayOrder *int      `json:"display_order,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DimensionWeight is a dimension's share (integer percent) of the final score
// for one year.
type DimensionWeight struct {
	ID          int64     `json:"id"`
	DimensionID int64     `json:"dimension_id"`
	Year        int       `json:"year"`
	Weight      int       `json:"weight"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Indicator rows are shared across years: the weight row tagged with a year
// is what places an indicator in that year's model.
type Indicator struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	NormalizationType string    `json:"normalization_type"`
	DimensionID       int64     `json:"dimension_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IndicatorWeight is an indicator's share (integer percent) of its dimension
// score for one year. DimensionWeightID links it to the dimension/year it
// contributes to.
type IndicatorWeight struct {
	ID                int64     `json:"id"`
	IndicatorID       int64     `json:"indicator_id"`
	DimensionWeightID int64     `json:"dimension_weight_id"`
	Year              int       `json:"year"`
	Weight            int       `json:"weight"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Score struct {
	ID          int64     `json:"id"`
	CountryID   int64     `json:"country_id"`
	IndicatorID int64     `json:"indicator_id"`
	Year        int       `json:"year"`
	Score       float64   `json:"score"`
	RawValue    *float64  `json:"raw_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DimensionScore struct {
	ID          int64     `json:"id"`
	CountryID   int64     `json:"country_id"`
	DimensionID int64     `json:"dimension_id"`
	Year        int       `json:"year"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

// Rank holds a country's final score for a year. Position is 0 until the
// ranking pass assigns ordinals.
type Rank struct {
	ID         int64     `json:"id"`
	CountryID  int64     `json:"country_id"`
	Year       int       `json:"year"`
	FinalScore float64   `json:"final_score"`
	Position   int       `json:"rank"`
	CreatedAt  time.Time `json:"created_at"`
}

// IndicatorScope identifies the indicator weights of one dimension/year.
type IndicatorScope struct {
	DimensionID int64 `json:"dimension_id"`
	Year        int   `json:"year"`
}

// Document is the published report for one year. FileKey locates the file
// in the document file store.
type Document struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Year      int       `json:"year"`
	FileName  string    `json:"file_name"`
	FileKey   string    `json:"-"`
	FileSize  int64     `json:"file_size"`
	FileType  string    `json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RankingDeletion reports what DeleteRankingByYear removed.
type RankingDeletion struct {
	Year            int `json:"year"`
	Ranks           int `json:"ranks"`
	DimensionScores int `json:"dimension_scores"`
}

type DimensionFilter struct {
	Year *int
}

type IndicatorFilter struct {
	DimensionID *int64
}

type ScoreFilter struct {
	Year        *int
	CountryID   *int64
	IndicatorID *int64
	Limit       int
	Offset      int
}

// Store is the persistence boundary. Getters return nil, nil when the row
// does not exist; Create* methods return ErrDuplicate on uniqueness violations.
type Store interface {
	// InTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling InTx on a transaction's Store opens a nested savepoint.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// Countries
	CreateCountry(ctx context.Context, c *Country) error
	GetCountry(ctx context.Context, id int64) (*Country, error)
	GetCountryByCode(ctx context.Context, code string) (*Country, error)
	ListCountries(ctx context.Context) ([]*Country, error)
	UpdateCountry(ctx context.Context, c *Country) error
	DeleteCountry(ctx context.Context, id int64) error

	// Dimensions
	CreateDimension(ctx context.Context, d *Dimension) error
	GetDimension(ctx context.Context, id int64) (*Dimension, error)
	GetDimensionByNameAndYear(ctx context.Context, name string, year int) (*Dimension, error)
	ListDimensions(ctx context.Context, filter DimensionFilter) ([]*Dimension, error)
	UpdateDimension(ctx context.Context, d *Dimension) error
	DeleteDimension(ctx context.Context, id int64) error

	// Dimension weights
	SaveDimensionWeight(ctx context.Context, w *DimensionWeight) error
	GetDimensionWeight(ctx context.Context, dimensionID int64, year int) (*DimensionWeight, error)
	ListDimensionWeightsByYear(ctx context.Context, year int) ([]*DimensionWeight, error)
	ListDimensionWeightsByDimension(ctx context.Context, dimensionID int64) ([]*DimensionWeight, error)
	ListDimensionWeightYears(ctx context.Context) ([]int, error)
	UpdateDimensionWeightValues(ctx context.Context, weights []*DimensionWeight) error
	DeleteDimensionWeight(ctx context.Context, dimensionID int64, year int) error

	// Indicators
	CreateIndicator(ctx context.Context, i *Indicator) error
	GetIndicator(ctx context.Context, id int64) (*Indicator, error)
	FindIndicatorByName(ctx context.Context, dimensionID int64, name string) (*Indicator, error)
	ListIndicators(ctx context.Context, filter IndicatorFilter) ([]*Indicator, error)
	UpdateIndicator(ctx context.Context, i *Indicator) error
	DeleteIndicator(ctx context.Context, id int64) error

	// Indicator weights
	SaveIndicatorWeight(ctx context.Context, w *IndicatorWeight) error
	GetIndicatorWeight(ctx context.Context, indicatorID int64, year int) (*IndicatorWeight, error)
	ListIndicatorWeightsByDimension(ctx context.Context, dimensionID int64, year int) ([]*IndicatorWeight, error)
	ListIndicatorWeightsByIndicator(ctx context.Context, indicatorID int64) ([]*IndicatorWeight, error)
	ListIndicatorScopes(ctx context.Context) ([]IndicatorScope, error)
	ListIndicatorWeightYears(ctx context.Context) ([]int, error)
	UpdateIndicatorWeightValues(ctx context.Context, weights []*IndicatorWeight) error
	DeleteIndicatorWeight(ctx context.Context, indicatorID int64, year int) error

	// Scores
	CreateScore(ctx context.Context, s *Score) error
	CreateScores(ctx context.Context, scores []*Score) error
	GetScore(ctx context.Context, id int64) (*Score, error)
	GetScoreByKey(ctx context.Context, countryID, indicatorID int64, year int) (*Score, error)
	ListScores(ctx context.Context, filter ScoreFilter) ([]*Score, error)
	ListScoredCountries(ctx context.Context, year int) ([]int64, error)
	UpdateScore(ctx context.Context, s *Score) error
	DeleteScore(ctx context.Context, id int64) error

	// Dimension scores
	CreateDimensionScore(ctx context.Context, ds *DimensionScore) error
	GetDimensionScore(ctx context.Context, countryID, dimensionID int64, year int) (*DimensionScore, error)
	ListDimensionScoresByYear(ctx context.Context, year int) ([]*DimensionScore, error)

	// Ranks
	CreateRank(ctx context.Context, r *Rank) error
	GetRank(ctx context.Context, countryID int64, year int) (*Rank, error)
	ListRanksByYear(ctx context.Context, year int) ([]*Rank, error)
	CountRanksByYear(ctx context.Context, year int) (int, error)
	ListRankedYears(ctx context.Context) ([]int, error)
	UpdateRankPositions(ctx context.Context, ranks []*Rank) error
	DeleteRankingByYear(ctx context.Context, year int) (*RankingDeletion, error)

	// Documents, at most one per year
	CreateDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	GetDocumentByYear(ctx context.Context, year int) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	UpdateDocument(ctx context.Context, d *Document) error
	DeleteDocument(ctx context.Context, id int64) error

	Close() error
}
