package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Tables are maps keyed by id and
// relations are foreign-key fields, mirroring the Postgres schema including
// its unique constraints and cascades.
type MemoryStore struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	nextID int64

	countries        map[int64]*Country
	dimensions       map[int64]*Dimension
	dimensionWeights map[int64]*DimensionWeight
	indicators       map[int64]*Indicator
	indicatorWeights map[int64]*IndicatorWeight
	scores           map[int64]*Score
	dimensionScores  map[int64]*DimensionScore
	ranks            map[int64]*Rank
	documents        map[int64]*Document

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		countries:        make(map[int64]*Country),
		dimensions:       make(map[int64]*Dimension),
		dimensionWeights: make(map[int64]*DimensionWeight),
		indicators:       make(map[int64]*Indicator),
		indicatorWeights: make(map[int64]*IndicatorWeight),
		scores:           make(map[int64]*Score),
		dimensionScores:  make(map[int64]*DimensionScore),
		ranks:            make(map[int64]*Rank),
		documents:        make(map[int64]*Document),
		now:              time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func sortedByID[T any](rows map[int64]*T, keep func(*T) bool) []*T {
	ids := make([]int64, 0, len(rows))
	for id, r := range rows {
		if keep == nil || keep(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*T, len(ids))
	for i, id := range ids {
		c := *rows[id]
		out[i] = &c
	}
	return out
}

func sortedYears(set map[int]struct{}) []int {
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Countries

func (m *MemoryStore) CreateCountry(_ context.Context, c *Country) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.countries {
		if ex.Name == c.Name || ex.Code == c.Code {
			return ErrDuplicate
		}
	}
	c.ID = m.id()
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.countries[c.ID] = clone(c)
	return nil
}

func (m *MemoryStore) GetCountry(_ context.Context, id int64) (*Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.countries[id]), nil
}

func (m *MemoryStore) GetCountryByCode(_ context.Context, code string) (*Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.countries {
		if c.Code == code {
			return clone(c), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListCountries(_ context.Context) ([]*Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.countries, nil), nil
}

func (m *MemoryStore) UpdateCountry(_ context.Context, c *Country) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.countries[c.ID]
	if !ok {
		return nil
	}
	for _, o := range m.countries {
		if o.ID != c.ID && (o.Name == c.Name || o.Code == c.Code) {
			return ErrDuplicate
		}
	}
	c.CreatedAt = ex.CreatedAt
	c.UpdatedAt = m.now()
	m.countries[c.ID] = clone(c)
	return nil
}

func (m *MemoryStore) DeleteCountry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.countries, id)
	for sid, s := range m.scores {
		if s.CountryID == id {
			delete(m.scores, sid)
		}
	}
	for did, ds := range m.dimensionScores {
		if ds.CountryID == id {
			delete(m.dimensionScores, did)
		}
	}
	for rid, r := range m.ranks {
		if r.CountryID == id {
			delete(m.ranks, rid)
		}
	}
	return nil
}

// Dimensions

func (m *MemoryStore) CreateDimension(_ context.Context, d *Dimension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.dimensions {
		if ex.Name == d.Name && ex.Year == d.Year {
			return ErrDuplicate
		}
	}
	d.ID = m.id()
	d.CreatedAt = m.now()
	d.UpdatedAt = d.CreatedAt
	m.dimensions[d.ID] = clone(d)
	return nil
}

func (m *MemoryStore) GetDimension(_ context.Context, id int64) (*Dimension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.dimensions[id]), nil
}

func (m *MemoryStore) GetDimensionByNameAndYear(_ context.Context, name string, year int) (*Dimension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.dimensions {
		if d.Name == name && d.Year == year {
			return clone(d), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListDimensions(_ context.Context, filter DimensionFilter) ([]*Dimension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.dimensions, func(d *Dimension) bool {
		return filter.Year == nil || d.Year == *filter.Year
	}), nil
}

func (m *MemoryStore) UpdateDimension(_ context.Context, d *Dimension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.dimensions[d.ID]
	if !ok {
		return nil
	}
	for _, o := range m.dimensions {
		if o.ID != d.ID && o.Name == d.Name && o.Year == d.Year {
			return ErrDuplicate
		}
	}
	d.CreatedAt = ex.CreatedAt
	d.UpdatedAt = m.now()
	m.dimensions[d.ID] = clone(d)
	return nil
}

// DeleteDimension removes the dimension with its weights, indicators (and
// their weights and scores) and dimension scores.
func (m *MemoryStore) DeleteDimension(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for iid, ind := range m.indicators {
		if ind.DimensionID == id {
			m.deleteIndicatorLocked(iid)
		}
	}
	for wid, w := range m.dimensionWeights {
		if w.DimensionID == id {
			m.deleteDimensionWeightLocked(wid)
		}
	}
	for did, ds := range m.dimensionScores {
		if ds.DimensionID == id {
			delete(m.dimensionScores, did)
		}
	}
	delete(m.dimensions, id)
	return nil
}

// Dimension weights

func (m *MemoryStore) SaveDimensionWeight(_ context.Context, w *DimensionWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, ex := range m.dimensionWeights {
		if ex.DimensionID == w.DimensionID && ex.Year == w.Year {
			ex.Weight = w.Weight
			ex.UpdatedAt = now
			*w = *ex
			return nil
		}
	}
	w.ID = m.id()
	w.CreatedAt = now
	w.UpdatedAt = now
	m.dimensionWeights[w.ID] = clone(w)
	return nil
}

func (m *MemoryStore) GetDimensionWeight(_ context.Context, dimensionID int64, year int) (*DimensionWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.dimensionWeightLocked(dimensionID, year)), nil
}

func (m *MemoryStore) dimensionWeightLocked(dimensionID int64, year int) *DimensionWeight {
	for _, w := range m.dimensionWeights {
		if w.DimensionID == dimensionID && w.Year == year {
			return w
		}
	}
	return nil
}

func (m *MemoryStore) ListDimensionWeightsByYear(_ context.Context, year int) ([]*DimensionWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.dimensionWeights, func(w *DimensionWeight) bool { return w.Year == year }), nil
}

func (m *MemoryStore) ListDimensionWeightsByDimension(_ context.Context, dimensionID int64) ([]*DimensionWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.dimensionWeights, func(w *DimensionWeight) bool { return w.DimensionID == dimensionID }), nil
}

func (m *MemoryStore) ListDimensionWeightYears(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[int]struct{})
	for _, w := range m.dimensionWeights {
		set[w.Year] = struct{}{}
	}
	return sortedYears(set), nil
}

func (m *MemoryStore) UpdateDimensionWeightValues(_ context.Context, weights []*DimensionWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, w := range weights {
		if ex, ok := m.dimensionWeights[w.ID]; ok {
			ex.Weight = w.Weight
			ex.UpdatedAt = now
		}
	}
	return nil
}

func (m *MemoryStore) DeleteDimensionWeight(_ context.Context, dimensionID int64, year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.dimensionWeightLocked(dimensionID, year); w != nil {
		m.deleteDimensionWeightLocked(w.ID)
	}
	return nil
}

func (m *MemoryStore) deleteDimensionWeightLocked(id int64) {
	for iwid, iw := range m.indicatorWeights {
		if iw.DimensionWeightID == id {
			delete(m.indicatorWeights, iwid)
		}
	}
	delete(m.dimensionWeights, id)
}

// Indicators

func (m *MemoryStore) CreateIndicator(_ context.Context, i *Indicator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i.ID = m.id()
	i.CreatedAt = m.now()
	i.UpdatedAt = i.CreatedAt
	m.indicators[i.ID] = clone(i)
	return nil
}

func (m *MemoryStore) GetIndicator(_ context.Context, id int64) (*Indicator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.indicators[id]), nil
}

func (m *MemoryStore) FindIndicatorByName(_ context.Context, dimensionID int64, name string) (*Indicator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ind := range sortedByID(m.indicators, nil) {
		if ind.DimensionID == dimensionID && ind.Name == name {
			return ind, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListIndicators(_ context.Context, filter IndicatorFilter) ([]*Indicator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.indicators, func(i *Indicator) bool {
		return filter.DimensionID == nil || i.DimensionID == *filter.DimensionID
	}), nil
}

func (m *MemoryStore) UpdateIndicator(_ context.Context, i *Indicator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.indicators[i.ID]
	if !ok {
		return nil
	}
	i.CreatedAt = ex.CreatedAt
	i.UpdatedAt = m.now()
	m.indicators[i.ID] = clone(i)
	return nil
}

// DeleteIndicator removes the indicator with its weights and scores.
func (m *MemoryStore) DeleteIndicator(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteIndicatorLocked(id)
	return nil
}

func (m *MemoryStore) deleteIndicatorLocked(id int64) {
	for wid, w := range m.indicatorWeights {
		if w.IndicatorID == id {
			delete(m.indicatorWeights, wid)
		}
	}
	for sid, s := range m.scores {
		if s.IndicatorID == id {
			delete(m.scores, sid)
		}
	}
	delete(m.indicators, id)
}

// Indicator weights

func (m *MemoryStore) SaveIndicatorWeight(_ context.Context, w *IndicatorWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, ex := range m.indicatorWeights {
		if ex.IndicatorID == w.IndicatorID && ex.Year == w.Year {
			ex.Weight = w.Weight
			ex.DimensionWeightID = w.DimensionWeightID
			ex.UpdatedAt = now
			*w = *ex
			return nil
		}
	}
	w.ID = m.id()
	w.CreatedAt = now
	w.UpdatedAt = now
	m.indicatorWeights[w.ID] = clone(w)
	return nil
}

func (m *MemoryStore) GetIndicatorWeight(_ context.Context, indicatorID int64, year int) (*IndicatorWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.indicatorWeights {
		if w.IndicatorID == indicatorID && w.Year == year {
			return clone(w), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListIndicatorWeightsByDimension(_ context.Context, dimensionID int64, year int) ([]*IndicatorWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dw := m.dimensionWeightLocked(dimensionID, year)
	if dw == nil {
		return nil, nil
	}
	return sortedByID(m.indicatorWeights, func(w *IndicatorWeight) bool {
		return w.DimensionWeightID == dw.ID
	}), nil
}

func (m *MemoryStore) ListIndicatorWeightsByIndicator(_ context.Context, indicatorID int64) ([]*IndicatorWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.indicatorWeights, func(w *IndicatorWeight) bool { return w.IndicatorID == indicatorID }), nil
}

func (m *MemoryStore) ListIndicatorScopes(_ context.Context) ([]IndicatorScope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[IndicatorScope]struct{})
	for _, w := range m.indicatorWeights {
		if dw, ok := m.dimensionWeights[w.DimensionWeightID]; ok {
			seen[IndicatorScope{DimensionID: dw.DimensionID, Year: dw.Year}] = struct{}{}
		}
	}
	out := make([]IndicatorScope, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].DimensionID < out[j].DimensionID
	})
	return out, nil
}

func (m *MemoryStore) ListIndicatorWeightYears(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[int]struct{})
	for _, w := range m.indicatorWeights {
		set[w.Year] = struct{}{}
	}
	return sortedYears(set), nil
}

func (m *MemoryStore) UpdateIndicatorWeightValues(_ context.Context, weights []*IndicatorWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, w := range weights {
		if ex, ok := m.indicatorWeights[w.ID]; ok {
			ex.Weight = w.Weight
			ex.UpdatedAt = now
		}
	}
	return nil
}

func (m *MemoryStore) DeleteIndicatorWeight(_ context.Context, indicatorID int64, year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for wid, w := range m.indicatorWeights {
		if w.IndicatorID == indicatorID && w.Year == year {
			delete(m.indicatorWeights, wid)
		}
	}
	return nil
}

// Scores

func (m *MemoryStore) scoreByKeyLocked(countryID, indicatorID int64, year int) *Score {
	for _, s := range m.scores {
		if s.CountryID == countryID && s.IndicatorID == indicatorID && s.Year == year {
			return s
		}
	}
	return nil
}

func (m *MemoryStore) CreateScore(_ context.Context, s *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scoreByKeyLocked(s.CountryID, s.IndicatorID, s.Year) != nil {
		return ErrDuplicate
	}
	m.insertScoreLocked(s)
	return nil
}

func (m *MemoryStore) insertScoreLocked(s *Score) {
	s.ID = m.id()
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	m.scores[s.ID] = clone(s)
}

// CreateScores inserts all scores or none.
func (m *MemoryStore) CreateScores(_ context.Context, scores []*Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct {
		country, indicator int64
		year               int
	}
	batch := make(map[key]struct{}, len(scores))
	for _, s := range scores {
		k := key{s.CountryID, s.IndicatorID, s.Year}
		if _, dup := batch[k]; dup || m.scoreByKeyLocked(s.CountryID, s.IndicatorID, s.Year) != nil {
			return ErrDuplicate
		}
		batch[k] = struct{}{}
	}
	for _, s := range scores {
		m.insertScoreLocked(s)
	}
	return nil
}

func (m *MemoryStore) GetScore(_ context.Context, id int64) (*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.scores[id]), nil
}

func (m *MemoryStore) GetScoreByKey(_ context.Context, countryID, indicatorID int64, year int) (*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.scoreByKeyLocked(countryID, indicatorID, year)), nil
}

func (m *MemoryStore) ListScores(_ context.Context, filter ScoreFilter) ([]*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := sortedByID(m.scores, func(s *Score) bool {
		if filter.Year != nil && s.Year != *filter.Year {
			return false
		}
		if filter.CountryID != nil && s.CountryID != *filter.CountryID {
			return false
		}
		if filter.IndicatorID != nil && s.IndicatorID != *filter.IndicatorID {
			return false
		}
		return true
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListScoredCountries(_ context.Context, year int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[int64]struct{})
	for _, s := range m.scores {
		if s.Year == year {
			set[s.CountryID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) UpdateScore(_ context.Context, s *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.scores[s.ID]
	if !ok {
		return nil
	}
	if o := m.scoreByKeyLocked(s.CountryID, s.IndicatorID, s.Year); o != nil && o.ID != s.ID {
		return ErrDuplicate
	}
	s.CreatedAt = ex.CreatedAt
	s.UpdatedAt = m.now()
	m.scores[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) DeleteScore(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scores, id)
	return nil
}

// Dimension scores

func (m *MemoryStore) CreateDimensionScore(_ context.Context, ds *DimensionScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.dimensionScores {
		if ex.CountryID == ds.CountryID && ex.DimensionID == ds.DimensionID && ex.Year == ds.Year {
			return ErrDuplicate
		}
	}
	ds.ID = m.id()
	ds.CreatedAt = m.now()
	m.dimensionScores[ds.ID] = clone(ds)
	return nil
}

func (m *MemoryStore) GetDimensionScore(_ context.Context, countryID, dimensionID int64, year int) (*DimensionScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ds := range m.dimensionScores {
		if ds.CountryID == countryID && ds.DimensionID == dimensionID && ds.Year == year {
			return clone(ds), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListDimensionScoresByYear(_ context.Context, year int) ([]*DimensionScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByID(m.dimensionScores, func(ds *DimensionScore) bool { return ds.Year == year }), nil
}

// Ranks

func (m *MemoryStore) CreateRank(_ context.Context, r *Rank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.ranks {
		if ex.CountryID == r.CountryID && ex.Year == r.Year {
			return ErrDuplicate
		}
	}
	r.ID = m.id()
	r.CreatedAt = m.now()
	m.ranks[r.ID] = clone(r)
	return nil
}

func (m *MemoryStore) GetRank(_ context.Context, countryID int64, year int) (*Rank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.ranks {
		if r.CountryID == countryID && r.Year == year {
			return clone(r), nil
		}
	}
	return nil, nil
}

// ListRanksByYear returns the year's ranks ordered by position, then final
// score descending.
func (m *MemoryStore) ListRanksByYear(_ context.Context, year int) ([]*Rank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := sortedByID(m.ranks, func(r *Rank) bool { return r.Year == year })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].FinalScore > out[j].FinalScore
	})
	return out, nil
}

func (m *MemoryStore) CountRanksByYear(_ context.Context, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.ranks {
		if r.Year == year {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListRankedYears(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[int]struct{})
	for _, r := range m.ranks {
		set[r.Year] = struct{}{}
	}
	return sortedYears(set), nil
}

func (m *MemoryStore) UpdateRankPositions(_ context.Context, ranks []*Rank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range ranks {
		if ex, ok := m.ranks[r.ID]; ok {
			ex.Position = r.Position
		}
	}
	return nil
}

func (m *MemoryStore) DeleteRankingByYear(_ context.Context, year int) (*RankingDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	del := &RankingDeletion{Year: year}
	for id, r := range m.ranks {
		if r.Year == year {
			delete(m.ranks, id)
			del.Ranks++
		}
	}
	for id, ds := range m.dimensionScores {
		if ds.Year == year {
			delete(m.dimensionScores, id)
			del.DimensionScores++
		}
	}
	return del, nil
}

// Documents

func (m *MemoryStore) CreateDocument(_ context.Context, d *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.documents {
		if ex.Year == d.Year {
			return ErrDuplicate
		}
	}
	d.ID = m.id()
	d.CreatedAt = m.now()
	d.UpdatedAt = d.CreatedAt
	m.documents[d.ID] = clone(d)
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, id int64) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.documents[id]), nil
}

func (m *MemoryStore) GetDocumentByYear(_ context.Context, year int) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.documents {
		if d.Year == year {
			return clone(d), nil
		}
	}
	return nil, nil
}

// ListDocuments orders by year, newest first.
func (m *MemoryStore) ListDocuments(_ context.Context) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := sortedByID(m.documents, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, d *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.documents[d.ID]
	if !ok {
		return nil
	}
	for _, o := range m.documents {
		if o.ID != d.ID && o.Year == d.Year {
			return ErrDuplicate
		}
	}
	d.CreatedAt = ex.CreatedAt
	d.UpdatedAt = m.now()
	m.documents[d.ID] = clone(d)
	return nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	return nil
}
