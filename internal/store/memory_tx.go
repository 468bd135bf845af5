package store

import "context"

// memorySnapshot holds copies of every table. IDs are not rewound on
// rollback, matching Postgres sequences.
type memorySnapshot struct {
	countries        map[int64]*Country
	dimensions       map[int64]*Dimension
	dimensionWeights map[int64]*DimensionWeight
	indicators       map[int64]*Indicator
	indicatorWeights map[int64]*IndicatorWeight
	scores           map[int64]*Score
	dimensionScores  map[int64]*DimensionScore
	ranks            map[int64]*Rank
	documents        map[int64]*Document
}

func copyTable[T any](rows map[int64]*T) map[int64]*T {
	out := make(map[int64]*T, len(rows))
	for id, r := range rows {
		out[id] = clone(r)
	}
	return out
}

func (m *MemoryStore) snapshot() *memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &memorySnapshot{
		countries:        copyTable(m.countries),
		dimensions:       copyTable(m.dimensions),
		dimensionWeights: copyTable(m.dimensionWeights),
		indicators:       copyTable(m.indicators),
		indicatorWeights: copyTable(m.indicatorWeights),
		scores:           copyTable(m.scores),
		dimensionScores:  copyTable(m.dimensionScores),
		ranks:            copyTable(m.ranks),
		documents:        copyTable(m.documents),
	}
}

func (m *MemoryStore) restore(snap *memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countries = snap.countries
	m.dimensions = snap.dimensions
	m.dimensionWeights = snap.dimensionWeights
	m.indicators = snap.indicators
	m.indicatorWeights = snap.indicatorWeights
	m.scores = snap.scores
	m.dimensionScores = snap.dimensionScores
	m.ranks = snap.ranks
	m.documents = snap.documents
}

// InTx runs fn against the store and restores a snapshot taken beforehand
// when fn fails or panics. Transactions are serialized with each other;
// plain writes that land while a transaction is failing are rolled back
// with it.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.runTx(ctx, fn)
}

func (m *MemoryStore) runTx(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := m.snapshot()
	committed := false
	defer func() {
		if !committed {
			m.restore(snap)
		}
	}()
	if err := fn(memTx{m}); err != nil {
		return err
	}
	committed = true
	return nil
}

// memTx is the Store handed to an InTx callback. Its InTx is a savepoint
// that does not retake the transaction lock.
type memTx struct {
	*MemoryStore
}

func (t memTx) InTx(ctx context.Context, fn func(tx Store) error) error {
	return t.runTx(ctx, fn)
}
