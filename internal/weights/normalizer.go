package weights

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/metrics"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

// Result describes one normalization or redistribution of a scope.
type Result struct {
	Scope   Scope `json:"scope"`
	Before  []int `json:"before"`
	After   []int `json:"after"`
	Changed bool  `json:"changed"`
}

// Total is a scope's current weight sum and headroom below 100.
type Total struct {
	Scope        Scope `json:"scope"`
	CurrentTotal int   `json:"current_total"`
	Remaining    int   `json:"remaining"`
}

type Options struct {
	// StrictLimit makes ValidateLimit return internal errors instead of
	// allowing the write.
	StrictLimit bool
	// LockWait bounds how long Normalize and Distribute wait for the scope
	// lock. Zero waits until the caller's context is done.
	LockWait time.Duration
}

type Normalizer struct {
	store  store.Store
	locker Locker
	opts   Options
	logger *slog.Logger
}

func NewNormalizer(s store.Store, locker Locker, opts Options, logger *slog.Logger) *Normalizer {
	if locker == nil {
		locker = NewMutexLocker()
	}
	return &Normalizer{store: s, locker: locker, opts: opts, logger: logger}
}

// ValidateLimit checks that setting a member of scope to newWeight keeps the
// scope total at or below 100. excludeID is the dimension or indicator being
// updated, whose current weight is left out of the sum; pass 0 for a new
// member.
func (n *Normalizer) ValidateLimit(ctx context.Context, scope Scope, newWeight int, excludeID int64) error {
	if newWeight < 0 || newWeight > Full {
		return apperr.BadRequest("weight must be between 0 and 100, got %d", newWeight)
	}

	rows, err := loadMembers(ctx, n.store, scope)
	if err != nil {
		if n.opts.StrictLimit {
			return apperr.Internal(err, "validate weight limit for %s", scope)
		}
		metrics.LimitFailOpen.Inc()
		n.logger.Warn("weight limit check failed, allowing write", "scope", scope.Key(), "weight", newWeight, "error", err)
		return nil
	}

	current := 0
	for _, r := range rows {
		if excludeID != 0 && r.MemberID == excludeID {
			continue
		}
		current += r.Weight
	}
	if current+newWeight > Full {
		return apperr.BadRequest("weight %d%% would bring %s to %d%%: current total is %d%%, %d%% remaining",
			newWeight, scope, current+newWeight, current, Full-current)
	}
	return nil
}

// Total sums the scope's weights without changing them.
func (n *Normalizer) Total(ctx context.Context, scope Scope) (*Total, error) {
	rows, err := loadMembers(ctx, n.store, scope)
	if err != nil {
		return nil, err
	}
	t := &Total{Scope: scope}
	for _, r := range rows {
		t.CurrentTotal += r.Weight
	}
	t.Remaining = max(Full-t.CurrentTotal, 0)
	return t, nil
}

// Normalize rescales the scope's weights to sum to exactly 100 with the
// largest-remainder method. An empty or all-zero scope is left untouched.
func (n *Normalizer) Normalize(ctx context.Context, scope Scope) (*Result, error) {
	return n.rewrite(ctx, scope, func(rows []member) ([]int, error) {
		after, ok := LargestRemainder(weightsOf(rows))
		if !ok {
			n.logger.Info("nothing to normalize", "scope", scope.Key(), "weights", len(rows))
		}
		return after, nil
	})
}

// Distribute replaces the scope's weights with equal shares in stored order.
func (n *Normalizer) Distribute(ctx context.Context, scope Scope) (*Result, error) {
	return n.rewrite(ctx, scope, func(rows []member) ([]int, error) {
		if len(rows) == 0 {
			return nil, apperr.BadRequest("no weights to distribute for %s", scope)
		}
		return EqualShares(len(rows)), nil
	})
}

// SetWeight runs write while holding the scope lock, after checking that
// newWeight keeps the scope at or below 100. Every write that changes a
// member's weight goes through here so it cannot interleave with a
// normalization or another writer of the same scope.
func (n *Normalizer) SetWeight(ctx context.Context, scope Scope, newWeight int, excludeID int64, write func(context.Context) error) error {
	unlock, err := n.lock(ctx, scope)
	if err != nil {
		return err
	}
	defer unlock()

	if err := n.ValidateLimit(ctx, scope, newWeight, excludeID); err != nil {
		return err
	}
	return write(ctx)
}

func (n *Normalizer) lock(ctx context.Context, scope Scope) (func(), error) {
	if n.opts.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.LockWait)
		defer cancel()
	}
	unlock, err := n.locker.Lock(ctx, scope.Key())
	if err != nil {
		return nil, apperr.Internal(err, "lock %s", scope)
	}
	return unlock, nil
}

// rewrite runs a locked read-modify-write of the scope's weights.
func (n *Normalizer) rewrite(ctx context.Context, scope Scope, compute func([]member) ([]int, error)) (*Result, error) {
	unlock, err := n.lock(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rows, err := loadMembers(ctx, n.store, scope)
	if err != nil {
		return nil, err
	}
	after, err := compute(rows)
	if err != nil {
		return nil, err
	}

	res := &Result{Scope: scope, Before: weightsOf(rows), After: after}
	res.Changed = !slices.Equal(res.Before, res.After)
	if res.Changed {
		if err := storeMembers(ctx, n.store, scope, rows, after); err != nil {
			return nil, fmt.Errorf("store weights: %w", err)
		}
		n.logger.Info("weights rewritten", "scope", scope.Key(), "before", res.Before, "after", res.After)
	}
	metrics.Normalizations.WithLabelValues(string(scope.Kind), strconv.FormatBool(res.Changed)).Inc()
	return res, nil
}

// NormalizeAll normalizes every year's dimension weights and every
// dimension/year's indicator weights.
func (n *Normalizer) NormalizeAll(ctx context.Context) ([]*Result, error) {
	years, err := n.store.ListDimensionWeightYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dimension weight years: %w", err)
	}
	scopes, err := n.store.ListIndicatorScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indicator scopes: %w", err)
	}

	var out []*Result
	for _, y := range years {
		res, err := n.Normalize(ctx, DimensionScope(y))
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	for _, s := range scopes {
		res, err := n.Normalize(ctx, IndicatorScope(s.DimensionID, s.Year))
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
