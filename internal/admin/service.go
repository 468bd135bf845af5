// Package admin is the application layer of the ranking service. It applies
// the ranking guard, weight limits and event publishing around the stores,
// the weight normalizer and the scoring engine.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/files"
	"github.com/MikeSquared-Agency/Ranking/internal/guard"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/scoring"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

type Options struct {
	// DefaultYearsFrom is the first year offered by IndicatorYears when no
	// indicator weight exists yet.
	DefaultYearsFrom int
	StandingsLimit   int
	// Locker serializes ranking generation per year. Nil uses an
	// in-process locker.
	Locker weights.Locker
	// Files holds document uploads. Nil disables document uploads.
	Files files.Store
	// MaxUploadBytes caps a document file. Zero means 20MB.
	MaxUploadBytes int64
}

type Service struct {
	store      store.Store
	normalizer *weights.Normalizer
	engine     *scoring.Engine
	guard      *guard.Guard
	hermes     hermes.Client
	locker     weights.Locker
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func New(s store.Store, n *weights.Normalizer, e *scoring.Engine, g *guard.Guard, h hermes.Client, opts Options, logger *slog.Logger) *Service {
	if opts.DefaultYearsFrom == 0 {
		opts.DefaultYearsFrom = 2020
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.StandingsLimit <= 0 {
		opts.StandingsLimit = 5
	}
	locker := opts.Locker
	if locker == nil {
		locker = weights.NewMutexLocker()
	}
	return &Service{
		store:      s,
		normalizer: n,
		engine:     e,
		guard:      g,
		hermes:     h,
		locker:     locker,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) emit(subject string, data interface{}) {
	hermes.Emit(s.hermes, s.logger, subject, data)
}

// duplicate maps store.ErrDuplicate to a conflict carrying msg and passes
// other errors through with context.
func duplicate(err error, op string, format string, args ...any) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.Conflict(format, args...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rankingLockKey(year int) string {
	return fmt.Sprintf("ranking:year:%d", year)
}

func (s *Service) lockYear(ctx context.Context, year int) (func(), error) {
	unlock, err := s.locker.Lock(ctx, rankingLockKey(year))
	if err != nil {
		return nil, apperr.Internal(err, "lock ranking for %d", year)
	}
	return unlock, nil
}

// rescore applies edit and rebuilds the ranking of every listed year that
// has one, all in one transaction. A failed rebuild undoes the edit.
// Events go out only after the commit.
func (s *Service) rescore(ctx context.Context, years []int, reason string, edit func(tx store.Store) error) error {
	years = slices.Compact(slices.Sorted(slices.Values(years)))
	for _, y := range years {
		unlock, err := s.lockYear(ctx, y)
		if err != nil {
			return err
		}
		defer unlock()
	}

	var regenerated []*scoring.Ranking
	err := s.store.InTx(ctx, func(tx store.Store) error {
		regenerated = regenerated[:0]
		if err := edit(tx); err != nil {
			return err
		}
		for _, y := range years {
			n, err := tx.CountRanksByYear(ctx, y)
			if err != nil {
				return fmt.Errorf("count ranks: %w", err)
			}
			if n == 0 {
				continue
			}
			if _, err := tx.DeleteRankingByYear(ctx, y); err != nil {
				return fmt.Errorf("delete ranking: %w", err)
			}
			ranking, err := s.engine.WithStore(tx).GenerateRanking(ctx, y)
			if err != nil {
				s.logger.Error("ranking regeneration failed, edit rolled back", "year", y, "reason", reason, "error", err)
				return err
			}
			regenerated = append(regenerated, ranking)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range regenerated {
		s.logger.Info("ranking regenerated", "year", r.Year, "reason", reason, "run_id", r.RunID)
		s.emit(hermes.SubjectRankingRegenerated(r.Year), hermes.RankingRegeneratedEvent{Year: r.Year, Reason: reason, RunID: r.RunID})
	}
	return nil
}
