package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"potshare/internal/cache"
	"potshare/internal/core"
	"potshare/internal/metrics"
)

// PotBalances is the aggregator output for one pot plus its totals.
type PotBalances struct {
	Balances []core.Balance  `json:"balances"`
	Summary  core.PotSummary `json:"summary"`
}

// BalanceService loads a pot's ledger and folds it into balances.
// Results are cached per pot until the next write invalidates them.
type BalanceService struct {
	store   BalanceStore
	cache   cache.Cache[PotBalances]
	metrics *metrics.Metrics
}

// NewBalanceService accepts a nil cache to always recompute.
func NewBalanceService(store BalanceStore, c cache.Cache[PotBalances], m *metrics.Metrics) *BalanceService {
	return &BalanceService{store: store, cache: c, metrics: m}
}

// Balances returns one record per participant, ordered by name.
func (s *BalanceService) Balances(ctx context.Context, potID string) (PotBalances, error) {
	potID = strings.TrimSpace(potID)
	if potID == "" {
		return PotBalances{}, core.ErrMissingPot
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(potID); ok {
			s.metrics.CacheLookup(true)
			return cached, nil
		}
		s.metrics.CacheLookup(false)
	}

	result, err := s.Compute(ctx, potID)
	if err != nil {
		return PotBalances{}, err
	}
	if s.cache != nil {
		s.cache.Set(potID, result)
	}
	return result, nil
}

// Compute bypasses the cache. The three reads run concurrently.
func (s *BalanceService) Compute(ctx context.Context, potID string) (PotBalances, error) {
	var (
		participants  []core.Participant
		contributions []core.AmountEntry
		splits        []core.AmountEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.store.ListParticipants(gctx, potID)
		if err != nil {
			return fmt.Errorf("load participants: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		contributions, err = s.store.ContributionEntries(gctx, potID)
		if err != nil {
			return fmt.Errorf("load contributions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		splits, err = s.store.SplitEntries(gctx, potID)
		if err != nil {
			return fmt.Errorf("load splits: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return PotBalances{}, err
	}

	sorted := make([]core.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	balances := core.ComputeBalances(sorted, contributions, splits)
	return PotBalances{
		Balances: balances,
		Summary:  core.Summarize(balances),
	}, nil
}

// Invalidate drops the cached balances of a pot.
func (s *BalanceService) Invalidate(potID string) {
	if s.cache != nil {
		s.cache.Delete(potID)
	}
}
