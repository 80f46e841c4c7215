// Package dashboard holds the period-selection view model that drives the
// spending dashboard: it resolves the selected period into a date range,
// issues the three data fetches concurrently, and reconciles completions
// against the currently selected period so rapid period changes can never
// leave a stale or mixed-period view.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finsync/internal/core"
)

// DataProvider is the query surface the view model reads from. Owned by the
// storage layer; substituted with fakes in tests.
type DataProvider interface {
	FetchSpendingData(ctx context.Context, rng core.DateRange) (core.SpendingData, error)
	FetchRecentTransactions(ctx context.Context, count int) ([]core.Transaction, error)
	FetchCategoryBreakdown(ctx context.Context, rng core.DateRange) ([]core.CategorySpending, error)
}

const (
	// DefaultPeriod is the selection on first load.
	DefaultPeriod = core.PeriodWeek

	// LoadErrorMessage is the fixed user-facing message for any fetch
	// failure. The underlying cause is logged, never shown verbatim.
	LoadErrorMessage = "Failed to load spending data"

	recentTransactionCount = 10
	fetchTimeout           = 10 * time.Second
)

// State is the observable dashboard state.
type State struct {
	SelectedPeriod     core.Period
	SpendingData       *core.SpendingData
	RecentTransactions []core.Transaction
	CategoryBreakdown  []core.CategorySpending
	IsLoading          bool
	IsRefreshing       bool
	ErrorMessage       string
}

// PeriodViewModel orchestrates the three dashboard fetches for the selected
// period. Each fetch round carries a generation number; a completion only
// commits if its generation still matches, so the view always reflects the
// last requested period regardless of completion order.
type PeriodViewModel struct {
	provider DataProvider
	now      func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64

	inflight sync.WaitGroup
}

func NewPeriodViewModel(provider DataProvider) *PeriodViewModel {
	return &PeriodViewModel{
		provider: provider,
		now:      time.Now,
		state: State{
			SelectedPeriod: DefaultPeriod,
			IsLoading:      true,
		},
	}
}

// Snapshot returns a copy of the current state for rendering.
func (vm *PeriodViewModel) Snapshot() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// Load issues the initial fetch round for the default period.
func (vm *PeriodViewModel) Load(ctx context.Context) {
	vm.mu.Lock()
	vm.state.IsLoading = true
	vm.generation++
	gen := vm.generation
	period := vm.state.SelectedPeriod
	vm.mu.Unlock()

	vm.startRound(ctx, gen, period)
}

// ChangePeriod switches the selected period and re-issues all three
// fetches. Selecting the already-selected period is a no-op: no state
// change, no fetches.
func (vm *PeriodViewModel) ChangePeriod(ctx context.Context, period core.Period) error {
	switch period {
	case core.PeriodDay, core.PeriodWeek, core.PeriodMonth:
	default:
		return fmt.Errorf("unsupported dashboard period %q", period)
	}

	vm.mu.Lock()
	if period == vm.state.SelectedPeriod {
		vm.mu.Unlock()
		return nil
	}
	vm.state.SelectedPeriod = period
	vm.state.IsLoading = true
	vm.state.ErrorMessage = ""
	vm.generation++
	gen := vm.generation
	vm.mu.Unlock()

	vm.startRound(ctx, gen, period)
	return nil
}

// Refresh re-issues all three fetches for the current period without
// changing it. IsRefreshing is set until the round settles; IsLoading is
// untouched.
func (vm *PeriodViewModel) Refresh(ctx context.Context) {
	vm.mu.Lock()
	vm.state.IsRefreshing = true
	vm.generation++
	gen := vm.generation
	period := vm.state.SelectedPeriod
	vm.mu.Unlock()

	vm.startRound(ctx, gen, period)
}

// Wait blocks until every issued fetch round has settled. Used by tests and
// graceful shutdown; callers serving requests read Snapshot instead.
func (vm *PeriodViewModel) Wait() {
	vm.inflight.Wait()
}

func (vm *PeriodViewModel) startRound(ctx context.Context, gen uint64, period core.Period) {
	rng, err := core.Resolve(period, vm.now())
	if err != nil {
		// Periods are validated before this point; failing here is a
		// programming error and fails loudly in the state.
		vm.commitError(ctx, gen, err)
		return
	}

	vm.inflight.Add(1)
	// Rounds outlive the triggering request: cancellation is logical
	// (generation mismatch on commit), not a hard abort.
	roundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)

	go func() {
		defer vm.inflight.Done()
		defer cancel()
		vm.runRound(roundCtx, gen, rng)
	}()
}

func (vm *PeriodViewModel) runRound(ctx context.Context, gen uint64, rng core.DateRange) {
	var (
		spending     core.SpendingData
		transactions []core.Transaction
		breakdown    []core.CategorySpending
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := vm.provider.FetchSpendingData(gctx, rng)
		if err != nil {
			return fmt.Errorf("fetch spending data: %w", err)
		}
		spending = data
		return nil
	})
	g.Go(func() error {
		txs, err := vm.provider.FetchRecentTransactions(gctx, recentTransactionCount)
		if err != nil {
			return fmt.Errorf("fetch recent transactions: %w", err)
		}
		transactions = txs
		return nil
	})
	g.Go(func() error {
		cats, err := vm.provider.FetchCategoryBreakdown(gctx, rng)
		if err != nil {
			return fmt.Errorf("fetch category breakdown: %w", err)
		}
		breakdown = cats
		return nil
	})

	if err := g.Wait(); err != nil {
		vm.commitError(ctx, gen, err)
		return
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.generation {
		// A later period selection superseded this round; discard.
		slog.DebugContext(ctx, "Discarding stale dashboard fetch round",
			"generation", gen, "current", vm.generation)
		return
	}
	vm.state.SpendingData = &spending
	vm.state.RecentTransactions = transactions
	vm.state.CategoryBreakdown = breakdown
	vm.state.ErrorMessage = ""
	vm.state.IsLoading = false
	vm.state.IsRefreshing = false
}

// commitError records the fixed user-facing message and clears partial data
// so a failed round can never show an inconsistent mixed-period view.
func (vm *PeriodViewModel) commitError(ctx context.Context, gen uint64, cause error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.generation {
		return
	}
	slog.ErrorContext(ctx, "Dashboard fetch round failed",
		"period", vm.state.SelectedPeriod, "error", cause)
	vm.state.SpendingData = nil
	vm.state.RecentTransactions = nil
	vm.state.CategoryBreakdown = nil
	vm.state.ErrorMessage = LoadErrorMessage
	vm.state.IsLoading = false
	vm.state.IsRefreshing = false
}
