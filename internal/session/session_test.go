package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetform/internal/core"
)

func TestNewSessionIsSeeded(t *testing.T) {
	st := NewStore(10, time.Hour, DefaultSeeds())
	s := st.Create()

	require.True(t, ValidID(s.ID))
	fixed, err := s.Entries(core.Fixed)
	require.NoError(t, err)
	require.Len(t, fixed, len(DefaultFixed))
	assert.Equal(t, "Housing", fixed[0].Name)
	for _, e := range fixed {
		assert.Equal(t, 0.0, e.Amount)
	}

	variable, err := s.Entries(core.Variable)
	require.NoError(t, err)
	assert.Len(t, variable, len(DefaultVariable))
}

func TestSessionMutationsAndSummary(t *testing.T) {
	s := newSession("x", Seeds{Fixed: []string{"Housing", "Utilities"}})

	require.NoError(t, s.SetAmount(core.Fixed, "Housing", 500))
	require.NoError(t, s.SetAmount(core.Fixed, "Utilities", 100))
	require.NoError(t, s.SetTotals(core.Totals{Income: 2000, Savings: 100, Investments: 100, FutureLimit: 700}))

	sum := s.Summary(core.DefaultRatioTiers)
	assert.Equal(t, 600.0, sum.TotalExpenses)
	assert.Equal(t, -100.0, sum.Difference)
	assert.Equal(t, core.Under, sum.LimitState)

	assert.ErrorIs(t, s.AddCategory(core.Fixed, "Housing"), core.ErrDuplicateCategory)
	assert.ErrorIs(t, s.SetAmount(core.Variable, "Housing", 1), core.ErrUnknownCategory)
	assert.ErrorIs(t, s.AddCategory("bogus", "X"), core.ErrInvalidLedger)

	require.NoError(t, s.RemoveCategory(core.Fixed, "Utilities"))
	assert.Equal(t, 500.0, s.Summary(core.DefaultRatioTiers).FixedTotal)
}

func TestSetTotalsRejectsInvalid(t *testing.T) {
	s := newSession("x", Seeds{})
	require.NoError(t, s.SetTotals(core.Totals{Income: 10}))
	assert.ErrorIs(t, s.SetTotals(core.Totals{Income: -1}), core.ErrInvalidAmount)
	assert.Equal(t, 10.0, s.Totals().Income)
}

func TestCombinedCollision(t *testing.T) {
	s := newSession("x", Seeds{Fixed: []string{"Phone"}, Variable: []string{"Fun"}})
	v, err := s.Combined()
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	require.NoError(t, s.AddCategory(core.Variable, "Phone"))
	_, err = s.Combined()
	assert.ErrorIs(t, err, core.ErrNameCollision)
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := newSession("x", Seeds{Variable: []string{"Fun"}})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.SetAmount(core.Variable, "Fun", float64(i))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Summary(core.DefaultRatioTiers)
		}()
	}
	wg.Wait()
	sum := s.Summary(core.DefaultRatioTiers)
	assert.GreaterOrEqual(t, sum.VariableTotal, 0.0)
}

func TestStoreGetOrCreate(t *testing.T) {
	st := NewStore(10, time.Hour, Seeds{})

	a, created := st.GetOrCreate("")
	assert.True(t, created)

	b, created := st.GetOrCreate(a.ID)
	assert.False(t, created)
	assert.Same(t, a, b)

	c, created := st.GetOrCreate("not-a-uuid")
	assert.True(t, created)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, 2, st.Size())
}

func TestStoreReset(t *testing.T) {
	st := NewStore(10, time.Hour, Seeds{Fixed: []string{"Housing"}})
	s := st.Create()
	require.NoError(t, s.SetAmount(core.Fixed, "Housing", 900))

	fresh := st.Reset(s.ID)
	assert.Equal(t, s.ID, fresh.ID)
	got, ok := st.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, fresh, got)
	assert.Equal(t, 0.0, got.Summary(core.DefaultRatioTiers).FixedTotal)
	assert.Equal(t, 1, st.Size())
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	st := NewStore(2, time.Hour, Seeds{})
	a := st.Create()
	b := st.Create()
	_, _ = st.Get(a.ID) // a is now most recent
	c := st.Create()

	_, ok := st.Get(b.ID)
	assert.False(t, ok, "b should be evicted")
	_, ok = st.Get(a.ID)
	assert.True(t, ok)
	_, ok = st.Get(c.ID)
	assert.True(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	st := NewStore(10, 20*time.Millisecond, Seeds{})
	a := st.Create()
	st.Create()

	time.Sleep(40 * time.Millisecond)
	_, ok := st.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, st.CleanExpired())
	assert.Equal(t, 0, st.Size())
}

func TestStoreJanitor(t *testing.T) {
	st := NewStore(10, 10*time.Millisecond, Seeds{})
	st.Create()

	var mu sync.Mutex
	removed := 0
	st.StartJanitor(5*time.Millisecond, func(n int) {
		mu.Lock()
		removed += n
		mu.Unlock()
	})
	assert.Eventually(t, func() bool { return st.Size() == 0 }, time.Second, 5*time.Millisecond)
	st.Stop()
	st.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, removed)
}

func TestStoreDelete(t *testing.T) {
	st := NewStore(10, time.Hour, Seeds{})
	s := st.Create()
	st.Delete(s.ID)
	st.Delete(s.ID)
	_, ok := st.Get(s.ID)
	assert.False(t, ok)
}

func TestLoadSeeds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_fixed.txt"),
		[]byte("# fixed costs\nRent\n\nRent\n  Phone  \n"), 0o644))

	seeds := LoadSeeds(dir)
	assert.Equal(t, []string{"Rent", "Phone"}, seeds.Fixed)
	assert.Equal(t, DefaultVariable, seeds.Variable, "missing file keeps defaults")

	assert.Equal(t, DefaultSeeds(), LoadSeeds(""))
}

func TestSeedsMerge(t *testing.T) {
	got := DefaultSeeds().Merge(Seeds{Variable: []string{"Books", "Books", " "}})
	assert.Equal(t, DefaultFixed, got.Fixed)
	assert.Equal(t, []string{"Books"}, got.Variable)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	s := newSession("x", Seeds{Fixed: []string{"Housing"}, Variable: []string{"Fun"}})
	require.NoError(t, s.SetAmount(core.Fixed, "Housing", 100))

	err := s.Apply(Batch{
		Amounts: map[core.LedgerKind]map[string]float64{
			core.Fixed:    {"Housing": 900},
			core.Variable: {"Missing": 5},
		},
		Totals: &core.Totals{Income: 3000},
	})
	require.ErrorIs(t, err, core.ErrUnknownCategory)
	assert.Contains(t, err.Error(), "variable ledger")

	housing, _ := s.Entries(core.Fixed)
	assert.Equal(t, 100.0, housing[0].Amount, "failed batch must not change amounts")
	assert.Equal(t, 0.0, s.Totals().Income, "failed batch must not change totals")

	require.NoError(t, s.Apply(Batch{
		Amounts: map[core.LedgerKind]map[string]float64{
			core.Fixed:    {"Housing": 900},
			core.Variable: {"Fun": 50},
		},
		Totals: &core.Totals{Income: 3000, FutureLimit: 1000},
	}))
	sum := s.Summary(core.DefaultRatioTiers)
	assert.Equal(t, 950.0, sum.TotalExpenses)
	assert.Equal(t, 3000.0, sum.Income)
}

func TestApplyRejectsInvalidInputs(t *testing.T) {
	s := newSession("x", Seeds{Fixed: []string{"Housing"}})

	err := s.Apply(Batch{Amounts: map[core.LedgerKind]map[string]float64{core.Fixed: {"Housing": -1}}})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	err = s.Apply(Batch{Amounts: map[core.LedgerKind]map[string]float64{"other": {"Housing": 1}}})
	assert.ErrorIs(t, err, core.ErrInvalidLedger)

	err = s.Apply(Batch{Totals: &core.Totals{Savings: -3}})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	assert.NoError(t, s.Apply(Batch{}), "an empty batch is a no-op")
}

func TestApplySnapshotSeesOnlyItsBatch(t *testing.T) {
	s := newSession("x", Seeds{Fixed: []string{"Housing", "Utilities"}, Variable: []string{"Fun"}})
	batch := Batch{
		Amounts: map[core.LedgerKind]map[string]float64{core.Fixed: {"Housing": 500, "Utilities": 100}},
		Totals:  &core.Totals{Income: 2000},
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.SetAmount(core.Fixed, "Housing", 1)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		snap, err := s.ApplySnapshot(batch, core.DefaultRatioTiers)
		require.NoError(t, err)
		require.Equal(t, 600.0, snap.Summary.FixedTotal, "snapshot must reflect the batch it applied")
		require.Equal(t, core.Row{2000, 0, 0, 600, 0, 600, 0, 600}, snap.Summary.ExportRow())
	}
	close(stop)
	wg.Wait()
}

func TestSnapshotReportsCollision(t *testing.T) {
	s := newSession("x", Seeds{Fixed: []string{"Fun"}, Variable: []string{"Fun"}})
	snap := s.Snapshot(core.DefaultRatioTiers)
	assert.ErrorIs(t, snap.Collision, core.ErrNameCollision)

	_, err := s.ApplySnapshot(Batch{Totals: &core.Totals{Income: -1}}, core.DefaultRatioTiers)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}
