package numerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/clock"
	corenumerator "fieldledger/internal/core/numerator"
	"fieldledger/pkg/logger"
)

const org = "org-1"

// scriptedReserver grants consecutive blocks like the authority does,
// or fails with err.
type scriptedReserver struct {
	mu     sync.Mutex
	prefix string
	last   int64
	err    error
	calls  int
	counts []int
}

func (r *scriptedReserver) Reserve(_ context.Context, _ string, _ corenumerator.Kind, count int) (corenumerator.Range, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.counts = append(r.counts, count)
	if r.err != nil {
		return corenumerator.Range{}, r.err
	}
	start := r.last + 1
	r.last += int64(count)
	return corenumerator.Range{Prefix: r.prefix, Start: start, End: r.last}, nil
}

func (r *scriptedReserver) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func newTestAllocator(store corenumerator.StateStore, reserver corenumerator.Reserver) *Allocator {
	return NewAllocator(Config{
		Store:    store,
		Reserver: reserver,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
		Logger:   logger.Nop(),
	})
}

func TestAllocate_RefillsEmptyStateAndConsumesSequentially(t *testing.T) {
	ctx := context.Background()
	res := &scriptedReserver{prefix: "FAC-2026"}
	store := NewMemoryStore()
	a := newTestAllocator(store, res)

	for i := 1; i <= 3; i++ {
		num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("FAC-2026-%06d", i), num)
	}

	assert.Equal(t, 1, res.calls)
	assert.Equal(t, []int{DefaultBlockSize}, res.counts)

	st, err := store.Load(ctx, org, corenumerator.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.NextNumber)
	assert.Equal(t, int64(80), st.EndNumber)
}

func TestAllocate_OfflineWithoutRangeReturnsPlaceholder(t *testing.T) {
	ctx := context.Background()
	res := &scriptedReserver{err: corenumerator.ErrOffline}
	store := NewMemoryStore()
	a := newTestAllocator(store, res)

	num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindQuote)
	require.NoError(t, err)
	assert.True(t, corenumerator.IsPlaceholder(num))
	assert.Regexp(t, `^TEMP-[0-9a-f-]{36}$`, num)

	st, err := store.Load(ctx, org, corenumerator.KindQuote)
	require.NoError(t, err)
	assert.Nil(t, st, "state must not be created by a failed allocation")
}

func TestAllocate_ExhaustedRangeOfflineLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, corenumerator.State{
		OrgID: org, Kind: corenumerator.KindInvoice, Prefix: "FAC", NextNumber: 11, EndNumber: 10,
	}))
	a := newTestAllocator(store, &scriptedReserver{err: &corenumerator.RejectedError{StatusCode: 403, Code: "FORBIDDEN"}})

	num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
	require.NoError(t, err)
	assert.True(t, corenumerator.IsPlaceholder(num))

	st, _ := store.Load(ctx, org, corenumerator.KindInvoice)
	assert.Equal(t, int64(11), st.NextNumber)
	assert.Equal(t, int64(10), st.EndNumber)
}

func TestAllocate_LowWaterOfflineKeepsUsingCachedRange(t *testing.T) {
	ctx := context.Background()
	res := &scriptedReserver{err: corenumerator.ErrOffline}
	a := newTestAllocator(NewMemoryStore(), res)
	require.NoError(t, a.Seed(ctx, org, corenumerator.KindInvoice, "FAC", 8, 10))

	var got []string
	for i := 0; i < 4; i++ {
		num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
		require.NoError(t, err)
		got = append(got, num)
	}

	assert.Equal(t, []string{"FAC-2026-000008", "FAC-2026-000009", "FAC-2026-000010"}, got[:3])
	assert.True(t, corenumerator.IsPlaceholder(got[3]))
	assert.Equal(t, 4, res.calls, "every allocation below the low-water mark retries the refill")
}

func TestAllocate_LowWaterRefillReplacesRemainder(t *testing.T) {
	ctx := context.Background()
	res := &scriptedReserver{prefix: "FAC-2026", last: 100}
	a := newTestAllocator(NewMemoryStore(), res)
	require.NoError(t, a.Seed(ctx, org, corenumerator.KindInvoice, "FAC-2026", 5, 7))

	num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
	require.NoError(t, err)

	// the remote block wins over the stale 5..7 remainder
	assert.Equal(t, "FAC-2026-000101", num)
	st, _ := a.State(ctx, org, corenumerator.KindInvoice)
	assert.Equal(t, int64(102), st.NextNumber)
	assert.Equal(t, int64(180), st.EndNumber)
}

func TestAllocate_NumbersStrictlyIncreaseAcrossRefills(t *testing.T) {
	ctx := context.Background()
	res := &scriptedReserver{prefix: "DEV-2026"}
	a := NewAllocator(Config{
		Store:    NewMemoryStore(),
		Reserver: res,
		Options:  Options{LowWater: 2, BlockSize: 4},
		Logger:   logger.Nop(),
	})

	var prev int64
	for i := 0; i < 20; i++ {
		num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindQuote)
		require.NoError(t, err)
		var n int64
		_, err = fmt.Sscanf(num[len("DEV-2026-"):], "%d", &n)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
	assert.Greater(t, res.calls, 1)
}

func TestAllocate_ConcurrentCallersNeverShareANumber(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(NewMemoryStore(), nil)
	require.NoError(t, a.Seed(ctx, org, corenumerator.KindInvoice, "FAC", 1, 500))

	const workers = 50
	const perWorker = 6
	results := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
				if assert.NoError(t, err) {
					results <- num
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for num := range results {
		assert.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, workers*perWorker)

	st, _ := a.State(ctx, org, corenumerator.KindInvoice)
	assert.Equal(t, int64(workers*perWorker+1), st.NextNumber)
}

func TestAllocate_KindsAndOrgsAreIndependent(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(NewMemoryStore(), nil)
	require.NoError(t, a.Seed(ctx, org, corenumerator.KindInvoice, "FAC", 1, 10))
	require.NoError(t, a.Seed(ctx, org, corenumerator.KindQuote, "DEV", 1, 10))

	inv, _ := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
	q, _ := a.AllocateFinalNumber(ctx, org, corenumerator.KindQuote)
	other, _ := a.AllocateFinalNumber(ctx, "org-2", corenumerator.KindInvoice)

	assert.Equal(t, "FAC-2026-000001", inv)
	assert.Equal(t, "DEV-2026-000001", q)
	assert.True(t, corenumerator.IsPlaceholder(other))
}

func TestAllocate_SaveFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newTestAllocator(store, nil)
	require.NoError(t, a.Seed(ctx, org, corenumerator.KindInvoice, "FAC", 1, 10))
	store.SaveErr = errors.New("disk full")

	_, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
}

func TestAllocate_CancelledCallerStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := &scriptedReserver{prefix: "FAC-2026"}
	a := newTestAllocator(NewMemoryStore(), res)

	num, err := a.AllocateFinalNumber(ctx, org, corenumerator.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-000001", num)
}

func TestAllocate_Validation(t *testing.T) {
	a := newTestAllocator(NewMemoryStore(), nil)

	_, err := a.AllocateFinalNumber(context.Background(), "", corenumerator.KindInvoice)
	assert.True(t, apperror.IsValidation(err))

	_, err = a.AllocateFinalNumber(context.Background(), org, corenumerator.Kind("receipt"))
	assert.True(t, apperror.IsValidation(err))

	err = a.Seed(context.Background(), org, corenumerator.KindInvoice, "FAC", 10, 9)
	assert.True(t, apperror.IsValidation(err))
}
