package fanout_test

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	apperrors "github.com/windmix/fanbench/internal/errors"
	"github.com/windmix/fanbench/internal/fanout"
)

func sequentialIdentity(index int) uint64 { return uint64(index + 1) }

func TestRunThreads_FixedIdentities(t *testing.T) {
	t.Parallel()
	for _, strategy := range []fanout.Strategy{fanout.StrategyCollected, fanout.StrategyLocked} {
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()
			agg, err := fanout.RunThreads(context.Background(), 4, fanout.Options{Bound: 10},
				fanout.WithIdentity(sequentialIdentity),
				fanout.WithStrategy(strategy),
			)
			require.NoError(t, err)

			assert.Equal(t, fanout.ModelThread, agg.Model)
			assert.True(t, agg.WorkloadKnown)
			assert.Equal(t, uint64(4*258), agg.WorkloadSum)
			// FNV-1a of 1..4; the total passes 2^32 without wrapping.
			assert.Equal(t, uint64(7327647570), agg.IdentitySum)
			for i, item := range agg.Items {
				assert.Equal(t, uint64(i+1), item.Identity)
				assert.Equal(t, uint64(258), item.WorkloadResult)
				assert.Equal(t, fanout.HashIdentity(item.Identity), item.Contribution)
			}
		})
	}
}

func TestRunThreads_DefaultIdentitiesAreDistinct(t *testing.T) {
	t.Parallel()
	obs := newRecordingObserver()
	agg, err := fanout.RunThreads(context.Background(), 8, fanout.Options{Bound: 50, Observer: obs})
	require.NoError(t, err)

	seen := map[uint64]bool{}
	for _, item := range agg.Items {
		assert.NotZero(t, item.Identity)
		if runtime.GOOS == "linux" {
			assert.False(t, seen[item.Identity], "identity %d reported twice", item.Identity)
		}
		seen[item.Identity] = true
	}
	assert.Len(t, obs.finished, 8)
	assert.Equal(t, sumContributions(agg.Items), agg.IdentitySum)
}

func sumContributions(items []fanout.WorkItem) uint64 {
	var s uint64
	for _, item := range items {
		s += item.Contribution
	}
	return s
}

func TestRunThreads_InvalidArguments(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		count   int
		opts    fanout.Options
		options []fanout.ThreadOption
	}{
		{"zero count", 0, fanout.Options{}, nil},
		{"negative count", -1, fanout.Options{}, nil},
		{"above limit", 3, fanout.Options{MaxWorkers: 2}, nil},
		{"unknown strategy", 1, fanout.Options{}, []fanout.ThreadOption{fanout.WithStrategy("spinlock")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ran atomic.Bool
			options := append([]fanout.ThreadOption{fanout.WithWorkload(func() uint64 { ran.Store(true); return 0 })}, tt.options...)
			agg, err := fanout.RunThreads(context.Background(), tt.count, tt.opts, options...)
			assert.Nil(t, agg)
			assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
			assert.False(t, ran.Load(), "no worker may start on invalid input")
		})
	}
}

func TestRunThreads_CanceledBeforeLaunch(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agg, err := fanout.RunThreads(ctx, 4, fanout.Options{Bound: 1})
	assert.Nil(t, agg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunThreads_PinningKeepsResults(t *testing.T) {
	t.Parallel()
	agg, err := fanout.RunThreads(context.Background(), 3, fanout.Options{Bound: 10},
		fanout.WithPinning(true),
		fanout.WithIdentity(sequentialIdentity),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*258), agg.WorkloadSum)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()
	s, err := fanout.ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, fanout.StrategyCollected, s)

	s, err = fanout.ParseStrategy("locked")
	require.NoError(t, err)
	assert.Equal(t, fanout.StrategyLocked, s)

	_, err = fanout.ParseStrategy("atomic")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestHashIdentity_KnownValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(2615243109), fanout.HashIdentity(0))
	assert.Equal(t, uint64(1048580676), fanout.HashIdentity(1))
	assert.Equal(t, uint64(643560673), fanout.HashIdentity(4))
}

func TestFoldExitStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(0), fanout.FoldExitStatus(0))
	assert.Equal(t, uint64(255), fanout.FoldExitStatus(255))
	assert.Equal(t, uint64(0), fanout.FoldExitStatus(256))
	assert.Equal(t, uint64(146), fanout.FoldExitStatus(4242))
	rapid.Check(t, func(t *rapid.T) {
		pid := rapid.Uint64().Draw(t, "pid")
		assert.Less(t, fanout.FoldExitStatus(pid), uint64(256))
	})
}

func TestAccumulator_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	var acc fanout.Accumulator
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Add(1, 2)
		}()
	}
	wg.Wait()
	ids, work := acc.Totals()
	assert.Equal(t, uint64(100), ids)
	assert.Equal(t, uint64(200), work)
}

// TestRunThreads_StrategiesAgree checks that both publication strategies and a
// sequential reduction produce the same totals for arbitrary identities.
func TestRunThreads_StrategiesAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfN(rapid.Uint64(), 1, 32).Draw(t, "ids")
		result := rapid.Uint64Range(0, 1<<40).Draw(t, "result")
		identity := func(i int) uint64 { return ids[i] }
		work := func() uint64 { return result }

		var wantIDs uint64
		for _, id := range ids {
			wantIDs += fanout.HashIdentity(id)
		}

		for _, strategy := range []fanout.Strategy{fanout.StrategyCollected, fanout.StrategyLocked} {
			agg, err := fanout.RunThreads(context.Background(), len(ids), fanout.Options{},
				fanout.WithIdentity(identity), fanout.WithWorkload(work), fanout.WithStrategy(strategy))
			if err != nil {
				t.Fatalf("%s: %v", strategy, err)
			}
			if agg.IdentitySum != wantIDs {
				t.Fatalf("%s: identity sum %d, want %d", strategy, agg.IdentitySum, wantIDs)
			}
			if agg.WorkloadSum != result*uint64(len(ids)) {
				t.Fatalf("%s: workload sum %d, want %d", strategy, agg.WorkloadSum, result*uint64(len(ids)))
			}
		}
	})
}

// TestRunThreads_OrderIndependent checks that permuting which worker gets
// which identity leaves the aggregate unchanged.
func TestRunThreads_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfN(rapid.Uint64(), 1, 16).Draw(t, "ids")
		shuffled := rapid.Permutation(ids).Draw(t, "shuffled")
		work := fanout.WithWorkload(func() uint64 { return 7 })

		a, err := fanout.RunThreads(context.Background(), len(ids), fanout.Options{},
			fanout.WithIdentity(func(i int) uint64 { return ids[i] }), work)
		if err != nil {
			t.Fatal(err)
		}
		b, err := fanout.RunThreads(context.Background(), len(shuffled), fanout.Options{},
			fanout.WithIdentity(func(i int) uint64 { return shuffled[i] }), work)
		if err != nil {
			t.Fatal(err)
		}
		if a.IdentitySum != b.IdentitySum || a.WorkloadSum != b.WorkloadSum {
			t.Fatalf("permutation changed totals: %d/%d vs %d/%d", a.IdentitySum, a.WorkloadSum, b.IdentitySum, b.WorkloadSum)
		}
	})
}
