package repository

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSequenceCounterContract exercises the behaviour every backend must share.
// newRepo returns a repository over an empty store.
func runSequenceCounterContract(t *testing.T, newRepo func(t *testing.T) SequenceCounterRepository) {
	t.Run("FirstIncrementReturnsOne", func(t *testing.T) {
		repo := newRepo(t)
		value, err := repo.Increment(context.Background(), "new-counter-name")
		require.NoError(t, err)
		assert.Equal(t, int64(1), value)
	})

	t.Run("SequentialIncrementsPersist", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for want := int64(1); want <= 3; want++ {
			got, err := repo.Increment(ctx, utils.OrderNumberCounter)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		counter, err := repo.ByName(ctx, utils.OrderNumberCounter)
		require.NoError(t, err)
		require.NotNil(t, counter)
		assert.Equal(t, int64(3), counter.LastValue)
		assert.Equal(t, utils.OrderNumberCounter, counter.Name)
		assert.False(t, counter.CreatedAt.IsZero())
		assert.False(t, counter.UpdatedAt.IsZero())
	})

	t.Run("NamesAreIndependent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a1, err := repo.Increment(ctx, "a")
		require.NoError(t, err)
		a2, err := repo.Increment(ctx, "a")
		require.NoError(t, err)
		b1, err := repo.Increment(ctx, "b")
		require.NoError(t, err)
		a3, err := repo.Increment(ctx, "a")
		require.NoError(t, err)

		assert.Equal(t, []int64{1, 2, 3}, []int64{a1, a2, a3})
		assert.Equal(t, int64(1), b1)
	})

	t.Run("ConcurrentIncrementsAreGapFree", func(t *testing.T) {
		repo := newRepo(t)
		const callers = 50

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			values []int64
			errs   []error
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := repo.Increment(context.Background(), "x")
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				values = append(values, v)
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		want := make([]int64, callers)
		for i := range want {
			want[i] = int64(i + 1)
		}
		assert.Equal(t, want, values)

		counter, err := repo.ByName(context.Background(), "x")
		require.NoError(t, err)
		require.NotNil(t, counter)
		assert.Equal(t, int64(callers), counter.LastValue)
	})

	t.Run("CancelledContextLeavesValueUnchanged", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Increment(context.Background(), "orders")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = repo.Increment(ctx, "orders")
		require.Error(t, err)

		counter, err := repo.ByName(context.Background(), "orders")
		require.NoError(t, err)
		require.NotNil(t, counter)
		assert.Equal(t, int64(1), counter.LastValue)

		next, err := repo.Increment(context.Background(), "orders")
		require.NoError(t, err)
		assert.Equal(t, int64(2), next)
	})

	t.Run("ByNameMissingReturnsNil", func(t *testing.T) {
		repo := newRepo(t)
		counter, err := repo.ByName(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, counter)
	})

	t.Run("SaveIfAbsentSeedsOnce", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.SaveIfAbsent(ctx, &models.SequenceCounter{Name: "legacy", LastValue: 1000})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.SaveIfAbsent(ctx, &models.SequenceCounter{Name: "legacy", LastValue: 5})
		require.NoError(t, err)
		assert.False(t, created)

		next, err := repo.Increment(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, int64(1001), next)
	})

	t.Run("SaveIfAbsentAtZero", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.SaveIfAbsent(ctx, &models.SequenceCounter{Name: "zero", LastValue: 0})
		require.NoError(t, err)
		require.True(t, created)

		counter, err := repo.ByName(ctx, "zero")
		require.NoError(t, err)
		require.NotNil(t, counter)
		assert.Equal(t, int64(0), counter.LastValue)

		next, err := repo.Increment(ctx, "zero")
		require.NoError(t, err)
		assert.Equal(t, int64(1), next)
	})

	t.Run("SaveIfAbsentDoesNotOverwriteAllocatedCounter", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Increment(ctx, "live")
		require.NoError(t, err)

		created, err := repo.SaveIfAbsent(ctx, &models.SequenceCounter{Name: "live", LastValue: 99})
		require.NoError(t, err)
		assert.False(t, created)

		counter, err := repo.ByName(ctx, "live")
		require.NoError(t, err)
		require.NotNil(t, counter)
		assert.Equal(t, int64(1), counter.LastValue)
	})

	t.Run("ByFilterOrdersAndPages", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, name := range []string{"inv:2025", "orders", "inv:2024", "inv_x", "invoices"} {
			_, err := repo.Increment(ctx, name)
			require.NoError(t, err)
		}

		all, err := repo.ByFilter(ctx, models.SequenceCounterFilter{}, "", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"inv:2024", "inv:2025", "inv_x", "invoices", "orders"}, counterNames(all))

		scoped, err := repo.ByFilter(ctx, models.SequenceCounterFilter{NamePrefix: utils.ToPtr("inv:")}, "", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"inv:2024", "inv:2025"}, counterNames(scoped))

		// '_' must match literally, not as a single-character wildcard
		literal, err := repo.ByFilter(ctx, models.SequenceCounterFilter{NamePrefix: utils.ToPtr("inv_")}, "", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"inv_x"}, counterNames(literal))

		page, err := repo.ByFilter(ctx, models.SequenceCounterFilter{}, "", 2, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"inv:2025", "inv_x"}, counterNames(page))

		exact, err := repo.ByFilter(ctx, models.SequenceCounterFilter{Name: utils.ToPtr("orders")}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, exact, 1)
		assert.Equal(t, int64(1), exact[0].LastValue)
	})

	t.Run("ByFilterEmptyStore", func(t *testing.T) {
		repo := newRepo(t)
		rows, err := repo.ByFilter(context.Background(), models.SequenceCounterFilter{}, "", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func counterNames(rows []*models.SequenceCounter) []string {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names
}
