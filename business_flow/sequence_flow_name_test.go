package businessflow

import (
	"context"
	"testing"
	"unsafe"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// borrowedName returns a string sharing buf's memory, like a path parameter
// handed out by a server that recycles its request buffers.
func borrowedName(buf []byte) string {
	return unsafe.String(unsafe.SliceData(buf), len(buf))
}

func TestSequenceFlow_KeepsNameAfterCallerBufferIsReused(t *testing.T) {
	repo := repository.NewMemorySequenceCounterRepository()
	flow := NewSequenceFlow(repo, nil, SequenceFlowOptions{})
	ctx := context.Background()

	buf := []byte("flowAlpha")
	value, err := flow.NextValue(ctx, borrowedName(buf))
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)

	copy(buf, "flowBravo")
	value, err = flow.NextValue(ctx, borrowedName(buf))
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)

	seedBuf := []byte("flowSeeded")
	_, err = flow.SeedCounter(ctx, borrowedName(seedBuf), 40)
	require.NoError(t, err)
	copy(seedBuf, "flowXXXXXX")

	rows, err := repo.ByFilter(ctx, models.SequenceCounterFilter{}, "", 0, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	assert.Equal(t, []string{"flowAlpha", "flowBravo", "flowSeeded"}, names)

	value, err = flow.NextValue(ctx, "flowAlpha")
	require.NoError(t, err)
	assert.Equal(t, int64(2), value, "a recycled buffer must not reset the counter")

	value, err = flow.NextValue(ctx, "flowSeeded")
	require.NoError(t, err)
	assert.Equal(t, int64(41), value)

	// Label values stay stable, so the registry still gathers cleanly
	copy(buf, "flowZZZZZ")
	_, err = prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
}
