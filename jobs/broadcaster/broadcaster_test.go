package broadcaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exitwal "feedbook/infra/wal/exit"
)

func setup(t *testing.T) (*exitwal.Outbox, *mocks.SyncProducer, *Broadcaster) {
	t.Helper()
	outbox, err := exitwal.Open("outbox", exitwal.WithFS(vfs.NewMem()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })

	producer := mocks.NewSyncProducer(t, NewConfig())
	b := NewWithProducer(outbox, producer, "quotes", 10*time.Millisecond, zerolog.Nop())
	return outbox, producer, b
}

func pendingCount(t *testing.T, o *exitwal.Outbox) int {
	t.Helper()
	n := 0
	require.NoError(t, o.ScanPending(func(exitwal.Record) error {
		n++
		return nil
	}))
	return n
}

func TestDrainOnceInOrder(t *testing.T) {
	outbox, producer, b := setup(t)
	require.NoError(t, outbox.PutNew(2, []byte("second")))
	require.NoError(t, outbox.PutNew(1, []byte("first")))

	var got []string
	check := func(val []byte) error {
		got = append(got, string(val))
		return nil
	}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check)

	n, err := b.DrainOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Zero(t, pendingCount(t, outbox))

	counts, err := outbox.Count()
	require.NoError(t, err)
	assert.Empty(t, counts)
	require.NoError(t, b.Close())
}

func TestDrainStopsAtFailure(t *testing.T) {
	outbox, producer, b := setup(t)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, outbox.PutNew(seq, []byte{byte(seq)}))
	}

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(errors.New("leader not available"))

	n, err := b.DrainOnce()
	require.Error(t, err)
	assert.Equal(t, 1, n)

	rec, err := outbox.Get(2)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
	assert.Equal(t, 2, pendingCount(t, outbox))

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	n, err = b.DrainOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, pendingCount(t, outbox))
	require.NoError(t, b.Close())
}

func TestStartDrainsOnShutdown(t *testing.T) {
	outbox, producer, b := setup(t)
	b.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	require.NoError(t, outbox.PutNew(5, []byte("late")))
	producer.ExpectSendMessageAndSucceed()
	cancel()
	b.Wait()

	assert.Zero(t, pendingCount(t, outbox))
	require.NoError(t, b.Close())
}

func TestDrainEmpty(t *testing.T) {
	_, _, b := setup(t)
	n, err := b.DrainOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, b.Close())
}
