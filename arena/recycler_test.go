package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecyclerZeroesReleasedBuffers(t *testing.T) {
	requireT := require.New(t)
	recycler := RunRecyclerInTest(t, RecyclerConfig{
		BufferSize:   4096,
		NumOfBuffers: 1,
		NumOfWorkers: 2,
	})

	buf, err := recycler.Acquire()
	requireT.NoError(err)
	requireT.Len(buf, 4096)

	for i := range buf {
		buf[i] = 0xff
	}
	recycler.Release(buf)

	// The pool is drained, so this waits for the released buffer to come back
	// through a zeroing worker.
	recycled, err := recycler.Acquire()
	requireT.NoError(err)
	for _, b := range recycled {
		requireT.Equal(byte(0), b)
	}
}

func TestRecyclerAcquireWaitsForRelease(t *testing.T) {
	requireT := require.New(t)
	recycler := RunRecyclerInTest(t, RecyclerConfig{
		BufferSize:   4096,
		NumOfBuffers: 1,
	})

	buf, err := recycler.Acquire()
	requireT.NoError(err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		recycler.Release(buf)
	}()

	buf2, err := recycler.Acquire()
	requireT.NoError(err)
	requireT.Len(buf2, 4096)
}

func TestRecyclerCloseUnblocksAcquire(t *testing.T) {
	requireT := require.New(t)
	recycler := RunRecyclerInTest(t, RecyclerConfig{
		BufferSize:   4096,
		NumOfBuffers: 1,
	})

	_, err := recycler.Acquire()
	requireT.NoError(err)

	recycler.Close()

	_, err = recycler.Acquire()
	requireT.Error(err)
}
