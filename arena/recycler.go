package arena

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/parallel"
)

// RecyclerConfig stores the configuration of the buffer recycler.
type RecyclerConfig struct {
	BufferSize   uint64
	NumOfBuffers uint64
	NumOfWorkers uint64
	UseHugePages bool
}

// NewRecycler creates a pool of equally sized arena buffers carved from one
// mmapped allocation. Buffers released after a trace pass are zeroed by
// background workers before they are handed out again, so repeated
// compactions do not re-fault pages.
func NewRecycler(config RecyclerConfig) (*Recycler, func(), error) {
	if config.NumOfBuffers == 0 {
		return nil, nil, errors.New("number of buffers must be positive")
	}
	if config.NumOfWorkers == 0 {
		config.NumOfWorkers = 1
	}

	data, deallocFunc, err := AllocateBuffer(config.BufferSize*config.NumOfBuffers,
		uint64(os.Getpagesize()), config.UseHugePages)
	if err != nil {
		return nil, nil, err
	}

	freeCh := make(chan []byte, config.NumOfBuffers)
	for i := range config.NumOfBuffers {
		freeCh <- data[i*config.BufferSize : (i+1)*config.BufferSize]
	}

	return &Recycler{
		config:   config,
		freeCh:   freeCh,
		dirtyCh:  make(chan []byte, config.NumOfBuffers),
		closedCh: make(chan struct{}),
	}, deallocFunc, nil
}

// Recycler hands out zeroed arena buffers.
type Recycler struct {
	config    RecyclerConfig
	freeCh    chan []byte
	dirtyCh   chan []byte
	closedCh  chan struct{}
	closeOnce sync.Once
}

// Acquire returns a zeroed buffer from the pool. If the pool is momentarily
// drained it waits for a released buffer to come back from a zeroing worker.
func (r *Recycler) Acquire() ([]byte, error) {
	select {
	case buf := <-r.freeCh:
		return buf, nil
	default:
	}

	select {
	case buf := <-r.freeCh:
		return buf, nil
	case <-r.closedCh:
		return nil, errors.New("recycler is closed")
	}
}

// Close unblocks pending and future Acquire calls with an error.
func (r *Recycler) Close() {
	r.closeOnce.Do(func() {
		close(r.closedCh)
	})
}

// Release schedules a retired buffer for zeroing and reuse.
func (r *Recycler) Release(buf []byte) {
	r.dirtyCh <- buf
}

// Run runs the workers zeroing released buffers.
func (r *Recycler) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range r.config.NumOfWorkers {
			spawn(fmt.Sprintf("eraser-%02d", i), parallel.Fail, func(ctx context.Context) error {
				for {
					select {
					case <-ctx.Done():
						return errors.WithStack(ctx.Err())
					case buf := <-r.dirtyCh:
						clear(buf)
						r.freeCh <- buf
					}
				}
			})
		}
		return nil
	})
}
