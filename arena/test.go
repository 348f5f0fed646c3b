package arena

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// RunRecyclerInTest creates and runs a buffer recycler for unit tests.
func RunRecyclerInTest(t *testing.T, config RecyclerConfig) *Recycler {
	recycler, deallocFunc, err := NewRecycler(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(deallocFunc)

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)

	group := parallel.NewGroup(ctx)
	group.Spawn("recycler", parallel.Continue, recycler.Run)

	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
	})
	t.Cleanup(recycler.Close)

	return recycler
}
