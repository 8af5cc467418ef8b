package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryCancelAndRemove(t *testing.T) {
	r := newRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	r.add(1, cancel)
	assert.Equal(t, 1, r.active())

	assert.True(t, r.cancel(1))
	assert.Error(t, ctx.Err())

	r.remove(1)
	assert.Equal(t, 0, r.active())

	// Cancel after removal is a no-op.
	assert.False(t, r.cancel(1))
}

func TestRegistryRemoveReleasesContext(t *testing.T) {
	r := newRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	r.add(2, cancel)
	r.remove(2)

	// remove releases the context even when nobody cancelled.
	assert.Error(t, ctx.Err())
}

func TestRegistryConcurrentCancelRemoveRace(t *testing.T) {
	// A cancel racing with the task's own removal must never panic or
	// resurrect an entry; one of the two simply finds nothing to do.
	r := newRegistry()

	var wg sync.WaitGroup
	for i := uint(0); i < 100; i++ {
		_, cancel := context.WithCancel(context.Background())
		r.add(i, cancel)

		wg.Add(2)
		go func(id uint) {
			defer wg.Done()
			r.cancel(id)
		}(i)
		go func(id uint) {
			defer wg.Done()
			r.remove(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.active())
}
