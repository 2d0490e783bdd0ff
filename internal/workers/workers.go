// Package workers manages panic-isolated background goroutines that can be
// stopped as a group. It backs the fast and long analysis workers of the
// sensor pipeline (sensorpipeline package) and the uvc transport's frame
// polling loop, which drives the capture callbacks.
package workers

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// Group is a set of goroutines that were started together and are stopped
// together. Each function runs until ctx (the group's own cancellable
// context) is done.
type Group interface {
	Add(funcs ...func(ctx context.Context))
	Stop()
	Context() context.Context
}

type group struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	wg         sync.WaitGroup
}

// New starts fns as panic-isolated goroutines under a fresh cancellable
// context derived from parent.
func New(parent context.Context, fns ...func(ctx context.Context)) Group {
	ctx, cancel := context.WithCancel(parent)
	g := &group{cancelCtx: ctx, cancelFunc: cancel}
	g.Add(fns...)
	return g
}

// Add starts additional goroutines under the group's context. It is a no-op
// once Stop has been called.
func (g *group) Add(fns ...func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelCtx.Err() != nil {
		return
	}

	g.wg.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		goutils.PanicCapturingGo(func() {
			defer g.wg.Done()
			fn(g.cancelCtx)
		})
	}
}

// Stop cancels the group's context and waits for every goroutine to return.
func (g *group) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelFunc()
	g.wg.Wait()
}

// Context returns the context passed to every goroutine in the group.
func (g *group) Context() context.Context {
	return g.cancelCtx
}
