package capture

import "github.com/viam-labs/constellation-tracker/internal/framequeue"

// Pool is the fixed set of NumBuffers frame buffers a sensor cycles through.
// At any moment each frame is reachable from exactly one of {the pool's free
// list, the fast queue, the long queue, the in-progress capture frame, a
// worker's hand}.
type Pool struct {
	frames []*Frame
	free   *framequeue.Queue
}

// NewPool allocates NumBuffers frames of width*height pixels and puts them
// all on the free list.
func NewPool(width, height int) *Pool {
	p := &Pool{free: framequeue.New(NumBuffers + 1)}
	for i := 0; i < NumBuffers; i++ {
		f := &Frame{ID: i, Pixels: make([]byte, width*height), Width: width, Height: height}
		p.frames = append(p.frames, f)
		p.free.Push(f)
	}
	return p
}

// Acquire removes and returns a frame from the free list, or nil if none is
// free — the caller must then rescue one from the fast queue via rewind
// instead.
func (p *Pool) Acquire() *Frame {
	h := p.free.Pop()
	if h == nil {
		return nil
	}
	return h.(*Frame)
}

// Release resets f and returns it to the free list.
func (p *Pool) Release(f *Frame) {
	f.Reset()
	p.free.Push(f)
}

// NumFree reports how many frames currently sit on the free list.
func (p *Pool) NumFree() int { return p.free.Len() }

// All returns every frame the pool owns, for diagnostics/tests asserting
// the single-ownership invariant above.
func (p *Pool) All() []*Frame { return p.frames }
