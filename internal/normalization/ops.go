package normalization

import (
	"sync"

	"github.com/born-ml/batchnorm/internal/autodiff/ops"
	"github.com/born-ml/batchnorm/internal/tensor"
	"k8s.io/klog/v2"
)

// ForwardOp computes a training batch normalization: it normalizes x with
// the batch statistics over axes, writes the result into out, updates the
// running statistics in place and, if state is non-nil, stores what the
// matching BackwardOp needs.
//
// gamma, beta, runningMean and runningVar are already reshaped to the
// reduced shape; axes are resolved and sorted.
type ForwardOp interface {
	Call(x, gamma, beta, runningMean, runningVar *tensor.RawTensor, eps, decay float64,
		axes []int, out *tensor.RawTensor, state *StateSlot) error
}

// BackwardOp computes the first-order gradients of a training batch
// normalization into the gx, ggamma and gbeta buffers, using the state
// captured by the ForwardOp of the same dispatch table.
type BackwardOp interface {
	Call(x, gamma, gout *tensor.RawTensor, eps float64, axes []int,
		gx, ggamma, gbeta *tensor.RawTensor, state *StateSlot) error
}

// FixedForwardOp normalizes x with the given statistics and writes the
// result into out. It has no side effects.
type FixedForwardOp interface {
	Call(x, gamma, beta, mean, variance *tensor.RawTensor, eps float64,
		axes []int, out *tensor.RawTensor) error
}

// Ops is the batch normalization dispatch table of a backend.
type Ops struct {
	Forward      ForwardOp
	Backward     BackwardOp
	FixedForward FixedForwardOp
}

// OpsFactory builds the dispatch table bound to a backend instance.
type OpsFactory func(b tensor.Backend) Ops

var (
	registryMu sync.RWMutex
	registry   = map[string]OpsFactory{}
)

// RegisterOps registers specialized batch normalization operators for
// backends named backendName. Any operator left nil in the returned table
// falls back to the generic implementation.
func RegisterOps(backendName string, factory OpsFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[backendName] = factory
	klog.Infof("normalization: registered batch normalization operators for backend %q", backendName)
}

// UnregisterOps removes the operators registered for backendName.
func UnregisterOps(backendName string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, backendName)
}

// OpsFor returns the dispatch table for b. Recording backends dispatch on the
// backend they wrap. Without a registration the generic operators, built
// from backend primitives, are used.
func OpsFor(b tensor.Backend) Ops {
	b = baseOf(b)
	generic := NewGenericOps(b)

	registryMu.RLock()
	factory, found := registry[b.Name()]
	registryMu.RUnlock()
	if !found {
		return generic
	}

	table := factory(b)
	if table.Forward == nil {
		table.Forward = generic.Forward
	}
	if table.Backward == nil {
		table.Backward = generic.Backward
	}
	if table.FixedForward == nil {
		table.FixedForward = generic.FixedForward
	}
	return table
}

// baseOf unwraps a recording backend.
func baseOf(b tensor.Backend) tensor.Backend {
	if rec, ok := b.(ops.Recorder); ok {
		return rec.Base()
	}
	return b
}

// StateSlot carries what a ForwardOp captured for its BackwardOp. The content
// is opaque to everything but the operators that produced it.
//
// A slot is owned by the graph node of one training call and released with it.
type StateSlot struct {
	mu    sync.Mutex
	state any
}

// Set stores the captured state, replacing any previous one.
func (s *StateSlot) Set(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Get returns the captured state, or nil if none was stored or it was released.
func (s *StateSlot) Get() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Release drops the captured state.
func (s *StateSlot) Release() {
	s.Set(nil)
}
