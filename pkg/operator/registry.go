package operator

import (
	"fmt"
	"sort"
	"sync"

	ierrors "github.com/luocf/inferunity/pkg/errors"
)

// Factory produces a fresh Operator instance. A fresh instance is
// created per node per run since Operator instances are not
// thread-safe (§5).
type Factory func() Operator

// Registry is a process-wide mapping from op-type string to a
// Factory. Registrations are static, loaded once; the registry is
// read-only after Init() completes (§4.4, §9).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry. Most callers should use the
// process-wide registry returned by Init/Default instead of building
// their own, but a bespoke Registry is useful for tests that need a
// reduced operator set.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for opType. Duplicate registration of the
// same op-type is rejected (§4.4: "implementations should reject it").
func (r *Registry) Register(opType string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[opType]; exists {
		return fmt.Errorf("operator already registered for op-type: %s", opType)
	}
	r.factories[opType] = f
	return nil
}

// MustRegister registers a factory and panics on error. Used during
// static initialization where registration must succeed.
func (r *Registry) MustRegister(opType string, f Factory) {
	if err := r.Register(opType, f); err != nil {
		panic(err)
	}
}

// New produces a fresh Operator for opType, or a NotFound diagnostic if
// no factory is registered.
func (r *Registry) New(opType string) (Operator, error) {
	r.mu.RLock()
	f, ok := r.factories[opType]
	r.mu.RUnlock()
	if !ok {
		return nil, ierrors.New(ierrors.NotFound, "no operator registered for op-type: %s", opType)
	}
	return f(), nil
}

// Has reports whether opType has a registered factory.
func (r *Registry) Has(opType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[opType]
	return ok
}

// ListRegisteredTypes returns every registered op-type, sorted for
// deterministic output.
func (r *Registry) ListRegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide Registry populated with the
// minimum built-in operator set (§6.3), initializing it exactly once.
// This is the explicit init entry point spec §9 calls for in languages
// without pre-main static constructors; it is idempotent and
// thread-safe via sync.Once.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// Init populates the process-wide registry, idempotently. It is the
// explicit init entry point a Session calls at construction so the
// first Load doesn't pay the one-time registration cost; calling it
// more than once, or not at all before Default/Load, is harmless.
func Init() {
	Default()
}

func registerBuiltins(r *Registry) {
	// Activations
	r.MustRegister("Relu", func() Operator { return &Relu{} })
	r.MustRegister("Sigmoid", func() Operator { return &Sigmoid{} })
	r.MustRegister("Tanh", func() Operator { return &Tanh{} })
	r.MustRegister("Gelu", func() Operator { return &Gelu{} })
	r.MustRegister("Silu", func() Operator { return &Silu{} })

	// Math
	r.MustRegister("Add", func() Operator { return newBinaryOp("Add") })
	r.MustRegister("Sub", func() Operator { return newBinaryOp("Sub") })
	r.MustRegister("Mul", func() Operator { return newBinaryOp("Mul") })
	r.MustRegister("Div", func() Operator { return newBinaryOp("Div") })
	r.MustRegister("MatMul", func() Operator { return &MatMul{} })

	// Conv/pool
	r.MustRegister("Conv", func() Operator { return &Conv{} })
	r.MustRegister("MaxPool", func() Operator { return newPool("MaxPool") })
	r.MustRegister("AveragePool", func() Operator { return newPool("AveragePool") })

	// Norm
	r.MustRegister("BatchNormalization", func() Operator { return &BatchNormalization{} })
	r.MustRegister("LayerNormalization", func() Operator { return &LayerNormalization{} })
	r.MustRegister("RMSNorm", func() Operator { return &RMSNorm{} })

	// Softmax family
	r.MustRegister("Softmax", func() Operator { return newSoftmax("Softmax") })
	r.MustRegister("LogSoftmax", func() Operator { return newSoftmax("LogSoftmax") })

	// Shape ops
	r.MustRegister("Reshape", func() Operator { return &Reshape{} })
	r.MustRegister("Concat", func() Operator { return &Concat{} })
	r.MustRegister("Split", func() Operator { return &Split{} })
	r.MustRegister("Transpose", func() Operator { return &Transpose{} })
	r.MustRegister("Gather", func() Operator { return &Gather{} })
	r.MustRegister("Slice", func() Operator { return &Slice{} })
	r.MustRegister("Embedding", func() Operator { return &Embedding{} })

	// Fused
	r.MustRegister("FusedConvBNReLU", func() Operator { return &FusedConvBNReLU{} })
	r.MustRegister("FusedConvReLU", func() Operator { return &FusedConvReLU{} })
	r.MustRegister("FusedBNReLU", func() Operator { return &FusedBNReLU{} })
	r.MustRegister("FusedMatMulAdd", func() Operator { return &FusedMatMulAdd{} })
}
