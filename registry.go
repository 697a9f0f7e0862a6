package jarr

import (
	"reflect"
	"sync"
)

// Registry holds compiled Plans keyed by target type.  It is safe for
// concurrent use.  Registering a plan for a type that already has one
// replaces the earlier plan.
type Registry struct {
	mu    sync.RWMutex
	plans map[reflect.Type]any
}

func NewRegistry() *Registry {
	return &Registry{plans: make(map[reflect.Type]any)}
}

// Register stores p as the plan for type T.
func Register[T any](r *Registry, p *Plan[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[reflect.TypeFor[T]()] = p
}

// Lookup returns the registered plan for type T, if any.
func Lookup[T any](r *Registry) (*Plan[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[reflect.TypeFor[T]()].(*Plan[T])
	return p, ok
}

// DecoderFor returns the registered plan for T when one exists, falling back
// to a ReflectDecoder otherwise.  A nil registry always falls back.
func DecoderFor[T any](r *Registry, caseSensitive bool) Decoder[T] {
	if r != nil {
		if p, ok := Lookup[T](r); ok {
			return p
		}
	}
	return NewReflectDecoder[T](caseSensitive)
}
