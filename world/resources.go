package world

import "reflect"

// Resources is the typed heterogeneous shared-resource map (spec §5):
// process-wide-lived values keyed by their compile-time type, initialized
// before Process is first called and touched only from the control thread
// thereafter (so, unlike EntityView's accessors, it takes no lock).
type Resources struct {
	values map[reflect.Type]any
}

func newResources() *Resources {
	return &Resources{values: make(map[reflect.Type]any)}
}

// SetResource installs value as the shared resource for type T, replacing
// any previous value of that type.
func SetResource[T any](r *Resources, value T) {
	r.values[reflect.TypeFor[T]()] = value
}

// Resource returns the shared resource of type T, or ok=false if none has
// been set.
func Resource[T any](r *Resources) (value T, ok bool) {
	v, found := r.values[reflect.TypeFor[T]()]
	if !found {
		return value, false
	}
	value, ok = v.(T)
	return value, ok
}
