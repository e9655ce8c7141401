// Package callable maps function handles to stable names so that components
// holding callbacks can be written to and read back from documents.
package callable

import (
	"reflect"
	"sort"
	"sync"

	"github.com/opencode-ai/genpipe/internal/errors"
)

// Registry associates names with functions of type F.
//
// Functions are identified by their code pointer, so closures created from
// the same function literal share a name: the first registration wins.
type Registry[F any] struct {
	mu     sync.RWMutex
	byName map[string]F
	byPtr  map[uintptr]string
}

func NewRegistry[F any]() *Registry[F] {
	return &Registry[F]{
		byName: make(map[string]F),
		byPtr:  make(map[uintptr]string),
	}
}

// Register adds fn under name. Registering an existing name replaces the
// previous function.
func (r *Registry[F]) Register(name string, fn F) error {
	ptr, err := pointer(fn)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.Configuration("callable name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byName[name]; ok {
		if prevPtr, err := pointer(prev); err == nil && r.byPtr[prevPtr] == name {
			delete(r.byPtr, prevPtr)
		}
	}
	r.byName[name] = fn
	if _, taken := r.byPtr[ptr]; !taken {
		r.byPtr[ptr] = name
	}
	return nil
}

// MustRegister is Register for package initialization.
func (r *Registry[F]) MustRegister(name string, fn F) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry[F]) Lookup(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byName[name]
	if !ok {
		var zero F
		return zero, errors.Resolution("no callable registered as %q", name)
	}
	return fn, nil
}

// NameOf returns the name fn was registered under.
func (r *Registry[F]) NameOf(fn F) (string, error) {
	ptr, err := pointer(fn)
	if err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byPtr[ptr]
	if !ok {
		return "", errors.Resolution("callable %s is not registered", runtimeName(fn))
	}
	return name, nil
}

// Names lists the registered names in sorted order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pointer(fn any) (uintptr, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return 0, errors.Configuration("callable must be a function, got %T", fn)
	}
	if v.IsNil() {
		return 0, errors.Configuration("callable must not be nil")
	}
	return v.Pointer(), nil
}

func runtimeName(fn any) string {
	v := reflect.ValueOf(fn)
	return v.Type().String()
}
