// Package component defines the document form every pipeline component is
// saved as, and the registry used to rebuild components from it.
package component

import (
	"sort"
	"sync"

	"github.com/opencode-ai/genpipe/internal/errors"
)

// Document is the serialized form of a component: its registered type name
// and the parameters its constructor needs.
type Document struct {
	Type           string         `json:"type" yaml:"type"`
	InitParameters map[string]any `json:"init_parameters" yaml:"init_parameters"`
}

// Component is anything that can describe itself as a Document.
type Component interface {
	ToDocument() (Document, error)
}

// FromDocumentFunc rebuilds a component from its document.
type FromDocumentFunc func(Document) (Component, error)

var (
	mu       sync.RWMutex
	registry = map[string]FromDocumentFunc{}
)

// Register makes a component type loadable by FromDocument. It is meant to be
// called from init functions and panics on duplicate names.
func Register(typeName string, fn FromDocumentFunc) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[typeName]; dup {
		panic("component: Register called twice for type " + typeName)
	}
	registry[typeName] = fn
}

// Types lists the registered component types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FromDocument dispatches doc to the constructor registered for doc.Type.
func FromDocument(doc Document) (Component, error) {
	if doc.Type == "" {
		return nil, errors.Configuration("component document has no type")
	}
	mu.RLock()
	fn, ok := registry[doc.Type]
	mu.RUnlock()
	if !ok {
		return nil, errors.Resolution("unknown component type %q", doc.Type)
	}
	if doc.InitParameters == nil {
		doc.InitParameters = map[string]any{}
	}
	return fn(doc)
}

// NewDocument builds a Document, dropping nothing: nil values are kept so the
// document lists every parameter the component accepts.
func NewDocument(typeName string, params map[string]any) Document {
	if params == nil {
		params = map[string]any{}
	}
	return Document{Type: typeName, InitParameters: params}
}
