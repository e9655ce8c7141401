// Package pipeline groups named components and saves them to, and restores
// them from, YAML or JSON documents.
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/opencode-ai/genpipe/internal/component"
	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/opencode-ai/genpipe/internal/logging"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Document is the serialized form of a pipeline.
type Document struct {
	Components map[string]component.Document `json:"components" yaml:"components"`
	Order      []string                      `json:"order,omitempty" yaml:"order,omitempty"`
}

type Pipeline struct {
	order      []string
	components map[string]component.Component
}

func New() *Pipeline {
	return &Pipeline{components: make(map[string]component.Component)}
}

func (p *Pipeline) Add(name string, c component.Component) error {
	if name == "" {
		return errors.Configuration("component name must not be empty")
	}
	if c == nil {
		return errors.Configuration("component %q is nil", name)
	}
	if _, dup := p.components[name]; dup {
		return errors.Configuration("a component named %q already exists", name)
	}
	p.components[name] = c
	p.order = append(p.order, name)
	return nil
}

func (p *Pipeline) Get(name string) (component.Component, bool) {
	c, ok := p.components[name]
	return c, ok
}

// Names returns component names in insertion order.
func (p *Pipeline) Names() []string {
	return append([]string(nil), p.order...)
}

// Lookup returns the component called name as a T.
func Lookup[T any](p *Pipeline, name string) (T, error) {
	var zero T
	c, ok := p.Get(name)
	if !ok {
		return zero, errors.Newf(errors.ErrNotFound, "no component named %q", name)
	}
	typed, ok := c.(T)
	if !ok {
		return zero, errors.Configuration("component %q is a %T, not a %T", name, c, zero)
	}
	return typed, nil
}

func (p *Pipeline) ToDocument() (Document, error) {
	doc := Document{
		Components: make(map[string]component.Document, len(p.components)),
		Order:      p.Names(),
	}
	for _, name := range p.order {
		cd, err := p.components[name].ToDocument()
		if err != nil {
			return Document{}, fmt.Errorf("serializing component %q: %w", name, err)
		}
		doc.Components[name] = cd
	}
	return doc, nil
}

// FromDocument rebuilds every component through the component registry.
func FromDocument(doc Document) (*Pipeline, error) {
	order := doc.Order
	if len(order) == 0 {
		for name := range doc.Components {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	if len(order) != len(doc.Components) {
		return nil, errors.Configuration("pipeline order lists %d components but %d are defined", len(order), len(doc.Components))
	}

	p := New()
	for _, name := range order {
		cd, ok := doc.Components[name]
		if !ok {
			return nil, errors.Configuration("pipeline order references unknown component %q", name)
		}
		c, err := component.FromDocument(cd)
		if err != nil {
			return nil, fmt.Errorf("loading component %q: %w", name, err)
		}
		if err := p.Add(name, c); err != nil {
			return nil, err
		}
		logging.Debug("Loaded pipeline component", "name", name, "type", cd.Type)
	}
	return p, nil
}

// Dump serializes the pipeline in the given format.
func (p *Pipeline) Dump(format Format) ([]byte, error) {
	doc, err := p.ToDocument()
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML, "":
		return marshalYAML(doc)
	default:
		return nil, errors.Configuration("unsupported pipeline format %q", format)
	}
}

// marshalYAML writes doc as block YAML with every string that contains a
// line break double-quoted. yaml.v3 would emit those as literal blocks, which
// drop newline-only values such as a "\n\n" stop sequence and fail to load
// when the value starts with a blank line. Node.Encode has the same problem,
// so the node tree is built from the JSON form, where strings are quoted.
func marshalYAML(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("converting pipeline to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blockStyle drops the flow style the JSON input carries. Strings without
// line breaks go back to the encoder's default quoting.
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		n.Style = 0
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" && strings.ContainsAny(n.Value, "\r\n") {
			n.Style = yaml.DoubleQuotedStyle
		} else {
			n.Style = 0
		}
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Load parses a YAML or JSON pipeline document and rebuilds its components.
func Load(data []byte) (*Pipeline, error) {
	var doc Document
	// JSON documents are valid YAML.
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrConfiguration, err, "invalid pipeline document")
	}
	return FromDocument(doc)
}
