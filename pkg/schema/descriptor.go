package schema

import "fmt"

// Kind is the primitive type of a described field.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindObject Kind = "object"
	KindArray  Kind = "array"
)

// Descriptor declares the shape a structured response must conform to.
// Objects nest further descriptors through Properties, arrays through Items.
type Descriptor struct {
	Kind        Kind
	Description string
	Required    bool
	Properties  []Property
	Items       *Descriptor
}

// Property is a named member of an object descriptor. Order is preserved so
// providers that honour property ordering see fields as declared.
type Property struct {
	Name       string
	Descriptor *Descriptor
}

// String returns a string field descriptor.
func String(required bool) *Descriptor {
	return &Descriptor{Kind: KindString, Required: required}
}

// Number returns a number field descriptor.
func Number(required bool) *Descriptor {
	return &Descriptor{Kind: KindNumber, Required: required}
}

// Object returns an object descriptor with the given properties.
func Object(required bool, props ...Property) *Descriptor {
	return &Descriptor{Kind: KindObject, Required: required, Properties: props}
}

// Array returns an array descriptor whose elements match items.
func Array(required bool, items *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindArray, Required: required, Items: items}
}

// Field pairs a name with a descriptor.
func Field(name string, d *Descriptor) Property {
	return Property{Name: name, Descriptor: d}
}

// Describe attaches a human readable description and returns the descriptor.
func (d *Descriptor) Describe(text string) *Descriptor {
	d.Description = text
	return d
}

// RequiredNames lists the names of required properties in declaration order.
func (d *Descriptor) RequiredNames() []string {
	if d == nil {
		return nil
	}
	var names []string
	for _, p := range d.Properties {
		if p.Descriptor != nil && p.Descriptor.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Validate checks the descriptor itself is well formed.
func (d *Descriptor) Validate() error {
	return d.validate("$")
}

func (d *Descriptor) validate(path string) error {
	if d == nil {
		return fmt.Errorf("%s: descriptor is nil", path)
	}
	switch d.Kind {
	case KindString, KindNumber:
		return nil
	case KindObject:
		seen := make(map[string]bool, len(d.Properties))
		for _, p := range d.Properties {
			if p.Name == "" {
				return fmt.Errorf("%s: property without name", path)
			}
			if seen[p.Name] {
				return fmt.Errorf("%s: duplicate property %q", path, p.Name)
			}
			seen[p.Name] = true
			if err := p.Descriptor.validate(path + "." + p.Name); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		if d.Items == nil {
			return fmt.Errorf("%s: array without items", path)
		}
		return d.Items.validate(path + "[]")
	default:
		return fmt.Errorf("%s: unknown kind %q", path, d.Kind)
	}
}

// JSONSchema renders the descriptor as a JSON Schema document suitable for
// providers that accept one directly.
func (d *Descriptor) JSONSchema() map[string]any {
	if d == nil {
		return nil
	}
	out := map[string]any{"type": string(d.Kind)}
	if d.Description != "" {
		out["description"] = d.Description
	}
	switch d.Kind {
	case KindObject:
		props := make(map[string]any, len(d.Properties))
		for _, p := range d.Properties {
			props[p.Name] = p.Descriptor.JSONSchema()
		}
		out["properties"] = props
		if req := d.RequiredNames(); len(req) > 0 {
			out["required"] = req
		}
		out["additionalProperties"] = false
	case KindArray:
		out["items"] = d.Items.JSONSchema()
	}
	return out
}
