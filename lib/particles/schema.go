package particles

/* This file contains Schema and Particles, which describe and hold a full set
of fields. */

import (
	"fmt"
)

// Schema lists the names and types of the fields carried by a particle
// structure. The index of a field in the schema is its field index.
type Schema struct {
	Names []string
	Kinds []Kind
}

// NewSchema returns a Schema for the given variable names and type strings
// (see ParseKind). Names cannot be used more than once.
func NewSchema(names, types []string) (Schema, error) {
	if len(names) != len(types) {
		return Schema{}, fmt.Errorf("%d field names were given, but %d field types.", len(names), len(types))
	}

	s := Schema{make([]string, len(names)), make([]Kind, len(names))}
	seen := map[string]bool{}
	for i, name := range names {
		if name == "" {
			return Schema{}, fmt.Errorf("Field %d has an empty name.", i)
		} else if seen[name] {
			return Schema{}, fmt.Errorf("The field name '%s' is used more than once.", name)
		}
		seen[name] = true

		kind, err := ParseKind(types[i])
		if err != nil {
			return Schema{}, err
		}
		s.Names[i], s.Kinds[i] = name, kind
	}

	return s, nil
}

// Len returns the number of fields in the schema.
func (s Schema) Len() int { return len(s.Names) }

// Index returns the field index of the given name, or -1 if there is no field
// with that name.
func (s Schema) Index(name string) int {
	for i := range s.Names {
		if s.Names[i] == name {
			return i
		}
	}
	return -1
}

// RecordSize returns the number of bytes needed to store one particle.
func (s Schema) RecordSize() int {
	size := 0
	for _, k := range s.Kinds {
		size += k.Size()
	}
	return size
}

// Buffers creates a zeroed Particles with n values in every field.
func (s Schema) Buffers(n int) Particles {
	p := make(Particles, s.Len())
	for i := range s.Names {
		// The kinds were validated when the Schema was made.
		p[i], _ = NewField(s.Names[i], s.Kinds[i], n)
	}
	return p
}

// Particles is an ordered set of fields. Field i corresponds to field index i
// of some Schema.
type Particles []Field

// Len returns the number of particles. It returns -1 if the fields have
// different lengths.
func (p Particles) Len() int {
	if len(p) == 0 {
		return 0
	}
	n := p[0].Len()
	for i := range p {
		if p[i].Len() != n {
			return -1
		}
	}
	return n
}

// Schema returns the Schema described by the fields in p.
func (p Particles) Schema() Schema {
	s := Schema{make([]string, len(p)), make([]Kind, len(p))}
	for i := range p {
		s.Names[i], s.Kinds[i] = p[i].Name(), p[i].Kind()
	}
	return s
}

// Matches returns an error describing the first difference between the types
// of p and the Schema s. Names are not compared.
func (p Particles) Matches(s Schema) error {
	if len(p) != s.Len() {
		return fmt.Errorf("Particles have %d fields, but %d were expected.", len(p), s.Len())
	}
	for i := range p {
		if p[i].Kind() != s.Kinds[i] {
			return fmt.Errorf("Field %d, '%s', has type %v, but %v was expected.", i, p[i].Name(), p[i].Kind(), s.Kinds[i])
		}
	}
	return nil
}

// CreateDestination creates a zeroed copy of p's fields with length n.
func (p Particles) CreateDestination(n int) Particles {
	out := make(Particles, len(p))
	for i := range p {
		out[i] = p[i].CreateDestination(n)
	}
	return out
}

// Transfer transfers every field in p to the field with the same index in
// dest.
func (p Particles) Transfer(dest Particles, from, to []int) error {
	if len(dest) != len(p) {
		return fmt.Errorf("Destination has %d fields, but source has %d.", len(dest), len(p))
	}
	for i := range p {
		if err := p[i].Transfer(dest[i], from, to); err != nil {
			return err
		}
	}
	return nil
}

// Concat returns a new Particles holding the particles of every argument in
// order. All arguments must have the same field types.
func Concat(s Schema, parts ...Particles) (Particles, error) {
	n := 0
	for i := range parts {
		if err := parts[i].Matches(s); err != nil {
			return nil, err
		}
		if parts[i].Len() < 0 {
			return nil, fmt.Errorf("Argument %d has fields of different lengths.", i)
		}
		n += parts[i].Len()
	}

	out := s.Buffers(n)
	start := 0
	for i := range parts {
		m := parts[i].Len()
		from, to := Sequence(m, 0), Sequence(m, start)
		if err := parts[i].Transfer(out, from, to); err != nil {
			return nil, err
		}
		start += m
	}

	return out, nil
}

// Sequence returns the array [start, start + 1, ..., start + n - 1].
func Sequence(n, start int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}
