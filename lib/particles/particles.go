/*package particles contains the typed field columns that particle data is stored
in, the schemas describing which fields a structure carries, and functions for
moving particles between columns.*/
package particles

/* This file contains the Field interface and its typed implementations. */

import (
	"fmt"
)

// Kind is a flag representing the type of a field.
type Kind int

const (
	Int32Kind Kind = iota
	Int64Kind
	Uint32Kind
	Uint64Kind
	Float32Kind
	Float64Kind
	Vec32Kind
	Vec64Kind
	numKinds
)

var kindNames = [numKinds]string{"i32", "i64", "u32", "u64", "f32", "f64",
	"v32", "v64"}

// kindSizes gives the number of bytes per value of each Kind.
var kindSizes = [numKinds]int{4, 8, 4, 8, 4, 8, 12, 24}

// ParseKind converts a type string ("i32", "i64", "u32", "u64", "f32", "f64",
// "v32", "v64") to a Kind.
func ParseKind(s string) (Kind, error) {
	for k := range kindNames {
		if kindNames[k] == s {
			return Kind(k), nil
		}
	}
	return -1, fmt.Errorf("'%s' is not a valid type. Only 'i32', 'i64', 'u32', 'u64', 'f32', 'f64', 'v32', and 'v64' are valid.", s)
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Size returns the number of bytes in a single value of this Kind.
func (k Kind) Size() int { return kindSizes[k] }

// Field is a generic interface around a single named column of particle data.
type Field interface {
	// Name returns the name of the field.
	Name() string
	// Kind returns the type flag of the underlying array.
	Kind() Kind
	// Len returns the length of the underlying array.
	Len() int
	// Data returns the underlying array as an interface{}.
	Data() interface{}
	// Transfer transfers data from the Field to dest, which must have the same
	// Kind. Values are transfered from the indices 'from' to the indices 'to'.
	// These indices are passed as arrays to amortize the cost of error
	// handling and type conversion.
	Transfer(dest Field, from, to []int) error
	// CreateDestination creates an empty field with the same name and type
	// and the given length.
	CreateDestination(n int) Field
}

// Type assertions
var (
	_ Field = &Column[int32]{}
	_ Field = &Column[int64]{}
	_ Field = &Column[uint32]{}
	_ Field = &Column[uint64]{}
	_ Field = &Column[float32]{}
	_ Field = &Column[float64]{}
	_ Field = &Column[[3]float32]{}
	_ Field = &Column[[3]float64]{}
)

// Column implements the Field interface for a []T array. See the Field
// interface for documentation of its methods. Only the element types listed
// by Kind are valid; use the typed constructors below rather than building a
// Column directly.
type Column[T any] struct {
	name string
	kind Kind
	data []T
}

// NewInt32 creates a field with a given name assoicated with a given array.
func NewInt32(name string, x []int32) *Column[int32] {
	return &Column[int32]{name, Int32Kind, x}
}

// NewInt64 creates a field with a given name assoicated with a given array.
func NewInt64(name string, x []int64) *Column[int64] {
	return &Column[int64]{name, Int64Kind, x}
}

// NewUint32 creates a field with a given name assoicated with a given array.
func NewUint32(name string, x []uint32) *Column[uint32] {
	return &Column[uint32]{name, Uint32Kind, x}
}

// NewUint64 creates a field with a given name assoicated with a given array.
func NewUint64(name string, x []uint64) *Column[uint64] {
	return &Column[uint64]{name, Uint64Kind, x}
}

// NewFloat32 creates a field with a given name assoicated with a given array.
func NewFloat32(name string, x []float32) *Column[float32] {
	return &Column[float32]{name, Float32Kind, x}
}

// NewFloat64 creates a field with a given name assoicated with a given array.
func NewFloat64(name string, x []float64) *Column[float64] {
	return &Column[float64]{name, Float64Kind, x}
}

// NewVec32 creates a field with a given name assoicated with a given array.
func NewVec32(name string, x [][3]float32) *Column[[3]float32] {
	return &Column[[3]float32]{name, Vec32Kind, x}
}

// NewVec64 creates a field with a given name assoicated with a given array.
func NewVec64(name string, x [][3]float64) *Column[[3]float64] {
	return &Column[[3]float64]{name, Vec64Kind, x}
}

// NewField creates a zeroed field of the given name, Kind, and length.
func NewField(name string, kind Kind, n int) (Field, error) {
	switch kind {
	case Int32Kind:
		return NewInt32(name, make([]int32, n)), nil
	case Int64Kind:
		return NewInt64(name, make([]int64, n)), nil
	case Uint32Kind:
		return NewUint32(name, make([]uint32, n)), nil
	case Uint64Kind:
		return NewUint64(name, make([]uint64, n)), nil
	case Float32Kind:
		return NewFloat32(name, make([]float32, n)), nil
	case Float64Kind:
		return NewFloat64(name, make([]float64, n)), nil
	case Vec32Kind:
		return NewVec32(name, make([][3]float32, n)), nil
	case Vec64Kind:
		return NewVec64(name, make([][3]float64, n)), nil
	}
	return nil, fmt.Errorf("Cannot create field '%s' with unrecognized type %v.", name, kind)
}

// NewGenericField wraps an array of a supported type in a Field.
func NewGenericField(name string, x interface{}) (Field, error) {
	switch xx := x.(type) {
	case []int32:
		return NewInt32(name, xx), nil
	case []int64:
		return NewInt64(name, xx), nil
	case []uint32:
		return NewUint32(name, xx), nil
	case []uint64:
		return NewUint64(name, xx), nil
	case []float32:
		return NewFloat32(name, xx), nil
	case []float64:
		return NewFloat64(name, xx), nil
	case [][3]float32:
		return NewVec32(name, xx), nil
	case [][3]float64:
		return NewVec64(name, xx), nil
	}
	return nil, fmt.Errorf("Field '%s' has unsupported array type %T.", name, x)
}

func (x *Column[T]) Name() string      { return x.name }
func (x *Column[T]) Kind() Kind        { return x.kind }
func (x *Column[T]) Len() int          { return len(x.data) }
func (x *Column[T]) Data() interface{} { return x.data }

// Values returns the underlying array.
func (x *Column[T]) Values() []T { return x.data }

// Get returns the value at index i.
func (x *Column[T]) Get(i int) T { return x.data[i] }

// Set sets the value at index i.
func (x *Column[T]) Set(i int, v T) { x.data[i] = v }

func (x *Column[T]) CreateDestination(n int) Field {
	return &Column[T]{x.name, x.kind, make([]T, n)}
}

func (x *Column[T]) Transfer(dest Field, from, to []int) error {
	destData, ok := dest.(*Column[T])
	if !ok {
		return fmt.Errorf("Field '%s' in destination does not have %v type, as expected.", dest.Name(), x.kind)
	}

	if len(from) != len(to) {
		return fmt.Errorf("'from' index array has length %d, but 'to' has length %d.", len(from), len(to))
	}

	for i := range from {
		destData.data[to[i]] = x.data[from[i]]
	}

	return nil
}
