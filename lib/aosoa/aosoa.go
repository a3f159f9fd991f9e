/*package aosoa is the backing store for blocked particle data.

An AoSoA holds NumSoA blocks of V slots. Each member (field) is one column
whose values for block b occupy the window [b*V, (b+1)*V), so every block is a
small structure of arrays and slot s lives at block s/V, lane s%V. The last
member is always the int32 active mask.
*/
package aosoa

import (
	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

// MaskName is the name of the active mask member.
const MaskName = "__active"

// AoSoA is a fixed-capacity blocked particle store. It cannot be resized; a
// larger store must be allocated and filled instead.
type AoSoA struct {
	v, numSoA int
	members   particles.Particles
}

// New allocates an AoSoA with one member per field in the schema plus the
// active mask. capacity must equal numSoA*v.
func New(schema particles.Schema, capacity, numSoA, v int) (*AoSoA, error) {
	if v <= 0 {
		return nil, g_error.Preconditionf("Vector length must be positive, but is %d.", v)
	} else if capacity != numSoA*v {
		return nil, g_error.Preconditionf("Capacity %d is not %d blocks of %d slots.", capacity, numSoA, v)
	}

	members := append(schema.Buffers(capacity),
		particles.NewInt32(MaskName, make([]int32, capacity)))

	return &AoSoA{v, numSoA, members}, nil
}

// VectorLength returns the number of slots in a block.
func (a *AoSoA) VectorLength() int { return a.v }

// NumSoA returns the number of blocks.
func (a *AoSoA) NumSoA() int { return a.numSoA }

// Capacity returns the number of slots.
func (a *AoSoA) Capacity() int { return a.numSoA * a.v }

// NumMembers returns the number of members, including the active mask.
func (a *AoSoA) NumMembers() int { return len(a.members) }

// MaskIndex returns the member index of the active mask.
func (a *AoSoA) MaskIndex() int { return len(a.members) - 1 }

// Field returns member n.
func (a *AoSoA) Field(n int) particles.Field { return a.members[n] }

// Fields returns the user members, i.e. every member except the active mask.
func (a *AoSoA) Fields() particles.Particles {
	return a.members[:a.MaskIndex()]
}

// Mask returns the active mask member.
func (a *AoSoA) Mask() *particles.Column[int32] {
	return a.members[a.MaskIndex()].(*particles.Column[int32])
}

// SetMask copies mask into the active mask member.
func (a *AoSoA) SetMask(mask []int32) error {
	if len(mask) != a.Capacity() {
		return g_error.Preconditionf("Mask has length %d, but capacity is %d.", len(mask), a.Capacity())
	}
	copy(a.Mask().Values(), mask)
	return nil
}

// Block returns the V-wide window of every member for block soa. The windows
// alias the AoSoA's storage.
func (a *AoSoA) Block(soa int) []interface{} {
	out := make([]interface{}, len(a.members))
	lo, hi := soa*a.v, (soa+1)*a.v
	for i, f := range a.members {
		switch x := f.Data().(type) {
		case []int32:
			out[i] = x[lo:hi]
		case []int64:
			out[i] = x[lo:hi]
		case []uint32:
			out[i] = x[lo:hi]
		case []uint64:
			out[i] = x[lo:hi]
		case []float32:
			out[i] = x[lo:hi]
		case []float64:
			out[i] = x[lo:hi]
		case [][3]float32:
			out[i] = x[lo:hi]
		case [][3]float64:
			out[i] = x[lo:hi]
		}
	}
	return out
}

// Slice is a typed view of one member. Slots can be addressed either by
// global slot index or by (block, lane).
type Slice[T any] struct {
	data []T
	v    int
}

// Get returns a typed Slice of member n. T must match the member's type.
func Get[T any](a *AoSoA, n int) (Slice[T], error) {
	if n < 0 || n >= len(a.members) {
		return Slice[T]{}, g_error.Preconditionf("Member %d requested, but the structure has %d members.", n, len(a.members))
	}
	col, ok := a.members[n].(*particles.Column[T])
	if !ok {
		var zero T
		return Slice[T]{}, g_error.Preconditionf("Member %d, '%s', has type %v, not %T.", n, a.members[n].Name(), a.members[n].Kind(), zero)
	}
	return Slice[T]{col.Values(), a.v}, nil
}

// Len returns the number of slots in the slice.
func (s Slice[T]) Len() int { return len(s.data) }

// Get returns the value at slot i.
func (s Slice[T]) Get(i int) T { return s.data[i] }

// Set sets the value at slot i.
func (s Slice[T]) Set(i int, x T) { s.data[i] = x }

// Access returns the value at the given lane of the given block.
func (s Slice[T]) Access(soa, lane int) T { return s.data[soa*s.v+lane] }

// SetAccess sets the value at the given lane of the given block.
func (s Slice[T]) SetAccess(soa, lane int, x T) { s.data[soa*s.v+lane] = x }

// Ptr returns a pointer to the value at slot i, which is useful for updating
// vector members in place.
func (s Slice[T]) Ptr(i int) *T { return &s.data[i] }
