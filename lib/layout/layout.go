/*package layout computes where particles live inside blocked storage: how many
fixed-width blocks each element owns, the offsets of those blocks, the element
that owns each block, and which slots hold real particles.

A structure with vector length V stores particles in blocks of V slots. Element
i owns blocks [Offsets[i], Offsets[i+1]) and its particles occupy the first
ParticlesPerElement[i] slots of that range. Elements with no particles own no
blocks.
*/
package layout

import (
	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/thread"
)

// Layout is the block index of a particle structure.
type Layout struct {
	VectorLength int
	NumElements  int
	NumParticles int
	NumSoA       int
	Capacity     int

	ParticlesPerElement []int
	Offsets             []int // length NumElements + 1
	ParentElms          []int // length NumSoA
}

// Plan builds the Layout for the given per-element particle counts and
// vector length. len(particlesPerElement) must equal numElements.
func Plan(particlesPerElement []int, numElements, v int) (*Layout, error) {
	if len(particlesPerElement) != numElements {
		return nil, g_error.Preconditionf("%d elements were specified, but particlesPerElement has length %d.", numElements, len(particlesPerElement))
	} else if v <= 0 {
		return nil, g_error.Preconditionf("Vector length must be positive, but is %d.", v)
	}

	n := 0
	for i, np := range particlesPerElement {
		if np < 0 {
			return nil, g_error.Preconditionf("Element %d has a negative particle count, %d.", i, np)
		}
		n += np
	}

	l := &Layout{
		VectorLength: v,
		NumElements:  numElements,
		NumParticles: n,
	}
	l.ParticlesPerElement = append([]int{}, particlesPerElement...)
	l.Offsets = BuildOffsets(particlesPerElement, v)
	l.NumSoA = l.Offsets[numElements]
	l.Capacity = l.NumSoA * v
	l.ParentElms = ParentElms(numElements, l.NumSoA, l.Offsets)

	return l, nil
}

// BuildOffsets returns the exclusive prefix sum of the number of blocks needed
// by each element, with the total block count appended to the end.
func BuildOffsets(particlesPerElement []int, v int) []int {
	offsets := make([]int, len(particlesPerElement)+1)
	for i, np := range particlesPerElement {
		offsets[i+1] = offsets[i] + (np+v-1)/v
	}
	return offsets
}

// ParentElms inverts offsets, returning the element that owns each of the
// numSoA blocks. Empty elements are skipped.
func ParentElms(numElements, numSoA int, offsets []int) []int {
	parents := make([]int, numSoA)
	thread.For(numElements, func(i int) {
		for b := offsets[i]; b < offsets[i+1]; b++ {
			parents[b] = i
		}
	})
	return parents
}

// ActiveMask returns one flag per slot, 1 if the slot holds a particle and 0 if
// it is padding.
func (l *Layout) ActiveMask() []int32 {
	mask := make([]int32, l.Capacity)
	v := l.VectorLength
	thread.For(l.NumSoA, func(b int) {
		elm := l.ParentElms[b]
		first := (b - l.Offsets[elm]) * v
		for k := 0; k < v; k++ {
			if first+k < l.ParticlesPerElement[elm] {
				mask[b*v+k] = 1
			}
		}
	})
	return mask
}

// IsActive returns true if the given slot holds a particle.
func (l *Layout) IsActive(slot int) bool {
	b := slot / l.VectorLength
	elm := l.ParentElms[b]
	pos := (b-l.Offsets[elm])*l.VectorLength + slot%l.VectorLength
	return pos < l.ParticlesPerElement[elm]
}

// ElementSlots returns the range of slots reserved for element e.
func (l *Layout) ElementSlots(e int) (start, end int) {
	return l.Offsets[e] * l.VectorLength, l.Offsets[e+1] * l.VectorLength
}

// FirstSlot returns the index of the first slot of every element. The slot
// handed to the k-th particle of element e is FirstSlot()[e] + k.
func (l *Layout) FirstSlot() []int {
	first := make([]int, l.NumElements)
	for e := range first {
		first[e] = l.Offsets[e] * l.VectorLength
	}
	return first
}

// EmptyElements returns the number of elements which have no particles.
func (l *Layout) EmptyElements() int {
	n := 0
	for _, np := range l.ParticlesPerElement {
		if np == 0 {
			n++
		}
	}
	return n
}

// PaddedSlots returns the number of inactive slots.
func (l *Layout) PaddedSlots() int {
	return l.Capacity - l.NumParticles
}

// Mirror returns a deep copy of the Layout. It is a snapshot, so later changes
// to l are not visible through it.
func (l *Layout) Mirror() *Layout {
	out := *l
	out.ParticlesPerElement = append([]int{}, l.ParticlesPerElement...)
	out.Offsets = append([]int{}, l.Offsets...)
	out.ParentElms = append([]int{}, l.ParentElms...)
	return &out
}
