package pstruct

import (
	"io"

	"github.com/phil-mansfield/pstructs/lib/aosoa"
	"github.com/phil-mansfield/pstructs/lib/comm"
	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/gid"
	"github.com/phil-mansfield/pstructs/lib/layout"
	"github.com/phil-mansfield/pstructs/lib/particles"
	"github.com/phil-mansfield/pstructs/lib/thread"
)

const (
	// DefaultVectorLength is the block width used when Input.VectorLength is
	// not set.
	DefaultVectorLength = 32
	// Remove is the new element of a particle which should be deleted during
	// Rebuild or Migrate.
	Remove = -1
)

// Input describes the initial state of a particle structure.
type Input struct {
	Name         string
	NumElements  int
	NumParticles int
	// ParticlesPerElement has length NumElements and sums to NumParticles.
	ParticlesPerElement []int
	// ElementGIDs is optional. If set, it has length NumElements and gives
	// the globally unique id of every element. Migrate uses it to resolve
	// element references sent by other processes.
	ElementGIDs []int64
	// ParticleElements and ParticleInfo are optional. If set, they give the
	// element and field values of each of the NumParticles initial
	// particles. ParticleInfo has one field per schema field.
	ParticleElements []int
	ParticleInfo     particles.Particles
	// VectorLength is the number of slots per block.
	VectorLength int
	// Comm is the process group used by Migrate. nil means a group containing
	// only this process.
	Comm comm.Comm
}

// Structure is the interface shared by all particle structures.
type Structure interface {
	Name() string
	// NElems returns the number of elements.
	NElems() int
	// NPtcls returns the number of particles.
	NPtcls() int
	// Capacity returns the number of slots, including padding.
	Capacity() int
	// NumRows returns the number of rows of storage. For a CabM, this is the
	// number of blocks.
	NumRows() int

	// Rebuild moves the particle in each slot to a new element and adds new
	// particles. newElement has one entry per slot; entries for inactive
	// slots are ignored and Remove deletes a particle.
	Rebuild(newElement, newParticleElements []int, newParticleInfo particles.Particles) error
	// Migrate is Rebuild across processes. Every process in the group must
	// call it.
	Migrate(newElement, newProcess, newParticleElements []int, newParticleInfo particles.Particles) error
	// ParallelFor calls fn once for every slot, active or not.
	ParallelFor(fn func(elm, ptcl int, active bool)) error

	Metrics() (*Metrics, error)
	PrintMetrics(w io.Writer) error
	Format(prefix string) (string, error)
}

// New creates a Structure of the given kind. "cabm" is the only kind available
// in this build; "dps" returns an Unsupported structure which reports an
// error from every operation.
func New(kind string, schema particles.Schema, in *Input) (Structure, error) {
	switch kind {
	case "cabm":
		return NewCabM(schema, in)
	case "dps":
		return &Unsupported{kind}, nil
	}
	return nil, g_error.Preconditionf("Unrecognized structure kind '%s'.", kind)
}

// CabM is a particle structure which stores particles in blocks of
// VectorLength() slots. Each block belongs to a single element and the
// particles of an element occupy the leading slots of its blocks.
type CabM struct {
	name     string
	schema   particles.Schema
	comm     comm.Comm
	numElems int
	numPtcls int

	lay   *layout.Layout
	gids  *gid.Map // nil if no element gids were given
	store *aosoa.AoSoA
}

var _ Structure = &CabM{}

// NewCabM creates a CabM whose fields are given by schema.
func NewCabM(schema particles.Schema, in *Input) (*CabM, error) {
	v := in.VectorLength
	if v == 0 {
		v = DefaultVectorLength
	}
	name := in.Name
	if name == "" {
		name = "ptcls"
	}
	c := in.Comm
	if c == nil {
		c = comm.Self()
	}

	total := 0
	for _, n := range in.ParticlesPerElement {
		total += n
	}
	if len(in.ParticlesPerElement) == in.NumElements && total != in.NumParticles {
		return nil, g_error.Preconditionf("%d particles were specified, but ParticlesPerElement sums to %d.", in.NumParticles, total)
	}

	lay, err := layout.Plan(in.ParticlesPerElement, in.NumElements, v)
	if err != nil {
		return nil, err
	}

	s := &CabM{
		name: name, schema: schema, comm: c,
		numElems: in.NumElements, numPtcls: in.NumParticles, lay: lay,
	}

	if len(in.ElementGIDs) > 0 {
		if len(in.ElementGIDs) != in.NumElements {
			return nil, g_error.Preconditionf("%d element gids were given for %d elements.", len(in.ElementGIDs), in.NumElements)
		}
		if s.gids, err = gid.New(in.ElementGIDs); err != nil {
			return nil, err
		}
	}

	if s.store, err = allocate(schema, lay); err != nil {
		return nil, err
	}

	if len(in.ParticleElements) > 0 || len(in.ParticleInfo) > 0 {
		if len(in.ParticleElements) != in.NumParticles {
			return nil, g_error.Undefinedf("%d particle elements were given for %d particles.", len(in.ParticleElements), in.NumParticles)
		}
		err = fill(lay, s.store, in.ParticleElements, in.ParticleInfo,
			make([]int32, lay.NumElements))
		if err != nil {
			return nil, err
		}
	}

	if c.Rank() == 0 {
		tracer().Infof("building CabM '%s' with %d elements, %d particles, and %d blocks of %d slots",
			name, s.numElems, s.numPtcls, lay.NumSoA, v)
	}

	return s, nil
}

// allocate creates storage for lay and sets its active mask.
func allocate(schema particles.Schema, lay *layout.Layout) (*aosoa.AoSoA, error) {
	store, err := aosoa.New(schema, lay.Capacity, lay.NumSoA, lay.VectorLength)
	if err != nil {
		return nil, err
	}
	if err := store.SetMask(lay.ActiveMask()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *CabM) Name() string      { return s.name }
func (s *CabM) NElems() int       { return s.numElems }
func (s *CabM) NPtcls() int       { return s.numPtcls }
func (s *CabM) Capacity() int     { return s.lay.Capacity }
func (s *CabM) NumRows() int      { return s.lay.NumSoA }
func (s *CabM) VectorLength() int { return s.lay.VectorLength }

// Schema returns the fields stored in the structure.
func (s *CabM) Schema() particles.Schema { return s.schema }

// Comm returns the process group the structure migrates over.
func (s *CabM) Comm() comm.Comm { return s.comm }

// Offsets returns a copy of the block offsets of every element.
func (s *CabM) Offsets() []int { return append([]int{}, s.lay.Offsets...) }

// ParentElms returns a copy of the owning element of every block.
func (s *CabM) ParentElms() []int { return append([]int{}, s.lay.ParentElms...) }

// ParticlesPerElement returns a copy of the particle count of every element.
func (s *CabM) ParticlesPerElement() []int {
	return append([]int{}, s.lay.ParticlesPerElement...)
}

// ActiveMask returns a copy of the active mask.
func (s *CabM) ActiveMask() []int32 {
	return append([]int32{}, s.store.Mask().Values()...)
}

// Layout returns a snapshot of the structure's layout.
func (s *CabM) Layout() *layout.Layout { return s.lay.Mirror() }

// ElementGID returns the global id of the element with local index lid. If
// no gids were given, the local index is returned.
func (s *CabM) ElementGID(lid int) int64 {
	if s.gids == nil {
		return int64(lid)
	}
	return s.gids.GlobalID(lid)
}

// ElementLID returns the local index of the element with the given global id.
func (s *CabM) ElementLID(id int64) (int, error) {
	if s.gids == nil {
		if id < 0 || id >= int64(s.numElems) {
			return 0, g_error.Unresolvedf("Element %d is not one of the %d local elements.", id, s.numElems)
		}
		return int(id), nil
	}
	return s.gids.Lookup(id)
}

// FieldIndex returns the index of the named field, or -1 if there is no such
// field.
func (s *CabM) FieldIndex(name string) int { return s.schema.Index(name) }

// Field returns field n. The returned Field is invalidated by the next call to
// Rebuild or Migrate.
func (s *CabM) Field(n int) particles.Field { return s.store.Field(n) }

// Get returns a typed slice of field n. The slice is invalidated by the next
// call to Rebuild or Migrate.
func Get[T any](s *CabM, n int) (aosoa.Slice[T], error) {
	if n < 0 || n >= s.schema.Len() {
		return aosoa.Slice[T]{}, g_error.Preconditionf("Field %d requested, but the structure has %d fields.", n, s.schema.Len())
	}
	return aosoa.Get[T](s.store, n)
}

func (s *CabM) ParallelFor(fn func(elm, ptcl int, active bool)) error {
	if s.numPtcls == 0 {
		return nil
	}

	v := s.lay.VectorLength
	parents := s.lay.ParentElms
	mask := s.store.Mask().Values()

	thread.SplitArray(s.lay.NumSoA, thread.Workers(), func(_, start, end, step int) {
		for soa := start; soa < end; soa += step {
			elm := parents[soa]
			for lane := 0; lane < v; lane++ {
				ptcl := soa*v + lane
				fn(elm, ptcl, mask[ptcl] != 0)
			}
		}
	}, thread.Block)

	return nil
}
