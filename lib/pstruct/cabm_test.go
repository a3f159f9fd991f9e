package pstruct

import (
	"bytes"
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

func testSchema(t *testing.T) particles.Schema {
	s, err := particles.NewSchema([]string{"id", "x"}, []string{"u64", "v64"})
	require.NoError(t, err)
	return s
}

// testInfo returns field values for n particles where particle i has id
// start+i and position (id, 0, 0).
func testInfo(n, start int) particles.Particles {
	id, x := make([]uint64, n), make([][3]float64, n)
	for i := range id {
		id[i] = uint64(start + i)
		x[i] = [3]float64{float64(start + i), 0, 0}
	}
	return particles.Particles{
		particles.NewUint64("id", id), particles.NewVec64("x", x),
	}
}

// testInput returns an Input for particle elements elms across numElements
// elements, with ids 0, 1, ..., len(elms) - 1.
func testInput(numElements, v int, elms []int) *Input {
	ppe := make([]int, numElements)
	for _, e := range elms {
		ppe[e]++
	}
	return &Input{
		NumElements:         numElements,
		NumParticles:        len(elms),
		ParticlesPerElement: ppe,
		ParticleElements:    elms,
		ParticleInfo:        testInfo(len(elms), 0),
		VectorLength:        v,
	}
}

// elementIDs returns the sorted ids stored in each element, checking that
// every particle's position still agrees with its id.
func elementIDs(t *testing.T, s *CabM) map[int][]uint64 {
	id, err := Get[uint64](s, s.FieldIndex("id"))
	require.NoError(t, err)
	x, err := Get[[3]float64](s, s.FieldIndex("x"))
	require.NoError(t, err)

	out := map[int][]uint64{}
	mask, parents := s.ActiveMask(), s.ParentElms()
	for slot := range mask {
		if mask[slot] == 0 {
			continue
		}
		elm := parents[slot/s.VectorLength()]
		out[elm] = append(out[elm], id.Get(slot))
		assert.Equal(t, float64(id.Get(slot)), x.Get(slot)[0])
	}
	for elm := range out {
		sort.Slice(out[elm], func(i, j int) bool { return out[elm][i] < out[elm][j] })
	}
	return out
}

func countActive(mask []int32) int {
	n := 0
	for _, m := range mask {
		n += int(m)
	}
	return n
}

func TestConstructionScenario(t *testing.T) {
	s, err := NewCabM(testSchema(t), testInput(3, 4, []int{0, 2, 0, 2, 2}))
	require.NoError(t, err)

	assert.Equal(t, 3, s.NElems())
	assert.Equal(t, 5, s.NPtcls())
	assert.Equal(t, 2, s.NumRows())
	assert.Equal(t, 8, s.Capacity())
	assert.Equal(t, []int{0, 1, 1, 2}, s.Offsets())
	assert.Equal(t, []int{0, 2}, s.ParentElms())
	assert.Equal(t, []int{2, 0, 3}, s.ParticlesPerElement())
	assert.Equal(t, []int32{1, 1, 0, 0, 1, 1, 1, 0}, s.ActiveMask())
	assert.Equal(t, "ptcls", s.Name())

	ids := elementIDs(t, s)
	assert.Equal(t, map[int][]uint64{0: {0, 2}, 2: {1, 3, 4}}, ids)
}

func TestConstructionWithoutFill(t *testing.T) {
	s, err := NewCabM(testSchema(t), &Input{
		NumElements: 2, NumParticles: 40, ParticlesPerElement: []int{33, 7},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultVectorLength, s.VectorLength())
	assert.Equal(t, []int{0, 2, 3}, s.Offsets())
	assert.Equal(t, 96, s.Capacity())
	assert.Equal(t, 40, countActive(s.ActiveMask()))
}

func TestConstructionErrors(t *testing.T) {
	schema := testSchema(t)
	tests := []struct {
		in     *Input
		marker error
	}{
		// ParticlesPerElement has the wrong length.
		{&Input{NumElements: 3, NumParticles: 1, ParticlesPerElement: []int{1}}, g_error.ErrPrecondition},
		// ParticlesPerElement has the wrong sum.
		{&Input{NumElements: 1, NumParticles: 2, ParticlesPerElement: []int{1}}, g_error.ErrPrecondition},
		// Duplicate gids.
		{&Input{NumElements: 2, NumParticles: 0, ParticlesPerElement: []int{0, 0},
			ElementGIDs: []int64{4, 4}}, g_error.ErrPrecondition},
		// Too few gids.
		{&Input{NumElements: 2, NumParticles: 0, ParticlesPerElement: []int{0, 0},
			ElementGIDs: []int64{4}}, g_error.ErrPrecondition},
		// Overfilled element.
		{&Input{NumElements: 2, NumParticles: 2, ParticlesPerElement: []int{1, 1},
			ParticleElements: []int{0, 0}, ParticleInfo: testInfo(2, 0)}, g_error.ErrUndefinedUsage},
		// Element out of range.
		{&Input{NumElements: 2, NumParticles: 2, ParticlesPerElement: []int{1, 1},
			ParticleElements: []int{0, 5}, ParticleInfo: testInfo(2, 0)}, g_error.ErrUndefinedUsage},
		// Too few particle elements.
		{&Input{NumElements: 2, NumParticles: 2, ParticlesPerElement: []int{1, 1},
			ParticleElements: []int{0}, ParticleInfo: testInfo(1, 0)}, g_error.ErrUndefinedUsage},
		// Field values of the wrong length.
		{&Input{NumElements: 2, NumParticles: 2, ParticlesPerElement: []int{1, 1},
			ParticleElements: []int{0, 1}, ParticleInfo: testInfo(3, 0)}, g_error.ErrUndefinedUsage},
		// Field values of the wrong type.
		{&Input{NumElements: 1, NumParticles: 1, ParticlesPerElement: []int{1},
			ParticleElements: []int{0}, ParticleInfo: particles.Particles{
				particles.NewUint32("id", []uint32{0}),
				particles.NewVec64("x", [][3]float64{{}}),
			}}, g_error.ErrUndefinedUsage},
	}

	for i := range tests {
		_, err := NewCabM(schema, tests[i].in)
		assert.True(t, errors.Is(err, tests[i].marker), "%d) got %v", i, err)
	}
}

func TestParallelFor(t *testing.T) {
	s, err := NewCabM(testSchema(t), testInput(4, 4, []int{3, 3, 1, 0, 3, 3, 3}))
	require.NoError(t, err)

	calls, active := int64(0), int64(0)
	visits := make([]int32, s.Capacity())
	parents := s.ParentElms()
	err = s.ParallelFor(func(elm, ptcl int, isActive bool) {
		atomic.AddInt64(&calls, 1)
		atomic.AddInt32(&visits[ptcl], 1)
		if isActive {
			atomic.AddInt64(&active, 1)
		}
		assert.Equal(t, parents[ptcl/4], elm)
	})
	require.NoError(t, err)

	assert.Equal(t, int64(s.Capacity()), calls)
	assert.Equal(t, int64(s.NPtcls()), active)
	for i := range visits {
		assert.Equal(t, int32(1), visits[i])
	}

	empty, err := NewCabM(testSchema(t), &Input{
		NumElements: 3, ParticlesPerElement: []int{0, 0, 0}, VectorLength: 4,
	})
	require.NoError(t, err)
	calls = 0
	require.NoError(t, empty.ParallelFor(func(int, int, bool) { calls++ }))
	assert.Equal(t, int64(0), calls)
}

func TestFieldAccess(t *testing.T) {
	s, err := NewCabM(testSchema(t), testInput(2, 4, []int{1, 1, 0}))
	require.NoError(t, err)

	_, err = Get[float32](s, 0)
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))
	_, err = Get[uint64](s, 2) // the mask is not a user field
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))

	x, err := Get[[3]float64](s, 1)
	require.NoError(t, err)
	require.NoError(t, s.ParallelFor(func(elm, ptcl int, active bool) {
		if active {
			x.Ptr(ptcl)[1] = float64(elm)
		}
	}))
	mask := s.ActiveMask()
	parents := s.ParentElms()
	for slot := range mask {
		if mask[slot] != 0 {
			assert.Equal(t, float64(parents[slot/4]), x.Get(slot)[1])
		}
	}

	assert.Equal(t, "x", s.Field(1).Name())
	assert.Equal(t, -1, s.FieldIndex("v"))
}

func TestElementIDs(t *testing.T) {
	in := testInput(3, 4, []int{0, 1, 2})
	in.ElementGIDs = []int64{30, 10, 20}
	s, err := NewCabM(testSchema(t), in)
	require.NoError(t, err)

	for lid, id := range in.ElementGIDs {
		assert.Equal(t, id, s.ElementGID(lid))
		got, err := s.ElementLID(id)
		require.NoError(t, err)
		assert.Equal(t, lid, got)
	}
	_, err = s.ElementLID(0)
	assert.True(t, errors.Is(err, g_error.ErrUnresolvedGlobalID))

	noGIDs, err := NewCabM(testSchema(t), testInput(3, 4, []int{0, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), noGIDs.ElementGID(2))
	lid, err := noGIDs.ElementLID(1)
	require.NoError(t, err)
	assert.Equal(t, 1, lid)
	_, err = noGIDs.ElementLID(3)
	assert.True(t, errors.Is(err, g_error.ErrUnresolvedGlobalID))
}

func TestRandomConstruction(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		ne := 1 + rng.Intn(30)
		v := 1 + rng.Intn(9)
		elms := make([]int, rng.Intn(200))
		for i := range elms {
			elms[i] = rng.Intn(ne)
		}

		s, err := NewCabM(testSchema(t), testInput(ne, v, elms))
		require.NoError(t, err)
		assert.Equal(t, 0, s.Capacity()%v)
		assert.Equal(t, len(elms), countActive(s.ActiveMask()))

		want := map[int][]uint64{}
		for i, e := range elms {
			want[e] = append(want[e], uint64(i))
		}
		assert.Equal(t, want, elementIDs(t, s))
	}
}

func TestMetricsAndFormat(t *testing.T) {
	s, err := NewCabM(testSchema(t), testInput(3, 4, []int{0, 2, 0, 2, 2}))
	require.NoError(t, err)

	m, err := s.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rank)
	assert.Equal(t, 3, m.Padded)
	assert.InDelta(t, 37.5, m.PaddedPercent, 1e-9)
	assert.Equal(t, 1, m.EmptyElements)
	assert.InDelta(t, 100.0/3, m.EmptyPercent, 1e-9)
	assert.InDelta(t, 5.0/3, m.MeanPerElement, 1e-9)
	assert.InDelta(t, 1.527525, m.StdPerElement, 1e-6)
	assert.Equal(t, 3, m.MaxPerElement)

	buf := &bytes.Buffer{}
	require.NoError(t, s.PrintMetrics(buf))
	assert.Contains(t, buf.String(), "Metrics (Rank 0)")
	assert.Contains(t, buf.String(), "Padded Cells <Tot %> 3 37.500%")

	f, err := s.Format("step 0")
	require.NoError(t, err)
	assert.Contains(t, f, "step 0\n")
	assert.Contains(t, f, "Number of Particles: 5.")
	assert.Contains(t, f, "  Element 0(0) | 1 1 0 0\n")
	assert.Contains(t, f, "  Element 2(2) | 1 1 1 0\n")
}

func TestUnsupported(t *testing.T) {
	s, err := New("dps", testSchema(t), &Input{})
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Rebuild(nil, nil, nil), g_error.ErrUnsupported))
	assert.True(t, errors.Is(s.Migrate(nil, nil, nil, nil), g_error.ErrUnsupported))
	assert.True(t, errors.Is(s.ParallelFor(func(int, int, bool) {}), g_error.ErrUnsupported))
	_, err = s.Metrics()
	assert.True(t, errors.Is(err, g_error.ErrUnsupported))
	_, err = s.Format("")
	assert.True(t, errors.Is(err, g_error.ErrUnsupported))
	assert.Equal(t, 0, s.NPtcls())

	_, err = New("kokkos", testSchema(t), &Input{})
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))

	c, err := New("cabm", testSchema(t), testInput(1, 4, []int{0}))
	require.NoError(t, err)
	assert.Equal(t, 1, c.NPtcls())
}
