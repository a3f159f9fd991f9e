package aosoa

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

func testSchema(t *testing.T) particles.Schema {
	s, err := particles.NewSchema(
		[]string{"x", "w", "id"}, []string{"v64", "f32", "u64"},
	)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	a, err := New(testSchema(t), 12, 3, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, a.VectorLength())
	assert.Equal(t, 3, a.NumSoA())
	assert.Equal(t, 12, a.Capacity())
	assert.Equal(t, 4, a.NumMembers())
	assert.Equal(t, 3, a.MaskIndex())
	assert.Equal(t, MaskName, a.Field(a.MaskIndex()).Name())
	assert.Len(t, a.Fields(), 3)
	for i := 0; i < a.NumMembers(); i++ {
		assert.Equal(t, 12, a.Field(i).Len())
	}

	_, err = New(testSchema(t), 13, 3, 4)
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))
	_, err = New(testSchema(t), 0, 0, 0)
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))
}

func TestSlices(t *testing.T) {
	a, err := New(testSchema(t), 8, 2, 4)
	require.NoError(t, err)

	w, err := Get[float32](a, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, w.Len())

	w.SetAccess(1, 2, 3.5)
	assert.Equal(t, float32(3.5), w.Get(6))
	w.Set(0, 1.25)
	assert.Equal(t, float32(1.25), w.Access(0, 0))

	x, err := Get[[3]float64](a, 0)
	require.NoError(t, err)
	x.Ptr(5)[1] = 2
	assert.Equal(t, [3]float64{0, 2, 0}, x.Get(5))

	_, err = Get[float64](a, 1)
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))
	_, err = Get[float64](a, 10)
	assert.True(t, errors.Is(err, g_error.ErrPrecondition))
}

func TestBlockWindows(t *testing.T) {
	a, err := New(testSchema(t), 8, 2, 4)
	require.NoError(t, err)
	require.NoError(t, a.SetMask([]int32{1, 1, 0, 0, 1, 1, 1, 0}))

	blk := a.Block(1)
	require.Len(t, blk, 4)
	assert.Equal(t, []int32{1, 1, 1, 0}, blk[3])

	w := blk[1].([]float32)
	w[0] = 9
	ws, err := Get[float32](a, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(9), ws.Get(4))

	assert.Error(t, a.SetMask([]int32{1}))
}
