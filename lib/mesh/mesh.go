/*package mesh is a minimal stand-in for a mesh and its partitioning: a periodic
cubic grid of elements split into contiguous chunks of global ids, one chunk
per process. It exists so that particle structures can be driven and tested
without a real mesh library.
*/
package mesh

import (
	"sort"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
)

// Directions are the six face neighbors of a grid cell.
const (
	XMinus = iota
	XPlus
	YMinus
	YPlus
	ZMinus
	ZPlus
	Directions
)

// Grid is a periodic z-major grid of cubic elements. Element (x, y, z) has
// the global id z + y*n + x*n*n.
type Grid struct {
	n   int
	n64 int64
}

// NewGrid returns a grid with width n on each side.
func NewGrid(n int) (*Grid, error) {
	if n <= 0 {
		return nil, g_error.Configf("Grid width must be positive, but is %d.", n)
	}
	return &Grid{n, int64(n)}, nil
}

// Width returns the number of elements along each side of the grid.
func (g *Grid) Width() int { return g.n }

// Len returns the total number of elements in the grid.
func (g *Grid) Len() int { return g.n * g.n * g.n }

// IDToIndex converts a global element id to its 3-index.
func (g *Grid) IDToIndex(id int64) [3]int {
	return [3]int{
		int(id / (g.n64 * g.n64)),
		int((id / g.n64) % g.n64),
		int(id % g.n64),
	}
}

// IndexToID converts a 3-index to its global element id. The index is wrapped
// periodically.
func (g *Grid) IndexToID(idx [3]int) int64 {
	for k := range idx {
		idx[k] = ((idx[k] % g.n) + g.n) % g.n
	}
	return int64(idx[2] + idx[1]*g.n + idx[0]*g.n*g.n)
}

// Neighbor returns the id of the element adjacent to id in the given
// direction.
func (g *Grid) Neighbor(id int64, dir int) int64 {
	idx := g.IDToIndex(id)
	step := 2*(dir%2) - 1
	idx[dir/2] += step
	return g.IndexToID(idx)
}

// Partition splits the elements of a Grid across processes. Process r owns
// the ids [Start(r), Start(r+1)).
type Partition struct {
	grid   *Grid
	starts []int64
}

// NewPartition splits g across the given number of processes.
func NewPartition(g *Grid, ranks int) (*Partition, error) {
	if ranks <= 0 {
		return nil, g_error.Configf("The number of processes must be positive, but is %d.", ranks)
	} else if ranks > g.Len() {
		return nil, g_error.Configf("%d processes cannot split a grid of only %d elements.", ranks, g.Len())
	}

	starts := make([]int64, ranks+1)
	for r := range starts {
		starts[r] = int64(r * g.Len() / ranks)
	}
	return &Partition{g, starts}, nil
}

// Grid returns the partitioned grid.
func (p *Partition) Grid() *Grid { return p.grid }

// Ranks returns the number of processes.
func (p *Partition) Ranks() int { return len(p.starts) - 1 }

// Start returns the first id owned by process r.
func (p *Partition) Start(r int) int64 { return p.starts[r] }

// Owner returns the process that owns the element id.
func (p *Partition) Owner(id int64) int {
	return sort.Search(p.Ranks(), func(r int) bool { return p.starts[r+1] > id })
}

// Elements returns the ids of every element owned by process r. The local
// index of an element is its position in this array.
func (p *Partition) Elements(r int) []int64 {
	ids := make([]int64, p.starts[r+1]-p.starts[r])
	for i := range ids {
		ids[i] = p.starts[r] + int64(i)
	}
	return ids
}
