/*package gid maps between the process-local indices of mesh elements and their
globally unique identifiers.*/
package gid

import (
	g_error "github.com/phil-mansfield/pstructs/lib/error"
)

// Map is a bidirectional mapping between local element indices and global
// element ids. It is built once and never modified.
type Map struct {
	lidToGid []int64
	gidToLid map[int64]int
}

// New builds a Map where element i has the global id gids[i]. Every id must be
// unique. An empty gids array gives an empty Map.
func New(gids []int64) (*Map, error) {
	m := &Map{
		lidToGid: append([]int64{}, gids...),
		gidToLid: make(map[int64]int, len(gids)),
	}

	for lid, gid := range gids {
		if prev, ok := m.gidToLid[gid]; ok {
			return nil, g_error.Preconditionf("Global id %d is assigned to both element %d and element %d.", gid, prev, lid)
		}
		m.gidToLid[gid] = lid
	}

	return m, nil
}

// Len returns the number of elements in the Map.
func (m *Map) Len() int { return len(m.lidToGid) }

// Lookup returns the local index of the element with the given global id. If
// the element is not resident, an error marked ErrUnresolvedGlobalID is
// returned.
func (m *Map) Lookup(gid int64) (int, error) {
	lid, ok := m.gidToLid[gid]
	if !ok {
		return -1, g_error.Unresolvedf("Global element id %d is not resident on this process.", gid)
	}
	return lid, nil
}

// Contains returns true if the element with the given global id is resident.
func (m *Map) Contains(gid int64) bool {
	_, ok := m.gidToLid[gid]
	return ok
}

// GlobalID returns the global id of the element with local index lid.
func (m *Map) GlobalID(lid int) int64 { return m.lidToGid[lid] }

// IDs returns a copy of the global ids, indexed by local index.
func (m *Map) IDs() []int64 { return append([]int64{}, m.lidToGid...) }

// Translate writes the local index of each id in gids to out, stopping at the
// first id that cannot be resolved.
func (m *Map) Translate(gids []int64, out []int) error {
	if len(gids) != len(out) {
		return g_error.Preconditionf("Translating %d global ids into an array of length %d.", len(gids), len(out))
	}
	for i, gid := range gids {
		lid, err := m.Lookup(gid)
		if err != nil {
			return err
		}
		out[i] = lid
	}
	return nil
}
