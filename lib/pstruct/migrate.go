package pstruct

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/phil-mansfield/pstructs/lib/comm"
	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/pack"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

const elementRefName = "__element"

// wireOrder is the byte order of particle data sent between processes.
var wireOrder binary.ByteOrder = binary.LittleEndian

// Migrate reorganizes the structure after particles change element and
// process. It is a collective operation: every process in the structure's
// group must call it, and it returns only once every process has sent its
// departing particles.
//
// newElement and newProcess have one entry per slot, and entries for inactive
// slots are ignored. A particle whose newProcess is this process stays, and
// newElement holds the local index of its new element. A particle sent to
// another process carries newElement to that process unchanged, and there it
// is resolved as a global element id (or as a local index if the receiving
// structure has no element gids). newParticleElements and newParticleInfo add
// particles to this process, as in Rebuild.
//
// If a received element reference cannot be resolved, Migrate returns an
// error marked ErrUnresolvedGlobalID. Since the particles have already left
// their senders by then, such an error is fatal for the whole group.
func (s *CabM) Migrate(
	newElement, newProcess, newParticleElements []int,
	newParticleInfo particles.Particles,
) error {
	rank, size := s.comm.Rank(), s.comm.Size()

	if len(newElement) != s.lay.Capacity {
		return g_error.Preconditionf("newElement has length %d, but the structure's capacity is %d.", len(newElement), s.lay.Capacity)
	} else if len(newProcess) != s.lay.Capacity {
		return g_error.Preconditionf("newProcess has length %d, but the structure's capacity is %d.", len(newProcess), s.lay.Capacity)
	}
	if len(newParticleElements) > 0 || len(newParticleInfo) > 0 {
		err := checkInfo(s.schema, newParticleElements, newParticleInfo)
		if err != nil {
			return err
		}
	}

	// Partition the particles into those which stay and those which depart.
	mask := s.store.Mask().Values()
	stayElement := make([]int, len(newElement))
	departs := make([][]int, size)
	refs := make([][]int64, size)
	for slot := range newElement {
		stayElement[slot] = Remove
		if mask[slot] == 0 || newElement[slot] == Remove {
			continue
		}

		p := newProcess[slot]
		if p < 0 || p >= size {
			return g_error.Preconditionf("Slot %d is sent to process %d, but there are only %d processes.", slot, p, size)
		}
		if p == rank {
			stayElement[slot] = newElement[slot]
		} else {
			departs[p] = append(departs[p], slot)
			refs[p] = append(refs[p], int64(newElement[slot]))
		}
	}

	recvElms, recvInfo, err := s.exchange(departs, refs)
	if err != nil {
		return err
	}

	elms, info := recvElms, recvInfo
	if len(newParticleElements) > 0 {
		elms = append(elms, newParticleElements...)
		if info, err = particles.Concat(s.schema, recvInfo, newParticleInfo); err != nil {
			return err
		}
	}

	if rank == 0 {
		tracer().Infof("migrating CabM '%s' over %d processes", s.name, size)
	}

	return s.Rebuild(stayElement, elms, info)
}

// exchange sends the particles in the slots departs[p] to process p, along
// with the element references refs[p], and returns the local elements and
// field values of the particles received from every other process.
func (s *CabM) exchange(departs [][]int, refs [][]int64) ([]int, particles.Particles, error) {
	size := s.comm.Size()
	wireSchema := s.wireSchema()
	record := pack.RecordSize(wireSchema)

	sendCounts := make([]int, size)
	for p := range departs {
		sendCounts[p] = len(departs[p])
	}
	recvCounts, err := s.comm.Alltoall(sendCounts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "exchanging particle counts")
	}

	var send []byte
	for p := range departs {
		n := len(departs[p])
		if n == 0 {
			continue
		}
		ref := particles.Particles{particles.NewInt64(elementRefName, refs[p])}
		if send, err = pack.Encode(wireOrder, ref, particles.Sequence(n, 0), send); err != nil {
			return nil, nil, err
		}
		if send, err = pack.Encode(wireOrder, s.store.Fields(), departs[p], send); err != nil {
			return nil, nil, err
		}
	}

	sendBytes, recvBytes := make([]int, size), make([]int, size)
	for p := 0; p < size; p++ {
		sendBytes[p], recvBytes[p] = sendCounts[p]*record, recvCounts[p]*record
	}
	recv := make([]byte, comm.Sum(recvBytes))
	recvDisp := comm.Displacements(recvBytes)

	err = s.comm.Alltoallv(send, sendBytes, comm.Displacements(sendBytes),
		recv, recvBytes, recvDisp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "exchanging particles")
	}

	elms := make([]int, 0, comm.Sum(recvCounts))
	parts := make([]particles.Particles, 0, size)
	for p := 0; p < size; p++ {
		n := recvCounts[p]
		if n == 0 {
			continue
		}
		b := recv[recvDisp[p] : recvDisp[p]+recvBytes[p]]
		got, err := pack.Decode(wireOrder, wireSchema, b, n)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "decoding particles from process %d", p)
		}

		for _, ref := range got[0].Data().([]int64) {
			lid, err := s.ElementLID(ref)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "particle received from process %d", p)
			}
			elms = append(elms, lid)
		}
		parts = append(parts, got[1:])
	}

	info, err := particles.Concat(s.schema, parts...)
	if err != nil {
		return nil, nil, err
	}
	return elms, info, nil
}

// wireSchema is the schema of exchanged particles: an element reference
// followed by every field of the structure.
func (s *CabM) wireSchema() particles.Schema {
	names := append([]string{elementRefName}, s.schema.Names...)
	kinds := append([]particles.Kind{particles.Int64Kind}, s.schema.Kinds...)
	return particles.Schema{Names: names, Kinds: kinds}
}
