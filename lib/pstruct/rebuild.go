package pstruct

import (
	"sync/atomic"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/layout"
	"github.com/phil-mansfield/pstructs/lib/particles"
	"github.com/phil-mansfield/pstructs/lib/thread"
)

// Rebuild reorganizes the structure after particles change element.
// newElement[slot] is the new element of the particle in each slot, or Remove;
// it must have length Capacity() and entries for inactive slots are ignored.
// newParticleElements and newParticleInfo optionally add particles which are
// not currently stored, with the same conventions as Input.
//
// A new layout and storage are computed and filled before replacing the old
// ones, so if Rebuild returns an error the structure is unchanged. Field
// slices taken before the call are not valid afterwards.
func (s *CabM) Rebuild(
	newElement, newParticleElements []int, newParticleInfo particles.Particles,
) error {
	if len(newElement) != s.lay.Capacity {
		return g_error.Preconditionf("newElement has length %d, but the structure's capacity is %d.", len(newElement), s.lay.Capacity)
	}
	if len(newParticleElements) > 0 || len(newParticleInfo) > 0 {
		err := checkInfo(s.schema, newParticleElements, newParticleInfo)
		if err != nil {
			return err
		}
	}

	ppe, err := s.countElements(newElement, newParticleElements)
	if err != nil {
		return err
	}

	lay, err := layout.Plan(ppe, s.numElems, s.lay.VectorLength)
	if err != nil {
		return err
	}
	store, err := allocate(s.schema, lay)
	if err != nil {
		return err
	}

	// Surviving particles are collected in slot order and then placed.
	mask := s.store.Mask().Values()
	from := make([]int, 0, s.numPtcls)
	elms := make([]int, 0, s.numPtcls)
	for slot, e := range newElement {
		if mask[slot] != 0 && e != Remove {
			from = append(from, slot)
			elms = append(elms, e)
		}
	}

	counters := make([]int32, s.numElems)
	to := make([]int, len(from))
	if err := claim(lay, counters, elms, to); err != nil {
		return err
	}
	if err := transfer(s.store.Fields(), store.Fields(), from, to); err != nil {
		return err
	}

	if len(newParticleElements) > 0 {
		to = make([]int, len(newParticleElements))
		if err := claim(lay, counters, newParticleElements, to); err != nil {
			return err
		}
		err := transfer(newParticleInfo, store.Fields(),
			particles.Sequence(len(newParticleElements), 0), to)
		if err != nil {
			return err
		}
	}

	if err := checkFilled(lay, counters); err != nil {
		return err
	}

	if s.comm.Rank() == 0 {
		tracer().Infof("rebuilt CabM '%s': %d particles -> %d particles in %d blocks",
			s.name, s.numPtcls, lay.NumParticles, lay.NumSoA)
	}

	s.lay, s.store, s.numPtcls = lay, store, lay.NumParticles
	return nil
}

// countElements returns the number of particles each element will hold once
// the active slots have moved to newElement and the new particles have been
// added.
func (s *CabM) countElements(newElement, newParticleElements []int) ([]int, error) {
	mask := s.store.Mask().Values()
	counts := make([]int32, s.numElems)

	errs := make([]error, thread.Workers())
	thread.SplitArray(len(newElement), len(errs), func(worker, start, end, step int) {
		for slot := start; slot < end; slot += step {
			e := newElement[slot]
			if mask[slot] == 0 || e == Remove {
				continue
			}
			if e < 0 || e >= s.numElems {
				errs[worker] = g_error.Preconditionf("Slot %d is assigned to element %d, but there are only %d elements.", slot, e, s.numElems)
				return
			}
			atomic.AddInt32(&counts[e], 1)
		}
	}, thread.Block)
	if err := firstError(errs); err != nil {
		return nil, err
	}

	for i, e := range newParticleElements {
		if e < 0 || e >= s.numElems {
			return nil, g_error.Preconditionf("New particle %d is assigned to element %d, but there are only %d elements.", i, e, s.numElems)
		}
		counts[e]++
	}

	ppe := make([]int, s.numElems)
	for e := range ppe {
		ppe[e] = int(counts[e])
	}
	return ppe, nil
}
