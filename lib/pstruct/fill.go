package pstruct

/* fill.go contains the scatter kernel used by construction, Rebuild, and
Migrate to place particles into the slots reserved for their elements. */

import (
	"sync/atomic"

	"github.com/phil-mansfield/pstructs/lib/aosoa"
	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/layout"
	"github.com/phil-mansfield/pstructs/lib/particles"
	"github.com/phil-mansfield/pstructs/lib/thread"
)

// fill scatters the particles described by elms and info into store and
// checks that every active slot was filled. counters must be zeroed and have
// one entry per element.
func fill(
	lay *layout.Layout, store *aosoa.AoSoA,
	elms []int, info particles.Particles, counters []int32,
) error {
	if err := checkInfo(store.Fields().Schema(), elms, info); err != nil {
		return err
	}

	to := make([]int, len(elms))
	if err := claim(lay, counters, elms, to); err != nil {
		return err
	}
	if err := checkFilled(lay, counters); err != nil {
		return err
	}

	return transfer(info, store.Fields(), particles.Sequence(len(elms), 0), to)
}

// checkInfo checks that info has one field of the right type for every schema
// field and one value per entry of elms.
func checkInfo(schema particles.Schema, elms []int, info particles.Particles) error {
	if len(info) == 0 && schema.Len() == 0 {
		return nil
	}
	if err := info.Matches(schema); err != nil {
		return g_error.Undefinedf("Particle info does not match the structure's fields: %s", err.Error())
	}
	for i := range info {
		if info[i].Len() != len(elms) {
			return g_error.Undefinedf("Field %d, '%s', has %d values, but %d particle elements were given.", i, info[i].Name(), info[i].Len(), len(elms))
		}
	}
	return nil
}

// claim hands each particle i a unique slot within the range lay reserves for
// element elms[i] and writes it to to[i]. counters[e] is the number of slots
// of element e already handed out. It is an error for an element to be given
// more particles than lay reserved for it.
func claim(lay *layout.Layout, counters []int32, elms, to []int) error {
	first := lay.FirstSlot()
	ppe := lay.ParticlesPerElement

	errs := make([]error, thread.Workers())
	thread.SplitArray(len(elms), len(errs), func(worker, start, end, step int) {
		for i := start; i < end; i += step {
			e := elms[i]
			if e < 0 || e >= lay.NumElements {
				errs[worker] = g_error.Undefinedf("Particle %d belongs to element %d, but there are only %d elements.", i, e, lay.NumElements)
				return
			}

			k := int(atomic.AddInt32(&counters[e], 1) - 1)
			if k >= ppe[e] {
				errs[worker] = g_error.Undefinedf("More than the %d particles reserved for element %d were placed in it.", ppe[e], e)
				return
			}
			to[i] = first[e] + k
		}
	}, thread.Block)

	return firstError(errs)
}

// checkFilled checks that every element received exactly as many particles as
// it has reserved slots for.
func checkFilled(lay *layout.Layout, counters []int32) error {
	for e, n := range lay.ParticlesPerElement {
		if int(counters[e]) != n {
			return g_error.Undefinedf("Element %d reserved %d slots, but %d particles were placed in it.", e, n, counters[e])
		}
	}
	return nil
}

// transfer copies every field from src[from[i]] to dest[to[i]], splitting the
// indices across workers.
func transfer(src, dest particles.Particles, from, to []int) error {
	errs := make([]error, thread.Workers())
	thread.SplitArray(len(from), len(errs), func(worker, start, end, _ int) {
		errs[worker] = src.Transfer(dest, from[start:end], to[start:end])
	}, thread.Block)
	return firstError(errs)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
