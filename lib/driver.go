package lib

/* driver.go contains the core functions of pstructs' "run" mode: a synthetic
workload which scatters particles across a periodic grid, randomly walks some
of them to neighboring elements each step, and migrates them between ranks. */

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/phil-mansfield/pstructs/lib/comm"
	"github.com/phil-mansfield/pstructs/lib/mesh"
	"github.com/phil-mansfield/pstructs/lib/particles"
	"github.com/phil-mansfield/pstructs/lib/pstruct"
)

// RunLocal runs every rank of args as a goroutine in this process and writes
// metrics to out.
func RunLocal(args *Args, out io.Writer) error {
	comms := comm.NewLocalGroup(args.Ranks)
	w := &lockedWriter{w: out}

	errs := make([]error, len(comms))
	wg := &sync.WaitGroup{}
	wg.Add(len(comms))
	for r := range comms {
		go func(r int) {
			defer wg.Done()
			errs[r] = RunRank(args, comms[r], w)
		}(r)
	}
	wg.Wait()

	var err error
	for r := range errs {
		if errs[r] != nil {
			err = errors.CombineErrors(err, errors.Wrapf(errs[r], "rank %d", r))
		}
	}
	return err
}

// RunTCP runs args.Rank of a TCP group and writes metrics to out. Every other
// rank must be started with the same config.
func RunTCP(args *Args, out io.Writer) (err error) {
	ln, err := comm.ListenTCP(args.Rank, args.Addresses)
	if err != nil {
		return err
	}
	c, err := comm.ConnectTCP(args.Rank, ln, args.Addresses)
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, c.Close()) }()

	return RunRank(args, c, out)
}

// RunRank runs the workload described by args as one rank of c.
func RunRank(args *Args, c comm.Comm, out io.Writer) error {
	rank := c.Rank()

	grid, err := mesh.NewGrid(args.GridWidth)
	if err != nil {
		return err
	}
	part, err := mesh.NewPartition(grid, c.Size())
	if err != nil {
		return err
	}

	s, err := initialStructure(args, c, part)
	if err != nil {
		return err
	}
	total := grid.Len() * args.ParticlesPerElement

	for step := 0; step < args.Steps; step++ {
		newElement, newProcess, err := walk(args, part, rank, step, s)
		if err != nil {
			return err
		}
		if err := s.Migrate(newElement, newProcess, nil, nil); err != nil {
			return errors.Wrapf(err, "step %d", step)
		}

		n, err := comm.AllreduceSum(c, s.NPtcls())
		if err != nil {
			return err
		}
		if n != total {
			return errors.Newf("step %d ended with %d particles, but started with %d", step, n, total)
		}
		if rank == 0 {
			tracer().Infof("step %d: %d particles across %d ranks", step, n, c.Size())
		}
	}

	if err := checkIDs(s, c, total); err != nil {
		return err
	}

	for _, r := range args.MetricsRanks {
		if r == rank {
			return s.PrintMetrics(out)
		}
	}
	return nil
}

// initialStructure places ParticlesPerElement particles in every element
// owned by this rank.
func initialStructure(args *Args, c comm.Comm, part *mesh.Partition) (pstruct.Structure, error) {
	gids := part.Elements(c.Rank())
	ne, ppe := len(gids), args.ParticlesPerElement
	n := ne * ppe

	perElement := make([]int, ne)
	elms := make([]int, n)
	for e := range perElement {
		perElement[e] = ppe
		for k := 0; k < ppe; k++ {
			elms[e*ppe+k] = e
		}
	}

	info := args.Schema.Buffers(n)
	if i := args.Schema.Index("id"); i >= 0 {
		for j := range elms {
			setID(info[i], j, gids[elms[j]]*int64(ppe)+int64(j%ppe))
		}
	}

	return pstruct.New(args.Kind, args.Schema, &pstruct.Input{
		Name:                args.Name,
		NumElements:         ne,
		NumParticles:        n,
		ParticlesPerElement: perElement,
		ElementGIDs:         gids,
		ParticleElements:    elms,
		ParticleInfo:        info,
		VectorLength:        args.VectorLength,
		Comm:                c,
	})
}

// walk picks the destination of every slot for a step. A fraction
// args.MoveFraction of the particles step to a random neighboring element.
func walk(
	args *Args, part *mesh.Partition, rank, step int, s pstruct.Structure,
) (newElement, newProcess []int, err error) {
	grid := part.Grid()
	start := part.Start(rank)
	newElement = make([]int, s.Capacity())
	newProcess = make([]int, s.Capacity())

	err = s.ParallelFor(func(elm, ptcl int, active bool) {
		newElement[ptcl], newProcess[ptcl] = elm, rank
		if !active {
			return
		}

		h := moveHash(args.Seed, step, rank, ptcl)
		if float64(h&math.MaxUint32)/(1<<32) >= args.MoveFraction {
			return
		}

		id := grid.Neighbor(start+int64(elm), int((h>>32)%mesh.Directions))
		owner := part.Owner(id)
		newProcess[ptcl] = owner
		if owner == rank {
			newElement[ptcl] = int(id - start)
		} else {
			newElement[ptcl] = int(id)
		}
	})
	return newElement, newProcess, err
}

func moveHash(seed int64, step, rank, ptcl int) uint64 {
	buf := [32]byte{}
	binary.LittleEndian.PutUint64(buf[0:], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(step))
	binary.LittleEndian.PutUint64(buf[16:], uint64(rank))
	binary.LittleEndian.PutUint64(buf[24:], uint64(ptcl))
	return xxhash.Sum64(buf[:])
}

// checkIDs confirms that the particle ids across all ranks are still exactly
// [0, total).
func checkIDs(s pstruct.Structure, c comm.Comm, total int) error {
	cabm, ok := s.(*pstruct.CabM)
	if !ok {
		return nil
	}
	i := cabm.FieldIndex("id")
	if i < 0 {
		return nil
	} else if k := cabm.Schema().Kinds[i]; k != particles.Uint64Kind && k != particles.Int64Kind {
		return nil
	}

	sum := 0
	mask := cabm.ActiveMask()
	ids := cabm.Field(i)
	for slot := range mask {
		if mask[slot] != 0 {
			sum += int(getID(ids, slot))
		}
	}

	global, err := comm.AllreduceSum(c, sum)
	if err != nil {
		return err
	}
	if want := total * (total - 1) / 2; global != want {
		return errors.Newf("particle ids sum to %d after migration, but should sum to %d", global, want)
	}
	return nil
}

func setID(f particles.Field, i int, id int64) {
	switch x := f.(type) {
	case *particles.Column[uint64]:
		x.Set(i, uint64(id))
	case *particles.Column[int64]:
		x.Set(i, id)
	}
}

func getID(f particles.Field, i int) int64 {
	switch x := f.(type) {
	case *particles.Column[uint64]:
		return int64(x.Get(i))
	case *particles.Column[int64]:
		return x.Get(i)
	}
	return 0
}

type lockedWriter struct {
	mtx sync.Mutex
	w   io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.w.Write(p)
}
