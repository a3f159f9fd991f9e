package pstruct

import (
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarizes how well a structure's storage is used.
type Metrics struct {
	Rank         int
	NumElements  int
	NumSoA       int
	NumParticles int
	Capacity     int

	// Padded is the number of inactive slots.
	Padded        int
	PaddedPercent float64
	// EmptyElements is the number of elements without particles, and thus
	// without blocks.
	EmptyElements int
	EmptyPercent  float64

	MeanPerElement float64
	StdPerElement  float64
	MaxPerElement  int
}

func (s *CabM) Metrics() (*Metrics, error) {
	m := &Metrics{
		Rank:          s.comm.Rank(),
		NumElements:   s.numElems,
		NumSoA:        s.lay.NumSoA,
		NumParticles:  s.numPtcls,
		Capacity:      s.lay.Capacity,
		EmptyElements: s.lay.EmptyElements(),
	}

	for _, active := range s.store.Mask().Values() {
		if active == 0 {
			m.Padded++
		}
	}
	if m.Capacity > 0 {
		m.PaddedPercent = 100 * float64(m.Padded) / float64(m.Capacity)
	}

	counts := make([]float64, s.numElems)
	for e, n := range s.lay.ParticlesPerElement {
		counts[e] = float64(n)
	}
	if len(counts) > 0 {
		m.EmptyPercent = 100 * float64(m.EmptyElements) / float64(len(counts))
		m.MaxPerElement = int(floats.Max(counts))
		m.MeanPerElement = floats.Sum(counts) / float64(len(counts))
	}
	if len(counts) > 1 {
		m.MeanPerElement, m.StdPerElement = stat.MeanStdDev(counts, nil)
	}

	return m, nil
}

// PrintMetrics writes a human-readable summary of Metrics() to w.
func (s *CabM) PrintMetrics(w io.Writer) error {
	m, err := s.Metrics()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, `Metrics (Rank %d)
Number of Elements %d, Number of SoA %d, Number of Particles %d, Capacity %d
Padded Cells <Tot %%> %d %.3f%%
Empty Elements <Tot %%> %d %.3f%%
Particles per Element <Mean Std Max> %.3f %.3f %d
`,
		m.Rank, m.NumElements, m.NumSoA, m.NumParticles, m.Capacity,
		m.Padded, m.PaddedPercent, m.EmptyElements, m.EmptyPercent,
		m.MeanPerElement, m.StdPerElement, m.MaxPerElement,
	)
	return err
}

// Format returns a dump of the structure's layout: one row per block giving
// the owning element, its global id, and the active mask of the block.
func (s *CabM) Format(prefix string) (string, error) {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s\n", prefix)
	fmt.Fprintf(sb, "Particle Structure CabM '%s'\n", s.name)
	fmt.Fprintf(sb, "Number of Elements: %d.\nNumber of SoA: %d.\nNumber of Particles: %d.",
		s.numElems, s.lay.NumSoA, s.numPtcls)

	v := s.lay.VectorLength
	mask := s.store.Mask().Values()
	lastElm := -1
	for soa := 0; soa < s.lay.NumSoA; soa++ {
		elm := s.lay.ParentElms[soa]
		if elm != lastElm {
			head := fmt.Sprintf("  Element %d(%d)", elm, s.ElementGID(elm))
			fmt.Fprintf(sb, "\n%s |", head)
		} else {
			fmt.Fprintf(sb, "\n%s |", strings.Repeat(" ", 17))
		}
		for lane := 0; lane < v; lane++ {
			fmt.Fprintf(sb, " %d", mask[soa*v+lane])
		}
		lastElm = elm
	}
	sb.WriteString("\n")

	return sb.String(), nil
}
