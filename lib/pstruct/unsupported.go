package pstruct

import (
	"io"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

// Unsupported stands in for a structure kind which is not available in this
// build. Every operation logs an error, does nothing, and returns an error
// marked ErrUnsupported, so that code written against Structure still compiles
// and runs.
type Unsupported struct {
	kind string
}

var _ Structure = &Unsupported{}

func (u *Unsupported) err() error {
	tracer().Errorf("the '%s' particle structure is not available in this build", u.kind)
	return g_error.Unsupportedf("The '%s' particle structure is not available in this build.", u.kind)
}

func (u *Unsupported) Name() string  { u.err(); return "" }
func (u *Unsupported) NElems() int   { u.err(); return 0 }
func (u *Unsupported) NPtcls() int   { u.err(); return 0 }
func (u *Unsupported) Capacity() int { u.err(); return 0 }
func (u *Unsupported) NumRows() int  { u.err(); return 0 }

func (u *Unsupported) Rebuild([]int, []int, particles.Particles) error {
	return u.err()
}

func (u *Unsupported) Migrate([]int, []int, []int, particles.Particles) error {
	return u.err()
}

func (u *Unsupported) ParallelFor(func(elm, ptcl int, active bool)) error {
	return u.err()
}

func (u *Unsupported) Metrics() (*Metrics, error)     { return nil, u.err() }
func (u *Unsupported) PrintMetrics(w io.Writer) error { return u.err() }
func (u *Unsupported) Format(string) (string, error)  { return "", u.err() }
