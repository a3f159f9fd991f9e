package lib

/* check.go contains the core functions of pstructs' "check" mode. */

import (
	"fmt"
	"runtime"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

// Check runs the pstructs "check" command on the provided Args. This function
// will either crash upon encountering errors or will log warnings, depending
// on what Strictness is set to in args. If Check completes, it returns true
// if all tests passed and false otherwise.
func Check(args *Args) bool {
	problems := Problems(args)
	for _, p := range problems {
		if args.Strictness == CrashOnError {
			g_error.External("%s", p)
		}
		tracer().Errorf("%s", p)
	}
	return len(problems) == 0
}

// Problems returns a description of every problem with args.
func Problems(args *Args) []string {
	out := []string{}
	add := func(format string, a ...interface{}) {
		out = append(out, fmt.Sprintf(format, a...))
	}

	if args.Kind != "cabm" && args.Kind != "dps" {
		add("Structure.Kind is set to '%s', but the only valid values are 'cabm' and 'dps'.", args.Kind)
	}
	if args.VectorLength <= 0 {
		add("Structure.VectorLength must be positive, but is %d.", args.VectorLength)
	}
	if i := args.Schema.Index("id"); i >= 0 {
		if k := args.Schema.Kinds[i]; k != particles.Uint64Kind && k != particles.Int64Kind {
			add("The 'id' field must have type u64 or i64, but has type %v.", k)
		}
	}

	if args.Ranks <= 0 {
		add("Run.Ranks must be positive, but is %d.", args.Ranks)
	}
	if args.RunMode == TCPMode {
		if args.Rank < 0 || args.Rank >= args.Ranks {
			add("Run.Rank must be in [0, %d), but is %d.", args.Ranks, args.Rank)
		}
		if len(args.Addresses) != args.Ranks {
			add("Run.Addresses gives %d addresses for %d ranks.", len(args.Addresses), args.Ranks)
		}
	}

	if args.GridWidth <= 0 {
		add("Run.GridWidth must be positive, but is %d.", args.GridWidth)
	} else if cells := args.GridWidth * args.GridWidth * args.GridWidth; args.Ranks > cells {
		add("Run.Ranks is %d, but a grid of width %d only has %d elements to split between them.", args.Ranks, args.GridWidth, cells)
	}
	if args.ParticlesPerElement < 0 {
		add("Run.ParticlesPerElement cannot be negative, but is %d.", args.ParticlesPerElement)
	}
	if args.Steps < 0 {
		add("Run.Steps cannot be negative, but is %d.", args.Steps)
	}
	if args.MoveFraction < 0 || args.MoveFraction > 1 {
		add("Run.MoveFraction must be in [0, 1], but is %g.", args.MoveFraction)
	}
	if args.Threads > runtime.NumCPU() {
		add("Run.Threads is %d, but this machine only has %d cores.", args.Threads, runtime.NumCPU())
	}

	return out
}
