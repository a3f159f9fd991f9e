package lib

import (
	"fmt"
	"io"
)

// ExampleConfig is an example config file which sets every variable to its
// default value.
const ExampleConfig = `[Structure]

# Name is used in log messages and layout dumps.
Name = ptcls

# Kind is the particle structure being driven. "cabm" stores particles in
# blocks of VectorLength slots, with every block belonging to a single element.
# "dps" is recognized, but not available in this build.
Kind = cabm

# VectorLength is the number of slots per block.
VectorLength = 32

# Fields and Types are comma-separated lists giving the name and type of every
# particle field. Valid types are i32, i64, u32, u64, f32, f64, v32, and v64.
# If there is a field named "id", it must be an i64 or u64 and will be used to
# check that no particles are lost or duplicated.
Fields = id, x
Types = u64, v64

[Run]

# Ranks is the number of processes which the grid is split across.
Ranks = 1

# Transport is either "local", which runs every rank as a goroutine in this
# process, or "tcp", which runs a single rank, Rank, in this process and
# connects to the others over TCP.
Transport = local
Rank = 0

# Addresses gives the address of every rank when Transport = tcp. Variables
# are written as {verb,rule}, where verb is an integer printf() verb and rule
# is either "rank" or a sequence with one value per rank, e.g.
#     Addresses = 127.0.0.1:{%d,7000..7003}
#     Addresses = node{%02d,rank}.cluster:7000
Addresses = 127.0.0.1:{%d,7000..7000}

# GridWidth is the number of elements along each side of the periodic grid.
GridWidth = 4

# ParticlesPerElement is the number of particles placed in each element.
ParticlesPerElement = 16

# Steps is the number of migration steps. In each step, MoveFraction of the
# particles move to a neighboring element chosen with a hash of Seed.
Steps = 10
MoveFraction = 0.25
Seed = 1

# Threads is the number of threads used by each rank. Zero or less uses one
# thread per core.
Threads = -1

# MetricsRanks is a sequence of the ranks which print storage metrics at the
# end of the run, e.g. 0..15 - 3.
MetricsRanks = 0

# WarnOnly makes the check mode report every problem instead of stopping at
# the first one.
WarnOnly = false
`

// PrintHelp writes pstructs' usage message to w.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `pstructs (version %x) drives particle structures through a synthetic
particle migration workload.

Usage:
    $ pstructs <mode> [config file] [--Section.Variable value ...]

Modes:
    help    - prints this message.
    example - prints an example config file with every variable documented.
    check   - checks the config for errors.
    run     - runs the workload.

Any config variable can be set on the command line, e.g.
    $ pstructs run my.config --Run.Ranks 4 --Structure.VectorLength 16
Variables set on the command line take precedence over the config file.
`, Version)
}
