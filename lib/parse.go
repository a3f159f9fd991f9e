package lib

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/format"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

// StructureConfig is the [Structure] section of a config file.
type StructureConfig struct {
	Name         string
	Kind         string
	VectorLength int
	// Fields and Types are comma-separated lists of field names and their
	// types (i32, i64, u32, u64, f32, f64, v32, or v64).
	Fields string
	Types  string
}

// RunConfig is the [Run] section of a config file.
type RunConfig struct {
	Ranks     int
	Rank      int
	Transport string
	// Addresses is an address format string (see lib/format) giving the
	// address of every rank. Only used by the tcp transport.
	Addresses string

	GridWidth           int
	ParticlesPerElement int
	Steps               int
	MoveFraction        float64
	Seed                int64

	Threads      int
	MetricsRanks string
	// WarnOnly makes check report problems instead of stopping at the first
	// one.
	WarnOnly bool
}

// RawArgs stores the unprocessed values which the user assigned to each config
// variable.
type RawArgs struct {
	Structure StructureConfig
	Run       RunConfig
}

// Args stores configuration information. It is a post-processed version of
// RawArgs.
type Args struct {
	Name         string
	Kind         string
	VectorLength int
	Schema       particles.Schema

	Ranks     int
	Rank      int
	RunMode   RunMode
	Addresses []string

	GridWidth           int
	ParticlesPerElement int
	Steps               int
	MoveFraction        float64
	Seed                int64

	Threads      int
	MetricsRanks []int
	Strictness   CheckStrictness
}

// DefaultRawArgs returns the values used for variables which are not set in
// the config file or on the command line.
func DefaultRawArgs() *RawArgs {
	return &RawArgs{
		Structure: StructureConfig{
			Name:         "ptcls",
			Kind:         "cabm",
			VectorLength: 32,
			Fields:       "id, x",
			Types:        "u64, v64",
		},
		Run: RunConfig{
			Ranks:               1,
			Transport:           "local",
			GridWidth:           4,
			ParticlesPerElement: 16,
			Steps:               10,
			MoveFraction:        0.25,
			Seed:                1,
			MetricsRanks:        "0",
		},
	}
}

// ParseCommandLine parses the command line arguments and returns the mode
// pstructs is being run in, the name of the config file, and any arguments
// which were set. Expects that the arguments are presented in the order:
// $ pstructs <mode> <config file> [--<Section.Arg1> <Value1>] [--<Section.Arg2> <Value2>]
// argv should not include the name of the binary. The config file may be
// omitted, in which case configFile is "".
func ParseCommandLine(argv []string) (mode, configFile string, args *RawArgs, err error) {
	if len(argv) == 0 {
		return "", "", nil, g_error.Configf("No mode was given. Run 'pstructs help' for usage.")
	}
	mode, rest := argv[0], argv[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "--") {
		configFile, rest = rest[0], rest[1:]
	}

	sections := map[string][]string{}
	for i := 0; i < len(rest); i += 2 {
		if !strings.HasPrefix(rest[i], "--") {
			return "", "", nil, g_error.Configf("Expected a command line flag of the form '--Section.Variable', but got '%s'.", rest[i])
		} else if i+1 >= len(rest) {
			return "", "", nil, g_error.Configf("The command line flag '%s' was not given a value.", rest[i])
		}

		tok := strings.SplitN(rest[i][2:], ".", 2)
		if len(tok) != 2 || tok[0] == "" || tok[1] == "" {
			return "", "", nil, g_error.Configf("The command line flag '%s' does not have the form '--Section.Variable'.", rest[i])
		}
		sections[tok[0]] = append(sections[tok[0]],
			fmt.Sprintf("%s = %s", tok[1], quote(rest[i+1])))
	}

	args = &RawArgs{}
	if err := gcfg.ReadStringInto(args, renderSections(sections)); err != nil {
		return "", "", nil, g_error.Configf("Could not parse command line flags: %s", err.Error())
	}

	return mode, configFile, args, nil
}

// renderSections writes sections in gcfg syntax.
func renderSections(sections map[string][]string) string {
	names := []string{}
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	sb := &strings.Builder{}
	for _, name := range names {
		fmt.Fprintf(sb, "[%s]\n", name)
		for _, line := range sections[name] {
			fmt.Fprintf(sb, "%s\n", line)
		}
	}
	return sb.String()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// ParseConfigFile parses arguements from a config file. Variables which are
// not in the file keep their values from DefaultRawArgs.
func ParseConfigFile(fileName string) (*RawArgs, error) {
	args := DefaultRawArgs()
	if fileName == "" {
		return args, nil
	}
	if err := gcfg.ReadFileInto(args, fileName); err != nil {
		return nil, g_error.Configf("Could not parse the config file '%s': %s", fileName, err.Error())
	}
	return args, nil
}

// ParseConfigString is ParseConfigFile for config text which is already in
// memory.
func ParseConfigString(text string) (*RawArgs, error) {
	args := DefaultRawArgs()
	if err := gcfg.ReadStringInto(args, text); err != nil {
		return nil, g_error.Configf("Could not parse the config: %s", err.Error())
	}
	return args, nil
}

// Overwrite arguments in arg1 which have been set to non-default values in
// arg2.
func (arg1 *RawArgs) Overwrite(arg2 *RawArgs) {
	overwriteNonZero(reflect.ValueOf(&arg1.Structure).Elem(),
		reflect.ValueOf(&arg2.Structure).Elem())
	overwriteNonZero(reflect.ValueOf(&arg1.Run).Elem(),
		reflect.ValueOf(&arg2.Run).Elem())
}

func overwriteNonZero(dst, src reflect.Value) {
	for i := 0; i < src.NumField(); i++ {
		if !src.Field(i).IsZero() {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// Process converts the raw user input to a format which is more useful for
// internal functions. Very simple validation will be done here, but nothing
// which requires interacting with other processes.
func (args *RawArgs) Process() (*Args, error) {
	s, r := &args.Structure, &args.Run

	schema, err := particles.NewSchema(splitList(s.Fields), splitList(s.Types))
	if err != nil {
		return nil, g_error.Configf("The Structure.Fields and Structure.Types variables are invalid: %s", err.Error())
	}

	out := &Args{
		Name: s.Name, Kind: s.Kind, VectorLength: s.VectorLength,
		Schema: schema,

		Ranks: r.Ranks, Rank: r.Rank,

		GridWidth: r.GridWidth, ParticlesPerElement: r.ParticlesPerElement,
		Steps: r.Steps, MoveFraction: r.MoveFraction, Seed: r.Seed,

		Threads: r.Threads, Strictness: CrashOnError,
	}
	if r.WarnOnly {
		out.Strictness = WarnOnError
	}

	switch strings.ToLower(r.Transport) {
	case "local":
		out.RunMode = LocalMode
	case "tcp":
		out.RunMode = TCPMode
		if out.Addresses, err = format.ExpandAddressFormat(r.Addresses, r.Ranks); err != nil {
			return nil, err
		}
	default:
		return nil, g_error.Configf("Run.Transport is set to '%s', but the only valid values are 'local' and 'tcp'.", r.Transport)
	}

	if r.Ranks <= 0 {
		return nil, g_error.Configf("Run.Ranks must be positive, but is %d.", r.Ranks)
	}
	if out.MetricsRanks, err = format.ExpandRankFormat(r.MetricsRanks, r.Ranks); err != nil {
		return nil, err
	}

	return out, nil
}

// splitList splits a comma-separated list and trims each entry.
func splitList(s string) []string {
	out := []string{}
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
