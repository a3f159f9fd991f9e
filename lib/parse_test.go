package lib

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/particles"
)

func TestParseCommandLine(t *testing.T) {
	mode, file, args, err := ParseCommandLine([]string{
		"run", "my.config", "--Run.Ranks", "4", "--Structure.Name", "a b",
	})
	require.NoError(t, err)
	assert.Equal(t, "run", mode)
	assert.Equal(t, "my.config", file)
	assert.Equal(t, 4, args.Run.Ranks)
	assert.Equal(t, "a b", args.Structure.Name)
	assert.Equal(t, 0, args.Structure.VectorLength)

	mode, file, args, err = ParseCommandLine([]string{
		"check", "--Run.WarnOnly", "true",
	})
	require.NoError(t, err)
	assert.Equal(t, "check", mode)
	assert.Equal(t, "", file)
	assert.True(t, args.Run.WarnOnly)

	bad := [][]string{
		{},
		{"run", "my.config", "--Run.Ranks"},
		{"run", "my.config", "Run.Ranks", "4"},
		{"run", "--Ranks", "4"},
		{"run", "--Run.Ranks", "four"},
		{"run", "--Run.Nonsense", "4"},
		{"run", "--Nonsense.Ranks", "4"},
	}
	for i := range bad {
		_, _, _, err := ParseCommandLine(bad[i])
		assert.True(t, errors.Is(err, g_error.ErrConfig), "%d) %v", i, bad[i])
	}
}

func TestExampleConfig(t *testing.T) {
	raw, err := ParseConfigString(ExampleConfig)
	require.NoError(t, err)
	args, err := raw.Process()
	require.NoError(t, err)

	def, err := DefaultRawArgs().Process()
	require.NoError(t, err)

	assert.Equal(t, def.Kind, args.Kind)
	assert.Equal(t, def.Name, args.Name)
	assert.Equal(t, def.VectorLength, args.VectorLength)
	assert.Equal(t, def.Schema, args.Schema)
	assert.Equal(t, def.Ranks, args.Ranks)
	assert.Equal(t, def.GridWidth, args.GridWidth)
	assert.Equal(t, def.ParticlesPerElement, args.ParticlesPerElement)
	assert.Equal(t, def.Steps, args.Steps)
	assert.Equal(t, def.MoveFraction, args.MoveFraction)
	assert.Equal(t, def.Seed, args.Seed)
	assert.Equal(t, def.MetricsRanks, args.MetricsRanks)
	assert.Equal(t, def.Strictness, args.Strictness)
	assert.Equal(t, -1, args.Threads)
}

func TestOverwrite(t *testing.T) {
	raw := DefaultRawArgs()
	_, _, cmd, err := ParseCommandLine([]string{
		"run", "--Run.Ranks", "3", "--Structure.Types", "i64, f32",
	})
	require.NoError(t, err)
	raw.Overwrite(cmd)

	assert.Equal(t, 3, raw.Run.Ranks)
	assert.Equal(t, "i64, f32", raw.Structure.Types)
	assert.Equal(t, "id, x", raw.Structure.Fields)
	assert.Equal(t, 4, raw.Run.GridWidth)

	args, err := raw.Process()
	require.NoError(t, err)
	assert.Equal(t, []particles.Kind{particles.Int64Kind, particles.Float32Kind}, args.Schema.Kinds)
}

func TestProcess(t *testing.T) {
	raw := DefaultRawArgs()
	raw.Run.Ranks = 2
	raw.Run.Transport = "TCP"
	raw.Run.Addresses = "127.0.0.1:{%d,7000..7001}"
	raw.Run.MetricsRanks = "0..1"
	raw.Run.WarnOnly = true

	args, err := raw.Process()
	require.NoError(t, err)
	assert.Equal(t, TCPMode, args.RunMode)
	assert.Equal(t, []string{"127.0.0.1:7000", "127.0.0.1:7001"}, args.Addresses)
	assert.Equal(t, []int{0, 1}, args.MetricsRanks)
	assert.Equal(t, WarnOnError, args.Strictness)

	tests := []func(r *RawArgs){
		func(r *RawArgs) { r.Run.Transport = "mpi" },
		func(r *RawArgs) { r.Run.Ranks = -1 },
		func(r *RawArgs) { r.Run.MetricsRanks = "0..1" },
		func(r *RawArgs) { r.Structure.Types = "u64" },
		func(r *RawArgs) { r.Structure.Types = "u64, q64" },
		func(r *RawArgs) {
			r.Run.Transport = "tcp"
			r.Run.Addresses = "127.0.0.1:{%d,7000..7005}"
		},
	}
	for i := range tests {
		raw := DefaultRawArgs()
		tests[i](raw)
		_, err := raw.Process()
		assert.True(t, errors.Is(err, g_error.ErrConfig), "%d) %v", i, err)
	}
}

func TestProblems(t *testing.T) {
	def, err := DefaultRawArgs().Process()
	require.NoError(t, err)
	assert.Empty(t, Problems(def))
	assert.True(t, Check(def))

	tests := []func(a *Args){
		func(a *Args) { a.Kind = "tree" },
		func(a *Args) { a.VectorLength = 0 },
		func(a *Args) { a.Ranks = 0 },
		func(a *Args) { a.GridWidth = 0 },
		func(a *Args) { a.Ranks = 65 },
		func(a *Args) { a.ParticlesPerElement = -1 },
		func(a *Args) { a.Steps = -1 },
		func(a *Args) { a.MoveFraction = 1.5 },
		func(a *Args) { a.Threads = 1 << 20 },
		func(a *Args) { a.Schema.Kinds[0] = particles.Float64Kind },
		func(a *Args) {
			a.RunMode, a.Rank = TCPMode, 1
			a.Addresses = []string{"127.0.0.1:7000"}
		},
		func(a *Args) {
			a.RunMode, a.Ranks = TCPMode, 2
			a.Addresses = []string{"127.0.0.1:7000"}
		},
	}
	for i := range tests {
		args, err := DefaultRawArgs().Process()
		require.NoError(t, err)
		args.Strictness = WarnOnError
		tests[i](args)
		assert.Len(t, Problems(args), 1, "%d", i)
		assert.False(t, Check(args), "%d", i)
	}
}
