package main

import (
	"fmt"
	"os"

	"github.com/phil-mansfield/pstructs/lib"
	g_error "github.com/phil-mansfield/pstructs/lib/error"
	"github.com/phil-mansfield/pstructs/lib/thread"
)

func main() {
	// Parse arguments.
	mode, configFile, cmdArgs, err := lib.ParseCommandLine(os.Args[1:])
	g_error.Check(err)

	switch mode {
	case "help":
		lib.PrintHelp(os.Stdout)
		return
	case "example":
		fmt.Printf("%s", lib.ExampleConfig)
		return
	}

	rawArgs, err := lib.ParseConfigFile(configFile)
	g_error.Check(err)
	rawArgs.Overwrite(cmdArgs)

	// Do processing that doesn't need external validation.
	args, err := rawArgs.Process()
	g_error.Check(err)

	// Run the chosen mode.
	switch mode {
	case "check":
		Check(args)
	case "run":
		Run(args)
	default:
		g_error.External(
			"You attempted to run pstructs in the mode '%s', but the only valid "+
				"modes are 'help', 'example', 'check', and 'run'.", mode,
		)
	}
}

// Check runs pstructs' "check" mode which tests for errors in the
// configuration arguments.
func Check(args *lib.Args) {
	ok := lib.Check(args)
	if ok {
		fmt.Println("No errors detected.")
	}
}

// Run runs pstructs' "run" mode, which drives the configured particle
// structure through the migration workload.
func Run(args *lib.Args) {
	if !lib.Check(args) {
		os.Exit(1)
	}

	g_error.Check(thread.Set(args.Threads))

	switch args.RunMode {
	case lib.LocalMode:
		g_error.Check(lib.RunLocal(args, os.Stdout))
	case lib.TCPMode:
		g_error.Check(lib.RunTCP(args, os.Stdout))
	}
}
