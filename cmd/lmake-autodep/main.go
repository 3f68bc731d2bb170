// Command lmake-autodep is the tracer helper process a job is launched
// under when its rule's link_support calls for ptrace-based dependency
// discovery (spec §4.5, §6): it reads LMAKE_AUTODEP_ENV from its own
// environment, dials the engine's mngt socket, execs the job's real
// command line under ptrace, and relays every observed access over the
// wire protocol as an autodep.Client (spec §4.5 "Record protocol").
package main

import (
	"fmt"
	"os"

	"lmake/internal/autodep"
	"lmake/internal/jobenv"
	"lmake/internal/rule"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "lmake-autodep: usage: lmake-autodep <cmd> [args...]")
		return 2
	}

	raw := os.Getenv("LMAKE_AUTODEP_ENV")
	if raw == "" {
		fmt.Fprintln(os.Stderr, "lmake-autodep: LMAKE_AUTODEP_ENV not set")
		return 2
	}
	env, err := jobenv.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lmake-autodep: %v\n", err)
		return 2
	}

	if env.Options.Disabled {
		return execPassthrough(argv)
	}

	conn, err := autodep.Dial(env.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lmake-autodep: dial mngt socket %s: %v\n", env.Service, err)
		return 1
	}
	defer conn.Close()

	jobID := jobIDFromEnv()
	client := autodep.NewClient(conn, jobID)

	opts := autodep.Options{
		LinkSupport:   autodepLinkSupport(env),
		DepsInSystem:  env.Options.DepsInSystem,
		ReaddirOK:     env.Options.ReaddirOK,
		IgnoreStat:    env.Options.IgnoreStat,
		CriticalDelay: 0,
	}

	exitCode, err := traceAndRun(opts, client, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lmake-autodep: %v\n", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// autodepLinkSupport converts rule.LinkSupport (the rule-authoring enum) to
// autodep.LinkSupport (the tracer's own enum) — distinct types that happen
// to share an ordinal ordering, not a type to cast between.
func autodepLinkSupport(env jobenv.AutodepEnv) autodep.LinkSupport {
	switch env.Options.Link {
	case rule.LinkNone:
		return autodep.LinkNone
	case rule.LinkFile:
		return autodep.LinkFile
	default:
		return autodep.LinkFull
	}
}
