//go:build linux && (amd64 || arm64 || 386 || arm)

package main

import "lmake/internal/autodep"

// traceAndRun execs argv under ptrace, relaying every observed access to
// rec as it happens (spec §4.5's tracer backend).
func traceAndRun(opts autodep.Options, rec autodep.Record, argv []string) (int, error) {
	t := autodep.NewTracer(opts, rec)
	return t.Run(argv)
}
