//go:build !linux || !(amd64 || arm64 || 386 || arm)

package main

import (
	"fmt"

	"lmake/internal/autodep"
)

// traceAndRun reports that ptrace-based tracing has no backend on this
// platform (spec §1 scopes the tracer to Linux); callers needing autodep
// coverage elsewhere fall back to link_support=none rules instead.
func traceAndRun(opts autodep.Options, rec autodep.Record, argv []string) (int, error) {
	return -1, fmt.Errorf("lmake-autodep: ptrace tracing is not supported on this platform")
}
