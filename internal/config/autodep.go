package config

import (
	"time"

	"lmake/internal/autodep"
)

// AutodepConfig configures the execution-tracing substrate (spec §4.5):
// link_support, the job-to-engine socket directory, and the handful of
// wire-protocol options spec §6 lists as letter flags.
type AutodepConfig struct {
	LinkSupport   string `yaml:"link_support"` // "none" | "file" | "full"
	SockDir       string `yaml:"sock_dir"`
	DepsInSystem  bool   `yaml:"deps_in_system"`
	ReaddirOK     bool   `yaml:"readdir_ok"`
	IgnoreStat    bool   `yaml:"ignore_stat"`
	CriticalDelay string `yaml:"critical_delay"`
}

// DefaultAutodepConfig defaults to the most conservative tracing mode
// (LinkFull, spec §4.5) so a freshly-initialized repo never silently
// under-reports symlink-mediated dependencies.
func DefaultAutodepConfig() AutodepConfig {
	return AutodepConfig{
		LinkSupport:   "full",
		SockDir:       ".lmake/sock",
		CriticalDelay: "0s",
	}
}

// Options converts the YAML-facing AutodepConfig into the autodep.Options
// the tracer and server actually consume.
func (c AutodepConfig) Options() autodep.Options {
	var link autodep.LinkSupport
	switch c.LinkSupport {
	case "none", "None":
		link = autodep.LinkNone
	case "file", "File":
		link = autodep.LinkFile
	default:
		link = autodep.LinkFull
	}
	delay, _ := time.ParseDuration(c.CriticalDelay)
	return autodep.Options{
		LinkSupport:   link,
		DepsInSystem:  c.DepsInSystem,
		ReaddirOK:     c.ReaddirOK,
		IgnoreStat:    c.IgnoreStat,
		CriticalDelay: delay,
	}
}
