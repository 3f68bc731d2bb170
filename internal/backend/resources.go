package backend

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LocalCaps probes the host's own resource ceiling via gopsutil, for use as
// the localCaps argument to Local.MkLcl when a Req forces local execution
// of a job that declared remote-shaped resources (spec §4.6 "mk_lcl adapts
// resources for local execution").
func LocalCaps() (Resources, error) {
	counts, err := cpu.Counts(true)
	if err != nil {
		return Resources{}, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Resources{}, err
	}
	return Resources{
		CPU:   float64(counts),
		MemMB: int64(vm.Total / 1024 / 1024),
	}, nil
}

// DefaultResources is what a job gets when its rule declares no explicit
// resource attributes (spec §4.2 rsrcs_crc default case).
var DefaultResources = Resources{CPU: 1, MemMB: 512, Tokens: 1}
