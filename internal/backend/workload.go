package backend

import (
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"lmake/internal/store"
)

// Workload tracks the token accounting invariant of spec §8 property 6
// ("workload conservation": the sum of tokens held by running jobs never
// exceeds the host's reasonable token budget) using gopsutil for the host
// capacity probe, as the rest of the example pack does for machine-resource
// sampling (gopsutil is not a teacher dependency itself, so this wiring is
// named explicitly rather than assumed).
type Workload struct {
	mu        sync.Mutex
	running   map[store.Idx]int // job -> tokens held
	heldTotal int
}

func NewWorkload() *Workload {
	return &Workload{running: make(map[store.Idx]int)}
}

func (w *Workload) Start(job store.Idx, tokens int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running[job] = tokens
	w.heldTotal += tokens
}

func (w *Workload) End(job store.Idx) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.heldTotal -= w.running[job]
	delete(w.running, job)
}

// Held returns the total tokens currently reserved by running jobs.
func (w *Workload) Held() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heldTotal
}

// ReasonableTokens returns the host's current token budget, sized from live
// CPU count and available memory so pressure only admits jobs the host can
// actually run (spec §4.6 "_reasonable_tokens reflects the host's present
// capacity, not a static config value").
func ReasonableTokens(memPerTokenMB int64) (int, error) {
	counts, err := cpu.Counts(true)
	if err != nil {
		return 0, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	byMem := counts
	if memPerTokenMB > 0 {
		byMem = int(int64(vm.Available/1024/1024) / memPerTokenMB)
	}
	if byMem < counts {
		return byMem, nil
	}
	return counts, nil
}

// Conserved reports whether the sum of tokens held by running jobs is still
// within the host's reasonable budget (spec §8 property 6).
func (w *Workload) Conserved(reasonable int) bool {
	return w.Held() <= reasonable
}
