package backend

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"lmake/internal/logging"
	"lmake/internal/store"
)

// HeartbeatSweeper periodically calls HeartbeatAll on a Backend and turns
// any Lost verdicts into synthesized EndReports, using gocron for the
// scheduling loop itself (the example pack's own idiom for periodic sweep
// tasks, e.g. ClusterCockpit-cc-backend's taskManager) (spec §4.6 "a
// heartbeat task, run on a fixed period, ... jobs younger than round_trip
// are skipped (may not have reported yet)").
type HeartbeatSweeper struct {
	sched     gocron.Scheduler
	backend   Backend
	onLost    func(job store.Idx)
	roundTrip time.Duration
	startedAt map[store.Idx]time.Time
	log       *logging.Logger
}

// NewHeartbeatSweeper builds a sweeper that fires every period and reports
// jobs newly found Lost to onLost.
func NewHeartbeatSweeper(backend Backend, period, roundTrip time.Duration, onLost func(job store.Idx)) (*HeartbeatSweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	h := &HeartbeatSweeper{
		sched:     sched,
		backend:   backend,
		onLost:    onLost,
		roundTrip: roundTrip,
		startedAt: make(map[store.Idx]time.Time),
		log:       logging.Get(logging.CategoryBackend),
	}
	_, err = sched.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(h.sweep),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Track records when job was submitted, so sweep can skip jobs younger than
// roundTrip (spec §4.6: "may not have reported yet").
func (h *HeartbeatSweeper) Track(job store.Idx) {
	h.startedAt[job] = time.Now()
}

func (h *HeartbeatSweeper) Untrack(job store.Idx) {
	delete(h.startedAt, job)
}

func (h *HeartbeatSweeper) sweep() {
	for job, liveness := range h.backend.HeartbeatAll() {
		if since, ok := h.startedAt[job]; ok && time.Since(since) < h.roundTrip {
			continue
		}
		if liveness == Lost {
			h.log.Infof("job lost on heartbeat sweep")
			h.onLost(job)
		}
	}
}

func (h *HeartbeatSweeper) Start() {
	h.sched.Start()
}

func (h *HeartbeatSweeper) Stop() error {
	return h.sched.Shutdown()
}
