package req

import (
	"testing"
	"time"

	"lmake/internal/graph"
)

func TestMetricsObserveJobEnd(t *testing.T) {
	m := NewMetrics()
	m.ObserveJobEnd(graph.ExecOk)
	m.ObserveJobEnd(graph.ExecLateLost)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() != "lmake_jobs_ended_total" {
			continue
		}
		found = true
		if len(fam.Metric) != 2 {
			t.Fatalf("expected 2 label combinations recorded, got %d", len(fam.Metric))
		}
	}
	if !found {
		t.Fatal("lmake_jobs_ended_total metric family not registered")
	}
}

func TestMetricsETAAndWorkload(t *testing.T) {
	m := NewMetrics()
	m.SetETA(90 * time.Second)
	m.SetWorkloadTokens(7)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]float64{}
	for _, fam := range families {
		for _, mm := range fam.Metric {
			if mm.Gauge != nil {
				seen[fam.GetName()] = mm.Gauge.GetValue()
			}
		}
	}
	if seen["lmake_req_eta_seconds"] != 90 {
		t.Fatalf("lmake_req_eta_seconds = %v, want 90", seen["lmake_req_eta_seconds"])
	}
	if seen["lmake_workload_tokens"] != 7 {
		t.Fatalf("lmake_workload_tokens = %v, want 7", seen["lmake_workload_tokens"])
	}
}
