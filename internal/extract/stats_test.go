package extract

import (
	"testing"
	"time"
)

func TestStats_EmptySnapshot(t *testing.T) {
	s := NewStats(time.Hour)
	snap := s.Snapshot()
	if snap.Count != 0 {
		t.Errorf("expected empty snapshot, got count %d", snap.Count)
	}
}

func TestStats_SingleSample(t *testing.T) {
	s := NewStats(time.Hour)
	s.Record(120)
	snap := s.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected 1 sample, got %d", snap.Count)
	}
	if snap.MinMs != 120 || snap.MaxMs != 120 {
		t.Errorf("expected min=max=120, got %d/%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 120 || snap.P50Ms != 120 || snap.P95Ms != 120 {
		t.Errorf("expected all aggregates 120, got avg=%.1f p50=%.1f p95=%.1f", snap.AvgMs, snap.P50Ms, snap.P95Ms)
	}
}

func TestStats_Percentiles(t *testing.T) {
	s := NewStats(time.Hour)
	for i := int64(1); i <= 100; i++ {
		s.Record(i * 10)
	}
	snap := s.Snapshot()
	if snap.Count != 100 {
		t.Fatalf("expected 100 samples, got %d", snap.Count)
	}
	if snap.MinMs != 10 || snap.MaxMs != 1000 {
		t.Errorf("expected min 10 max 1000, got %d/%d", snap.MinMs, snap.MaxMs)
	}
	if snap.P50Ms < 500 || snap.P50Ms > 510 {
		t.Errorf("expected p50 near 505, got %.1f", snap.P50Ms)
	}
	if snap.P95Ms < 950 || snap.P95Ms > 960 {
		t.Errorf("expected p95 near 955, got %.1f", snap.P95Ms)
	}
}

func TestStats_NegativeClamped(t *testing.T) {
	s := NewStats(time.Hour)
	s.Record(-5)
	snap := s.Snapshot()
	if snap.MinMs != 0 {
		t.Errorf("expected negative duration clamped to 0, got %d", snap.MinMs)
	}
}

func TestStats_WindowPruning(t *testing.T) {
	s := NewStats(30 * time.Millisecond)
	s.Record(100)
	time.Sleep(60 * time.Millisecond)
	s.Record(200)
	snap := s.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected old sample pruned, got %d samples", snap.Count)
	}
	if snap.MinMs != 200 {
		t.Errorf("expected only the fresh sample, got min %d", snap.MinMs)
	}
}
