package metrics

import (
	"testing"
	"time"
)

func TestNew_StartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValue_SnapshotSafe(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s.Sync.GETTotal != 0 || s.Sync.POSTTotal != 0 {
		t.Errorf("expected zero sync counters, got %+v", s.Sync)
	}
}

func TestSyncCounters(t *testing.T) {
	m := New()
	m.SyncGETTotal.Add(10)
	m.SyncPOSTTotal.Add(4)

	s := m.Snapshot()
	if s.Sync.GETTotal != 10 {
		t.Errorf("GETTotal: got %d, want 10", s.Sync.GETTotal)
	}
	if s.Sync.POSTTotal != 4 {
		t.Errorf("POSTTotal: got %d, want 4", s.Sync.POSTTotal)
	}
}

func TestMergeCounters(t *testing.T) {
	m := New()
	m.MergeErrorsTotal.Add(1)
	m.PhrasesMergedTotal.Add(5)
	m.TextsMergedTotal.Add(7)
	m.ResponsesMergedTotal.Add(9)

	s := m.Snapshot()
	if s.Merge.Errors != 1 {
		t.Errorf("Errors: got %d, want 1", s.Merge.Errors)
	}
	if s.Merge.Phrases != 5 {
		t.Errorf("Phrases: got %d, want 5", s.Merge.Phrases)
	}
	if s.Merge.Texts != 7 {
		t.Errorf("Texts: got %d, want 7", s.Merge.Texts)
	}
	if s.Merge.Responses != 9 {
		t.Errorf("Responses: got %d, want 9", s.Merge.Responses)
	}
}

func TestChatCounters(t *testing.T) {
	m := New()
	m.ChatTurnsTotal.Add(4)
	m.ChatContributionsTotal.Add(2)

	s := m.Snapshot()
	if s.Chat.Turns != 4 {
		t.Errorf("Turns: got %d, want 4", s.Chat.Turns)
	}
	if s.Chat.Contributions != 2 {
		t.Errorf("Contributions: got %d, want 2", s.Chat.Contributions)
	}
}

func TestRecordDifferenceLatency_SingleSample(t *testing.T) {
	m := New()
	m.RecordDifferenceLatency(100 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.DifferenceMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.DifferenceMs.Count)
	}
	if s.Latency.DifferenceMs.MinMs < 90 || s.Latency.DifferenceMs.MinMs > 110 {
		t.Errorf("MinMs: got %f, want ~100", s.Latency.DifferenceMs.MinMs)
	}
}

func TestRecordMergeLatency_MinMaxMean(t *testing.T) {
	m := New()
	m.RecordMergeLatency(50 * time.Millisecond)
	m.RecordMergeLatency(150 * time.Millisecond)
	m.RecordMergeLatency(100 * time.Millisecond)

	s := m.Snapshot()
	ls := s.Latency.MergeMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs > 60 {
		t.Errorf("MinMs too high: %f", ls.MinMs)
	}
	if ls.MaxMs < 140 {
		t.Errorf("MaxMs too low: %f", ls.MaxMs)
	}
	if ls.MeanMs < 90 || ls.MeanMs > 110 {
		t.Errorf("MeanMs: got %f, want ~100", ls.MeanMs)
	}
}

func TestSnapshotLatency_EmptyIsZeroValue(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if s.Latency.DifferenceMs.Count != 0 {
		t.Errorf("empty difference latency count should be 0")
	}
	if s.Latency.MergeMs.Count != 0 {
		t.Errorf("empty merge latency count should be 0")
	}
}

func TestSnapshot_UptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	s := m.Snapshot()
	if s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got := round2(c.input)
		if got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStats_Record(t *testing.T) {
	var s latencyStats
	s.record(10)
	s.record(20)
	s.record(15)

	snap := s.snapshot()
	if snap.Count != 3 {
		t.Errorf("Count: got %d, want 3", snap.Count)
	}
	if snap.MinMs != 10 {
		t.Errorf("MinMs: got %f, want 10", snap.MinMs)
	}
	if snap.MaxMs != 20 {
		t.Errorf("MaxMs: got %f, want 20", snap.MaxMs)
	}
	if snap.MeanMs != 15 {
		t.Errorf("MeanMs: got %f, want 15", snap.MeanMs)
	}
}

func TestLatencyStats_Empty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
