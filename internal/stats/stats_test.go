package stats

import (
	"errors"
	"testing"
	"time"
)

// fakeStore counts reads so cache behavior is observable.
type fakeStore struct {
	uptime     float64
	uptimeErr  error
	durationMs *int64
	calls      int
}

func (f *fakeStore) UptimePercentage(nodeID int64, start, end time.Time) (float64, error) {
	f.calls++
	return f.uptime, f.uptimeErr
}

func (f *fakeStore) CurrentStatusDuration(nodeID int64) (*int64, error) {
	return f.durationMs, nil
}

func TestUptime_CachesWithinFreshness(t *testing.T) {
	fs := &fakeStore{uptime: 99.5}
	c := NewCalculator(fs, 64, time.Minute)
	defer c.Close()

	for i := 0; i < 3; i++ {
		got, err := c.Uptime(1, 24*time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if got != 99.5 {
			t.Fatalf("uptime = %v", got)
		}
	}
	if fs.calls != 1 {
		t.Fatalf("store hit %d times, want 1", fs.calls)
	}
}

func TestUptime_DistinctWindowsMissSeparately(t *testing.T) {
	fs := &fakeStore{uptime: 80}
	c := NewCalculator(fs, 64, time.Minute)
	defer c.Close()

	if _, err := c.Uptime(1, 24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Uptime(1, 7*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if fs.calls != 2 {
		t.Fatalf("store hit %d times, want 2", fs.calls)
	}
}

func TestUptime_RecomputesAfterFreshness(t *testing.T) {
	fs := &fakeStore{uptime: 80}
	c := NewCalculator(fs, 64, 10*time.Second)
	defer c.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Uptime(1, time.Hour); err != nil {
		t.Fatal(err)
	}
	now = now.Add(11 * time.Second)
	if _, err := c.Uptime(1, time.Hour); err != nil {
		t.Fatal(err)
	}
	if fs.calls != 2 {
		t.Fatalf("store hit %d times, want 2", fs.calls)
	}
}

func TestUptime_InvalidateDropsNode(t *testing.T) {
	fs := &fakeStore{uptime: 80}
	c := NewCalculator(fs, 64, time.Hour)
	defer c.Close()

	if _, err := c.Uptime(1, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Uptime(2, time.Hour); err != nil {
		t.Fatal(err)
	}

	c.Invalidate(1)

	if _, err := c.Uptime(1, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Uptime(2, time.Hour); err != nil {
		t.Fatal(err)
	}
	if fs.calls != 3 {
		t.Fatalf("store hit %d times, want 3", fs.calls)
	}
}

func TestUptime_Errors(t *testing.T) {
	fs := &fakeStore{uptimeErr: errors.New("boom")}
	c := NewCalculator(fs, 64, time.Minute)
	defer c.Close()

	if _, err := c.Uptime(1, time.Hour); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Uptime(1, -time.Hour); err == nil {
		t.Fatal("expected window validation error")
	}
}

func TestStatusDuration(t *testing.T) {
	ms := int64(90000)
	fs := &fakeStore{durationMs: &ms}
	c := NewCalculator(fs, 64, time.Minute)
	defer c.Close()

	d, err := c.StatusDuration(1)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || *d != 90*time.Second {
		t.Fatalf("duration: %v", d)
	}

	fs.durationMs = nil
	d, err = c.StatusDuration(1)
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatalf("expected nil for no history, got %v", d)
	}
}
