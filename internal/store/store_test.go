package store

import (
	"testing"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testNode(name string) *model.Node {
	n := &model.Node{
		Name:                  name,
		Detail:                model.HTTPNodeDetail("https://example.com/health", 200),
		MonitoringIntervalSec: 60,
	}
	n.ApplyDefaults()
	return n
}

func TestNodeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	lastCheck := time.Date(2026, 8, 24, 10, 0, 0, 500_000_000, time.UTC)
	rt := int64(123)
	n := &model.Node{
		Name:                  "edge-1",
		Detail:                model.PingNodeDetail("192.0.2.10", 3, 5),
		Status:                model.StatusDegraded,
		MonitoringIntervalSec: 60,
		RetryIntervalSec:      10,
		MaxCheckAttempts:      4,
		ConsecutiveFailures:   2,
		LastCheckAt:           &lastCheck,
		LastResponseTimeMs:    &rt,
		CredentialID:          "cred_0011223344556677",
		DisplayOrder:          7,
	}

	id, err := s.AddNode(n)
	if err != nil {
		t.Fatalf("add node: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetNode(id)
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if got.Name != "edge-1" || got.Status != model.StatusDegraded {
		t.Fatalf("unexpected node: %+v", got)
	}
	if got.Detail.Type != model.MonitorPing || got.Detail.Ping == nil {
		t.Fatalf("detail type: %+v", got.Detail)
	}
	if *got.Detail.Ping != (model.PingDetail{Host: "192.0.2.10", Count: 3, TimeoutSec: 5}) {
		t.Fatalf("ping detail: %+v", got.Detail.Ping)
	}
	if got.LastCheckAt == nil || !got.LastCheckAt.Equal(lastCheck) {
		t.Fatalf("last check: got %v, want %v", got.LastCheckAt, lastCheck)
	}
	if got.LastResponseTimeMs == nil || *got.LastResponseTimeMs != 123 {
		t.Fatalf("response time: %v", got.LastResponseTimeMs)
	}
	if got.CredentialID != "cred_0011223344556677" || got.DisplayOrder != 7 {
		t.Fatalf("credential/order: %+v", got)
	}

	// Update: switch detail type, clear nullable fields.
	got.Detail = model.TCPNodeDetail("db.internal", 5432, 10)
	got.LastCheckAt = nil
	got.LastResponseTimeMs = nil
	got.CredentialID = ""
	if err := s.UpdateNode(got); err != nil {
		t.Fatalf("update node: %v", err)
	}

	back, err := s.GetNode(id)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if back.Detail.Type != model.MonitorTCP || back.Detail.TCP.Port != 5432 {
		t.Fatalf("detail after update: %+v", back.Detail)
	}
	if back.LastCheckAt != nil || back.LastResponseTimeMs != nil || back.CredentialID != "" {
		t.Fatalf("nullable fields not cleared: %+v", back)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetNode(999); err != ErrNodeNotFound {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if err := s.UpdateNode(testNode("ghost")); err != ErrNodeNotFound {
		t.Fatalf("update: expected ErrNodeNotFound, got %v", err)
	}
	if err := s.DeleteNode(999); err != ErrNodeNotFound {
		t.Fatalf("delete: expected ErrNodeNotFound, got %v", err)
	}
}

func TestDeleteNode_Cascades(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AddNode(testNode("doomed"))
	if err != nil {
		t.Fatalf("add node: %v", err)
	}

	now := time.Now().UTC()
	if _, err := s.AddProbeSample(&model.ProbeSample{NodeID: id, At: now, Status: model.StatusOnline}); err != nil {
		t.Fatalf("add sample: %v", err)
	}
	if _, err := s.AddStatusChange(&model.StatusChange{
		NodeID: id, From: model.StatusOnline, To: model.StatusOffline, ChangedAt: now,
	}); err != nil {
		t.Fatalf("add change: %v", err)
	}

	if err := s.DeleteNode(id); err != nil {
		t.Fatalf("delete node: %v", err)
	}

	sample, err := s.LatestProbeSample(id)
	if err != nil {
		t.Fatalf("latest sample: %v", err)
	}
	if sample != nil {
		t.Fatal("samples not cascaded")
	}
	changes, err := s.ListStatusChanges(id, 0)
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	if len(changes) != 0 {
		t.Fatal("changes not cascaded")
	}
}

func TestListNodes_Ordering(t *testing.T) {
	s := openTestStore(t)

	// id=1, never reordered (display_order 0 orders as id).
	a := testNode("zeta")
	if _, err := s.AddNode(a); err != nil {
		t.Fatal(err)
	}
	// id=2, explicit order 5.
	b := testNode("alpha")
	b.DisplayOrder = 5
	if _, err := s.AddNode(b); err != nil {
		t.Fatal(err)
	}
	// id=3, explicit order 5 as well; ties break by name.
	c := testNode("beta")
	c.DisplayOrder = 5
	if _, err := s.AddNode(c); err != nil {
		t.Fatal(err)
	}

	nodes, err := s.ListNodes()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	want := []string{"zeta", "alpha", "beta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order: got %v, want %v", names, want)
		}
	}
}

func TestUpdateDisplayOrders(t *testing.T) {
	s := openTestStore(t)

	a := testNode("a")
	b := testNode("b")
	s.AddNode(a)
	s.AddNode(b)

	err := s.UpdateDisplayOrders([]DisplayOrder{
		{NodeID: a.ID, Order: 2},
		{NodeID: b.ID, Order: 1},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}

	nodes, err := s.ListNodes()
	if err != nil {
		t.Fatal(err)
	}
	if nodes[0].Name != "b" || nodes[1].Name != "a" {
		t.Fatalf("reorder not applied: %v, %v", nodes[0].Name, nodes[1].Name)
	}
}

func TestSamples_LatestAndFirst(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	rt := int64(15)
	for i, st := range []model.Status{model.StatusOnline, model.StatusDegraded, model.StatusOffline} {
		_, err := s.AddProbeSample(&model.ProbeSample{
			NodeID: id, At: base.Add(time.Duration(i) * time.Minute),
			Status: st, ResponseTimeMs: &rt, Detail: "d",
		})
		if err != nil {
			t.Fatalf("add sample %d: %v", i, err)
		}
	}

	latest, err := s.LatestProbeSample(id)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Status != model.StatusOffline {
		t.Fatalf("latest sample: %+v", latest)
	}
	if latest.ResponseTimeMs == nil || *latest.ResponseTimeMs != 15 || latest.Detail != "d" {
		t.Fatalf("latest fields: %+v", latest)
	}

	first, err := s.FirstProbeSampleAt(id)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first == nil || !first.Equal(base) {
		t.Fatalf("first sample at: %v, want %v", first, base)
	}
}

func TestListStatusChanges_NewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	seq := []struct {
		from, to model.Status
	}{
		{model.StatusOnline, model.StatusDegraded},
		{model.StatusDegraded, model.StatusOffline},
		{model.StatusOffline, model.StatusOnline},
	}
	for i, c := range seq {
		_, err := s.AddStatusChange(&model.StatusChange{
			NodeID: id, From: c.from, To: c.to, ChangedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListStatusChanges(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(all))
	}
	if all[0].To != model.StatusOnline || all[2].To != model.StatusDegraded {
		t.Fatalf("not newest first: %+v", all)
	}

	limited, err := s.ListStatusChanges(id, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].To != model.StatusOnline {
		t.Fatalf("limit: %+v", limited)
	}
}

func TestUnknownStatusMapsToOffline(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	// Bypass the typed API to simulate a row written by a newer version.
	_, err := s.db.Exec("UPDATE nodes SET status = 'Flapping' WHERE id = ?", id)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetNode(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusOffline {
		t.Fatalf("unknown status: got %q, want Offline", got.Status)
	}
}

func TestCurrentStatusDuration(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	// No samples, no changes.
	d, err := s.CurrentStatusDuration(id)
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatalf("expected nil duration, got %v", *d)
	}

	// First sample only: duration from the sample.
	_, err = s.AddProbeSample(&model.ProbeSample{
		NodeID: id, At: now.Add(-90 * time.Second), Status: model.StatusOnline,
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err = s.CurrentStatusDuration(id)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || *d != 90_000 {
		t.Fatalf("duration from sample: %v", d)
	}

	// A status change supersedes the first sample.
	_, err = s.AddStatusChange(&model.StatusChange{
		NodeID: id, From: model.StatusOnline, To: model.StatusOffline,
		ChangedAt: now.Add(-30 * time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err = s.CurrentStatusDuration(id)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || *d != 30_000 {
		t.Fatalf("duration from change: %v", d)
	}
}

func TestUptimePercentage_Timeline(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0.Add(time.Hour) }

	// Online t0..t0+80s, Offline t0+80s..t0+100s.
	_, err := s.AddStatusChange(&model.StatusChange{
		NodeID: id, From: model.StatusOnline, To: model.StatusOffline,
		ChangedAt: t0.Add(80 * time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	pct, err := s.UptimePercentage(id, t0, t0.Add(100*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if pct != 80.0 {
		t.Fatalf("uptime: got %v, want 80", pct)
	}
}

func TestUptimePercentage_ClipsFirstSegment(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0.Add(time.Hour) }

	// Node went Offline->Online long before the window; Online throughout.
	_, err := s.AddStatusChange(&model.StatusChange{
		NodeID: id, From: model.StatusOffline, To: model.StatusOnline,
		ChangedAt: t0.Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	pct, err := s.UptimePercentage(id, t0, t0.Add(100*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if pct != 100.0 {
		t.Fatalf("uptime: got %v, want 100", pct)
	}
}

func TestUptimePercentage_EmptyTimeline(t *testing.T) {
	s := openTestStore(t)

	online := testNode("up")
	online.Status = model.StatusOnline
	s.AddNode(online)

	down := testNode("down")
	down.Status = model.StatusOffline
	s.AddNode(down)

	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	end := t0.Add(time.Minute)

	pct, err := s.UptimePercentage(online.ID, t0, end)
	if err != nil {
		t.Fatal(err)
	}
	if pct != 100 {
		t.Fatalf("online empty timeline: got %v", pct)
	}
	pct, err = s.UptimePercentage(down.ID, t0, end)
	if err != nil {
		t.Fatal(err)
	}
	if pct != 0 {
		t.Fatalf("offline empty timeline: got %v", pct)
	}
}

func TestUptimePercentage_OpenWindowClipsToNow(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.AddNode(testNode("n"))

	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	// "now" is halfway through the window; node Online since t0.
	s.now = func() time.Time { return t0.Add(50 * time.Second) }

	_, err := s.AddStatusChange(&model.StatusChange{
		NodeID: id, From: model.StatusOffline, To: model.StatusOnline, ChangedAt: t0,
	})
	if err != nil {
		t.Fatal(err)
	}

	pct, err := s.UptimePercentage(id, t0, t0.Add(100*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if pct != 50.0 {
		t.Fatalf("uptime clipped to now: got %v, want 50", pct)
	}
}
