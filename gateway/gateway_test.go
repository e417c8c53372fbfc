package gateway

import (
	"testing"

	"subsv/breaker"
	"subsv/config"
	"subsv/protection"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := config.DefaultConfig()
	return New(cfg, "/tmp/test.yaml")
}

func TestAddBreakerAndSnapshot(t *testing.T) {
	g := testGateway(t)
	m := breaker.New()
	g.AddBreaker("CB1", m)

	if got := g.Breaker("CB1"); got != m {
		t.Fatalf("Breaker(CB1) = %v, want %v", got, m)
	}
	if names := g.BreakerNames(); len(names) != 1 || names[0] != "CB1" {
		t.Errorf("BreakerNames() = %v, want [CB1]", names)
	}

	snap, err := g.FindBreakerSnapshot("CB1")
	if err != nil {
		t.Fatalf("FindBreakerSnapshot: %v", err)
	}
	if snap.Name != "CB1" {
		t.Errorf("snapshot.Name = %q, want CB1", snap.Name)
	}
}

func TestFindBreakerSnapshotMissing(t *testing.T) {
	g := testGateway(t)
	if _, err := g.FindBreakerSnapshot("nope"); err == nil {
		t.Error("FindBreakerSnapshot(nope) = nil error, want error")
	}
}

func TestAddProtectionRelaysAndSnapshot(t *testing.T) {
	g := testGateway(t)

	dr, err := protection.NewDistanceRelay(protection.DefaultDistanceSettings())
	if err != nil {
		t.Fatalf("NewDistanceRelay: %v", err)
	}
	g.AddDistanceRelay("Z1", dr)

	diff, err := protection.NewDifferentialRelay(protection.DefaultDifferentialSettings())
	if err != nil {
		t.Fatalf("NewDifferentialRelay: %v", err)
	}
	g.AddDifferentialRelay("D1", diff)

	names := g.ProtectionNames()
	if len(names) != 2 {
		t.Fatalf("ProtectionNames() = %v, want 2 entries", names)
	}

	snap, err := g.FindProtectionSnapshot("Z1")
	if err != nil {
		t.Fatalf("FindProtectionSnapshot(Z1): %v", err)
	}
	if snap.Kind != "distance" {
		t.Errorf("snapshot.Kind = %q, want distance", snap.Kind)
	}

	snap, err = g.FindProtectionSnapshot("D1")
	if err != nil {
		t.Fatalf("FindProtectionSnapshot(D1): %v", err)
	}
	if snap.Kind != "differential" {
		t.Errorf("snapshot.Kind = %q, want differential", snap.Kind)
	}
}

func TestFindProtectionSnapshotMissing(t *testing.T) {
	g := testGateway(t)
	if _, err := g.FindProtectionSnapshot("nope"); err == nil {
		t.Error("FindProtectionSnapshot(nope) = nil error, want error")
	}
}

func TestBreakerSnapshotsAndProtectionSnapshotsLength(t *testing.T) {
	g := testGateway(t)
	g.AddBreaker("CB1", breaker.New())
	g.AddBreaker("CB2", breaker.New())

	if got := g.BreakerSnapshots(); len(got) != 2 {
		t.Errorf("BreakerSnapshots() len = %d, want 2", len(got))
	}
	if got := g.ProtectionSnapshots(); len(got) != 0 {
		t.Errorf("ProtectionSnapshots() len = %d, want 0", len(got))
	}
}

func TestGatewayManagersAreNonNil(t *testing.T) {
	g := testGateway(t)
	if g.GetMQTTMgr() == nil {
		t.Error("GetMQTTMgr() = nil")
	}
	if g.GetKafkaMgr() == nil {
		t.Error("GetKafkaMgr() = nil")
	}
	if g.GetValkeyMgr() == nil {
		t.Error("GetValkeyMgr() = nil")
	}
}
