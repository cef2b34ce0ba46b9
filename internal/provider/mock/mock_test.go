package mock

import (
	"context"
	"testing"
	"time"

	"github.com/spuff-dev/spuff/internal/schema"
)

func TestCreateInstanceImmediateReady(t *testing.T) {
	p, err := New("", schema.DefaultTimeouts())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	inst, err := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "dev-1"})
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if inst.Status != schema.StatusActive {
		t.Errorf("expected StatusActive with zero BootDelay, got %s", inst.Status)
	}
	if !inst.Ready() {
		t.Error("expected Ready() true")
	}
}

func TestCreateInstanceBootDelay(t *testing.T) {
	timeouts := schema.DefaultTimeouts()
	timeouts.PollInterval = 10 * time.Millisecond
	timeouts.InstanceReady = time.Second

	p, _ := New("", timeouts)
	mp := p.(*Provider)
	mp.BootDelay = 30 * time.Millisecond

	inst, err := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "dev-2"})
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if inst.Status != schema.StatusNew {
		t.Errorf("expected StatusNew immediately after create, got %s", inst.Status)
	}

	ready, err := p.WaitReady(context.Background(), inst.ID)
	if err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if !ready.Ready() {
		t.Error("expected instance ready after BootDelay elapses")
	}
}

func TestDestroyInstanceIsIdempotent(t *testing.T) {
	p, _ := New("", schema.DefaultTimeouts())
	inst, _ := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "dev-3"})

	if err := p.DestroyInstance(context.Background(), inst.ID); err != nil {
		t.Fatalf("first DestroyInstance() error = %v", err)
	}
	if err := p.DestroyInstance(context.Background(), inst.ID); err != nil {
		t.Fatalf("second DestroyInstance() on an already-gone id must also succeed, got %v", err)
	}

	_, ok, _ := p.GetInstance(context.Background(), inst.ID)
	if ok {
		t.Error("expected instance to be gone after destroy")
	}
}

func TestListInstancesOnlyReturnsKnown(t *testing.T) {
	p, _ := New("", schema.DefaultTimeouts())
	a, _ := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "a"})
	b, _ := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "b"})

	list, err := p.ListInstances(context.Background())
	if err != nil {
		t.Fatalf("ListInstances() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(list))
	}

	ids := map[string]bool{a.ID: true, b.ID: true}
	for _, inst := range list {
		if !ids[inst.ID] {
			t.Errorf("unexpected instance id %s", inst.ID)
		}
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	p, _ := New("", schema.DefaultTimeouts())
	inst, _ := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "dev-4"})

	snap, err := p.CreateSnapshot(context.Background(), inst.ID, "nightly")
	if err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}

	snaps, err := p.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != snap.ID {
		t.Fatalf("expected the created snapshot to be listed, got %+v", snaps)
	}

	if err := p.DeleteSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	if err := p.DeleteSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("DeleteSnapshot() must be idempotent, got %v", err)
	}
}

func TestCreateSnapshotUnknownInstance(t *testing.T) {
	p, _ := New("", schema.DefaultTimeouts())
	_, err := p.CreateSnapshot(context.Background(), "does-not-exist", "x")
	if err == nil {
		t.Fatal("expected NotFound error for an unknown instance id")
	}
}
