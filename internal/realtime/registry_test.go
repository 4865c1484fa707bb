package realtime

import (
	"slices"
	"testing"
)

func TestAdminRegistry_RegisterIdempotent(t *testing.T) {
	reg := NewAdminRegistry()

	reg.Register("conn1")
	reg.Register("conn1")
	reg.Register("conn2")

	ids := reg.List()
	slices.Sort(ids)
	if len(ids) != 2 || ids[0] != "conn1" || ids[1] != "conn2" {
		t.Errorf("Expected [conn1 conn2], got %v", ids)
	}
}

func TestAdminRegistry_UnregisterIdempotent(t *testing.T) {
	reg := NewAdminRegistry()

	reg.Register("conn1")
	reg.Unregister("conn1")
	reg.Unregister("conn1")
	reg.Unregister("never-registered")

	if ids := reg.List(); len(ids) != 0 {
		t.Errorf("Expected empty registry, got %v", ids)
	}
}

func TestAdminRegistry_ListReflectsNetEffect(t *testing.T) {
	reg := NewAdminRegistry()

	reg.Register("a")
	reg.Register("b")
	reg.Register("c")
	reg.Unregister("b")
	reg.Register("a")
	reg.Unregister("d")

	ids := reg.List()
	slices.Sort(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("Expected [a c], got %v", ids)
	}
}

func TestAdminRegistry_ListReturnsSnapshot(t *testing.T) {
	reg := NewAdminRegistry()
	reg.Register("a")

	snapshot := reg.List()
	reg.Unregister("a")

	if len(snapshot) != 1 || snapshot[0] != "a" {
		t.Errorf("Snapshot mutated after unregister: %v", snapshot)
	}
}
