package sync_test

import (
	"maps"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/simjit/base/sync"
)

func TestMap(t *testing.T) {
	var m sync.Map[string, int]
	m.Store("points", 3)
	m.Store("springs", 2)
	if got, ok := m.Load("points"); !ok || got != 3 {
		t.Errorf("got %d, %t but want 3, true", got, ok)
	}
	if _, ok := m.Load("unknown"); ok {
		t.Errorf("loading an unknown key succeeded")
	}
	if diff := cmp.Diff(map[string]int{"points": 3, "springs": 2}, maps.Collect(m.Iter())); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
	if got, ok := m.LoadAndDelete("springs"); !ok || got != 2 {
		t.Errorf("got %d, %t but want 2, true", got, ok)
	}
	if _, ok := m.LoadAndDelete("springs"); ok {
		t.Errorf("deleting a key twice succeeded")
	}
	m.Delete("points")
	if m.Size() != 0 {
		t.Errorf("map has %d entries but want 0", m.Size())
	}
}
