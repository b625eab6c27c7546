package mesh

import "testing"

func TestPacketIDSkipsReservedSentinels(t *testing.T) {
	g := NewSeededPacketIDGenerator(0)
	if id := g.Next(); id != 5 {
		t.Errorf("Next() = %d, want 5 (0-4 are reserved)", id)
	}
}

func TestPacketIDWrapsAround(t *testing.T) {
	g := NewSeededPacketIDGenerator(0xfffffffd)
	if id := g.Next(); id != 0xfffffffe {
		t.Fatalf("Next() = %#x, want 0xfffffffe", id)
	}
	// 0xffffffff and 0-4 are all skipped on wrap.
	if id := g.Next(); id != 5 {
		t.Errorf("Next() = %#x, want 5", id)
	}
}

func TestPacketIDNeverRepeats(t *testing.T) {
	g := NewPacketIDGenerator()
	seen := make(map[uint32]bool, 100000)
	for i := 0; i < 100000; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("id %d issued twice after %d calls", id, i+1)
		}
		seen[id] = true
	}
}

func TestPacketIDNeverReturnsPrevious(t *testing.T) {
	g := NewPacketIDGenerator()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		id := g.Next()
		if id == prev {
			t.Fatalf("Next() returned the previous value %d", id)
		}
		prev = id
	}
}
