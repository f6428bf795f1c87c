package session

import (
	"testing"

	"github.com/tedsta/ted/internal/ot"
	"github.com/tedsta/ted/internal/protocol"
)

func drainSync(t *testing.T, ch <-chan protocol.ServerPacket) []ot.Operation {
	t.Helper()
	var ops []ot.Operation
	for {
		select {
		case pkt := <-ch:
			if pkt.Sync != nil {
				ops = append(ops, pkt.Sync.Ops...)
			}
		default:
			return ops
		}
	}
}

func expectResponse(t *testing.T, ch <-chan protocol.ServerPacket) {
	t.Helper()
	select {
	case pkt := <-ch:
		if pkt.Response == nil {
			t.Fatalf("expected a Response packet, got %+v", pkt)
		}
	default:
		t.Fatal("expected a queued Response packet, got none")
	}
}

// TestTwoClientsNonOverlapping covers spec scenario S2.
func TestTwoClientsNonOverlapping(t *testing.T) {
	s, err := FromSnapshot(DefaultConfig(), "abcdef")
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	aID, _, aOut := s.Join()
	bID, _, bOut := s.Join()

	applied, err := s.Op(aID, 1, ot.NewInsert(0, "X"))
	if err != nil || !applied {
		t.Fatalf("A's op: applied=%v err=%v", applied, err)
	}
	expectResponse(t, aOut)

	bSync := drainSync(t, bOut)
	if len(bSync) != 1 || bSync[0] != ot.NewInsert(0, "X") {
		t.Fatalf("B should have caught up on A's insert, got %+v", bSync)
	}

	applied, err = s.Op(bID, 1, ot.NewInsert(6, "Y"))
	if err != nil || !applied {
		t.Fatalf("B's op: applied=%v err=%v", applied, err)
	}
	expectResponse(t, bOut)

	if got, want := s.Text(), "XabcdefY"; got != want {
		t.Fatalf("server text = %q, want %q", got, want)
	}
}

// TestConcurrentOverlappingDeletes covers spec scenario S3.
func TestConcurrentOverlappingDeletes(t *testing.T) {
	s, err := FromSnapshot(DefaultConfig(), "abcdef")
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	aID, _, aOut := s.Join()
	bID, _, bOut := s.Join()

	applied, err := s.Op(aID, 1, ot.NewRemove(1, 3, "bcd"))
	if err != nil || !applied {
		t.Fatalf("A's remove: applied=%v err=%v", applied, err)
	}
	expectResponse(t, aOut)

	applied, err = s.Op(bID, 1, ot.NewRemove(2, 4, "cde"))
	if err != nil {
		t.Fatalf("B's remove returned an error instead of a cancellation: %v", err)
	}
	if applied {
		t.Fatal("B's overlapping remove should have been cancelled")
	}

	if got, want := s.Text(), "aef"; got != want {
		t.Fatalf("server text = %q, want %q", got, want)
	}

	bSync := drainSync(t, bOut)
	if len(bSync) != 1 || bSync[0] != ot.NewRemove(1, 3, "bcd") {
		t.Fatalf("B should have been caught up with A's remove before its own op processed, got %+v", bSync)
	}
}

// TestJoinTimeSnapshot covers spec scenario S5.
func TestJoinTimeSnapshot(t *testing.T) {
	s := New(DefaultConfig())
	aID, _, aOut := s.Join()

	if _, err := s.Op(aID, 0, ot.NewInsertChar(0, 'h')); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	expectResponse(t, aOut)
	if _, err := s.Op(aID, 1, ot.NewInsertChar(1, 'i')); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	expectResponse(t, aOut)

	cID, joinPkt, cOut := s.Join()
	if joinPkt.Buffer != "hi" {
		t.Fatalf("join buffer = %q, want %q", joinPkt.Buffer, "hi")
	}
	if len(joinPkt.Timeline) != 2 {
		t.Fatalf("join timeline length = %d, want 2", len(joinPkt.Timeline))
	}

	applied, err := s.Op(cID, 2, ot.NewInsert(2, "!"))
	if err != nil || !applied {
		t.Fatalf("C's op: applied=%v err=%v", applied, err)
	}
	expectResponse(t, cOut)

	if got, want := s.Text(), "hi!"; got != want {
		t.Fatalf("server text = %q, want %q", got, want)
	}
}

// TestDisconnectMidFlight covers spec scenario S6.
func TestDisconnectMidFlight(t *testing.T) {
	s := New(DefaultConfig())
	aID, _, aOut := s.Join()
	bID, _, _ := s.Join()

	if _, err := s.Op(aID, 0, ot.NewInsertChar(0, 'x')); err != nil {
		t.Fatalf("A's op: %v", err)
	}
	expectResponse(t, aOut)

	s.Disconnect(bID)

	if s.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1 after disconnect", s.ClientCount())
	}

	// A further op from A must not fail or panic now that B is gone.
	applied, err := s.Op(aID, s.Version(), ot.NewInsertChar(1, 'y'))
	if err != nil || !applied {
		t.Fatalf("A's op after B disconnected: applied=%v err=%v", applied, err)
	}

	if _, err := s.Op(bID, 0, ot.NewInsertChar(0, 'z')); err != ErrUnknownClient {
		t.Fatalf("op from disconnected client: err = %v, want ErrUnknownClient", err)
	}
}

// TestDocumentTooLarge exercises the max document size guard.
func TestDocumentTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDocumentSize = 4
	s := New(cfg)
	aID, _, aOut := s.Join()

	applied, err := s.Op(aID, 0, ot.NewInsert(0, "hello"))
	if applied || err == nil {
		t.Fatalf("expected oversized insert to be rejected, got applied=%v err=%v", applied, err)
	}
	select {
	case pkt := <-aOut:
		t.Fatalf("expected no packet queued for a rejected op, got %+v", pkt)
	default:
	}
}
