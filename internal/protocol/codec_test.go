package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tedsta/ted/internal/ot"
)

func TestBinaryCodecJoinRoundTrip(t *testing.T) {
	pkt := JoinPacket{
		ClientID: 7,
		Buffer:   "hello world",
		Timeline: []TimelineEntry{
			{ClientID: 1, Op: ot.NewInsert(0, "hi")},
			{ClientID: SystemClientID, Op: ot.NewRemoveChar(0, 'h')},
		},
	}

	var buf bytes.Buffer
	codec := BinaryCodec{}
	if err := codec.EncodeJoin(&buf, pkt); err != nil {
		t.Fatalf("EncodeJoin: %v", err)
	}
	got, err := codec.DecodeJoin(&buf)
	if err != nil {
		t.Fatalf("DecodeJoin: %v", err)
	}

	if got.ClientID != pkt.ClientID || got.Buffer != pkt.Buffer {
		t.Fatalf("got %+v, want %+v", got, pkt)
	}
	if len(got.Timeline) != len(pkt.Timeline) {
		t.Fatalf("len(Timeline) = %d, want %d", len(got.Timeline), len(pkt.Timeline))
	}
	for i := range pkt.Timeline {
		if got.Timeline[i] != pkt.Timeline[i] {
			t.Errorf("Timeline[%d] = %+v, want %+v", i, got.Timeline[i], pkt.Timeline[i])
		}
	}
}

func TestBinaryCodecRequestRoundTrip(t *testing.T) {
	codec := BinaryCodec{}

	reqs := []Request{
		NewOpRequest(42, ot.NewInsertChar(3, 'a')),
		NewCommandRequest(9, "undo"),
	}
	for _, req := range reqs {
		var buf bytes.Buffer
		if err := codec.EncodeRequest(&buf, req); err != nil {
			t.Fatalf("EncodeRequest: %v", err)
		}
		got, err := codec.DecodeRequest(&buf)
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		if got != req {
			t.Errorf("got %+v, want %+v", got, req)
		}
	}
}

func TestBinaryCodecServerPacketRoundTrip(t *testing.T) {
	codec := BinaryCodec{}

	pkts := []ServerPacket{
		{Response: &ResponsePacket{}},
		{Sync: &SyncPacket{Ops: []ot.Operation{ot.NewInsert(0, "x"), ot.NewRemoveChar(1, 'y')}}},
	}
	for _, pkt := range pkts {
		var buf bytes.Buffer
		if err := codec.EncodeServerPacket(&buf, pkt); err != nil {
			t.Fatalf("EncodeServerPacket: %v", err)
		}
		got, err := codec.DecodeServerPacket(&buf)
		if err != nil {
			t.Fatalf("DecodeServerPacket: %v", err)
		}
		switch {
		case pkt.Response != nil:
			if got.Response == nil {
				t.Errorf("got %+v, want a Response packet", got)
			}
		case pkt.Sync != nil:
			if got.Sync == nil || len(got.Sync.Ops) != len(pkt.Sync.Ops) {
				t.Errorf("got %+v, want %+v", got, pkt)
			}
		}
	}
}

func TestCompressingCodecPassesThroughBelowThreshold(t *testing.T) {
	inner := BinaryCodec{}
	codec := NewCompressingCodec(inner, 1<<20)

	pkt := JoinPacket{ClientID: 1, Buffer: "short"}
	var buf bytes.Buffer
	if err := codec.EncodeJoin(&buf, pkt); err != nil {
		t.Fatalf("EncodeJoin: %v", err)
	}
	got, err := codec.DecodeJoin(&buf)
	if err != nil {
		t.Fatalf("DecodeJoin: %v", err)
	}
	if got.Buffer != pkt.Buffer {
		t.Errorf("got %+v, want %+v", got, pkt)
	}
}

func TestCompressingCodecCompressesAboveThreshold(t *testing.T) {
	inner := BinaryCodec{}
	codec := NewCompressingCodec(inner, 16)

	pkt := JoinPacket{ClientID: 1, Buffer: strings.Repeat("a", 4096)}
	var compressed bytes.Buffer
	if err := codec.EncodeJoin(&compressed, pkt); err != nil {
		t.Fatalf("EncodeJoin: %v", err)
	}

	var raw bytes.Buffer
	if err := inner.EncodeJoin(&raw, pkt); err != nil {
		t.Fatalf("EncodeJoin (raw): %v", err)
	}
	if compressed.Len() >= raw.Len() {
		t.Errorf("compressed size %d did not beat raw size %d", compressed.Len(), raw.Len())
	}

	got, err := codec.DecodeJoin(&compressed)
	if err != nil {
		t.Fatalf("DecodeJoin: %v", err)
	}
	if got.Buffer != pkt.Buffer {
		t.Errorf("decoded buffer mismatch, len got %d want %d", len(got.Buffer), len(pkt.Buffer))
	}
}

func TestCompressingCodecZeroThresholdNeverCompresses(t *testing.T) {
	codec := NewCompressingCodec(BinaryCodec{}, 0)
	pkt := JoinPacket{Buffer: strings.Repeat("z", 1024)}

	var buf bytes.Buffer
	if err := codec.EncodeJoin(&buf, pkt); err != nil {
		t.Fatalf("EncodeJoin: %v", err)
	}
	if buf.Bytes()[0] != byte(joinCodecRaw) {
		t.Errorf("expected raw tag with threshold 0, got tag %d", buf.Bytes()[0])
	}
}
