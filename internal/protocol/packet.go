package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tedsta/ted/internal/ot"
)

// TimelineEntry pairs an operation with the client that produced it, the
// shape the server's timeline stores and the Join packet replays.
type TimelineEntry struct {
	ClientID ClientID
	Op       ot.Operation
}

// JoinPacket is the first packet a server sends a newly connected client:
// a full snapshot of the document plus the timeline that produced it.
type JoinPacket struct {
	ClientID ClientID
	Buffer   string
	Timeline []TimelineEntry
}

func encodeJoin(w io.Writer, pkt JoinPacket) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(pkt.ClientID)); err != nil {
		return err
	}
	if err := writeStr(w, pkt.Buffer); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(pkt.Timeline))); err != nil {
		return err
	}
	for _, e := range pkt.Timeline {
		if err := binary.Write(w, binary.LittleEndian, uint32(e.ClientID)); err != nil {
			return err
		}
		if err := e.Op.EncodeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeJoin(r io.Reader) (JoinPacket, error) {
	var clientID uint32
	if err := binary.Read(r, binary.LittleEndian, &clientID); err != nil {
		return JoinPacket{}, wrapDecode("join client_id", err)
	}
	text, err := readStr(r)
	if err != nil {
		return JoinPacket{}, wrapDecode("join buffer", err)
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return JoinPacket{}, wrapDecode("join timeline count", err)
	}

	timeline := make([]TimelineEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var entryClient uint32
		if err := binary.Read(r, binary.LittleEndian, &entryClient); err != nil {
			return JoinPacket{}, wrapDecode("join timeline entry client_id", err)
		}
		op, err := ot.DecodeFrom(r)
		if err != nil {
			return JoinPacket{}, wrapDecode("join timeline entry op", err)
		}
		timeline = append(timeline, TimelineEntry{ClientID: ClientID(entryClient), Op: op})
	}

	return JoinPacket{ClientID: ClientID(clientID), Buffer: text, Timeline: timeline}, nil
}

// PacketID tags every server-to-client packet sent after the Join packet.
type PacketID uint8

const (
	PacketIDResponse PacketID = iota
	PacketIDSync
)

// ResponsePacket acknowledges that the sending client's oldest pending
// operation was accepted into the timeline.
type ResponsePacket struct{}

// SyncPacket carries a suffix of the timeline the receiving client has
// not yet seen, as bare operations (no client ids — the receiver already
// knows whether each was its own via Response packets).
type SyncPacket struct {
	Ops []ot.Operation
}

// ServerPacket is a tagged union of the two post-Join server messages.
// Exactly one field is set.
type ServerPacket struct {
	Response *ResponsePacket
	Sync     *SyncPacket
}

func encodeServerPacket(w io.Writer, pkt ServerPacket) error {
	switch {
	case pkt.Response != nil:
		return binary.Write(w, binary.LittleEndian, uint8(PacketIDResponse))
	case pkt.Sync != nil:
		if err := binary.Write(w, binary.LittleEndian, uint8(PacketIDSync)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(pkt.Sync.Ops))); err != nil {
			return err
		}
		for _, op := range pkt.Sync.Ops {
			if err := op.EncodeTo(w); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("protocol: encode server packet: no variant set")
	}
}

func decodeServerPacket(r io.Reader) (ServerPacket, error) {
	var tag uint8
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return ServerPacket{}, wrapDecode("server packet tag", err)
	}

	switch PacketID(tag) {
	case PacketIDResponse:
		return ServerPacket{Response: &ResponsePacket{}}, nil
	case PacketIDSync:
		var count uint64
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return ServerPacket{}, wrapDecode("sync count", err)
		}
		ops := make([]ot.Operation, 0, count)
		for i := uint64(0); i < count; i++ {
			op, err := ot.DecodeFrom(r)
			if err != nil {
				return ServerPacket{}, wrapDecode("sync op", err)
			}
			ops = append(ops, op)
		}
		return ServerPacket{Sync: &SyncPacket{Ops: ops}}, nil
	default:
		return ServerPacket{}, wrapDecode("server packet tag", fmt.Errorf("unknown tag %d", tag))
	}
}
