package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// joinCodecTag distinguishes a raw Join payload from a gzip-compressed
// one. It is the one byte CompressingCodec prepends ahead of whatever its
// inner codec would have written, so a decoder that has never seen a
// compressed join can still fail cleanly instead of misparsing bytes.
type joinCodecTag uint8

const (
	joinCodecRaw joinCodecTag = iota
	joinCodecGzip
)

// CompressingCodec wraps another Codec and gzip-compresses Join packets
// once their encoded size exceeds Threshold. Request and server-push
// packets pass through unchanged — they are small and frequent, where
// compression overhead would dominate; the Join packet is the one large,
// infrequent payload (it carries the whole document plus timeline, and
// documents can run tens of megabytes), so it is the only candidate
// worth the klauspost/compress dependency.
type CompressingCodec struct {
	Inner     Codec
	Threshold int
}

var _ Codec = CompressingCodec{}

// NewCompressingCodec wraps inner, compressing Join payloads larger than
// threshold bytes. A threshold of 0 disables compression.
func NewCompressingCodec(inner Codec, threshold int) CompressingCodec {
	return CompressingCodec{Inner: inner, Threshold: threshold}
}

func (c CompressingCodec) EncodeJoin(w io.Writer, pkt JoinPacket) error {
	var raw bytes.Buffer
	if err := c.Inner.EncodeJoin(&raw, pkt); err != nil {
		return err
	}

	if c.Threshold <= 0 || raw.Len() <= c.Threshold {
		if err := binary.Write(w, binary.LittleEndian, uint8(joinCodecRaw)); err != nil {
			return err
		}
		_, err := w.Write(raw.Bytes())
		return err
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint8(joinCodecGzip)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(compressed.Len())); err != nil {
		return err
	}
	_, err := w.Write(compressed.Bytes())
	return err
}

func (c CompressingCodec) DecodeJoin(r io.Reader) (JoinPacket, error) {
	var tag uint8
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return JoinPacket{}, wrapDecode("join codec tag", err)
	}

	switch joinCodecTag(tag) {
	case joinCodecRaw:
		return c.Inner.DecodeJoin(r)
	case joinCodecGzip:
		var size uint64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return JoinPacket{}, wrapDecode("join compressed size", err)
		}
		compressed := make([]byte, size)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return JoinPacket{}, wrapDecode("join compressed payload", err)
		}
		gz, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return JoinPacket{}, wrapDecode("join gzip header", err)
		}
		defer gz.Close()
		return c.Inner.DecodeJoin(gz)
	default:
		return JoinPacket{}, wrapDecode("join codec tag", fmt.Errorf("unknown tag %d", tag))
	}
}

func (c CompressingCodec) EncodeRequest(w io.Writer, req Request) error {
	return c.Inner.EncodeRequest(w, req)
}

func (c CompressingCodec) DecodeRequest(r io.Reader) (Request, error) {
	return c.Inner.DecodeRequest(r)
}

func (c CompressingCodec) EncodeServerPacket(w io.Writer, pkt ServerPacket) error {
	return c.Inner.EncodeServerPacket(w, pkt)
}

func (c CompressingCodec) DecodeServerPacket(r io.Reader) (ServerPacket, error) {
	return c.Inner.DecodeServerPacket(r)
}
