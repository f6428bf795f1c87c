package ot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire layout (little-endian, fixed-width):
//
//	tag byte, then:
//	  InsertChar: index u64, ch u32
//	  Insert:     index u64, text (u32 length, then bytes)
//	  RemoveChar: index u64, ch u32
//	  Remove:     start u64, end u64, text (u32 length, then bytes)

// EncodeTo writes op's wire representation to w.
func (op Operation) EncodeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(op.Kind)); err != nil {
		return err
	}
	switch op.Kind {
	case KindInsertChar:
		return writeAll(w,
			field{binary.LittleEndian, uint64(op.Index)},
			field{binary.LittleEndian, uint32(op.Char)},
		)
	case KindInsert:
		if err := binary.Write(w, binary.LittleEndian, uint64(op.Index)); err != nil {
			return err
		}
		return writeString(w, op.Text)
	case KindRemoveChar:
		return writeAll(w,
			field{binary.LittleEndian, uint64(op.Index)},
			field{binary.LittleEndian, uint32(op.Char)},
		)
	case KindRemove:
		if err := writeAll(w,
			field{binary.LittleEndian, uint64(op.Index)},
			field{binary.LittleEndian, uint64(op.End)},
		); err != nil {
			return err
		}
		return writeString(w, op.Text)
	default:
		return fmt.Errorf("ot: encode: unknown operation kind %d", op.Kind)
	}
}

// DecodeFrom reads one operation from r.
func DecodeFrom(r io.Reader) (Operation, error) {
	var tag uint8
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return Operation{}, err
	}

	switch Kind(tag) {
	case KindInsertChar:
		index, ch, err := readIndexAndChar(r)
		if err != nil {
			return Operation{}, err
		}
		return NewInsertChar(index, ch), nil
	case KindInsert:
		var index uint64
		if err := binary.Read(r, binary.LittleEndian, &index); err != nil {
			return Operation{}, err
		}
		text, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		return NewInsert(int(index), text), nil
	case KindRemoveChar:
		index, ch, err := readIndexAndChar(r)
		if err != nil {
			return Operation{}, err
		}
		return NewRemoveChar(index, ch), nil
	case KindRemove:
		var start, end uint64
		if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
			return Operation{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &end); err != nil {
			return Operation{}, err
		}
		text, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		return NewRemove(int(start), int(end), text), nil
	default:
		return Operation{}, fmt.Errorf("ot: decode: unknown tag byte %d", tag)
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (op Operation) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := op.EncodeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (op *Operation) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeFrom(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*op = decoded
	return nil
}

func readIndexAndChar(r io.Reader) (int, rune, error) {
	var index uint64
	if err := binary.Read(r, binary.LittleEndian, &index); err != nil {
		return 0, 0, err
	}
	var ch uint32
	if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
		return 0, 0, err
	}
	return int(index), rune(ch), nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

type field struct {
	order binary.ByteOrder
	value any
}

func writeAll(w io.Writer, fields ...field) error {
	for _, f := range fields {
		if err := binary.Write(w, f.order, f.value); err != nil {
			return err
		}
	}
	return nil
}
