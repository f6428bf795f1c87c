package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tedsta/ted/internal/ot"
)

// RequestKind identifies which client-to-server request payload follows.
type RequestKind uint8

const (
	RequestKindOp RequestKind = iota
	RequestKindCommand
)

// Request is a client-to-server message: either an edit operation or a
// command-language string, each tagged with the client's known server
// version so the session can decide what to transform it against.
type Request struct {
	Kind          RequestKind
	ClientVersion uint64
	Op            ot.Operation // valid when Kind == RequestKindOp
	Command       string       // valid when Kind == RequestKindCommand
}

// NewOpRequest builds a Request carrying an edit operation.
func NewOpRequest(clientVersion uint64, op ot.Operation) Request {
	return Request{Kind: RequestKindOp, ClientVersion: clientVersion, Op: op}
}

// NewCommandRequest builds a Request carrying a command-language string.
func NewCommandRequest(clientVersion uint64, cmd string) Request {
	return Request{Kind: RequestKindCommand, ClientVersion: clientVersion, Command: cmd}
}

func encodeRequest(w io.Writer, req Request) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(req.Kind)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, req.ClientVersion); err != nil {
		return err
	}
	switch req.Kind {
	case RequestKindOp:
		return req.Op.EncodeTo(w)
	case RequestKindCommand:
		return writeStr(w, req.Command)
	default:
		return fmt.Errorf("protocol: encode request: unknown kind %d", req.Kind)
	}
}

func decodeRequest(r io.Reader) (Request, error) {
	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return Request{}, wrapDecode("request tag", err)
	}
	var version uint64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Request{}, wrapDecode("request client_version", err)
	}

	switch RequestKind(kind) {
	case RequestKindOp:
		op, err := ot.DecodeFrom(r)
		if err != nil {
			return Request{}, wrapDecode("request op", err)
		}
		return NewOpRequest(version, op), nil
	case RequestKindCommand:
		cmd, err := readStr(r)
		if err != nil {
			return Request{}, wrapDecode("request command", err)
		}
		return NewCommandRequest(version, cmd), nil
	default:
		return Request{}, wrapDecode("request tag", fmt.Errorf("unknown kind %d", kind))
	}
}
