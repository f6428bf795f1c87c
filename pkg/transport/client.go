package transport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/tedsta/ted/internal/buffer"
	"github.com/tedsta/ted/internal/client"
	"github.com/tedsta/ted/internal/ot"
	"github.com/tedsta/ted/internal/protocol"
)

// ClientConn dials a session over WebSocket, sends requests, and queues
// decoded server packets for the caller to fold into its Reconciler.
type ClientConn struct {
	conn  *websocket.Conn
	codec protocol.Codec

	mu   sync.Mutex
	id   protocol.ClientID
	recv chan protocol.ServerPacket
}

// Dial connects to url and performs the join handshake, returning the
// connection and a Reconciler seeded with the join snapshot.
func Dial(ctx context.Context, url string, codec protocol.Codec) (*ClientConn, *client.Reconciler, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: dial: %w", err)
	}

	cc := &ClientConn{conn: conn, codec: codec, recv: make(chan protocol.ServerPacket, 64)}

	typ, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "join read failed")
		return nil, nil, fmt.Errorf("transport: read join: %w", err)
	}
	if typ != websocket.MessageBinary {
		conn.Close(websocket.StatusUnsupportedData, "expected binary join packet")
		return nil, nil, fmt.Errorf("transport: join packet was not binary")
	}

	joinPkt, err := codec.DecodeJoin(bytes.NewReader(data))
	if err != nil {
		conn.Close(websocket.StatusInternalError, "bad join packet")
		return nil, nil, fmt.Errorf("transport: decode join: %w", err)
	}
	cc.id = joinPkt.ClientID

	buf, err := buffer.FromText(joinPkt.Buffer)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "bad join buffer")
		return nil, nil, fmt.Errorf("transport: join buffer: %w", err)
	}

	rec := client.New(buf, len(joinPkt.Timeline))
	return cc, rec, nil
}

// ID returns the client id assigned at join time.
func (c *ClientConn) ID() protocol.ClientID { return c.id }

// Run reads server packets until ctx is cancelled or the connection
// closes, enqueuing each decoded packet onto the channel returned by
// Packets. Call this from its own goroutine; it blocks until the
// connection ends. Run never touches a Reconciler directly — the
// caller's own goroutine (its REPL loop, its event loop) is expected to
// drain Packets and fold them into its Reconciler at each tick, so the
// Reconciler is only ever mutated from one goroutine.
func (c *ClientConn) Run(ctx context.Context) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("transport: read: %w", err)
		}
		if typ != websocket.MessageBinary {
			continue
		}
		pkt, err := c.codec.DecodeServerPacket(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("transport: decode server packet: %w", err)
		}
		select {
		case c.recv <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Packets returns the channel Run enqueues decoded server packets onto.
// The caller drains it from whichever single goroutine owns the
// Reconciler, applying each packet with ApplyServerPacket.
func (c *ClientConn) Packets() <-chan protocol.ServerPacket { return c.recv }

// SendOp submits an operation tagged with the reconciler's known server
// version.
func (c *ClientConn) SendOp(ctx context.Context, clientVersion uint64, op ot.Operation) error {
	return c.send(ctx, protocol.NewOpRequest(clientVersion, op))
}

// SendCommand submits a command-language string tagged with the
// reconciler's known server version.
func (c *ClientConn) SendCommand(ctx context.Context, clientVersion uint64, cmd string) error {
	return c.send(ctx, protocol.NewCommandRequest(clientVersion, cmd))
}

func (c *ClientConn) send(ctx context.Context, req protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if err := c.codec.EncodeRequest(&buf, req); err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageBinary, buf.Bytes())
}

// Close closes the underlying connection.
func (c *ClientConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// ApplyServerPacket folds a decoded ServerPacket into rec, the glue
// between the Packets channel and the Reconciler's OnResponse/OnSync.
func ApplyServerPacket(rec *client.Reconciler, pkt protocol.ServerPacket) error {
	switch {
	case pkt.Response != nil:
		rec.OnResponse()
		return nil
	case pkt.Sync != nil:
		return rec.OnSync(pkt.Sync.Ops)
	default:
		return fmt.Errorf("transport: server packet carries no variant")
	}
}

// defaultDialTimeout bounds how long Dial waits for the join handshake
// when the caller's context carries no deadline of its own.
const defaultDialTimeout = 10 * time.Second
