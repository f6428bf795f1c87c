// Package transport carries the binary wire protocol (internal/protocol)
// over a WebSocket connection, wiring it to internal/session on the
// server side and internal/client on the client side. Each connection
// runs a read loop alongside a per-connection outbox-draining goroutine,
// with a sendMu guarding concurrent writes to the socket.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/tedsta/ted/internal/protocol"
	"github.com/tedsta/ted/internal/session"
	"github.com/tedsta/ted/pkg/logger"
)

// ServerConn handles one client's WebSocket connection against a single
// session.
type ServerConn struct {
	sess   *session.Session
	conn   *websocket.Conn
	codec  protocol.Codec
	ctx    context.Context
	cancel context.CancelFunc
	sendMu sync.Mutex

	readTimeout time.Duration
}

// NewServerConn wraps an accepted WebSocket connection for one session.
func NewServerConn(sess *session.Session, conn *websocket.Conn, codec protocol.Codec, readTimeout time.Duration) *ServerConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &ServerConn{
		sess:        sess,
		conn:        conn,
		codec:       codec,
		ctx:         ctx,
		cancel:      cancel,
		readTimeout: readTimeout,
	}
}

// Handle runs the connection until it closes or ctx is cancelled. It
// joins the session, starts the outbound dispatcher, and reads requests
// until the client disconnects.
func (c *ServerConn) Handle(ctx context.Context) error {
	id, joinPkt, outbox := c.sess.Join()
	defer c.sess.Disconnect(id)
	defer c.cancel()

	logger.Info("transport: client %d joined", id)

	if err := c.writeFrame(ctx, func(w io.Writer) error {
		return c.codec.EncodeJoin(w, joinPkt)
	}); err != nil {
		return fmt.Errorf("transport: send join: %w", err)
	}

	dispatchDone := make(chan struct{})
	go c.dispatchOutbox(id, outbox, dispatchDone)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return c.ctx.Err()
		default:
		}

		readCtx := ctx
		var readCancel context.CancelFunc
		if c.readTimeout > 0 {
			readCtx, readCancel = context.WithTimeout(ctx, c.readTimeout)
		}
		typ, data, err := c.conn.Read(readCtx)
		if readCancel != nil {
			readCancel()
		}
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				<-dispatchDone
				return nil
			}
			<-dispatchDone
			return fmt.Errorf("transport: read: %w", err)
		}
		if typ != websocket.MessageBinary {
			continue
		}

		req, err := c.codec.DecodeRequest(bytes.NewReader(data))
		if err != nil {
			logger.Error("transport: decode request from client %d: %v", id, err)
			return fmt.Errorf("transport: decode request: %w", err)
		}

		if req.Kind == protocol.RequestKindOp {
			if _, err := c.sess.Op(id, req.ClientVersion, req.Op); err != nil {
				logger.Error("transport: apply op from client %d: %v", id, err)
			}
		}
		// Command-language requests are decoded but not acted on: neither
		// the transport nor pkg/server dispatches them.
	}
}

// dispatchOutbox drains the session's outbox for this client and writes
// each packet to the socket.
func (c *ServerConn) dispatchOutbox(id protocol.ClientID, outbox <-chan protocol.ServerPacket, done chan<- struct{}) {
	defer close(done)

	limiter := c.sess.Limiter(id)

	for {
		select {
		case <-c.ctx.Done():
			return
		case pkt, ok := <-outbox:
			if !ok {
				return
			}
			if limiter != nil {
				if err := limiter.Wait(c.ctx); err != nil {
					return
				}
			}
			if err := c.writeFrame(c.ctx, func(w io.Writer) error {
				return c.codec.EncodeServerPacket(w, pkt)
			}); err != nil {
				logger.Error("transport: write to client %d: %v", id, err)
				c.cancel()
				return
			}
		}
	}
}

func (c *ServerConn) writeFrame(ctx context.Context, encode func(io.Writer) error) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageBinary, buf.Bytes())
}
