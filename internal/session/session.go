// Package session implements the server-side Linearizer: the single
// authority that owns one document's buffer and timeline, accepts
// operations from connected clients, and broadcasts the merged result.
//
// Each connected client gets a per-slot outbox channel fed by a
// notify-on-write pattern, with the session's buffer and timeline guarded
// by a single RWMutex. Operations are transformed against the timeline
// with ot.TransformAfter/ot.TransformIndex, and clients are addressed by
// the fixed-width protocol.ClientID rather than an opaque session token.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tedsta/ted/internal/buffer"
	"github.com/tedsta/ted/internal/ot"
	"github.com/tedsta/ted/internal/presence"
	"github.com/tedsta/ted/internal/protocol"
	"github.com/tedsta/ted/pkg/logger"
)

// ErrDocumentTooLarge is returned by Op when applying it would grow the
// buffer past the session's configured limit.
var ErrDocumentTooLarge = errors.New("session: document too large")

// ErrUnknownClient is returned by Op and Disconnect for a client id the
// session does not recognize, e.g. after it has already disconnected.
var ErrUnknownClient = errors.New("session: unknown client")

// ErrStaleVersion is returned by Op when the request's client_version is
// ahead of the timeline, which should never happen from a correct client.
var ErrStaleVersion = errors.New("session: client_version exceeds timeline length")

// clientData is the server's per-connection bookkeeping: the client's
// last-known timeline version, its outbound packet queue, and its
// send-rate limiter.
type clientData struct {
	version uint64
	outbox  chan protocol.ServerPacket
	limiter *rate.Limiter
}

// Config controls the resource limits and broadcast behavior of a
// Session.
type Config struct {
	MaxDocumentSize  int
	BroadcastBufSize int
	// SendRateLimit bounds how many packets per second pkg/transport
	// writes to a single client's socket (it waits on the client's limiter
	// before each write); packets are paced, not merged. Zero disables the
	// limit.
	SendRateLimit rate.Limit
	SendRateBurst int
}

// DefaultConfig returns a reasonable set of limits for a single-process
// deployment.
func DefaultConfig() Config {
	return Config{
		MaxDocumentSize:  10 << 20,
		BroadcastBufSize: 32,
		SendRateLimit:    50,
		SendRateBurst:    50,
	}
}

// Session is one document's authoritative state: buffer, timeline, and
// the set of currently connected clients.
type Session struct {
	mu       sync.RWMutex
	buf      *buffer.Buffer
	timeline []protocol.TimelineEntry
	clients  map[protocol.ClientID]*clientData
	presence *presence.Table

	cfg      Config
	nextID   atomic.Uint32
	lastEdit atomic.Int64
}

// New creates an empty session.
func New(cfg Config) *Session {
	return &Session{
		buf:      buffer.New(),
		clients:  make(map[protocol.ClientID]*clientData),
		presence: presence.NewTable(),
		cfg:      cfg,
	}
}

// FromSnapshot creates a session whose buffer starts out as text, seeding
// the timeline with a single system-authored insert so that any client
// joining later sees a consistent operation log.
func FromSnapshot(cfg Config, text string) (*Session, error) {
	s := New(cfg)
	if text == "" {
		return s, nil
	}
	b, err := buffer.FromText(text)
	if err != nil {
		return nil, fmt.Errorf("session: restore snapshot: %w", err)
	}
	s.buf = b
	s.timeline = append(s.timeline, protocol.TimelineEntry{
		ClientID: protocol.SystemClientID,
		Op:       ot.NewInsert(0, text),
	})
	return s, nil
}

// Join registers a new client, returning its assigned id and a snapshot
// of the current document and timeline.
func (s *Session) Join() (protocol.ClientID, protocol.JoinPacket, <-chan protocol.ServerPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := protocol.ClientID(s.nextID.Add(1) - 1)
	outbox := make(chan protocol.ServerPacket, s.cfg.BroadcastBufSize)

	var limiter *rate.Limiter
	if s.cfg.SendRateLimit > 0 {
		limiter = rate.NewLimiter(s.cfg.SendRateLimit, s.cfg.SendRateBurst)
	}
	s.clients[id] = &clientData{version: uint64(len(s.timeline)), outbox: outbox, limiter: limiter}

	timeline := make([]protocol.TimelineEntry, len(s.timeline))
	copy(timeline, s.timeline)

	pkt := protocol.JoinPacket{
		ClientID: id,
		Buffer:   s.buf.Text(),
		Timeline: timeline,
	}
	return id, pkt, outbox
}

// Disconnect removes a client from the session.
func (s *Session) Disconnect(id protocol.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.clients[id]
	if !ok {
		return
	}
	close(cd.outbox)
	delete(s.clients, id)
	s.presence.Remove(id)
}

// Limiter returns the rate limiter assigned to a connected client, for
// the transport layer's outbound dispatch loop to wait on before each
// write. It returns
// nil if the client is unknown or rate limiting is disabled.
func (s *Session) Limiter(id protocol.ClientID) *rate.Limiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cd, ok := s.clients[id]
	if !ok {
		return nil
	}
	return cd.limiter
}

// Presence returns the session's shared presence table.
func (s *Session) Presence() *presence.Table {
	return s.presence
}

// Text returns a copy of the current document text.
func (s *Session) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Text()
}

// Version returns the current timeline length.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.timeline))
}

// ClientCount returns the number of currently connected clients.
func (s *Session) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// LastEditTime returns when Op last successfully applied an operation,
// the zero time if never.
func (s *Session) LastEditTime() time.Time {
	ts := s.lastEdit.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(0, ts)
}

// Op rewrites an operation submitted by id, who last knew the timeline
// as of clientVersion, against every timeline entry it missed, then
// applies and appends it. It returns whether the operation survived transform
// (false means it was silently cancelled, not an error) and any error
// from an invalid version, a full document, or a buffer apply failure.
func (s *Session) Op(id protocol.ClientID, clientVersion uint64, op ot.Operation) (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.clients[id]
	if !ok {
		return false, ErrUnknownClient
	}
	if clientVersion > uint64(len(s.timeline)) {
		return false, ErrStaleVersion
	}

	// Step 1: catch-up sync, ahead of processing this op.
	if cd.version < uint64(len(s.timeline)) {
		s.sendSyncLocked(cd, cd.version)
		cd.version = uint64(len(s.timeline))
	}

	// Step 2: transform against concurrent ops by other clients.
	transformed := op
	for _, entry := range s.timeline[clientVersion:] {
		if entry.ClientID == id {
			continue
		}
		var alive bool
		transformed, alive = ot.TransformAfter(entry.Op, transformed)
		if !alive {
			logger.Debug("session: op from client %d cancelled by concurrent edit", id)
			return false, nil
		}
	}

	if s.cfg.MaxDocumentSize > 0 {
		if projected := projectedSize(s.buf.ByteLength(), transformed); projected > s.cfg.MaxDocumentSize {
			return false, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, projected)
		}
	}

	// Step 3: apply.
	if err := transformed.Apply(s.buf); err != nil {
		return false, fmt.Errorf("session: apply op: %w", err)
	}
	s.presence.TransformAll(transformed)
	s.lastEdit.Store(time.Now().UnixNano())

	// Step 4: append to timeline.
	s.timeline = append(s.timeline, protocol.TimelineEntry{ClientID: id, Op: transformed})

	// Step 5: acknowledge.
	s.sendLocked(cd, protocol.ServerPacket{Response: &protocol.ResponsePacket{}})
	cd.version = uint64(len(s.timeline))

	// Step 6: broadcast to everyone else lagging.
	for otherID, other := range s.clients {
		if otherID == id {
			continue
		}
		if other.version < uint64(len(s.timeline)) {
			s.sendSyncLocked(other, other.version)
			other.version = uint64(len(s.timeline))
		}
	}

	return true, nil
}

// sendSyncLocked sends the suffix starting at from as a Sync packet. The
// caller must hold s.mu.
func (s *Session) sendSyncLocked(cd *clientData, from uint64) {
	ops := make([]ot.Operation, 0, uint64(len(s.timeline))-from)
	for _, entry := range s.timeline[from:] {
		ops = append(ops, entry.Op)
	}
	s.sendLocked(cd, protocol.ServerPacket{Sync: &protocol.SyncPacket{Ops: ops}})
}

// sendLocked pushes a packet onto a client's outbox without blocking: a
// slow reader drops packets rather than stalling the linearizer, and is
// caught up by its next catch-up sync.
func (s *Session) sendLocked(cd *clientData, pkt protocol.ServerPacket) {
	select {
	case cd.outbox <- pkt:
	default:
		logger.Warn("session: client outbox full, dropping packet")
	}
}

// projectedSize returns the buffer length op would produce, computed
// without applying it so Op can reject an oversized edit before mutating
// the buffer.
func projectedSize(current int, op ot.Operation) int {
	switch op.Kind {
	case ot.KindInsertChar:
		return current + 1
	case ot.KindInsert:
		return current + len(op.Text)
	case ot.KindRemoveChar:
		return current - 1
	case ot.KindRemove:
		return current - len(op.Text)
	default:
		return current
	}
}
