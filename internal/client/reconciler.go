// Package client implements the Reconciler: the client-side half of the
// synchronization protocol. It applies the local user's edits
// speculatively, tracks which of them the server has not yet
// acknowledged, and rebases that pending tail whenever the server
// reports operations from other clients.
//
// Reconciler keeps a log of this client's own operations (an
// acknowledged prefix and a pending tail), a last-synced index, and a
// separate command queue, rebasing speculative local edits with
// ot.TransformAfter whenever the server reports new ops. It keeps no copy
// of the operations other clients contributed; those are applied to the
// buffer and not stored. A dirty flag tracks whether anything has changed since the last save.
package client

import (
	"github.com/tedsta/ted/internal/buffer"
	"github.com/tedsta/ted/internal/cursor"
	"github.com/tedsta/ted/internal/ot"
)

// Reconciler holds one client's view of the shared document: its local
// buffer and cursor, and the log of its own operations, whose tail is
// still awaiting acknowledgement.
type Reconciler struct {
	buf   *buffer.Buffer
	cur   cursor.Cursor
	dirty bool

	// localLog mirrors the client's own contribution to the timeline.
	// localLog[:pendingStart] is acknowledged; localLog[pendingStart:] is
	// speculative and will be rewritten by OnSync.
	localLog     []ot.Operation
	pendingStart int

	// undoLog holds the inverse of every op that was pending at the time
	// it was appended, kept separate from localLog: localLog exists purely
	// to drive rebase, undoLog exists purely to drive Undo/Redo.
	undoLog []ot.Operation
	redoLog []ot.Operation

	lastSyncIndex      int
	serverVersionKnown int

	opSendCursor  int
	cmdSendCursor int
	cmdLog        []string
}

// New creates a Reconciler seeded with the buffer and timeline length
// delivered in a join snapshot.
func New(initial *buffer.Buffer, timelineLength int) *Reconciler {
	return &Reconciler{
		buf:                initial,
		lastSyncIndex:      timelineLength,
		serverVersionKnown: timelineLength,
	}
}

// Buffer returns the reconciler's local buffer.
func (r *Reconciler) Buffer() *buffer.Buffer { return r.buf }

// Cursor returns the reconciler's local cursor.
func (r *Reconciler) Cursor() cursor.Cursor { return r.cur }

// SetCursor overwrites the local cursor, used by motion commands that
// live outside this package.
func (r *Reconciler) SetCursor(c cursor.Cursor) { r.cur = c }

// Dirty reports whether the buffer has unsaved local changes.
func (r *Reconciler) Dirty() bool { return r.dirty }

// ClearDirty marks the buffer as saved.
func (r *Reconciler) ClearDirty() { r.dirty = false }

// ServerVersionKnown returns the client_version to tag the next outbound
// request with.
func (r *Reconciler) ServerVersionKnown() int { return r.serverVersionKnown }

// ApplyLocal applies an operation produced by the local user: appended to
// localLog, applied to the buffer, and used to adjust the cursor.
func (r *Reconciler) ApplyLocal(op ot.Operation) error {
	if err := op.Apply(r.buf); err != nil {
		return err
	}
	if err := r.cur.AdjustForOperation(r.buf, op); err != nil {
		return err
	}
	r.localLog = append(r.localLog, op)
	r.undoLog = append(r.undoLog, op.Inverse())
	r.redoLog = nil
	r.dirty = true
	return nil
}

// PendingOps returns the locally applied ops not yet acknowledged,
// whether or not they have been handed to the transport yet.
func (r *Reconciler) PendingOps() []ot.Operation {
	return r.localLog[r.pendingStart:]
}

// OnResponse handles the server's acknowledgement that the oldest
// pending op was accepted.
func (r *Reconciler) OnResponse() {
	if r.pendingStart >= len(r.localLog) {
		return
	}
	r.pendingStart++
	r.lastSyncIndex++
	r.serverVersionKnown++
}

// OnSync rebases the speculative local tail against ops, the suffix of
// the timeline this client has not yet seen.
func (r *Reconciler) OnSync(ops []ot.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	pending := append([]ot.Operation(nil), r.localLog[r.pendingStart:]...)

	// Step 2: roll back every pending op, in reverse.
	for i := len(pending) - 1; i >= 0; i-- {
		if err := pending[i].Inverse().Apply(r.buf); err != nil {
			return err
		}
	}

	// Step 3: for each remote op, transform the surviving pending ops
	// against it (in reverse, so a cancellation doesn't force redundant
	// index adjustments on ops ahead of it), then apply the remote op.
	for _, remote := range ops {
		survivors := pending[:0:0]
		cancelled := make([]bool, len(pending))
		for i := len(pending) - 1; i >= 0; i-- {
			if cancelled[i] {
				continue
			}
			rewritten, alive := ot.TransformAfter(remote, pending[i])
			if !alive {
				cancelled[i] = true
				continue
			}
			pending[i] = rewritten
		}
		for i, op := range pending {
			if !cancelled[i] {
				survivors = append(survivors, op)
			}
		}
		pending = survivors

		if err := remote.Apply(r.buf); err != nil {
			return err
		}
		if err := r.cur.AdjustForOperation(r.buf, remote); err != nil {
			return err
		}
	}

	// Step 4: re-apply surviving pending ops, in order.
	for _, op := range pending {
		if err := op.Apply(r.buf); err != nil {
			return err
		}
		if err := r.cur.AdjustForOperation(r.buf, op); err != nil {
			return err
		}
	}

	// Step 5: keep the acknowledged prefix of localLog followed by the
	// surviving pending tail; the remote ops are not added to localLog.
	r.localLog = append(r.localLog[:r.pendingStart], pending...)
	r.pendingStart = len(r.localLog) - len(pending)
	r.lastSyncIndex += len(ops)
	r.serverVersionKnown += len(ops)
	r.dirty = r.pendingStart < len(r.localLog) || r.dirty

	// A cancelled pending op shrinks localLog; clamp opSendCursor so
	// PendingOpsToSend never slices past the new end. cmdLog is not
	// touched here, so cmdSendCursor needs no clamp.
	if r.opSendCursor > len(r.localLog) {
		r.opSendCursor = len(r.localLog)
	}

	return nil
}

// PendingOpsToSend returns the log entries not yet handed to the
// transport, advancing opSendCursor.
func (r *Reconciler) PendingOpsToSend() []ot.Operation {
	out := r.localLog[r.opSendCursor:]
	r.opSendCursor = len(r.localLog)
	return out
}

// ApplyCommand records a command-language string in the client's command
// log, to be flushed on the same sending discipline as ops.
func (r *Reconciler) ApplyCommand(cmd string) {
	r.cmdLog = append(r.cmdLog, cmd)
}

// PendingCommandsToSend returns the commands not yet handed to the
// transport, advancing cmdSendCursor.
func (r *Reconciler) PendingCommandsToSend() []string {
	out := r.cmdLog[r.cmdSendCursor:]
	r.cmdSendCursor = len(r.cmdLog)
	return out
}

// Undo reverts the most recent entry in undoLog. If that entry is still
// pending, the undo itself becomes a new pending op and will be rebased
// like any other: it is appended to localLog just as ApplyLocal appends
// an edit, with no further special-casing.
func (r *Reconciler) Undo() error {
	if len(r.undoLog) == 0 {
		return nil
	}
	inv := r.undoLog[len(r.undoLog)-1]
	r.undoLog = r.undoLog[:len(r.undoLog)-1]

	if err := inv.Apply(r.buf); err != nil {
		return err
	}
	if err := r.cur.AdjustForOperation(r.buf, inv); err != nil {
		return err
	}
	r.localLog = append(r.localLog, inv)
	r.redoLog = append(r.redoLog, inv.Inverse())
	r.dirty = true
	return nil
}

// Redo re-applies the most recently undone operation.
func (r *Reconciler) Redo() error {
	if len(r.redoLog) == 0 {
		return nil
	}
	op := r.redoLog[len(r.redoLog)-1]
	r.redoLog = r.redoLog[:len(r.redoLog)-1]

	if err := op.Apply(r.buf); err != nil {
		return err
	}
	if err := r.cur.AdjustForOperation(r.buf, op); err != nil {
		return err
	}
	r.localLog = append(r.localLog, op)
	r.undoLog = append(r.undoLog, op.Inverse())
	r.dirty = true
	return nil
}
