// Package presence tracks the other participants visible in a session:
// their display info and their cursor/selection positions, kept alive
// across operations that were not theirs.
package presence

import (
	"sync"

	"github.com/tedsta/ted/internal/ot"
	"github.com/tedsta/ted/internal/protocol"
)

// UserInfo is a connected participant's display information.
type UserInfo struct {
	Name string
	Hue  uint32
}

// Data is one participant's cursor and selection state, expressed as flat
// buffer offsets (matching the wire representation) rather than full
// line/column cursors — presence only needs to render a marker, not
// drive local motion.
type Data struct {
	Cursors    []int
	Selections [][2]int
}

// Table holds presence state for every participant currently in a
// session.
type Table struct {
	mu      sync.Mutex
	cursors map[protocol.ClientID]Data
	info    map[protocol.ClientID]UserInfo
}

// NewTable returns an empty presence table.
func NewTable() *Table {
	return &Table{
		cursors: make(map[protocol.ClientID]Data),
		info:    make(map[protocol.ClientID]UserInfo),
	}
}

// SetCursorData replaces a participant's cursor/selection state.
func (t *Table) SetCursorData(id protocol.ClientID, data Data) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors[id] = data
}

// SetInfo replaces a participant's display info.
func (t *Table) SetInfo(id protocol.ClientID, info UserInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info[id] = info
}

// Remove drops a participant's presence state entirely, on disconnect.
func (t *Table) Remove(id protocol.ClientID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cursors, id)
	delete(t.info, id)
}

// TransformAll rewrites every tracked cursor/selection position through
// op, keeping every other participant's presence consistent with an
// edit that was not theirs.
func (t *Table) TransformAll(op ot.Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, data := range t.cursors {
		newCursors := make([]int, len(data.Cursors))
		for i, pos := range data.Cursors {
			newCursors[i] = ot.TransformIndex(op, pos)
		}
		newSelections := make([][2]int, len(data.Selections))
		for i, sel := range data.Selections {
			newSelections[i] = [2]int{
				ot.TransformIndex(op, sel[0]),
				ot.TransformIndex(op, sel[1]),
			}
		}
		t.cursors[id] = Data{Cursors: newCursors, Selections: newSelections}
	}
}

// Snapshot returns copies of all cursor and info state, safe to send to a
// newly joining client.
func (t *Table) Snapshot() (map[protocol.ClientID]Data, map[protocol.ClientID]UserInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cursors := make(map[protocol.ClientID]Data, len(t.cursors))
	for k, v := range t.cursors {
		cursors[k] = v
	}
	info := make(map[protocol.ClientID]UserInfo, len(t.info))
	for k, v := range t.info {
		info[k] = v
	}
	return cursors, info
}
