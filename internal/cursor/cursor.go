// Package cursor implements the editor's cursor: a position that can be
// expressed as (line, column) or as a flat buffer offset, kept consistent
// across arbitrary local motions and arbitrary remote operations.
package cursor

import (
	"strings"

	"github.com/tedsta/ted/internal/buffer"
	"github.com/tedsta/ted/internal/ot"
)

// Cursor is a position with three redundant coordinates: Line, Column and
// BufIndex. Any two determine the third relative to a given buffer; the
// Recompute* methods derive the third from the other two.
type Cursor struct {
	Line     int
	Column   int
	BufIndex int
}

// RecomputeIndexFromLineCol derives BufIndex (and clamps Column) from
// Line and Column. In insert mode, Column may equal the line's length
// (one past its last character); otherwise it is clamped to the line's
// last column.
func (c *Cursor) RecomputeIndexFromLineCol(buf *buffer.Buffer, insertMode bool) error {
	li, err := buf.LineInfoAt(c.Line)
	if err != nil {
		return err
	}

	clamp := li.LastColumn()
	if insertMode {
		clamp = li.Length
	}

	col := c.Column
	if col < 0 {
		col = 0
	}
	if col > clamp {
		col = clamp
	}
	c.Column = col
	c.BufIndex = li.Start + col
	return nil
}

// RecomputeColumnFromIndex derives Column from Line and BufIndex.
func (c *Cursor) RecomputeColumnFromIndex(buf *buffer.Buffer) error {
	li, err := buf.LineInfoAt(c.Line)
	if err != nil {
		return err
	}
	c.Column = c.BufIndex - li.Start
	return nil
}

// RecomputeLineAndColumnFromIndex derives Line and Column from BufIndex
// via binary search over the line index.
func (c *Cursor) RecomputeLineAndColumnFromIndex(buf *buffer.Buffer) error {
	lines := buf.LineIndex()

	lo, hi := 0, len(lines)-1
	line := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if lines[mid].Start <= c.BufIndex {
			line = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	c.Line = line
	c.Column = c.BufIndex - lines[line].Start
	return nil
}

// MoveUp moves the cursor to the previous line, preserving column intent
// as far as the target line allows.
func (c *Cursor) MoveUp(buf *buffer.Buffer) error {
	if c.Line > 0 {
		c.Line--
	}
	return c.RecomputeIndexFromLineCol(buf, false)
}

// MoveDown moves the cursor to the next line.
func (c *Cursor) MoveDown(buf *buffer.Buffer) error {
	if c.Line < buf.LineCount()-1 {
		c.Line++
	}
	return c.RecomputeIndexFromLineCol(buf, false)
}

// MoveLeft moves the cursor one column left, wrapping to the end of the
// previous line when already at column zero.
func (c *Cursor) MoveLeft(buf *buffer.Buffer) error {
	li, err := buf.LineInfoAt(c.Line)
	if err != nil {
		return err
	}

	if c.Column > 0 {
		switch {
		case c.Column <= li.Length:
			c.Column--
		case li.Length >= 1:
			c.Column = li.LastColumn()
		default:
			c.moveToPreviousLineEnd(buf)
			return c.RecomputeIndexFromLineCol(buf, false)
		}
	} else if c.Line > 0 {
		c.moveToPreviousLineEnd(buf)
	}

	return c.RecomputeIndexFromLineCol(buf, false)
}

func (c *Cursor) moveToPreviousLineEnd(buf *buffer.Buffer) {
	c.Line--
	li, err := buf.LineInfoAt(c.Line)
	if err != nil {
		c.Column = 0
		return
	}
	if li.Length > 0 {
		c.Column = li.Length
	} else {
		c.Column = 0
	}
}

// MoveRight moves the cursor one column right, wrapping to the start of
// the next line when already at the end of the current one.
func (c *Cursor) MoveRight(buf *buffer.Buffer) error {
	li, err := buf.LineInfoAt(c.Line)
	if err != nil {
		return err
	}

	if li.Length > 0 && c.Column < li.Length {
		c.Column++
	} else if c.Line < buf.LineCount()-1 {
		c.Line++
		c.Column = 0
	}

	return c.RecomputeIndexFromLineCol(buf, false)
}

// AdjustForOperation updates the cursor in response to an operation that
// has already been applied to buf (local or remote).
func (c *Cursor) AdjustForOperation(buf *buffer.Buffer, op ot.Operation) error {
	switch op.Kind {
	case ot.KindInsertChar:
		c.adjustInsert(op.Index, 1, string(op.Char))
	case ot.KindInsert:
		c.adjustInsert(op.Index, len(op.Text), op.Text)
	case ot.KindRemoveChar:
		c.adjustRemove(op.Index, op.Index, string(op.Char))
	case ot.KindRemove:
		c.adjustRemove(op.Index, op.End, op.Text)
	}
	return c.RecomputeColumnFromIndex(buf)
}

func (c *Cursor) adjustInsert(index, width int, text string) {
	if index <= c.BufIndex {
		c.BufIndex += width
		c.Line += newlineCount(text)
	}
}

func (c *Cursor) adjustRemove(start, end int, text string) {
	switch {
	case end < c.BufIndex:
		c.BufIndex -= end - start + 1
		c.Line -= newlineCount(text)
	case start <= c.BufIndex && c.BufIndex <= end:
		prefixLen := c.BufIndex - start
		c.Line -= newlineCount(text[:prefixLen])
		c.BufIndex = start
	}
}

func newlineCount(s string) int {
	return strings.Count(s, "\n")
}
