package cursor

import (
	"testing"

	"github.com/tedsta/ted/internal/buffer"
	"github.com/tedsta/ted/internal/ot"
)

func newTestBuffer(t *testing.T) *buffer.Buffer {
	t.Helper()
	b, err := buffer.FromText("abc\nde\n\nf")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	return b
}

func TestRecomputeIndexFromLineCol(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 1, Column: 1}
	if err := c.RecomputeIndexFromLineCol(b, false); err != nil {
		t.Fatalf("RecomputeIndexFromLineCol: %v", err)
	}
	if c.BufIndex != 5 {
		t.Errorf("BufIndex = %d, want 5", c.BufIndex)
	}
}

func TestRecomputeIndexFromLineColClampsPastLineEnd(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 0, Column: 99}
	if err := c.RecomputeIndexFromLineCol(b, false); err != nil {
		t.Fatalf("RecomputeIndexFromLineCol: %v", err)
	}
	if c.Column != 2 {
		t.Errorf("Column = %d, want clamped to LastColumn() == 2", c.Column)
	}

	c2 := &Cursor{Line: 0, Column: 99}
	if err := c2.RecomputeIndexFromLineCol(b, true); err != nil {
		t.Fatalf("RecomputeIndexFromLineCol(insertMode): %v", err)
	}
	if c2.Column != 3 {
		t.Errorf("insert-mode Column = %d, want clamped to Length == 3", c2.Column)
	}
}

func TestRecomputeColumnFromIndex(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 1, BufIndex: 5}
	if err := c.RecomputeColumnFromIndex(b); err != nil {
		t.Fatalf("RecomputeColumnFromIndex: %v", err)
	}
	if c.Column != 1 {
		t.Errorf("Column = %d, want 1", c.Column)
	}
}

func TestRecomputeLineAndColumnFromIndex(t *testing.T) {
	b := newTestBuffer(t)
	cases := []struct {
		index        int
		wantLine     int
		wantColumn   int
	}{
		{0, 0, 0},
		{4, 1, 0},
		{5, 1, 1},
		{7, 2, 0},
		{8, 3, 0},
	}
	for _, tc := range cases {
		c := &Cursor{BufIndex: tc.index}
		if err := c.RecomputeLineAndColumnFromIndex(b); err != nil {
			t.Fatalf("RecomputeLineAndColumnFromIndex(%d): %v", tc.index, err)
		}
		if c.Line != tc.wantLine || c.Column != tc.wantColumn {
			t.Errorf("index %d: got Line=%d Column=%d, want Line=%d Column=%d",
				tc.index, c.Line, c.Column, tc.wantLine, tc.wantColumn)
		}
	}
}

func TestMoveRightWrapsToNextLine(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 0, Column: 3, BufIndex: 3}
	if err := c.MoveRight(b); err != nil {
		t.Fatalf("MoveRight: %v", err)
	}
	if c.Line != 1 || c.Column != 0 {
		t.Errorf("got Line=%d Column=%d, want Line=1 Column=0", c.Line, c.Column)
	}
}

func TestMoveLeftWrapsToPreviousLineEnd(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 1, Column: 0, BufIndex: 4}
	if err := c.MoveLeft(b); err != nil {
		t.Fatalf("MoveLeft: %v", err)
	}
	// Line 0 ("abc") has LastColumn() == 2 in non-insert mode, so landing
	// at its end clamps rather than sitting one past the last character.
	if c.Line != 0 || c.Column != 2 {
		t.Errorf("got Line=%d Column=%d, want Line=0 Column=2", c.Line, c.Column)
	}
}

func TestMoveUpAndDownClampColumn(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 0, Column: 3, BufIndex: 3}
	if err := c.MoveDown(b); err != nil {
		t.Fatalf("MoveDown: %v", err)
	}
	if c.Line != 1 || c.Column != 1 {
		t.Errorf("MoveDown: got Line=%d Column=%d, want Line=1 Column=1 (clamped)", c.Line, c.Column)
	}

	if err := c.MoveUp(b); err != nil {
		t.Fatalf("MoveUp: %v", err)
	}
	if c.Line != 0 {
		t.Errorf("MoveUp: got Line=%d, want 0", c.Line)
	}
}

func TestAdjustForOperationInsertBeforeCursorShiftsIndex(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 1, Column: 1, BufIndex: 5}

	op := ot.NewInsert(0, "XX")
	if err := op.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := c.AdjustForOperation(b, op); err != nil {
		t.Fatalf("AdjustForOperation: %v", err)
	}
	if c.BufIndex != 7 {
		t.Errorf("BufIndex = %d, want 7", c.BufIndex)
	}
}

func TestAdjustForOperationInsertAfterCursorLeavesIndex(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 0, Column: 0, BufIndex: 0}

	op := ot.NewInsert(8, "XX")
	if err := op.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := c.AdjustForOperation(b, op); err != nil {
		t.Fatalf("AdjustForOperation: %v", err)
	}
	if c.BufIndex != 0 {
		t.Errorf("BufIndex = %d, want unaffected 0", c.BufIndex)
	}
}

func TestAdjustForOperationRemoveEnclosingCursorSnapsToStart(t *testing.T) {
	b := newTestBuffer(t)
	c := &Cursor{Line: 1, Column: 1, BufIndex: 5}

	text, err := b.Remove(4, 6)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	op := ot.NewRemove(4, 6, text)
	if err := c.AdjustForOperation(b, op); err != nil {
		t.Fatalf("AdjustForOperation: %v", err)
	}
	if c.BufIndex != 4 {
		t.Errorf("BufIndex = %d, want 4 (snapped to removal start)", c.BufIndex)
	}
}
