package strategy

import "testing"

func TestLedgerFillsAccumulate(t *testing.T) {
	l := NewPositionLedger()

	if got := l.ApplyFill("IF2406.CFFEX", 5); got != 5 {
		t.Fatalf("after buy 5, position = %d, want 5", got)
	}
	if got := l.ApplyFill("IF2406.CFFEX", -8); got != -3 {
		t.Fatalf("after sell 8, position = %d, want -3", got)
	}
	if got := l.Position("IC2406.CFFEX"); got != 0 {
		t.Fatalf("unseen instrument position = %d, want 0", got)
	}
}

func TestLedgerTargetsIndependentOfPositions(t *testing.T) {
	l := NewPositionLedger()
	l.SetTarget("IF2406.CFFEX", 10)
	l.ApplyFill("IF2406.CFFEX", 4)

	if got := l.Target("IF2406.CFFEX"); got != 10 {
		t.Fatalf("target = %d, want 10", got)
	}
	if got := l.Position("IF2406.CFFEX"); got != 4 {
		t.Fatalf("position = %d, want 4", got)
	}
}

func TestLedgerMergeOverlaysWithoutClearing(t *testing.T) {
	l := NewPositionLedger()
	l.ApplyFill("a", 1)
	l.ApplyFill("b", 2)

	l.MergePositions(map[string]int64{"b": 7, "c": -3})

	if got := l.Position("a"); got != 1 {
		t.Fatalf("untouched position a = %d, want 1", got)
	}
	if got := l.Position("b"); got != 7 {
		t.Fatalf("merged position b = %d, want 7", got)
	}
	if got := l.Position("c"); got != -3 {
		t.Fatalf("merged position c = %d, want -3", got)
	}
}
