package surface

import "testing"

func TestValueFieldReplaceRange(t *testing.T) {
	f := NewValueField("f1")
	f.ReplaceRange(0, 0, "hello world")
	if f.Text() != "hello world" {
		t.Fatalf("got %q", f.Text())
	}
	f.ReplaceRange(6, 11, "there")
	if f.Text() != "hello there" {
		t.Fatalf("got %q", f.Text())
	}
	if start, end := f.Selection(); start != 11 || end != 11 {
		t.Fatalf("cursor should follow insert, got %d..%d", start, end)
	}
}

func TestValueFieldClampsOffsets(t *testing.T) {
	f := NewValueField("f1")
	f.ReplaceRange(0, 0, "abc")
	f.ReplaceRange(100, 200, "x")
	if f.Text() != "abcx" {
		t.Fatalf("got %q", f.Text())
	}
	f.SetSelection(-5, 99)
	if start, end := f.Selection(); start != 0 || end != 4 {
		t.Fatalf("got %d..%d", start, end)
	}
}

func TestValueFieldRuneOffsets(t *testing.T) {
	f := NewValueField("f1")
	f.ReplaceRange(0, 0, "héllo")
	if f.Len() != 5 {
		t.Fatalf("expected 5 characters, got %d", f.Len())
	}
	f.ReplaceRange(1, 2, "e")
	if f.Text() != "hello" {
		t.Fatalf("got %q", f.Text())
	}
}

func TestValueFieldUserEditObserver(t *testing.T) {
	f := NewValueField("f1")
	var edits int
	f.ObserveUserEdits(func() { edits++ })

	f.ReplaceRange(0, 0, "engine text")
	if edits != 0 {
		t.Fatal("engine mutation must not fire user-edit observers")
	}
	f.HostType("user text")
	if edits != 1 {
		t.Fatalf("expected 1 user edit, got %d", edits)
	}
}

func TestValueFieldEligibility(t *testing.T) {
	f := NewValueField("f1")
	f.Focus()
	if !Live(f) {
		t.Fatal("expected live target")
	}
	f.SetSecret(true)
	if Eligible(f) {
		t.Fatal("secret fields are never eligible")
	}
	f.SetSecret(false)
	f.Detach()
	if Live(f) {
		t.Fatal("detached fields are not live")
	}
}

func TestRichAreaBlocksFollowProjection(t *testing.T) {
	a := NewRichArea("r1")
	a.ReplaceRange(0, 0, "first\nsecond")
	blocks := a.Blocks()
	if len(blocks) != 2 || blocks[0] != "first" || blocks[1] != "second" {
		t.Fatalf("got blocks %v", blocks)
	}
	if a.Text() != "first\nsecond" {
		t.Fatalf("got projection %q", a.Text())
	}
	if a.Len() != 12 {
		t.Fatalf("got length %d", a.Len())
	}
}

func TestRichAreaReplaceAcrossBlocks(t *testing.T) {
	a := NewRichArea("r1")
	a.ReplaceRange(0, 0, "one\ntwo\nthree")
	// Replace "two\nthree" with a single block.
	a.ReplaceRange(4, 13, "rest")
	if a.Text() != "one\nrest" {
		t.Fatalf("got %q", a.Text())
	}
	if len(a.Blocks()) != 2 {
		t.Fatalf("got blocks %v", a.Blocks())
	}
}

func TestRichAreaHostEditObserver(t *testing.T) {
	a := NewRichArea("r1")
	var edits int
	a.ObserveUserEdits(func() { edits++ })
	a.HostSet("typed by user", 13, 13)
	if edits != 1 {
		t.Fatalf("expected 1 user edit, got %d", edits)
	}
	if start, _ := a.Selection(); start != 13 {
		t.Fatalf("selection not applied, got %d", start)
	}
}

func TestNotifyInputReachesHostObservers(t *testing.T) {
	f := NewValueField("f1")
	var inputs int
	f.ObserveInput(func() { inputs++ })
	f.ReplaceRange(0, 0, "committed")
	f.NotifyInput()
	if inputs != 1 {
		t.Fatalf("expected 1 input notification, got %d", inputs)
	}
}
