package surface

import (
	"strings"
	"sync"
)

// RichArea is a structured surface backed by a list of blocks. Offsets
// address a normalized projection where blocks are joined by single
// newlines; ReplaceRange edits the projection and the block structure is
// rebuilt from it.
type RichArea struct {
	mu       sync.Mutex
	id       string
	blocks   [][]rune
	selStart int
	selEnd   int

	attached bool
	focused  bool
	disabled bool
	readOnly bool
	rect     Rect
	visible  bool

	userEditFns []func()
	inputFns    []func()
}

func NewRichArea(id string) *RichArea {
	return &RichArea{id: id, attached: true, visible: true, blocks: [][]rune{{}}}
}

func (a *RichArea) ID() string { return a.id }

func (a *RichArea) Kind() Kind { return KindRich }

// Rich regions are never secret.
func (a *RichArea) Secret() bool { return false }

func (a *RichArea) projectionLocked() []rune {
	if len(a.blocks) == 0 {
		return nil
	}
	var out []rune
	for i, b := range a.blocks {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, b...)
	}
	return out
}

func (a *RichArea) rebuildLocked(projection []rune) {
	parts := strings.Split(string(projection), "\n")
	blocks := make([][]rune, len(parts))
	for i, p := range parts {
		blocks[i] = []rune(p)
	}
	a.blocks = blocks
}

func (a *RichArea) Selection() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selStart, a.selEnd
}

func (a *RichArea) SetSelection(start, end int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.projectionLocked())
	a.selStart = clamp(start, 0, n)
	a.selEnd = clamp(end, a.selStart, n)
}

func (a *RichArea) ReplaceRange(start, end int, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spliceLocked(start, end, text)
}

func (a *RichArea) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.projectionLocked())
}

func (a *RichArea) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return string(a.projectionLocked())
}

// Blocks returns a copy of the structured content.
func (a *RichArea) Blocks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.blocks))
	for i, b := range a.blocks {
		out[i] = string(b)
	}
	return out
}

func (a *RichArea) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached
}

func (a *RichArea) Focused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.focused
}

func (a *RichArea) Disabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disabled
}

func (a *RichArea) ReadOnly() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readOnly
}

func (a *RichArea) Bounds() Rect {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rect
}

func (a *RichArea) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible && a.attached
}

func (a *RichArea) ObserveUserEdits(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userEditFns = append(a.userEditFns, fn)
}

func (a *RichArea) ObserveInput(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputFns = append(a.inputFns, fn)
}

func (a *RichArea) NotifyInput() {
	a.mu.Lock()
	fns := append([]func(){}, a.inputFns...)
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (a *RichArea) Focus() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focused = true
}

func (a *RichArea) Blur() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focused = false
}

func (a *RichArea) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attached = false
	a.focused = false
}

func (a *RichArea) SetDisabled(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disabled = v
}

func (a *RichArea) SetReadOnly(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readOnly = v
}

func (a *RichArea) SetBounds(r Rect) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rect = r
}

func (a *RichArea) SetVisible(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = v
}

// HostSet replaces the whole content as a user edit.
func (a *RichArea) HostSet(text string, selStart, selEnd int) {
	a.mu.Lock()
	a.rebuildLocked([]rune(text))
	n := len(a.projectionLocked())
	a.selStart = clamp(selStart, 0, n)
	a.selEnd = clamp(selEnd, a.selStart, n)
	fns := append([]func(){}, a.userEditFns...)
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// HostType inserts text at the cursor as a user edit.
func (a *RichArea) HostType(text string) {
	a.mu.Lock()
	a.spliceLocked(a.selStart, a.selEnd, text)
	fns := append([]func(){}, a.userEditFns...)
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (a *RichArea) spliceLocked(start, end int, text string) {
	projection := a.projectionLocked()
	start = clamp(start, 0, len(projection))
	end = clamp(end, start, len(projection))
	insert := []rune(text)
	next := make([]rune, 0, len(projection)-(end-start)+len(insert))
	next = append(next, projection[:start]...)
	next = append(next, insert...)
	next = append(next, projection[end:]...)
	a.rebuildLocked(next)
	a.selStart = start + len(insert)
	a.selEnd = a.selStart
}
