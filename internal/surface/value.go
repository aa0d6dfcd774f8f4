package surface

import "sync"

// ValueField is a plain-value surface: one flat run of text with a selection,
// the shape of a single-line input or textarea.
type ValueField struct {
	mu       sync.Mutex
	id       string
	value    []rune
	selStart int
	selEnd   int

	attached bool
	focused  bool
	disabled bool
	readOnly bool
	secret   bool
	rect     Rect
	visible  bool

	userEditFns []func()
	inputFns    []func()
}

func NewValueField(id string) *ValueField {
	return &ValueField{id: id, attached: true, visible: true}
}

func (f *ValueField) ID() string { return f.id }

func (f *ValueField) Kind() Kind { return KindValue }

func (f *ValueField) Selection() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selStart, f.selEnd
}

func (f *ValueField) SetSelection(start, end int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selStart = clamp(start, 0, len(f.value))
	f.selEnd = clamp(end, f.selStart, len(f.value))
}

func (f *ValueField) ReplaceRange(start, end int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spliceLocked(start, end, text)
}

func (f *ValueField) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.value)
}

func (f *ValueField) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.value)
}

func (f *ValueField) Attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached
}

func (f *ValueField) Focused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused
}

func (f *ValueField) Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

func (f *ValueField) ReadOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readOnly
}

func (f *ValueField) Secret() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secret
}

func (f *ValueField) Bounds() Rect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rect
}

func (f *ValueField) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible && f.attached
}

func (f *ValueField) ObserveUserEdits(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userEditFns = append(f.userEditFns, fn)
}

// ObserveInput registers a host-side listener for engine mutations.
func (f *ValueField) ObserveInput(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputFns = append(f.inputFns, fn)
}

func (f *ValueField) NotifyInput() {
	f.mu.Lock()
	fns := append([]func(){}, f.inputFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Host-side operations below model the owning page.

func (f *ValueField) Focus() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = true
}

func (f *ValueField) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = false
}

func (f *ValueField) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = false
	f.focused = false
}

func (f *ValueField) SetDisabled(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = v
}

func (f *ValueField) SetReadOnly(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readOnly = v
}

func (f *ValueField) SetSecret(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secret = v
}

func (f *ValueField) SetBounds(r Rect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rect = r
}

func (f *ValueField) SetVisible(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = v
}

// HostSet replaces the whole content as a user edit.
func (f *ValueField) HostSet(text string, selStart, selEnd int) {
	f.mu.Lock()
	f.value = []rune(text)
	f.selStart = clamp(selStart, 0, len(f.value))
	f.selEnd = clamp(selEnd, f.selStart, len(f.value))
	fns := append([]func(){}, f.userEditFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// HostType inserts text at the cursor as a user edit.
func (f *ValueField) HostType(text string) {
	f.mu.Lock()
	f.spliceLocked(f.selStart, f.selEnd, text)
	fns := append([]func(){}, f.userEditFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *ValueField) spliceLocked(start, end int, text string) {
	start = clamp(start, 0, len(f.value))
	end = clamp(end, start, len(f.value))
	insert := []rune(text)
	next := make([]rune, 0, len(f.value)-(end-start)+len(insert))
	next = append(next, f.value[:start]...)
	next = append(next, insert...)
	next = append(next, f.value[end:]...)
	f.value = next
	f.selStart = start + len(insert)
	f.selEnd = f.selStart
}
