// Package surface models the host-owned editable regions the engine writes
// into. The engine holds non-owning references and revalidates liveness
// before every mutation; host-originated edits are observable so speculative
// text is never written over a user's change.
package surface

// Kind distinguishes the two abstract surface shapes. The engine never
// branches on kind outside this package.
type Kind int

const (
	KindValue Kind = iota // plain-value field
	KindRich              // rich/structured region
)

func (k Kind) String() string {
	if k == KindRich {
		return "rich"
	}
	return "value"
}

// Rect is the target's bounding box in viewport coordinates.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Target is the cursor-addressable text region the engine mutates. All
// offsets are character offsets into a normalized text projection.
type Target interface {
	ID() string
	Kind() Kind

	Selection() (start, end int)
	SetSelection(start, end int)
	ReplaceRange(start, end int, text string)
	Len() int
	Text() string

	Attached() bool
	Focused() bool
	Disabled() bool
	ReadOnly() bool
	Secret() bool
	Bounds() Rect
	Visible() bool

	// ObserveUserEdits registers a callback fired on host-originated
	// mutations. Engine mutations via ReplaceRange never fire it.
	ObserveUserEdits(fn func())

	// NotifyInput fires the host input observers after an engine mutation,
	// so host-page frameworks observe the change as a normal edit.
	NotifyInput()
}

// Eligible reports whether a target may become a dictation target at all.
// Secret surfaces are never eligible.
func Eligible(t Target) bool {
	return t != nil && t.Attached() && !t.Disabled() && !t.ReadOnly() && !t.Secret()
}

// Live reports whether a previously-bound target may still be mutated.
func Live(t Target) bool {
	return Eligible(t) && t.Focused()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
