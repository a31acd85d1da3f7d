package delta

import (
	"fmt"
)

// Replace describes the edit "rows [From, To) of the old sequence are replaced
// by AddElementsCount rows in the new sequence".
//
// The zero value is an empty edit.
type Replace struct {
	From             int `json:"from"`
	To               int `json:"to"`
	AddElementsCount int `json:"add_elements_count"`
}

// Empty is the edit that changes nothing.
var Empty = Replace{}

// NewReplace returns Replace{from, to, add}. It panics if the range is
// malformed, which is always a bug in the producer.
func NewReplace(from, to, add int) Replace {
	if from < 0 || to < from || add < 0 {
		panic(fmt.Sprintf("delta: malformed replace [%d, %d) +%d", from, to, add))
	}
	return Replace{From: from, To: to, AddElementsCount: add}
}

// IsEmpty reports whether the edit removes and adds nothing.
func (r Replace) IsEmpty() bool {
	return r.From == r.To && r.AddElementsCount == 0
}

// Removed returns the number of old rows the edit drops.
func (r Replace) Removed() int { return r.To - r.From }

// Shift returns how far rows after To move.
func (r Replace) Shift() int { return r.AddElementsCount - r.Removed() }

// DirtyRange returns the half-open range of new row indices a derived
// structure must recompute: [From, max(To, From+AddElementsCount)).
func (r Replace) DirtyRange() (from, to int) {
	return r.From, max(r.To, r.From+r.AddElementsCount)
}

// MapRow translates an old row index to its index after the edit. The second
// result is false when the row lies inside the replaced range.
func (r Replace) MapRow(old int) (int, bool) {
	switch {
	case old < r.From:
		return old, true
	case old >= r.To:
		return old + r.Shift(), true
	default:
		return 0, false
	}
}

// NewSize returns the length of a sequence of oldSize rows after the edit.
func (r Replace) NewSize(oldSize int) int { return oldSize + r.Shift() }

// Then composes r with a later edit next (expressed in the indices produced by
// r) into one edit covering both.
func (r Replace) Then(next Replace) Replace {
	if r.IsEmpty() {
		return next
	}
	if next.IsEmpty() {
		return r
	}
	// Cover both edits in the intermediate sequence, then map the end back.
	from := min(r.From, next.From)
	end := max(r.From+r.AddElementsCount, next.To)
	return Replace{
		From:             from,
		To:               end - r.Shift(),
		AddElementsCount: end - from + next.Shift(),
	}
}

// Widen extends r by n unchanged rows on each side, clamped to a sequence of
// oldSize rows. Listeners whose row values depend on neighboring rows use it
// to refresh the rows bordering an edit. An empty edit stays empty.
func (r Replace) Widen(n, oldSize int) Replace {
	if r.IsEmpty() {
		return r
	}
	from := max(r.From-n, 0)
	to := max(min(r.To+n, oldSize), r.To)
	return Replace{
		From:             from,
		To:               to,
		AddElementsCount: r.AddElementsCount + (r.From - from) + (to - r.To),
	}
}

func (r Replace) String() string {
	return fmt.Sprintf("[%d, %d) -> %d", r.From, r.To, r.AddElementsCount)
}

// Apply returns the sequence obtained by replacing old[r.From:r.To] with
// fresh. It returns an error if fresh does not hold AddElementsCount rows or
// the range falls outside old. old is not modified.
func Apply[T any](old []T, r Replace, fresh []T) ([]T, error) {
	if r.From < 0 || r.To < r.From || r.To > len(old) {
		return nil, fmt.Errorf("replace %s out of bounds for %d rows", r, len(old))
	}
	if len(fresh) != r.AddElementsCount {
		return nil, fmt.Errorf("replace %s expects %d rows, got %d", r, r.AddElementsCount, len(fresh))
	}
	out := make([]T, 0, len(old)+r.Shift())
	out = append(out, old[:r.From]...)
	out = append(out, fresh...)
	out = append(out, old[r.To:]...)
	return out, nil
}
