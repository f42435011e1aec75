package entries

import "fmt"

// Position is where a Cursor sits. It is either a byte offset, always the
// end of the line most recently read (equivalently the start of the next
// one), or PastEnd after a forward read found nothing.
type Position struct {
	offset  int64
	pastEnd bool
}

// PastEnd is the position after a Next that returned no entry.
var PastEnd = Position{pastEnd: true}

// Offset returns a Position at byte offset n.
func Offset(n int64) Position {
	return Position{offset: n}
}

// IsPastEnd reports whether p is the PastEnd sentinel.
func (p Position) IsPastEnd() bool {
	return p.pastEnd
}

// Offset returns the byte offset and true, or 0 and false for PastEnd.
func (p Position) Offset() (int64, bool) {
	if p.pastEnd {
		return 0, false
	}
	return p.offset, true
}

func (p Position) String() string {
	if p.pastEnd {
		return "past-end"
	}
	return fmt.Sprintf("offset(%d)", p.offset)
}
