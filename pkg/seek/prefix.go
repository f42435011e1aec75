package seek

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyPrefix is returned when a search is asked to compare zero bytes.
var ErrEmptyPrefix = errors.New("empty search prefix")

// Policy selects which boundary of a sorted file a prefix search returns.
type Policy int

const (
	// FirstGreaterOrEqual finds the first line whose prefix is >= the query.
	FirstGreaterOrEqual Policy = iota
	// LastLessThan finds the last line whose prefix is < the query.
	LastLessThan
	// LastLessOrEqual finds the last line whose prefix is <= the query.
	LastLessOrEqual
)

// String returns the name of the policy
func (p Policy) String() string {
	switch p {
	case FirstGreaterOrEqual:
		return "first_greater_or_equal"
	case LastLessThan:
		return "last_less_than"
	case LastLessOrEqual:
		return "last_less_or_equal"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Result describes the outcome of a prefix search.
type Result struct {
	// Offset is the start of the matching line. It is only meaningful when
	// Found is true.
	Offset int64
	Found  bool

	// Probes counts binary search probes.
	Probes int
	// TieRun counts the lines stepped over while resolving a run of lines
	// whose prefix equals the query. It grows linearly with the run length.
	TieRun int
}

// SeekFirst returns the start of the first line whose leading bytes are >=
// prefix. ok is false when every line sorts before prefix; the stream is then
// left at the end of the file.
func SeekFirst(r io.ReadSeeker, prefix []byte) (int64, bool, error) {
	res, err := SeekPrefix(r, prefix, FirstGreaterOrEqual)
	return res.Offset, res.Found, err
}

// SeekLast returns the start of the last line whose leading bytes are <
// prefix. ok is false when no line sorts before prefix; the stream is then
// left at offset 0.
func SeekLast(r io.ReadSeeker, prefix []byte) (int64, bool, error) {
	res, err := SeekPrefix(r, prefix, LastLessThan)
	return res.Offset, res.Found, err
}

// SeekPrefix binary searches a file of lines sorted by their leading bytes.
// Each probe snaps to a line start and compares exactly len(prefix) bytes
// against prefix. A probe that cannot read len(prefix) bytes before the end
// of the file is treated as lying past the last line. When a probe matches
// prefix exactly the neighbouring lines are scanned one at a time until the
// edge of the run of equal lines, so the first or last member of the run is
// returned rather than whichever one the search happened to land on.
//
// On success the stream is left at Result.Offset.
func SeekPrefix(r io.ReadSeeker, prefix []byte, policy Policy) (Result, error) {
	if len(prefix) == 0 {
		return Result{}, ErrEmptyPrefix
	}

	size, err := Size(r)
	if err != nil {
		return Result{}, err
	}

	s := &searcher{r: r, prefix: prefix, buf: make([]byte, len(prefix)), size: size}
	var res Result

	lo, hi := int64(0), size
	// upper is the start of the earliest line seen that sorts after prefix.
	upper := int64(-1)

	for lo < hi {
		mid := lo + (hi-lo)/2
		start, cmp, full, err := s.probe(mid)
		if err != nil {
			return res, err
		}
		res.Probes++

		switch {
		case !full:
			hi = start
		case cmp == 0:
			return s.resolveTie(start, policy, res)
		case cmp > 0:
			hi = start
			upper = start
		default:
			next, ok, err := s.nextLineStart(start)
			if err != nil {
				return res, err
			}
			if !ok {
				next = size
			}
			lo = next
		}
	}

	// No line matched prefix exactly. lo is now the boundary between lines
	// that sort before prefix and lines that sort after it.
	switch policy {
	case FirstGreaterOrEqual:
		if upper < 0 {
			return res, s.finish(size)
		}
		res.Offset, res.Found = upper, true
		return res, s.finish(upper)
	default:
		if lo == 0 {
			return res, s.finish(0)
		}
		start, err := lineStartBefore(r, lo-1)
		if err != nil {
			return res, err
		}
		res.Offset, res.Found = start, true
		return res, s.finish(start)
	}
}

type searcher struct {
	r      io.ReadSeeker
	prefix []byte
	buf    []byte
	size   int64
}

// probe snaps off to the start of its line and compares that line's prefix.
// full is false when the line ends at EOF before len(prefix) bytes.
func (s *searcher) probe(off int64) (start int64, cmp int, full bool, err error) {
	if _, err := s.r.Seek(off, io.SeekStart); err != nil {
		return 0, 0, false, fmt.Errorf("failed to seek to %d: %w", off, err)
	}
	start, err = StartOfCurrentLine(s.r)
	if err != nil {
		return 0, 0, false, err
	}
	cmp, full, err = s.compareAt(start)
	return start, cmp, full, err
}

func (s *searcher) compareAt(start int64) (int, bool, error) {
	if _, err := s.r.Seek(start, io.SeekStart); err != nil {
		return 0, false, fmt.Errorf("failed to seek to %d: %w", start, err)
	}
	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read prefix at %d: %w", start, err)
	}
	return bytes.Compare(s.buf, s.prefix), true, nil
}

func (s *searcher) nextLineStart(start int64) (int64, bool, error) {
	if _, err := s.r.Seek(start, io.SeekStart); err != nil {
		return 0, false, fmt.Errorf("failed to seek to %d: %w", start, err)
	}
	return StartOfNextLine(s.r)
}

// resolveTie walks from a line equal to prefix to the edge of its run.
func (s *searcher) resolveTie(start int64, policy Policy, res Result) (Result, error) {
	if policy == LastLessOrEqual {
		cur := start
		for {
			next, ok, err := s.nextLineStart(cur)
			if err != nil {
				return res, err
			}
			if !ok || next >= s.size {
				break
			}
			cmp, full, err := s.compareAt(next)
			if err != nil {
				return res, err
			}
			if !full || cmp != 0 {
				break
			}
			res.TieRun++
			cur = next
		}
		res.Offset, res.Found = cur, true
		return res, s.finish(cur)
	}

	// Walk backwards to the first line of the run. The line before it, if
	// any, is the answer for LastLessThan.
	cur := start
	for cur > 0 {
		prev, err := lineStartBefore(s.r, cur-1)
		if err != nil {
			return res, err
		}
		cmp, _, err := s.compareAt(prev)
		if err != nil {
			return res, err
		}
		if cmp != 0 {
			if policy == LastLessThan {
				res.Offset, res.Found = prev, true
				return res, s.finish(prev)
			}
			break
		}
		res.TieRun++
		cur = prev
	}

	if policy == LastLessThan {
		return res, s.finish(0)
	}
	res.Offset, res.Found = cur, true
	return res, s.finish(cur)
}

func (s *searcher) finish(off int64) error {
	if _, err := s.r.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to %d: %w", off, err)
	}
	return nil
}
