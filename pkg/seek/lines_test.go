package seek

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

const threeLines = "line 1\nline 2\nline 3"

func readLine(t *testing.T, r io.Reader) string {
	t.Helper()
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("Failed to read line: %v", err)
	}
	return line
}

func withChunkSize(t *testing.T, n int64) {
	t.Helper()
	old := chunkSize
	chunkSize = n
	t.Cleanup(func() { chunkSize = old })
}

func TestStartOfCurrentLine(t *testing.T) {
	tests := []struct {
		name string
		data string
		pos  int64
		want string
	}{
		{"empty file", "", 0, ""},
		{"start of first line", threeLines, 0, "line 1\n"},
		{"middle of first line", threeLines, 3, "line 1\n"},
		{"end of first line", threeLines, 6, "line 1\n"},
		{"start of second line", threeLines, 7, "line 2\n"},
		{"middle of second line", threeLines, 12, "line 2\n"},
		{"end of second line", threeLines, 13, "line 2\n"},
		{"start of third line", threeLines, 14, "line 3"},
		{"middle of third line", threeLines, 15, "line 3"},
		{"end of third line", threeLines, 19, "line 3"},
		{"past eof", threeLines, 26, "line 3"},
		{"last line when line ends with eof", threeLines + "\n", 20, "line 3\n"},
		{"single byte", "x", 0, "x"},
		{"single newline", "\n", 0, "\n"},
		{"empty line between lines", "a\n\nb", 2, "\n"},
	}

	for _, chunk := range []int64{4096, 2, 1} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withChunkSize(t, chunk)
				r := bytes.NewReader([]byte(tt.data))
				if _, err := r.Seek(tt.pos, io.SeekStart); err != nil {
					t.Fatalf("Failed to seek: %v", err)
				}
				if _, err := StartOfCurrentLine(r); err != nil {
					t.Fatalf("StartOfCurrentLine failed: %v", err)
				}
				if got := readLine(t, r); got != tt.want {
					t.Errorf("Expected %q, got %q", tt.want, got)
				}
			})
		}
	}
}

func TestStartOfCurrentLineOffsets(t *testing.T) {
	tests := []struct {
		data string
		pos  int64
		want int64
	}{
		{"", 0, 0},
		{"", 10, 0},
		{"x", 0, 0},
		{"x", 1, 0},
		{"x", 5, 0},
		{"x\n", 1, 0},
		{"x\n", 2, 2},
		{"x\n", 9, 2},
		{threeLines, 26, 14},
		{threeLines + "\n", 21, 21},
	}

	for _, tt := range tests {
		r := bytes.NewReader([]byte(tt.data))
		r.Seek(tt.pos, io.SeekStart)
		got, err := StartOfCurrentLine(r)
		if err != nil {
			t.Fatalf("StartOfCurrentLine(%q, %d) failed: %v", tt.data, tt.pos, err)
		}
		if got != tt.want {
			t.Errorf("StartOfCurrentLine(%q, %d): expected %d, got %d", tt.data, tt.pos, tt.want, got)
		}
		if pos, _ := r.Seek(0, io.SeekCurrent); pos != got {
			t.Errorf("StartOfCurrentLine(%q, %d): stream left at %d, expected %d", tt.data, tt.pos, pos, got)
		}
	}
}

func TestStartOfCurrentLineIdempotent(t *testing.T) {
	for _, data := range []string{threeLines, threeLines + "\n", "a\n\n\nb\n", "x"} {
		r := bytes.NewReader([]byte(data))
		for pos := int64(0); pos <= int64(len(data))+2; pos++ {
			r.Seek(pos, io.SeekStart)
			first, err := StartOfCurrentLine(r)
			if err != nil {
				t.Fatalf("StartOfCurrentLine failed: %v", err)
			}
			second, err := StartOfCurrentLine(r)
			if err != nil {
				t.Fatalf("StartOfCurrentLine failed: %v", err)
			}
			if first != second {
				t.Errorf("%q at %d: first call returned %d, second returned %d", data, pos, first, second)
			}
		}
	}
}

func TestSingleLineWithoutNewline(t *testing.T) {
	data := "2020-01-01T00:00:00.000000000+00:00,\"\"\"only\"\"\""
	r := bytes.NewReader([]byte(data))
	for pos := int64(0); pos <= int64(len(data)); pos++ {
		r.Seek(pos, io.SeekStart)
		got, err := StartOfCurrentLine(r)
		if err != nil {
			t.Fatalf("StartOfCurrentLine failed: %v", err)
		}
		if got != 0 {
			t.Errorf("Position %d: expected 0, got %d", pos, got)
		}
	}
}

func TestStartOfNextLine(t *testing.T) {
	tests := []struct {
		name   string
		pos    int64
		want   int64
		wantOK bool
	}{
		{"start of first line", 0, 7, true},
		{"middle of first line", 2, 7, true},
		{"end of first line", 6, 7, true},
		{"start of second line", 7, 14, true},
		{"middle of second line", 9, 14, true},
		{"end of second line", 13, 14, true},
		{"start of last line", 14, 0, false},
		{"middle of last line", 16, 0, false},
		{"end of last line", 19, 0, false},
	}

	for _, chunk := range []int64{4096, 3} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withChunkSize(t, chunk)
				r := bytes.NewReader([]byte(threeLines))
				r.Seek(tt.pos, io.SeekStart)
				got, ok, err := StartOfNextLine(r)
				if err != nil {
					t.Fatalf("StartOfNextLine failed: %v", err)
				}
				if ok != tt.wantOK {
					t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
				}
				if ok && got != tt.want {
					t.Errorf("Expected %d, got %d", tt.want, got)
				}
				pos, _ := r.Seek(0, io.SeekCurrent)
				if ok && pos != got {
					t.Errorf("Stream left at %d, expected %d", pos, got)
				}
				if !ok && pos != int64(len(threeLines)) {
					t.Errorf("Stream left at %d, expected end of file", pos)
				}
			})
		}
	}
}

func TestStartOfPrevLine(t *testing.T) {
	tests := []struct {
		name   string
		pos    int64
		want   int64
		wantOK bool
	}{
		{"start of first line", 0, 0, false},
		{"second letter of first line", 1, 0, false},
		{"middle of first line", 2, 0, false},
		{"end of first line", 6, 0, false},
		{"start of second line", 7, 0, true},
		{"middle of second line", 9, 0, true},
		{"end of second line", 13, 0, true},
		{"start of last line", 14, 7, true},
		{"middle of last line", 16, 7, true},
		{"end of last line", 19, 7, true},
		{"past eof", 40, 7, true},
	}

	for _, chunk := range []int64{4096, 1} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withChunkSize(t, chunk)
				r := bytes.NewReader([]byte(threeLines))
				r.Seek(tt.pos, io.SeekStart)
				got, ok, err := StartOfPrevLine(r)
				if err != nil {
					t.Fatalf("StartOfPrevLine failed: %v", err)
				}
				if ok != tt.wantOK {
					t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
				}
				if got != tt.want {
					t.Errorf("Expected %d, got %d", tt.want, got)
				}
				if pos, _ := r.Seek(0, io.SeekCurrent); pos != got {
					t.Errorf("Stream left at %d, expected %d", pos, got)
				}
			})
		}
	}
}

func TestSize(t *testing.T) {
	r := bytes.NewReader([]byte(threeLines))
	r.Seek(5, io.SeekStart)
	size, err := Size(r)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != int64(len(threeLines)) {
		t.Errorf("Expected size %d, got %d", len(threeLines), size)
	}
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 5 {
		t.Errorf("Expected position to be restored to 5, got %d", pos)
	}
}
