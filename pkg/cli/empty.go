package cli

import "strings"

// emptyFile stands in for a journal that has not been written yet.
type emptyFile struct {
	*strings.Reader
}

func newEmptyFile() emptyFile {
	return emptyFile{strings.NewReader("")}
}

func (emptyFile) Close() error { return nil }
