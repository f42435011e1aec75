// Package archive reads and writes compressed copies of journals.
//
// A compressed journal cannot be searched in place, so Open inflates it into
// memory and hands back a seekable reader over the plain text.
package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrUnknownFormat is returned for an unsupported codec name.
	ErrUnknownFormat = errors.New("unknown archive format")

	// ErrInvalidCompressedData is returned when an archive cannot be inflated.
	ErrInvalidCompressedData = errors.New("invalid compressed data")
)

// Codec identifies how a journal file is stored.
type Codec int

const (
	// CodecNone is a plain text journal.
	CodecNone Codec = iota
	// CodecZstd is a zstd frame.
	CodecZstd
	// CodecSnappy is a framed snappy stream.
	CodecSnappy
)

var (
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

// Extension returns the file name suffix conventionally used for c.
func (c Codec) Extension() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecSnappy:
		return ".sz"
	default:
		return ""
	}
}

// ParseCodec converts a name such as "zstd" into a Codec.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "none", "plain", "":
		return CodecNone, nil
	case "zstd", "zst":
		return CodecZstd, nil
	case "snappy", "sz":
		return CodecSnappy, nil
	default:
		return CodecNone, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Detect identifies the codec from the first bytes of a file.
func Detect(header []byte) Codec {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return CodecZstd
	case bytes.HasPrefix(header, snappyMagic):
		return CodecSnappy
	default:
		return CodecNone
	}
}

// NewCompressWriter returns a writer that compresses into w. Close must be
// called to flush the final frame; it does not close w.
func NewCompressWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		return zstd.NewWriter(w)
	case CodecSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, codec)
	}
}

// NewDecompressReader returns a reader that inflates r.
func NewDecompressReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
		}
		return zstdReadCloser{decoder}, nil
	case CodecSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, codec)
	}
}

// Export copies the journal in src to dst compressed with codec and
// returns the number of uncompressed bytes copied.
func Export(dst io.Writer, src io.Reader, codec Codec) (int64, error) {
	w, err := NewCompressWriter(dst, codec)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("failed to compress journal: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("failed to finish %s stream: %w", codec, err)
	}
	return n, nil
}

// File is a seekable journal, compressed on disk or not.
type File interface {
	io.ReadSeeker
	io.Closer
}

// Open opens the journal at path for reading. Plain files are returned as
// is; compressed files are inflated into memory.
func Open(path string) (File, Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, CodecNone, err
	}

	header, err := bufio.NewReader(f).Peek(len(snappyMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, CodecNone, fmt.Errorf("failed to read %s: %w", path, err)
	}
	codec := Detect(header)

	if codec == CodecNone {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, codec, err
		}
		return f, codec, nil
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, codec, err
	}
	data, err := Inflate(f, codec)
	if err != nil {
		return nil, codec, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return memFile{bytes.NewReader(data)}, codec, nil
}

// Inflate reads all of r through codec's decompressor.
func Inflate(r io.Reader, codec Codec) ([]byte, error) {
	dr, err := NewDecompressReader(r, codec)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	data, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
	}
	return data, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }
