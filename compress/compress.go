// Package compress adapts compressed byte streams into chunk sources.  The
// compression format can be stated explicitly or sniffed from the stream's
// magic bytes.
package compress

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"

	"github.com/xdg-go/jarr"
)

// Format identifies a stream compression format.
type Format uint8

const (
	Unknown Format = iota
	None
	Gzip
	Zstd
	LZ4
)

func (f Format) String() string {
	switch f {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// DetectFormat sniffs a stream prefix for a known compression magic number.
// Four bytes are enough for all supported formats; shorter prefixes may
// report Unknown.
func DetectFormat(prefix []byte) Format {
	switch {
	case bytes.HasPrefix(prefix, gzipMagic):
		return Gzip
	case bytes.HasPrefix(prefix, zstdMagic):
		return Zstd
	case bytes.HasPrefix(prefix, lz4Magic):
		return LZ4
	default:
		return Unknown
	}
}

// NewSource wraps r in the decompressor for the given format and returns a
// chunk source reading the decompressed bytes.  Format None passes r
// through unchanged.
func NewSource(r io.Reader, format Format) (jarr.ChunkSource, error) {
	switch format {
	case None:
		return jarr.NewReaderSource(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return jarr.NewReaderSource(zr), nil
	case Zstd:
		zr, err := newZstdReader(r)
		if err != nil {
			return nil, err
		}
		return jarr.NewReaderSource(zr), nil
	case LZ4:
		return jarr.NewReaderSource(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression format %q", format)
	}
}

// NewDetectedSource sniffs r's leading bytes and wraps it in the matching
// decompressor.  A stream with no recognized magic number is passed through
// as plain bytes.
func NewDetectedSource(r io.Reader) (jarr.ChunkSource, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}
	format := DetectFormat(prefix)
	if format == Unknown {
		format = None
	}
	return NewSource(br, format)
}
