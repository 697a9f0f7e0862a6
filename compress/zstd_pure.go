//go:build !jarr_cgo_zstd

package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// newZstdReader uses the pure-Go zstd implementation.  Concurrency is
// pinned to one so the decoder holds no background goroutines for callers
// that never drain the stream.
func newZstdReader(r io.Reader) (io.Reader, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}
