//go:build jarr_cgo_zstd

package compress

import (
	"io"

	"github.com/valyala/gozstd"
)

// newZstdReader uses the cgo zstd bindings.
func newZstdReader(r io.Reader) (io.Reader, error) {
	return gozstd.NewReader(r), nil
}
