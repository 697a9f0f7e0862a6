package jarr

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledSource wraps a ChunkSource and caps the rate at which chunks are
// pulled from it.  The wait happens before delegating, so cancellation is
// observed while throttled.
type ThrottledSource struct {
	src     ChunkSource
	limiter *rate.Limiter
}

var _ ChunkSource = (*ThrottledSource)(nil)

// NewThrottledSource limits pulls from src to pullsPerSecond.  A zero or
// negative rate disables throttling.
func NewThrottledSource(src ChunkSource, pullsPerSecond float64) *ThrottledSource {
	limit := rate.Inf
	if pullsPerSecond > 0 {
		limit = rate.Limit(pullsPerSecond)
	}
	return &ThrottledSource{
		src:     src,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (s *ThrottledSource) Read(ctx context.Context) (ReadResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return ReadResult{}, err
	}
	return s.src.Read(ctx)
}

func (s *ThrottledSource) Advance(consumed, examined int) error {
	return s.src.Advance(consumed, examined)
}
