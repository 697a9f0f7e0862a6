// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// chunkSource returns a source delivering the given chunks one pull at a
// time, then EOF.
func chunkSource(chunks ...string) *ChanSource {
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- []byte(c)
	}
	close(ch)
	return NewChanSource(ch)
}

func drainStream[T any](s *Stream[T]) ([]T, error) {
	defer s.Close()
	var out []T
	for {
		v, err := s.Next(context.Background())
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

func TestStreamInts(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[1, 2, 3, 4, 5]`)), NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestStreamEmptyArray(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[]`)), NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStreamNoArray(t *testing.T) {
	t.Parallel()

	// Input without an array ends cleanly with no elements.
	for _, input := range []string{"", "   ", "null", `{"a": 1}`, "42"} {
		s := NewStream[int](NewBytesSource([]byte(input)), NewReflectDecoder[int](false))
		got, err := drainStream(s)
		require.NoError(t, err, "input %q", input)
		require.Empty(t, got, "input %q", input)
	}
}

func TestStreamElementSplitAcrossChunks(t *testing.T) {
	t.Parallel()

	src := chunkSource(`[{"id":1,"na`, `me":"A"},{"id":2,"name":"B"}]`)
	s := NewStream[record](src, NewReflectDecoder[record](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []record{{1, "A"}, {2, "B"}}, got)
}

func TestStreamWholeVsChunked(t *testing.T) {
	t.Parallel()

	doc := `[{"a":1,"b":[true,null]},"x",3.5,{"c":{"d":"e"}},[],-2e3]`
	want, err := DecodeAll([]byte(doc), RawDecoder{})
	require.NoError(t, err)

	for split := 0; split <= len(doc); split++ {
		src := chunkSource(doc[:split], doc[split:])
		s := NewStream[[]byte](src, RawDecoder{})
		got, err := drainStream(s)
		require.NoError(t, err, "split at %d", split)
		require.Equal(t, want, got, "split at %d", split)
	}
}

func TestStreamOneByteChunks(t *testing.T) {
	t.Parallel()

	doc := `[{"a":[1,2]},{"a":[]},3]`
	ch := make(chan []byte, len(doc))
	for i := 0; i < len(doc); i++ {
		ch <- []byte{doc[i]}
	}
	close(ch)

	s := NewStream[[]byte](NewChanSource(ch), RawDecoder{})
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte(`{"a":[1,2]}`), []byte(`{"a":[]}`), []byte(`3`)}, got)
}

func TestStreamReaderSource(t *testing.T) {
	t.Parallel()

	// One byte per underlying read exercises window compaction and resume.
	r := iotest.OneByteReader(strings.NewReader(`[10, 20, 30]`))
	s := NewStream[int](NewReaderSource(r), NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30}, got)
}

func TestStreamNestedArrayAsTarget(t *testing.T) {
	t.Parallel()

	// The first array-start anywhere in the input begins the stream, even
	// inside an enclosing object.  Bytes after its end are never examined.
	s := NewStream[int](NewBytesSource([]byte(`{"a": [1,2], "b": }`)), NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

// trackingSource records cumulative consumed bytes and the high-water mark
// of examined bytes in stream offsets.
type trackingSource struct {
	src         ChunkSource
	consumed    int
	maxExamined int
}

func (s *trackingSource) Read(ctx context.Context) (ReadResult, error) {
	return s.src.Read(ctx)
}

func (s *trackingSource) Advance(consumed, examined int) error {
	if abs := s.consumed + examined; abs > s.maxExamined {
		s.maxExamined = abs
	}
	s.consumed += consumed
	return s.src.Advance(consumed, examined)
}

func TestStreamTrailingBytesNotExamined(t *testing.T) {
	t.Parallel()

	input := `[1,2] this is not JSON at all`
	src := &trackingSource{src: NewBytesSource([]byte(input))}
	s := NewStream[int](src, NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
	require.Equal(t, 5, src.consumed)
	require.Equal(t, 5, src.maxExamined)
}

func TestStreamSyntaxErrorAfterElements(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[1, abc]`)), NewReflectDecoder[int](false))
	defer s.Close()

	v, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = s.Next(context.Background())
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	require.Equal(t, int64(4), se.Offset)

	// Errors are sticky.
	_, err2 := s.Next(context.Background())
	require.Equal(t, err, err2)
}

func TestStreamSyntaxErrorOffsetAcrossChunks(t *testing.T) {
	t.Parallel()

	// Stream is [11111111, x] with the number split across chunks; the
	// reported offset is relative to the whole stream.
	src := chunkSource(`[1111`, `1111, x]`)
	s := NewStream[int](src, NewReflectDecoder[int](false))
	defer s.Close()

	v, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 11111111, v)

	_, err = s.Next(context.Background())
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	require.Equal(t, int64(11), se.Offset)
}

func TestStreamDecodeError(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[1, "x"]`)), NewReflectDecoder[int](false))
	defer s.Close()

	v, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = s.Next(context.Background())
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, int64(4), de.Offset)
}

func TestStreamTruncatedInput(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[1, 2`)), NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.Equal(t, []int{1, 2}, got)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected end of input")
}

func TestStreamContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStream[int](NewBytesSource([]byte(`[1]`)), NewReflectDecoder[int](false))
	defer s.Close()
	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamCancelWhileStalled(t *testing.T) {
	t.Parallel()

	ch := make(chan []byte, 1)
	ch <- []byte(`[1,`)
	// Channel stays open: the source stalls after the first element.

	s := NewStream[int](NewChanSource(ch), NewReflectDecoder[int](false))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	v, err := s.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	timer := time.AfterFunc(10*time.Millisecond, cancel)
	defer timer.Stop()
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestStreamSourceFault(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	r := io.MultiReader(strings.NewReader(`[1, 2`), errReader{errBoom})
	s := NewStream[int](NewReaderSource(r), NewReflectDecoder[int](false))

	got, err := drainStream(s)
	require.Equal(t, []int{1, 2}, got)
	require.ErrorIs(t, err, errBoom)
}

func TestStreamComments(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte("[1, // one\n 2 /* two */]")), NewReflectDecoder[int](false))
	s.CommentHandling(CommentsSkip)
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

func TestStreamTrailingCommas(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[1, 2,]`)), NewReflectDecoder[int](false))
	s.AllowTrailingCommas(true)
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

func TestStreamMaxDepth(t *testing.T) {
	t.Parallel()

	s := NewStream[[]byte](NewBytesSource([]byte(`[[[1]]]`)), RawDecoder{})
	s.MaxDepth(2)
	_, err := drainStream(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum depth exceeded")
}

func TestStreamInitialCapacityGrowth(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteByte('[')
	want := make([]int, 100)
	for i := range want {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(i))
		want[i] = i
	}
	sb.WriteByte(']')

	s := NewStream[int](NewBytesSource([]byte(sb.String())), NewReflectDecoder[int](false))
	s.InitialCapacity(2)
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStreamClose(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte(`[1, 2, 3]`)), NewReflectDecoder[int](false))
	v, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Next(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestStreamBOM(t *testing.T) {
	t.Parallel()

	s := NewStream[int](NewBytesSource([]byte("\xEF\xBB\xBF[7, 8]")), NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{7, 8}, got)
}

func TestStreamThrottledSource(t *testing.T) {
	t.Parallel()

	src := NewThrottledSource(NewBytesSource([]byte(`[1, 2, 3]`)), 1000)
	s := NewStream[int](src, NewReflectDecoder[int](false))
	got, err := drainStream(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestDecodeAll(t *testing.T) {
	t.Parallel()

	got, err := DecodeAll([]byte(`["a", "b", "c"]`), NewReflectDecoder[string](false))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, got)

	// Elements before a failure are still returned.
	got, err = DecodeAll([]byte(`["a", "b"`), NewReflectDecoder[string](false))
	require.Error(t, err)
	require.Equal(t, []string{"a", "b"}, got)
}
