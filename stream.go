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

	"github.com/xdg-go/jarr/internal/pool"
)

// DefaultBufferCapacity is the initial per-cycle element buffer capacity
// unless configured otherwise.
const DefaultBufferCapacity = 16

type streamState uint8

const (
	stateAwaitingArray streamState = iota
	stateInsideArray
	stateDone
	stateFailed
)

// Stream incrementally decodes the elements of a top-level JSON array pulled
// from a ChunkSource.  Elements are emitted in array order as soon as their
// bytes are complete; the array is never materialized.  Input before the
// first array-start is skipped, and input after the matching array-end is
// never examined.
//
// A Stream is owned by a single goroutine for its lifetime.
type Stream[T any] struct {
	src        ChunkSource
	dec        Decoder[T]
	tokOpts    TokenizerOptions
	initialCap int

	state     streamState
	tokState  TokenizerState
	baseDepth int
	elemStart int   // window offset of an in-progress container element, -1 if none
	rescan    int   // window offset where scanning resumes
	absBase   int64 // stream offset of the window start

	buf    *pool.Buffer[T]
	served int
	err    error
	closed bool
}

// NewStream returns a stream over src decoding each array element with dec.
func NewStream[T any](src ChunkSource, dec Decoder[T]) *Stream[T] {
	return &Stream[T]{
		src:        src,
		dec:        dec,
		tokOpts:    TokenizerOptions{MaxDepth: DefaultMaxDepth},
		initialCap: DefaultBufferCapacity,
		elemStart:  -1,
	}
}

// MaxDepth sets the maximum allowed nesting depth.  The default is 200.
func (s *Stream[T]) MaxDepth(n int) {
	s.tokOpts.MaxDepth = n
}

// CommentHandling toggles how comments in the input are treated.  The
// default rejects them.
func (s *Stream[T]) CommentHandling(m CommentMode) {
	s.tokOpts.Comments = m
}

// AllowTrailingCommas toggles whether a trailing comma before a closing
// bracket or brace is accepted.  The default rejects them.
func (s *Stream[T]) AllowTrailingCommas(b bool) {
	s.tokOpts.AllowTrailingCommas = b
}

// InitialCapacity sets the initial capacity of the per-cycle element buffer.
// The default is 16.
func (s *Stream[T]) InitialCapacity(n int) {
	if n > 0 {
		s.initialCap = n
	}
}

// Next returns the next decoded element.  It returns io.EOF once the array's
// closing bracket has been consumed (or the input ends before any array
// starts).  Errors are sticky: a SyntaxError, DecodeError, source fault, or
// context error ends the stream, but elements decoded before the failure are
// still returned first.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if s.buf != nil && s.served < len(s.buf.Elems) {
			v := s.buf.Elems[s.served]
			s.served++
			return v, nil
		}
		if s.err != nil {
			s.release()
			return zero, s.err
		}
		if s.closed || s.state == stateDone {
			s.release()
			return zero, io.EOF
		}
		if err := s.fill(ctx); err != nil {
			s.err = err
		}
	}
}

// Close releases the stream's pooled buffer.  It is safe to call multiple
// times and after Next has returned an error or io.EOF.
func (s *Stream[T]) Close() error {
	s.closed = true
	s.release()
	return nil
}

func (s *Stream[T]) release() {
	if s.buf != nil {
		pool.Release(s.buf)
		s.buf = nil
		s.served = 0
	}
}

// fill runs one pull-tokenize-decode cycle, appending decoded elements to
// the cycle buffer.
func (s *Stream[T]) fill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.src.Read(ctx)
	if err != nil {
		return err
	}
	w := res.Data
	if len(w) == 0 && res.EOF && s.state == stateAwaitingArray {
		// Empty source, or input ended without an array ever starting.
		s.state = stateDone
		return nil
	}

	if s.buf == nil {
		s.buf = pool.Acquire[T](s.initialCap)
	}
	s.buf.Elems = s.buf.Elems[:0]
	s.served = 0

	tk := NewTokenizer(w[s.rescan:], res.EOF, s.tokState, &s.tokOpts)
	doneEnd := -1
	var failure error
	for {
		tok, ok, err := tk.Next()
		if err != nil {
			var se *SyntaxError
			if errors.As(err, &se) {
				se.Offset += s.absBase + int64(s.rescan)
			}
			failure = err
			break
		}
		if !ok {
			break
		}
		tok.Start += s.rescan
		tok.End += s.rescan
		stop, err := s.apply(w, tok)
		if err != nil {
			failure = err
			break
		}
		if stop {
			doneEnd = tok.End
			break
		}
	}
	s.tokState = tk.State()
	scanned := s.rescan + tk.Scanned()
	if doneEnd < 0 && failure == nil && res.EOF && s.state == stateAwaitingArray {
		// Input ended without an array ever starting.
		s.state = stateDone
	}

	var consumed, examined int
	if doneEnd >= 0 {
		// Stop at the array's closing bracket; trailing bytes are never
		// examined.
		s.state = stateDone
		consumed, examined = doneEnd, doneEnd
	} else {
		examined = len(w)
		if s.elemStart >= 0 {
			consumed = s.elemStart
		} else {
			consumed = scanned
		}
	}
	if aerr := s.src.Advance(consumed, examined); aerr != nil && failure == nil {
		failure = aerr
	}
	s.absBase += int64(consumed)
	s.rescan = scanned - consumed
	if s.elemStart >= 0 {
		s.elemStart -= consumed
	}

	if failure != nil {
		s.state = stateFailed
		return failure
	}
	return nil
}

// apply advances the stream state machine by one token.  It reports true
// when the token closed the streamed array.
func (s *Stream[T]) apply(w []byte, tok Token) (bool, error) {
	switch s.state {
	case stateAwaitingArray:
		if tok.Kind == KindArrayStart {
			s.state = stateInsideArray
			s.baseDepth = tok.Depth
		}
	case stateInsideArray:
		switch {
		case tok.Depth == s.baseDepth-1 && tok.Kind == KindArrayEnd:
			return true, nil
		case tok.Depth == s.baseDepth && tok.Kind.IsValue() &&
			tok.Kind != KindObjectStart && tok.Kind != KindArrayStart:
			return false, s.emit(w, tok.Start, tok.End)
		case tok.Depth == s.baseDepth+1 && s.elemStart < 0 &&
			(tok.Kind == KindObjectStart || tok.Kind == KindArrayStart):
			s.elemStart = tok.Start
		case tok.Depth == s.baseDepth &&
			(tok.Kind == KindObjectEnd || tok.Kind == KindArrayEnd):
			start := s.elemStart
			s.elemStart = -1
			return false, s.emit(w, start, tok.End)
		}
	}
	return false, nil
}

// emit decodes one complete element span and appends it to the cycle
// buffer, doubling the buffer's capacity when full.
func (s *Stream[T]) emit(w []byte, start, end int) error {
	v, err := s.dec.Decode(w[start:end])
	if err != nil {
		return &DecodeError{Offset: s.absBase + int64(start), Err: err}
	}
	if len(s.buf.Elems) == cap(s.buf.Elems) {
		s.buf = pool.Grow(s.buf)
	}
	s.buf.Elems = append(s.buf.Elems, v)
	return nil
}

// DecodeAll decodes every element of the JSON array in data.  It is the
// whole-buffer convenience equivalent of draining a Stream over a
// BytesSource.
func DecodeAll[T any](data []byte, dec Decoder[T]) ([]T, error) {
	s := NewStream[T](NewBytesSource(data), dec)
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
