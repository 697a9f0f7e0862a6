// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

import (
	"context"
	"fmt"
	"io"
)

// defaultSourceBufferSize is the initial window capacity for ReaderSource.
// Sized to keep long scalars resident without rebuffering.
const defaultSourceBufferSize = 8192

// minReadSize is the smallest read a ReaderSource issues to the underlying
// reader after compacting or growing its window.
const minReadSize = 512

// ReadResult is one delivery of bytes from a ChunkSource.  Data is the whole
// unconsumed window and is valid only until the next Advance call.  EOF
// reports that the source will produce no bytes beyond Data.  Partial
// reports that the source returned already-buffered bytes without waiting
// for more.
type ReadResult struct {
	Data    []byte
	EOF     bool
	Partial bool
}

// ChunkSource supplies bytes to a stream on demand.
//
// Read returns the current unconsumed window.  It must block only when every
// byte of the window has already been examined and the source is not
// exhausted; in that case it must not return until at least one new byte has
// been appended behind the retained tail (or EOF or ctx expiry).
//
// Advance acknowledges a Read: bytes before consumed will never be needed
// again and may be discarded; bytes before examined have been inspected and
// must not be redelivered without new bytes appended after them.  Both
// offsets are relative to the window returned by the preceding Read and must
// satisfy 0 <= consumed <= examined <= len(window).
type ChunkSource interface {
	Read(ctx context.Context) (ReadResult, error)
	Advance(consumed, examined int) error
}

// ReaderSource adapts an io.Reader into a ChunkSource, retaining unconsumed
// bytes in a growing window buffer.  Cancellation is observed on entry to
// Read; a blocked underlying read is not interruptible.
type ReaderSource struct {
	r        io.Reader
	buf      []byte
	start    int
	end      int
	examined int // watermark relative to window start
	eof      bool
	err      error
}

var _ ChunkSource = (*ReaderSource)(nil)

// NewReaderSource returns a ChunkSource reading from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, buf: make([]byte, defaultSourceBufferSize)}
}

func (s *ReaderSource) Read(ctx context.Context) (ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return ReadResult{}, err
	}
	window := s.buf[s.start:s.end]
	if s.eof || s.examined < len(window) {
		return ReadResult{Data: window, EOF: s.eof, Partial: !s.eof}, nil
	}
	if s.err != nil {
		return ReadResult{}, s.err
	}
	if err := s.fill(); err != nil {
		return ReadResult{}, err
	}
	return ReadResult{Data: s.buf[s.start:s.end], EOF: s.eof}, nil
}

// fill appends at least one new byte to the window, compacting or growing
// the buffer first so there is room to read into.
func (s *ReaderSource) fill() error {
	if s.start > 0 {
		copy(s.buf, s.buf[s.start:s.end])
		s.end -= s.start
		s.start = 0
	}
	if len(s.buf)-s.end < minReadSize {
		nb := make([]byte, 2*len(s.buf)+minReadSize)
		copy(nb, s.buf[:s.end])
		s.buf = nb
	}
	for {
		n, err := s.r.Read(s.buf[s.end:])
		s.end += n
		switch {
		case err == io.EOF:
			s.eof = true
			return nil
		case err != nil:
			// Deliver any bytes read before surfacing the fault.
			if n > 0 {
				s.err = err
				return nil
			}
			s.err = err
			return err
		case n > 0:
			return nil
		}
	}
}

func (s *ReaderSource) Advance(consumed, examined int) error {
	if err := checkAdvance(consumed, examined, s.end-s.start); err != nil {
		return err
	}
	s.start += consumed
	s.examined = examined - consumed
	return nil
}

// BytesSource is a single-delivery ChunkSource over an in-memory payload.
type BytesSource struct {
	data     []byte
	examined int
}

var _ ChunkSource = (*BytesSource)(nil)

// NewBytesSource returns a ChunkSource that delivers b in one window.
func NewBytesSource(b []byte) *BytesSource {
	return &BytesSource{data: b}
}

func (s *BytesSource) Read(ctx context.Context) (ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return ReadResult{}, err
	}
	return ReadResult{Data: s.data, EOF: true}, nil
}

func (s *BytesSource) Advance(consumed, examined int) error {
	if err := checkAdvance(consumed, examined, len(s.data)); err != nil {
		return err
	}
	s.data = s.data[consumed:]
	s.examined = examined - consumed
	return nil
}

// ChanSource is a ChunkSource fed from a channel of byte chunks.  Read
// blocks on the channel, so cancellation can interrupt a stalled pull.
// Closing the channel marks the source exhausted.
type ChanSource struct {
	ch       <-chan []byte
	buf      []byte
	examined int
	eof      bool
}

var _ ChunkSource = (*ChanSource)(nil)

// NewChanSource returns a ChunkSource reading chunks from ch.
func NewChanSource(ch <-chan []byte) *ChanSource {
	return &ChanSource{ch: ch}
}

func (s *ChanSource) Read(ctx context.Context) (ReadResult, error) {
	for !s.eof && s.examined >= len(s.buf) {
		select {
		case <-ctx.Done():
			return ReadResult{}, ctx.Err()
		case chunk, ok := <-s.ch:
			if !ok {
				s.eof = true
			} else {
				s.buf = append(s.buf, chunk...)
			}
		}
	}
	return ReadResult{Data: s.buf, EOF: s.eof, Partial: !s.eof}, nil
}

func (s *ChanSource) Advance(consumed, examined int) error {
	if err := checkAdvance(consumed, examined, len(s.buf)); err != nil {
		return err
	}
	s.buf = s.buf[consumed:]
	s.examined = examined - consumed
	return nil
}

func checkAdvance(consumed, examined, window int) error {
	if consumed < 0 || consumed > examined || examined > window {
		return fmt.Errorf("jarr: invalid advance: consumed=%d examined=%d window=%d", consumed, examined, window)
	}
	return nil
}
