// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package jarr incrementally parses a top-level JSON array from a chunked
// byte source, decoding elements into Go values as chunk boundaries allow.
// It never requires the whole document in memory: each pull from the source
// yields whatever complete elements the buffered bytes contain, and a
// partial trailing element is simply rescanned once more bytes arrive.
// Only UTF-8 encoding is supported.
//
// # Sources
//
// A ChunkSource provides a growing window of buffered bytes and is told
// after each parsing pass how much was consumed (may be released) and how
// much was examined (must be re-delivered).  ReaderSource adapts any
// io.Reader, BytesSource serves an in-memory document, and ChanSource
// reads chunks from a channel.  The compress subpackage adapts gzip, zstd,
// and lz4 streams, and ThrottledSource rate-limits pulls from any source.
//
// # Decoders
//
// Elements are decoded by a Decoder implementation.  RawDecoder yields raw
// bytes, ReflectDecoder works on any Go type via reflection, a compiled
// Plan amortizes struct shape analysis across elements, and BSONDecoder
// parses MongoDB Extended JSON.  Field names match case-insensitively by
// default.
//
// # Relaxed syntax
//
// Strict RFC 8259 by default.  Comments and trailing commas can be enabled
// per stream.  A leading UTF-8 byte-order mark is skipped; UTF-16 and
// UTF-32 marks are rejected.
package jarr
