// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

// Kind identifies the lexical class of a token.
type Kind uint8

const (
	KindNone Kind = iota
	KindObjectStart
	KindObjectEnd
	KindArrayStart
	KindArrayEnd
	KindKey
	KindString
	KindNumber
	KindTrue
	KindFalse
	KindNull
)

var kindNames = [...]string{
	KindNone:        "none",
	KindObjectStart: "object",
	KindObjectEnd:   "end of object",
	KindArrayStart:  "array",
	KindArrayEnd:    "end of array",
	KindKey:         "key",
	KindString:      "string",
	KindNumber:      "number",
	KindTrue:        "true",
	KindFalse:       "false",
	KindNull:        "null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsValue reports whether k starts a JSON value (container or scalar).
func (k Kind) IsValue() bool {
	switch k {
	case KindObjectStart, KindArrayStart, KindString, KindNumber, KindTrue, KindFalse, KindNull:
		return true
	}
	return false
}

// Token is one lexical unit recognized by the tokenizer.  Start and End are
// byte offsets into the scanned span; End is just past the last byte of the
// token.  Depth is the container nesting depth after the token applies, so a
// top-level '[' has Depth 1 and its matching ']' has Depth 0.
type Token struct {
	Kind  Kind
	Start int
	End   int
	Depth int
}

// CommentMode controls how the tokenizer treats // and /* */ sequences.
type CommentMode uint8

const (
	// CommentsDisallow rejects comments as a syntax error.  The default.
	CommentsDisallow CommentMode = iota
	// CommentsSkip treats comments as insignificant whitespace.
	CommentsSkip
	// CommentsAllow accepts comments.  Comments are never surfaced as
	// tokens, so this behaves like CommentsSkip.
	CommentsAllow
)

// DefaultMaxDepth is the maximum nesting depth allowed unless configured
// otherwise.
const DefaultMaxDepth = 200

// TokenizerOptions configures lenient parsing behaviors.  The zero value is
// strict JSON with the default depth limit.
type TokenizerOptions struct {
	Comments            CommentMode
	AllowTrailingCommas bool
	MaxDepth            int
}

// Grammar phases.  The phase plus the container stack fully determine what
// byte classes are acceptable next.
const (
	phaseTopValue   uint8 = iota // expecting a top-level value
	phaseFirstElem               // after '[': value or ']'
	phaseElem                    // after ',' in an array: value
	phaseElemNext                // after an array value: ',' or ']'
	phaseFirstKey                // after '{': key or '}'
	phaseKey                     // after ',' in an object: key
	phaseColon                   // after a key: ':'
	phaseObjValue                // after ':': value
	phaseMemberNext              // after an object value: ',' or '}'
)

// TokenizerState is the opaque continuation of an interrupted scan.  A
// tokenizer seeded with a saved state resumes exactly where the prior one
// stopped, provided the new span starts at the prior tokenizer's Scanned
// offset.  The zero value starts a fresh scan.
type TokenizerState struct {
	phase   uint8
	started bool
	stack   []bool // true = object, false = array
}

// Tokenizer is a resumable lexical scanner over a single byte span.  It
// recognizes token boundaries and kinds only; decoding token content is the
// decoder's job.
type Tokenizer struct {
	data    []byte
	final   bool
	opts    TokenizerOptions
	phase   uint8
	started bool
	stack   []bool
	pos     int
	scanned int
	err     error
}

// NewTokenizer returns a tokenizer over data.  final indicates that data is
// the last span of the whole input.  state resumes an interrupted scan; pass
// the zero TokenizerState to start fresh.  A nil opts uses strict defaults.
func NewTokenizer(data []byte, final bool, state TokenizerState, opts *TokenizerOptions) *Tokenizer {
	t := &Tokenizer{
		data:    data,
		final:   final,
		phase:   state.phase,
		started: state.started,
		stack:   append([]bool(nil), state.stack...),
	}
	if opts != nil {
		t.opts = *opts
	}
	if t.opts.MaxDepth <= 0 {
		t.opts.MaxDepth = DefaultMaxDepth
	}
	return t
}

// State returns the continuation needed to resume scanning on a later span.
func (t *Tokenizer) State() TokenizerState {
	return TokenizerState{
		phase:   t.phase,
		started: t.started,
		stack:   append([]bool(nil), t.stack...),
	}
}

// Scanned returns the offset just past the last fully scanned token.  Bytes
// past this offset have been examined but must be presented again on resume:
// an incomplete trailing token is rescanned once more bytes arrive.
func (t *Tokenizer) Scanned() int { return t.scanned }

// Next returns the next token in the span.  The boolean result is false when
// the span is exhausted; if the span was final, exhaustion anywhere other
// than a top-level value boundary is a SyntaxError.
func (t *Tokenizer) Next() (Token, bool, error) {
	if t.err != nil {
		return Token{}, false, t.err
	}
	if !t.started {
		ok, err := t.handleBOM()
		if err != nil {
			return Token{}, false, err
		}
		if !ok {
			return Token{}, false, nil
		}
	}

	for {
		// Skip whitespace and, when configured, comments.
		for t.pos < len(t.data) {
			switch t.data[t.pos] {
			case ' ', '\t', '\n', '\r':
				t.pos++
				t.scanned = t.pos
			case '/':
				if t.opts.Comments == CommentsDisallow {
					return Token{}, false, t.fail(t.pos, "comments are not allowed")
				}
				ok, err := t.scanComment()
				if err != nil {
					return Token{}, false, err
				}
				if !ok {
					return Token{}, false, nil
				}
			default:
				goto dispatch
			}
		}
		return t.atSpanEnd()

	dispatch:
		c := t.data[t.pos]
		switch t.phase {
		case phaseTopValue, phaseFirstElem, phaseElem, phaseObjValue:
			if c == ']' && (t.phase == phaseFirstElem || (t.phase == phaseElem && t.opts.AllowTrailingCommas)) {
				return t.closeContainer(']')
			}
			return t.scanValue()
		case phaseFirstKey, phaseKey:
			switch {
			case c == '"':
				return t.scanString(true)
			case c == '}' && (t.phase == phaseFirstKey || t.opts.AllowTrailingCommas):
				return t.closeContainer('}')
			default:
				return Token{}, false, t.fail(t.pos, "expecting key or end of object")
			}
		case phaseColon:
			if c != ':' {
				return Token{}, false, t.fail(t.pos, "expecting ':'")
			}
			t.pos++
			t.scanned = t.pos
			t.phase = phaseObjValue
		case phaseElemNext:
			switch c {
			case ',':
				t.pos++
				t.scanned = t.pos
				t.phase = phaseElem
			case ']':
				return t.closeContainer(']')
			default:
				return Token{}, false, t.fail(t.pos, "expecting value-separator or end of array")
			}
		case phaseMemberNext:
			switch c {
			case ',':
				t.pos++
				t.scanned = t.pos
				t.phase = phaseKey
			case '}':
				return t.closeContainer('}')
			default:
				return Token{}, false, t.fail(t.pos, "expecting value-separator or end of object")
			}
		}
	}
}

func (t *Tokenizer) atSpanEnd() (Token, bool, error) {
	if !t.final {
		return Token{}, false, nil
	}
	if len(t.stack) == 0 && t.phase == phaseTopValue {
		return Token{}, false, nil
	}
	return Token{}, false, t.fail(len(t.data), "unexpected end of input")
}

func (t *Tokenizer) scanValue() (Token, bool, error) {
	start := t.pos
	switch c := t.data[start]; {
	case c == '{', c == '[':
		if len(t.stack) >= t.opts.MaxDepth {
			return Token{}, false, t.fail(start, "maximum depth exceeded")
		}
		t.pos++
		t.scanned = t.pos
		kind := KindObjectStart
		if c == '{' {
			t.stack = append(t.stack, true)
			t.phase = phaseFirstKey
		} else {
			t.stack = append(t.stack, false)
			t.phase = phaseFirstElem
			kind = KindArrayStart
		}
		return Token{Kind: kind, Start: start, End: t.pos, Depth: len(t.stack)}, true, nil
	case c == '"':
		return t.scanString(false)
	case c == 't':
		return t.scanLiteral("true", KindTrue)
	case c == 'f':
		return t.scanLiteral("false", KindFalse)
	case c == 'n':
		return t.scanLiteral("null", KindNull)
	case c == '-' || (c >= '0' && c <= '9'):
		return t.scanNumber()
	default:
		return Token{}, false, t.fail(start, "invalid character looking for value")
	}
}

func (t *Tokenizer) closeContainer(delim byte) (Token, bool, error) {
	start := t.pos
	t.pos++
	t.scanned = t.pos
	t.stack = t.stack[:len(t.stack)-1]
	t.phase = t.afterValuePhase()
	kind := KindArrayEnd
	if delim == '}' {
		kind = KindObjectEnd
	}
	return Token{Kind: kind, Start: start, End: t.pos, Depth: len(t.stack)}, true, nil
}

func (t *Tokenizer) afterValuePhase() uint8 {
	if len(t.stack) == 0 {
		return phaseTopValue
	}
	if t.stack[len(t.stack)-1] {
		return phaseMemberNext
	}
	return phaseElemNext
}

func (t *Tokenizer) scanString(isKey bool) (Token, bool, error) {
	d := t.data
	start := t.pos
	i := start + 1
	for i < len(d) {
		switch c := d[i]; {
		case c == '"':
			i++
			t.pos = i
			t.scanned = i
			kind := KindString
			if isKey {
				kind = KindKey
				t.phase = phaseColon
			} else {
				t.phase = t.afterValuePhase()
			}
			return Token{Kind: kind, Start: start, End: i, Depth: len(t.stack)}, true, nil
		case c == '\\':
			if i+1 == len(d) {
				return t.stringIncomplete()
			}
			switch d[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				i += 2
			case 'u':
				if i+6 > len(d) {
					return t.stringIncomplete()
				}
				for _, h := range d[i+2 : i+6] {
					if !isHexDigit(h) {
						return Token{}, false, t.fail(i, "invalid unicode escape")
					}
				}
				i += 6
			default:
				return Token{}, false, t.fail(i+1, "unknown escape")
			}
		case c < 0x20:
			return Token{}, false, t.fail(i, "control character in string")
		default:
			i++
		}
	}
	return t.stringIncomplete()
}

func (t *Tokenizer) stringIncomplete() (Token, bool, error) {
	if t.final {
		return Token{}, false, t.fail(len(t.data), "unterminated string")
	}
	return Token{}, false, nil
}

func (t *Tokenizer) scanLiteral(lit string, kind Kind) (Token, bool, error) {
	start := t.pos
	avail := len(t.data) - start
	if avail < len(lit) {
		if !t.final && string(t.data[start:]) == lit[:avail] {
			return Token{}, false, nil
		}
		return Token{}, false, t.fail(start, "expecting "+lit)
	}
	if string(t.data[start:start+len(lit)]) != lit {
		return Token{}, false, t.fail(start, "expecting "+lit)
	}
	t.pos = start + len(lit)
	t.scanned = t.pos
	t.phase = t.afterValuePhase()
	return Token{Kind: kind, Start: start, End: t.pos, Depth: len(t.stack)}, true, nil
}

func (t *Tokenizer) scanNumber() (Token, bool, error) {
	d := t.data
	start := t.pos
	i := start
	if d[i] == '-' {
		i++
	}

	// Integer part
	if i == len(d) {
		return t.numberIncomplete()
	}
	switch {
	case d[i] == '0':
		i++
	case isDigit(d[i]):
		for i < len(d) && isDigit(d[i]) {
			i++
		}
	default:
		return Token{}, false, t.fail(i, "invalid number")
	}
	if i == len(d) && !t.final {
		return Token{}, false, nil
	}

	// Fraction part
	if i < len(d) && d[i] == '.' {
		i++
		if i == len(d) {
			return t.numberIncomplete()
		}
		if !isDigit(d[i]) {
			return Token{}, false, t.fail(i, "invalid number")
		}
		for i < len(d) && isDigit(d[i]) {
			i++
		}
		if i == len(d) && !t.final {
			return Token{}, false, nil
		}
	}

	// Exponent part
	if i < len(d) && (d[i] == 'e' || d[i] == 'E') {
		i++
		if i < len(d) && (d[i] == '+' || d[i] == '-') {
			i++
		}
		if i == len(d) {
			return t.numberIncomplete()
		}
		if !isDigit(d[i]) {
			return Token{}, false, t.fail(i, "invalid number")
		}
		for i < len(d) && isDigit(d[i]) {
			i++
		}
		if i == len(d) && !t.final {
			return Token{}, false, nil
		}
	}

	t.pos = i
	t.scanned = i
	t.phase = t.afterValuePhase()
	return Token{Kind: KindNumber, Start: start, End: i, Depth: len(t.stack)}, true, nil
}

func (t *Tokenizer) numberIncomplete() (Token, bool, error) {
	if t.final {
		return Token{}, false, t.fail(len(t.data), "invalid number")
	}
	return Token{}, false, nil
}

// scanComment advances past one comment.  Returns false when the span ends
// before the comment does and more input may arrive.
func (t *Tokenizer) scanComment() (bool, error) {
	d := t.data
	start := t.pos
	if start+1 == len(d) {
		if t.final {
			return false, t.fail(start, "invalid comment")
		}
		return false, nil
	}
	switch d[start+1] {
	case '/':
		i := start + 2
		for i < len(d) && d[i] != '\n' {
			i++
		}
		if i == len(d) && !t.final {
			return false, nil
		}
		t.pos = i
		t.scanned = i
		return true, nil
	case '*':
		for i := start + 2; i+1 < len(d); i++ {
			if d[i] == '*' && d[i+1] == '/' {
				t.pos = i + 2
				t.scanned = t.pos
				return true, nil
			}
		}
		if t.final {
			return false, t.fail(len(d), "unterminated comment")
		}
		return false, nil
	default:
		return false, t.fail(start, "invalid comment")
	}
}

// handleBOM runs once at stream start.  A UTF-8 BOM is skipped; because only
// UTF-8 is supported, other BOMs are errors.  Returns false when more bytes
// are needed to classify the preamble.
func (t *Tokenizer) handleBOM() (bool, error) {
	d := t.data
	if len(d) == 0 {
		if t.final {
			t.started = true
			return true, nil
		}
		return false, nil
	}
	switch d[0] {
	case 0xEF:
		if len(d) < 3 && !t.final {
			return false, nil
		}
		if len(d) >= 3 && d[1] == 0xBB && d[2] == 0xBF {
			t.pos = 3
			t.scanned = 3
		}
	case 0xFE, 0xFF:
		if len(d) < 2 && !t.final {
			return false, nil
		}
		if len(d) >= 2 && ((d[0] == 0xFE && d[1] == 0xFF) || (d[0] == 0xFF && d[1] == 0xFE)) {
			return false, t.fail(0, "detected unsupported UTF-16 BOM")
		}
	case 0x00:
		if len(d) < 4 && !t.final {
			return false, nil
		}
		if len(d) >= 4 && d[1] == 0x00 && d[2] == 0xFE && d[3] == 0xFF {
			return false, t.fail(0, "detected unsupported UTF-32 BOM")
		}
	}
	t.started = true
	return true, nil
}

func (t *Tokenizer) fail(off int, msg string) error {
	err := syntaxErrorAt(t.data, off, msg)
	t.err = err
	return err
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
