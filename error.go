package jarr

import "fmt"

// excerptLen is how much trailing context a SyntaxError captures from the
// input at the point of failure.
const excerptLen = 20

// SyntaxError records a JSON grammar violation.  Offset is the byte offset
// into the input stream at which the error was detected.  A short excerpt of
// the input following the offset is included in the message when available.
type SyntaxError struct {
	Offset  int64
	msg     string
	excerpt string
}

func (e *SyntaxError) Error() string {
	if e.excerpt != "" {
		return fmt.Sprintf("syntax error: %s at offset %d, near %q", e.msg, e.Offset, e.excerpt)
	}
	return fmt.Sprintf("syntax error: %s at offset %d", e.msg, e.Offset)
}

// syntaxErrorAt builds a SyntaxError with an excerpt taken from data at off.
// The offset is span-relative; the stream driver rebases it to a stream
// offset before surfacing the error.
func syntaxErrorAt(data []byte, off int, msg string) *SyntaxError {
	end := off + excerptLen
	if end > len(data) {
		end = len(data)
	}
	var excerpt string
	if off >= 0 && off < end {
		excerpt = string(data[off:end])
	}
	return &SyntaxError{Offset: int64(off), msg: msg, excerpt: excerpt}
}

// DecodeError records a syntactically valid element that could not be
// converted to the target type.  Offset is the byte offset of the element in
// the input stream.
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
