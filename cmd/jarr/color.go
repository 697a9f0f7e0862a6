package main

import (
	"io"

	"github.com/xdg-go/jarr"
)

// Some color ANSI codes
var (
	reset = []byte("\033[0m")

	green   = []byte("\033[32m")
	yellow  = []byte("\033[33m")
	blue    = []byte("\033[34m")
	magenta = []byte("\033[35m")
	cyan    = []byte("\033[36m")
)

func tokenColor(tok jarr.Token) []byte {
	switch tok.Kind {
	case jarr.KindKey:
		return cyan
	case jarr.KindString:
		return green
	case jarr.KindNumber:
		return yellow
	case jarr.KindTrue, jarr.KindFalse:
		return magenta
	case jarr.KindNull:
		return blue
	default:
		return nil
	}
}

// writeColored retokenizes one element and wraps scalar spans in ANSI
// colors.  Punctuation and whitespace pass through unchanged.
func writeColored(w io.Writer, data []byte) error {
	tk := jarr.NewTokenizer(data, true, jarr.TokenizerState{}, nil)
	pos := 0
	for {
		tok, ok, err := tk.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := w.Write(data[pos:tok.Start]); err != nil {
			return err
		}
		color := tokenColor(tok)
		if color != nil {
			if _, err := w.Write(color); err != nil {
				return err
			}
		}
		if _, err := w.Write(data[tok.Start:tok.End]); err != nil {
			return err
		}
		if color != nil {
			if _, err := w.Write(reset); err != nil {
				return err
			}
		}
		pos = tok.End
	}
	_, err := w.Write(data[pos:])
	return err
}
