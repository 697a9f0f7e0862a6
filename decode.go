// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Decoder converts one complete element span into a value of the target
// type.  The span is exactly one JSON value, quotes and braces included.
type Decoder[T any] interface {
	Decode(data []byte) (T, error)
}

// RawDecoder yields each element's raw bytes.  The span is copied because
// the source window it points into is recycled between pulls.
type RawDecoder struct{}

var _ Decoder[[]byte] = RawDecoder{}

func (RawDecoder) Decode(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// ReflectDecoder decodes element spans by inspecting the target type's shape
// at decode time.  It supports bool, integer, float, and string kinds,
// pointers, structs (honoring json struct tags), slices, maps with string
// keys, and any.  Field names match case-insensitively unless constructed
// otherwise.  For hot paths, compile a Plan instead.
type ReflectDecoder[T any] struct {
	caseSensitive bool
}

// NewReflectDecoder returns a reflection-based decoder for T.
func NewReflectDecoder[T any](caseSensitive bool) *ReflectDecoder[T] {
	return &ReflectDecoder[T]{caseSensitive: caseSensitive}
}

func (d *ReflectDecoder[T]) Decode(data []byte) (T, error) {
	var out T
	tk := NewTokenizer(data, true, TokenizerState{}, nil)
	tok, err := nextToken(tk)
	if err != nil {
		return out, err
	}
	rv := reflect.ValueOf(&out).Elem()
	if err := decodeValue(tk, data, tok, rv, d.caseSensitive); err != nil {
		return out, err
	}
	return out, nil
}

func nextToken(tk *Tokenizer) (Token, error) {
	tok, ok, err := tk.Next()
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, io.ErrUnexpectedEOF
	}
	return tok, nil
}

func decodeValue(tk *Tokenizer, data []byte, tok Token, v reflect.Value, caseSensitive bool) error {
	if v.Kind() == reflect.Pointer {
		if tok.Kind == KindNull {
			v.SetZero()
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return decodeValue(tk, data, tok, v.Elem(), caseSensitive)
	}
	if v.Kind() == reflect.Interface && v.NumMethod() == 0 {
		val, err := buildAny(tk, data, tok)
		if err != nil {
			return err
		}
		if val == nil {
			v.SetZero()
		} else {
			v.Set(reflect.ValueOf(val))
		}
		return nil
	}

	switch tok.Kind {
	case KindNull:
		v.SetZero()
		return nil
	case KindTrue, KindFalse:
		if v.Kind() != reflect.Bool {
			return typeMismatch(tok.Kind, v.Type())
		}
		v.SetBool(tok.Kind == KindTrue)
		return nil
	case KindString:
		if v.Kind() != reflect.String {
			return typeMismatch(tok.Kind, v.Type())
		}
		sv, err := stringValue(data, tok)
		if err != nil {
			return err
		}
		v.SetString(sv)
		return nil
	case KindNumber:
		return decodeNumber(data, tok, v)
	case KindObjectStart:
		switch v.Kind() {
		case reflect.Struct:
			return decodeStruct(tk, data, v, caseSensitive)
		case reflect.Map:
			return decodeMap(tk, data, v, caseSensitive)
		default:
			return typeMismatch(tok.Kind, v.Type())
		}
	case KindArrayStart:
		if v.Kind() != reflect.Slice {
			return typeMismatch(tok.Kind, v.Type())
		}
		return decodeSlice(tk, data, v, caseSensitive)
	default:
		return fmt.Errorf("unexpected %s token", tok.Kind)
	}
}

func decodeNumber(data []byte, tok Token, v reflect.Value) error {
	raw := string(data[tok.Start:tok.End])
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot decode number %s into %s: %w", raw, v.Type(), err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot decode number %s into %s: %w", raw, v.Type(), err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot decode number %s into %s: %w", raw, v.Type(), err)
		}
		v.SetFloat(n)
	default:
		return typeMismatch(KindNumber, v.Type())
	}
	return nil
}

func decodeStruct(tk *Tokenizer, data []byte, v reflect.Value, caseSensitive bool) error {
	t := v.Type()
	for {
		keyTok, err := nextToken(tk)
		if err != nil {
			return err
		}
		if keyTok.Kind == KindObjectEnd {
			return nil
		}
		key, err := stringValue(data, keyTok)
		if err != nil {
			return err
		}
		valTok, err := nextToken(tk)
		if err != nil {
			return err
		}
		i, found := structFieldIndex(t, key, caseSensitive)
		if !found {
			if err := skipValue(tk, valTok); err != nil {
				return err
			}
			continue
		}
		if err := decodeValue(tk, data, valTok, v.Field(i), caseSensitive); err != nil {
			return err
		}
	}
}

func decodeMap(tk *Tokenizer, data []byte, v reflect.Value, caseSensitive bool) error {
	t := v.Type()
	if t.Key().Kind() != reflect.String {
		return typeMismatch(KindObjectStart, t)
	}
	if v.IsNil() {
		v.Set(reflect.MakeMap(t))
	}
	for {
		keyTok, err := nextToken(tk)
		if err != nil {
			return err
		}
		if keyTok.Kind == KindObjectEnd {
			return nil
		}
		key, err := stringValue(data, keyTok)
		if err != nil {
			return err
		}
		valTok, err := nextToken(tk)
		if err != nil {
			return err
		}
		elem := reflect.New(t.Elem()).Elem()
		if err := decodeValue(tk, data, valTok, elem, caseSensitive); err != nil {
			return err
		}
		v.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), elem)
	}
}

func decodeSlice(tk *Tokenizer, data []byte, v reflect.Value, caseSensitive bool) error {
	t := v.Type()
	sl := reflect.MakeSlice(t, 0, 4)
	for {
		tok, err := nextToken(tk)
		if err != nil {
			return err
		}
		if tok.Kind == KindArrayEnd {
			v.Set(sl)
			return nil
		}
		elem := reflect.New(t.Elem()).Elem()
		if err := decodeValue(tk, data, tok, elem, caseSensitive); err != nil {
			return err
		}
		sl = reflect.Append(sl, elem)
	}
}

// buildAny materializes a value the way encoding/json would: objects become
// map[string]any, arrays []any, numbers float64.
func buildAny(tk *Tokenizer, data []byte, tok Token) (any, error) {
	switch tok.Kind {
	case KindNull:
		return nil, nil
	case KindTrue:
		return true, nil
	case KindFalse:
		return false, nil
	case KindString:
		return stringValue(data, tok)
	case KindNumber:
		return strconv.ParseFloat(string(data[tok.Start:tok.End]), 64)
	case KindObjectStart:
		m := make(map[string]any)
		for {
			keyTok, err := nextToken(tk)
			if err != nil {
				return nil, err
			}
			if keyTok.Kind == KindObjectEnd {
				return m, nil
			}
			key, err := stringValue(data, keyTok)
			if err != nil {
				return nil, err
			}
			valTok, err := nextToken(tk)
			if err != nil {
				return nil, err
			}
			val, err := buildAny(tk, data, valTok)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
	case KindArrayStart:
		arr := []any{}
		for {
			elemTok, err := nextToken(tk)
			if err != nil {
				return nil, err
			}
			if elemTok.Kind == KindArrayEnd {
				return arr, nil
			}
			val, err := buildAny(tk, data, elemTok)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
	default:
		return nil, fmt.Errorf("unexpected %s token", tok.Kind)
	}
}

// skipValue consumes the rest of the value started by tok.
func skipValue(tk *Tokenizer, tok Token) error {
	if tok.Kind != KindObjectStart && tok.Kind != KindArrayStart {
		return nil
	}
	target := tok.Depth - 1
	for {
		t2, err := nextToken(tk)
		if err != nil {
			return err
		}
		if (t2.Kind == KindObjectEnd || t2.Kind == KindArrayEnd) && t2.Depth == target {
			return nil
		}
	}
}

func typeMismatch(k Kind, t reflect.Type) error {
	return fmt.Errorf("cannot decode %s into %s", k, t)
}

// structFieldIndex resolves a JSON object key to a struct field, honoring
// json tags.  An exact name match wins over a case-folded one.
func structFieldIndex(t reflect.Type, key string, caseSensitive bool) (int, bool) {
	fold := -1
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		if name == "" {
			continue
		}
		if name == key {
			return i, true
		}
		if !caseSensitive && fold < 0 && strings.EqualFold(name, key) {
			fold = i
		}
	}
	if fold >= 0 {
		return fold, true
	}
	return 0, false
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return f.Name
}

// stringValue returns the decoded content of a string or key token.
func stringValue(data []byte, tok Token) (string, error) {
	return unescape(data[tok.Start+1 : tok.End-1])
}

// unescape resolves JSON escape sequences, including surrogate pairs.  The
// tokenizer has already validated escape shapes.
func unescape(b []byte) (string, error) {
	i := 0
	for i < len(b) && b[i] != '\\' {
		i++
	}
	if i == len(b) {
		return string(b), nil
	}

	out := make([]byte, 0, len(b))
	out = append(out, b[:i]...)
	for i < len(b) {
		if b[i] != '\\' {
			out = append(out, b[i])
			i++
			continue
		}
		switch b[i+1] {
		case '"':
			out = append(out, '"')
			i += 2
		case '\\':
			out = append(out, '\\')
			i += 2
		case '/':
			out = append(out, '/')
			i += 2
		case 'b':
			out = append(out, '\b')
			i += 2
		case 'f':
			out = append(out, '\f')
			i += 2
		case 'n':
			out = append(out, '\n')
			i += 2
		case 'r':
			out = append(out, '\r')
			i += 2
		case 't':
			out = append(out, '\t')
			i += 2
		case 'u':
			n, err := strconv.ParseUint(string(b[i+2:i+6]), 16, 32)
			if err != nil {
				return "", fmt.Errorf("converting unicode escape: %v", err)
			}
			r := rune(n)
			i += 6
			if utf16.IsSurrogate(r) {
				// A high surrogate must be followed by an escaped low
				// surrogate; otherwise emit the replacement character.
				if i+6 <= len(b) && b[i] == '\\' && b[i+1] == 'u' {
					n2, err := strconv.ParseUint(string(b[i+2:i+6]), 16, 32)
					if err != nil {
						return "", fmt.Errorf("converting unicode escape: %v", err)
					}
					if combined := utf16.DecodeRune(r, rune(n2)); combined != utf8.RuneError {
						r = combined
						i += 6
					} else {
						r = utf8.RuneError
					}
				} else {
					r = utf8.RuneError
				}
			}
			out = utf8.AppendRune(out, r)
		default:
			return "", fmt.Errorf("unknown escape \\%c", b[i+1])
		}
		if i < len(b) && b[i] != '\\' {
			j := i
			for j < len(b) && b[j] != '\\' {
				j++
			}
			out = append(out, b[i:j]...)
			i = j
		}
	}
	return string(out), nil
}
