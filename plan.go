// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Plan is a decoder for struct type T whose field dispatch was compiled up
// front.  Object keys hash into buckets of candidate fields instead of being
// matched by a reflection scan per key, so a Plan amortizes the shape
// analysis that ReflectDecoder repeats on every element.
type Plan[T any] struct {
	sp            *structPlan
	caseSensitive bool
}

// CompilePlan analyzes struct type T and returns a reusable Plan.  It
// returns an error if T is not a struct or contains a field type that
// cannot be decoded from JSON.
func CompilePlan[T any]() (*Plan[T], error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("plan target %s is not a struct", t)
	}
	c := &planCompiler{cache: make(map[reflect.Type]fieldDecoder)}

	// Pre-register the root so self-referential field types resolve to the
	// plan being compiled.
	var rootSP *structPlan
	c.cache[t] = func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, cs bool) error {
		return rootSP.decode(tk, data, tok, v, cs)
	}
	sp, err := c.compileStruct(t)
	if err != nil {
		return nil, err
	}
	rootSP = sp
	return &Plan[T]{sp: sp}, nil
}

// CaseSensitive controls whether object keys must match field names exactly.
// The default is case-insensitive matching.  It returns the Plan for
// chaining and must not be called concurrently with Decode.
func (p *Plan[T]) CaseSensitive(cs bool) *Plan[T] {
	p.caseSensitive = cs
	return p
}

var _ Decoder[struct{}] = (*Plan[struct{}])(nil)

func (p *Plan[T]) Decode(data []byte) (T, error) {
	var out T
	tk := NewTokenizer(data, true, TokenizerState{}, nil)
	tok, err := nextToken(tk)
	if err != nil {
		return out, err
	}
	rv := reflect.ValueOf(&out).Elem()
	if err := p.sp.decode(tk, data, tok, rv, p.caseSensitive); err != nil {
		return out, err
	}
	return out, nil
}

// fieldDecoder writes the value started by tok into v.
type fieldDecoder func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, caseSensitive bool) error

type planField struct {
	name  string
	index int
	dec   fieldDecoder
}

// structPlan buckets fields by the hash of their case-folded name.  Bucket
// hits are verified against the actual name, so hash collisions only cost a
// string comparison.
type structPlan struct {
	fields map[uint64][]*planField
}

func (sp *structPlan) decode(tk *Tokenizer, data []byte, tok Token, v reflect.Value, caseSensitive bool) error {
	if tok.Kind == KindNull {
		v.SetZero()
		return nil
	}
	if tok.Kind != KindObjectStart {
		return typeMismatch(tok.Kind, v.Type())
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
		pf := sp.lookup(key, caseSensitive)
		if pf == nil {
			if err := skipValue(tk, valTok); err != nil {
				return err
			}
			continue
		}
		if err := pf.dec(tk, data, valTok, v.Field(pf.index), caseSensitive); err != nil {
			return err
		}
	}
}

func (sp *structPlan) lookup(key string, caseSensitive bool) *planField {
	h := xxhash.Sum64String(strings.ToLower(key))
	for _, pf := range sp.fields[h] {
		if caseSensitive {
			if pf.name == key {
				return pf
			}
		} else if strings.EqualFold(pf.name, key) {
			return pf
		}
	}
	return nil
}

// planCompiler caches compiled decoders by type so recursive and repeated
// field types compile once.
type planCompiler struct {
	cache map[reflect.Type]fieldDecoder
}

func (c *planCompiler) compile(t reflect.Type) (fieldDecoder, error) {
	if d, ok := c.cache[t]; ok {
		return d, nil
	}
	// Insert an indirection first so recursive types terminate.
	var self fieldDecoder
	c.cache[t] = func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, cs bool) error {
		return self(tk, data, tok, v, cs)
	}
	d, err := c.compileType(t)
	if err != nil {
		delete(c.cache, t)
		return nil, err
	}
	self = d
	c.cache[t] = d
	return d, nil
}

func (c *planCompiler) compileStruct(t reflect.Type) (*structPlan, error) {
	sp := &structPlan{fields: make(map[uint64][]*planField)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		if name == "" {
			continue
		}
		dec, err := c.compile(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t, f.Name, err)
		}
		h := xxhash.Sum64String(strings.ToLower(name))
		sp.fields[h] = append(sp.fields[h], &planField{name: name, index: i, dec: dec})
	}
	return sp, nil
}

func (c *planCompiler) compileType(t reflect.Type) (fieldDecoder, error) {
	switch t.Kind() {
	case reflect.Bool:
		return func(_ *Tokenizer, _ []byte, tok Token, v reflect.Value, _ bool) error {
			switch tok.Kind {
			case KindTrue:
				v.SetBool(true)
			case KindFalse:
				v.SetBool(false)
			case KindNull:
				v.SetZero()
			default:
				return typeMismatch(tok.Kind, t)
			}
			return nil
		}, nil
	case reflect.String:
		return func(_ *Tokenizer, data []byte, tok Token, v reflect.Value, _ bool) error {
			switch tok.Kind {
			case KindString:
				s, err := stringValue(data, tok)
				if err != nil {
					return err
				}
				v.SetString(s)
				return nil
			case KindNull:
				v.SetZero()
				return nil
			default:
				return typeMismatch(tok.Kind, t)
			}
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return func(_ *Tokenizer, data []byte, tok Token, v reflect.Value, _ bool) error {
			switch tok.Kind {
			case KindNumber:
				return decodeNumber(data, tok, v)
			case KindNull:
				v.SetZero()
				return nil
			default:
				return typeMismatch(tok.Kind, t)
			}
		}, nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return nil, fmt.Errorf("cannot decode into non-empty interface %s", t)
		}
		return func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, _ bool) error {
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
		}, nil
	case reflect.Pointer:
		elemDec, err := c.compile(t.Elem())
		if err != nil {
			return nil, err
		}
		return func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, cs bool) error {
			if tok.Kind == KindNull {
				v.SetZero()
				return nil
			}
			if v.IsNil() {
				v.Set(reflect.New(t.Elem()))
			}
			return elemDec(tk, data, tok, v.Elem(), cs)
		}, nil
	case reflect.Slice:
		elemDec, err := c.compile(t.Elem())
		if err != nil {
			return nil, err
		}
		return func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, cs bool) error {
			if tok.Kind == KindNull {
				v.SetZero()
				return nil
			}
			if tok.Kind != KindArrayStart {
				return typeMismatch(tok.Kind, t)
			}
			sl := reflect.MakeSlice(t, 0, 4)
			for {
				elemTok, err := nextToken(tk)
				if err != nil {
					return err
				}
				if elemTok.Kind == KindArrayEnd {
					v.Set(sl)
					return nil
				}
				elem := reflect.New(t.Elem()).Elem()
				if err := elemDec(tk, data, elemTok, elem, cs); err != nil {
					return err
				}
				sl = reflect.Append(sl, elem)
			}
		}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot decode object into map with %s keys", t.Key())
		}
		elemDec, err := c.compile(t.Elem())
		if err != nil {
			return nil, err
		}
		return func(tk *Tokenizer, data []byte, tok Token, v reflect.Value, cs bool) error {
			if tok.Kind == KindNull {
				v.SetZero()
				return nil
			}
			if tok.Kind != KindObjectStart {
				return typeMismatch(tok.Kind, t)
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
				if err := elemDec(tk, data, valTok, elem, cs); err != nil {
					return err
				}
				v.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), elem)
			}
		}, nil
	case reflect.Struct:
		sp, err := c.compileStruct(t)
		if err != nil {
			return nil, err
		}
		return sp.decode, nil
	default:
		return nil, fmt.Errorf("unsupported field type %s", t)
	}
}
