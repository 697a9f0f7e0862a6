// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

import "go.mongodb.org/mongo-driver/bson"

// BSONDecoder decodes element spans as MongoDB Extended JSON.  Use it to
// stream arrays whose elements carry extended type wrappers like $oid,
// $date, or $numberLong.
type BSONDecoder[T any] struct {
	canonical bool
}

// NewBSONDecoder returns a Decoder that parses elements as Extended JSON.
// When canonical is true, only canonical Extended JSON is accepted; when
// false, the relaxed format is accepted as well.
func NewBSONDecoder[T any](canonical bool) *BSONDecoder[T] {
	return &BSONDecoder[T]{canonical: canonical}
}

func (d *BSONDecoder[T]) Decode(data []byte) (T, error) {
	var out T
	if err := bson.UnmarshalExtJSON(data, d.canonical, &out); err != nil {
		return out, err
	}
	return out, nil
}
