// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jarr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPlanMatchesReflect runs the same inputs through a compiled plan and
// the reflection decoder; the results must agree.
func TestPlanMatchesReflect(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`{"name":"Ada","age":36,"tags":["a","b"],"address":{"city":"London","zip":"N1"}}`,
		`{"NAME":"Bob","AGE":1}`,
		`{"email":"x@y.z","extra":{"k":[1,2]},"any":{"nested":true}}`,
		`{"name":null,"age":null,"tags":null,"email":null}`,
		`{"unknown":{"deep":[1,{"a":2}]},"age":7}`,
		`{}`,
	}

	plan, err := CompilePlan[person]()
	require.NoError(t, err)
	reflectDec := NewReflectDecoder[person](false)

	for _, input := range inputs {
		fromPlan, err := plan.Decode([]byte(input))
		require.NoError(t, err, "input %s", input)
		fromReflect, err := reflectDec.Decode([]byte(input))
		require.NoError(t, err, "input %s", input)
		require.Equal(t, fromReflect, fromPlan, "input %s", input)
	}
}

func TestPlanCaseSensitive(t *testing.T) {
	t.Parallel()

	plan, err := CompilePlan[person]()
	require.NoError(t, err)
	plan.CaseSensitive(true)

	got, err := plan.Decode([]byte(`{"NAME":"Ada","name":"Bob"}`))
	require.NoError(t, err)
	require.Equal(t, "Bob", got.Name)
}

func TestPlanNullElement(t *testing.T) {
	t.Parallel()

	plan, err := CompilePlan[person]()
	require.NoError(t, err)

	got, err := plan.Decode([]byte(`null`))
	require.NoError(t, err)
	require.Equal(t, person{}, got)
}

func TestPlanRecursiveType(t *testing.T) {
	t.Parallel()

	type node struct {
		Value    int     `json:"value"`
		Children []*node `json:"children"`
	}

	plan, err := CompilePlan[node]()
	require.NoError(t, err)

	got, err := plan.Decode([]byte(`{"value":1,"children":[{"value":2,"children":[{"value":3}]},{"value":4}]}`))
	require.NoError(t, err)
	require.Equal(t, 1, got.Value)
	require.Len(t, got.Children, 2)
	require.Equal(t, 2, got.Children[0].Value)
	require.Equal(t, 3, got.Children[0].Children[0].Value)
	require.Equal(t, 4, got.Children[1].Value)
}

func TestCompilePlanErrors(t *testing.T) {
	t.Parallel()

	_, err := CompilePlan[int]()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a struct")

	type bad struct {
		C chan int `json:"c"`
	}
	_, err = CompilePlan[bad]()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported field type")
}

func TestPlanStream(t *testing.T) {
	t.Parallel()

	plan, err := CompilePlan[record]()
	require.NoError(t, err)

	got, err := DecodeAll([]byte(`[{"id":1,"name":"A"},{"id":2,"name":"B"}]`), plan)
	require.NoError(t, err)
	require.Equal(t, []record{{1, "A"}, {2, "B"}}, got)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, ok := Lookup[record](r)
	require.False(t, ok)

	p1, err := CompilePlan[record]()
	require.NoError(t, err)
	Register(r, p1)

	got, ok := Lookup[record](r)
	require.True(t, ok)
	require.Same(t, p1, got)

	// Last registration wins.
	p2, err := CompilePlan[record]()
	require.NoError(t, err)
	Register(r, p2)
	got, ok = Lookup[record](r)
	require.True(t, ok)
	require.Same(t, p2, got)

	dec := DecoderFor[record](r, false)
	require.Same(t, p2, dec)
}
