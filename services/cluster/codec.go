// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cluster

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Result fields travel as protobuf well-known types:
//
//	TagSolution    google.protobuf.ListValue of number values
//	TagFitness     google.protobuf.DoubleValue
//	TagElapsed     google.protobuf.Duration
//	TagGenerations google.protobuf.Int64Value
//
// Binary protobuf keeps NaN and Inf intact.

// EncodeSolution encodes a coefficient vector.
func EncodeSolution(coeffs []float64) ([]byte, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(coeffs))}
	for i, c := range coeffs {
		list.Values[i] = structpb.NewNumberValue(c)
	}
	return marshal(TagSolution, list)
}

// DecodeSolution decodes a coefficient vector.
func DecodeSolution(b []byte) ([]float64, error) {
	var list structpb.ListValue
	if err := unmarshal(TagSolution, b, &list); err != nil {
		return nil, err
	}
	out := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("decode %s: element %d is not a number", TagSolution, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

// EncodeFitness encodes a fitness value.
func EncodeFitness(f float64) ([]byte, error) {
	return marshal(TagFitness, wrapperspb.Double(f))
}

// DecodeFitness decodes a fitness value.
func DecodeFitness(b []byte) (float64, error) {
	var v wrapperspb.DoubleValue
	if err := unmarshal(TagFitness, b, &v); err != nil {
		return 0, err
	}
	return v.GetValue(), nil
}

// EncodeElapsed encodes a wall-clock duration.
func EncodeElapsed(d time.Duration) ([]byte, error) {
	return marshal(TagElapsed, durationpb.New(d))
}

// DecodeElapsed decodes a wall-clock duration.
func DecodeElapsed(b []byte) (time.Duration, error) {
	var v durationpb.Duration
	if err := unmarshal(TagElapsed, b, &v); err != nil {
		return 0, err
	}
	if err := v.CheckValid(); err != nil {
		return 0, fmt.Errorf("decode %s: %w", TagElapsed, err)
	}
	return v.AsDuration(), nil
}

// EncodeGenerations encodes a generation count.
func EncodeGenerations(n int) ([]byte, error) {
	return marshal(TagGenerations, wrapperspb.Int64(int64(n)))
}

// DecodeGenerations decodes a generation count.
func DecodeGenerations(b []byte) (int, error) {
	var v wrapperspb.Int64Value
	if err := unmarshal(TagGenerations, b, &v); err != nil {
		return 0, err
	}
	return int(v.GetValue()), nil
}

func marshal(tag Tag, m proto.Message) ([]byte, error) {
	b, err := proto.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return b, nil
}

func unmarshal(tag Tag, b []byte, m proto.Message) error {
	if err := proto.Unmarshal(b, m); err != nil {
		return fmt.Errorf("decode %s: %w", tag, err)
	}
	return nil
}
