// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type innerConfig struct {
	Step float64 `yaml:"step" validate:"gt=0"`
}

type testConfig struct {
	Size   int         `yaml:"size" validate:"gte=2,even"`
	Label  string      `yaml:"label,omitempty" validate:"required"`
	Hidden int         `yaml:"-" validate:"gte=0"`
	Inner  innerConfig `yaml:"inner"`
}

func TestStruct_Valid(t *testing.T) {
	cfg := testConfig{Size: 4, Label: "ok", Inner: innerConfig{Step: 0.5}}
	assert.NoError(t, Struct(&cfg))
}

func TestStruct_ReportsYAMLNames(t *testing.T) {
	cfg := testConfig{Size: 3, Label: "", Inner: innerConfig{Step: 0}}
	err := Struct(&cfg)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "size: must satisfy even (got 3)")
	assert.Contains(t, msg, "label: must satisfy required")
	assert.Contains(t, msg, "inner.step: must satisfy gt=0 (got 0)")
}

func TestStruct_ParamRule(t *testing.T) {
	cfg := testConfig{Size: 0, Label: "x", Inner: innerConfig{Step: 1}}
	err := Struct(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size: must satisfy gte=2 (got 0)")
}

func TestStruct_NonStruct(t *testing.T) {
	err := Struct(42)
	assert.Error(t, err)
}

func TestValidateEven_Unsigned(t *testing.T) {
	type u struct {
		N uint `yaml:"n" validate:"even"`
	}
	assert.NoError(t, Struct(u{N: 8}))
	assert.Error(t, Struct(u{N: 7}))
}
