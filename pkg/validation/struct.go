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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// structValidate is the validator instance for configuration structs.
// Initialized in init() with custom validators and yaml field naming.
var structValidate *validator.Validate

func init() {
	structValidate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their yaml key ("max_generations", not "MaxGenerations").
	structValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = structValidate.RegisterValidation("even", validateEven)
}

// validateEven accepts integer fields whose value is divisible by two.
//
// # Inputs
//
//   - fl: Validator field level holding a signed or unsigned integer
//
// # Outputs
//
//   - bool: true if the value is even, false otherwise or for non-integers
func validateEven(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int()%2 == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return f.Uint()%2 == 0
	default:
		return false
	}
}

// Struct validates v against its `validate` struct tags.
//
// Description:
//
//	Runs the shared validator and flattens every field failure into one
//	error, one line per field, e.g.
//
//	    population: must satisfy even (got 1001)
//	    mutation.step: must satisfy gt=0 (got 0)
//
// Inputs:
//   - v: Pointer to (or value of) a struct with validate tags.
//
// Outputs:
//   - error: nil when valid, otherwise the joined field failures.
func Struct(v any) error {
	err := structValidate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	msgs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Errorf("%s: must satisfy %s (got %v)", fieldPath(fe.Namespace()), rule, fe.Value()))
	}
	return errors.Join(msgs...)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
