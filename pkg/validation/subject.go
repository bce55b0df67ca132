// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for run configuration and
// for identifiers that end up inside messaging subjects.
//
// Struct validation is backed by go-playground/validator with field names
// reported by their yaml key, so an error reads the way the operator wrote
// the config file. Subject validation keeps wildcard and whitespace
// characters out of NATS subjects, where they would silently widen a
// subscription to other runs' traffic.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// subjectTokenPattern matches one dot-separated NATS subject token.
// Allows: letters, digits, underscore, hyphen. Max length 64.
var subjectTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// ValidateSubjectPrefix validates a NATS subject prefix such as "polyfit.run-42".
//
// Valid prefixes:
//   - 1-8 dot-separated tokens
//   - Each token is 1-64 characters of A-Z, a-z, 0-9, '_' or '-'
//
// Wildcards ('*', '>'), whitespace and empty tokens are rejected.
//
// Example:
//
//	if err := validation.ValidateSubjectPrefix(prefix); err != nil {
//	    return nil, fmt.Errorf("invalid subject prefix: %w", err)
//	}
func ValidateSubjectPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("subject prefix cannot be empty")
	}

	tokens := strings.Split(prefix, ".")
	if len(tokens) > 8 {
		return fmt.Errorf("subject prefix %q has %d tokens (max 8)", prefix, len(tokens))
	}
	for _, tok := range tokens {
		if !subjectTokenPattern.MatchString(tok) {
			return fmt.Errorf("invalid subject token %q in %q (must be 1-64 chars of letters, digits, '_' or '-')", tok, prefix)
		}
	}
	return nil
}

// SanitizeSubjectPrefix trims surrounding whitespace and dots, then validates.
//
// Use this when the prefix comes from a flag or environment variable:
//
//	prefix, err := validation.SanitizeSubjectPrefix(flagValue)
//	if err != nil {
//	    return err
//	}
func SanitizeSubjectPrefix(prefix string) (string, error) {
	normalized := strings.Trim(strings.TrimSpace(prefix), ".")
	if err := ValidateSubjectPrefix(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
