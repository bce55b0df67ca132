// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ga

import (
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/polyfit/pkg/validation"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid GA configuration")

// MutationConfig parameterises the mutation operator.
//
// For every individual a threshold is drawn from
// Normal(MuIndividuals, SigmaIndividuals); each gene is perturbed when a
// draw from Normal(MuGenes, SigmaGenes) falls below that threshold.
type MutationConfig struct {
	MuIndividuals    float64 `yaml:"mu_individuals"`
	SigmaIndividuals float64 `yaml:"sigma_individuals" validate:"gte=0"`
	MuGenes          float64 `yaml:"mu_genes"`
	SigmaGenes       float64 `yaml:"sigma_genes" validate:"gte=0"`

	// Step bounds the perturbation: gene += Step * u, u uniform in [-1, 1).
	Step float64 `yaml:"step" validate:"gt=0"`
}

// Config holds the tunable parameters of a GA run.
//
// Loaded from the "ga" section of a polyfit config file; flags override
// individual fields. Use DefaultConfig() as the starting point.
type Config struct {
	// Points is the number of samples read from the input file.
	Points int `yaml:"points" validate:"gte=1"`

	// Population is P, the number of individuals. Must be even.
	Population int `yaml:"population" validate:"gte=2,even"`

	// IndividualLength is L, the number of coefficients per individual.
	// At least 3 so a crosspoint in {1..L-2} exists.
	IndividualLength int `yaml:"individual_length" validate:"gte=3"`

	// InitRange bounds the initial genes to [-InitRange, InitRange].
	InitRange float64 `yaml:"init_range" validate:"gt=0"`

	MaxGenerations int     `yaml:"max_generations" validate:"gte=0"`
	TargetError    float64 `yaml:"target_error" validate:"gte=0"`
	MaxConstIter   int     `yaml:"max_const_iter" validate:"gte=1"`

	// StagnationEpsilon is the smallest change of the best fitness that
	// resets the stagnation counter.
	StagnationEpsilon float64 `yaml:"stagnation_epsilon" validate:"gte=0"`

	Seed uint64 `yaml:"seed"`

	// Lanes is the number of parallel lanes for ParallelBackend.
	// 0 means runtime.GOMAXPROCS(0).
	Lanes int `yaml:"lanes" validate:"gte=0"`

	Mutation MutationConfig `yaml:"mutation"`
}

// DefaultConfig returns the benchmark defaults.
func DefaultConfig() Config {
	return Config{
		Points:            500,
		Population:        1000,
		IndividualLength:  4,
		InitRange:         5,
		MaxGenerations:    5000,
		TargetError:       1.0,
		MaxConstIter:      200,
		StagnationEpsilon: 0.01,
		Seed:              1,
		Lanes:             0,
		Mutation: MutationConfig{
			MuIndividuals:    3,
			SigmaIndividuals: 2,
			MuGenes:          2,
			SigmaGenes:       1,
			Step:             0.01,
		},
	}
}

// Validate checks the configuration.
//
// Outputs:
//   - error: nil when valid, otherwise ErrInvalidConfig wrapping one line
//     per offending field.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w:\n%v", ErrInvalidConfig, err)
	}
	finite := []struct {
		name string
		v    float64
	}{
		{"init_range", c.InitRange},
		{"target_error", c.TargetError},
		{"stagnation_epsilon", c.StagnationEpsilon},
		{"mutation.mu_individuals", c.Mutation.MuIndividuals},
		{"mutation.sigma_individuals", c.Mutation.SigmaIndividuals},
		{"mutation.mu_genes", c.Mutation.MuGenes},
		{"mutation.sigma_genes", c.Mutation.SigmaGenes},
		{"mutation.step", c.Mutation.Step},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, f.name)
		}
	}
	return nil
}
