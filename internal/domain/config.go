package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when optimizer configuration is unusable.
var ErrInvalidConfig = errors.New("invalid optimizer config")

// OptimizerConfig holds the fixed parameters of one optimization run.
type OptimizerConfig struct {
	InitialCapital float64 `json:"initial_capital"`
	PopulationSize int     `json:"population_size"` // even, PopulationSize/4 >= 2
	NumGenerations int     `json:"num_generations"`
	MutationRate   float64 `json:"mutation_rate"` // per-gene probability in [0,1]
	NumPots        int     `json:"num_pots"`
	Workers        int     `json:"workers"` // parallel scoring goroutines; <=1 means sequential
}

// Default optimizer parameters.
const (
	DefaultInitialCapital = 1000.0
	DefaultPopulationSize = 100
	DefaultNumGenerations = 5000
	DefaultMutationRate   = 0.1
	DefaultNumPots        = 10
)

// DefaultOptimizerConfig returns the default configuration.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		InitialCapital: DefaultInitialCapital,
		PopulationSize: DefaultPopulationSize,
		NumGenerations: DefaultNumGenerations,
		MutationRate:   DefaultMutationRate,
		NumPots:        DefaultNumPots,
		Workers:        1,
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c OptimizerConfig) Validate() error {
	switch {
	case !(c.InitialCapital > 0):
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidConfig, c.InitialCapital)
	case c.PopulationSize <= 0 || c.PopulationSize%2 != 0:
		return fmt.Errorf("%w: population size must be even and positive, got %d", ErrInvalidConfig, c.PopulationSize)
	case c.PopulationSize/4 < 2:
		return fmt.Errorf("%w: population size %d leaves fewer than 2 elite parents", ErrInvalidConfig, c.PopulationSize)
	case c.NumGenerations < 0:
		return fmt.Errorf("%w: generations must be non-negative, got %d", ErrInvalidConfig, c.NumGenerations)
	case !(c.MutationRate >= 0 && c.MutationRate <= 1):
		return fmt.Errorf("%w: mutation rate must be in [0,1], got %v", ErrInvalidConfig, c.MutationRate)
	case c.NumPots <= 0:
		return fmt.Errorf("%w: pots must be positive, got %d", ErrInvalidConfig, c.NumPots)
	}
	return nil
}
