package prune

import (
	"errors"
	"fmt"
)

// Configuration errors. They reach callers wrapped in a *ConfigError.
var (
	ErrConfigConflict  = errors.New("explicit field disagrees with tensor path")
	ErrInvalidPair     = errors.New("pair must be (Conv2D, BatchNorm2D)")
	ErrModuleNotFound  = errors.New("module not found in model")
	ErrTensorNotFound  = errors.New("tensor not found on module")
	ErrInvalidTarget   = errors.New("target names neither a module nor a tensor path")
	ErrDuplicateTensor = errors.New("tensor is configured more than once")
)

// Installation and precondition errors.
var (
	ErrUnsupportedModule   = errors.New("module kind is not supported for pruning")
	ErrNotParametrized     = errors.New("tensor is not parametrized by the pruner")
	ErrAlreadyParametrized = errors.New("tensor already has a parametrization")
	ErrNotPrepared         = errors.New("tensor was not prepared for pruning")
	ErrAlreadyPrepared     = errors.New("pruner already prepared")
	ErrNilPolicy           = errors.New("pruner has no mask policy")
	ErrInvalidOption       = errors.New("invalid option")
)

// ConfigError describes a rejected configuration entry.
type ConfigError struct {
	Index   int    // Position of the entry in the configuration
	Field   string // Field at fault (e.g. "tensor_fqn", "module")
	Details string // Additional details
	Err     error  // One of the configuration sentinels
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config entry %d: %s: %s: %v", e.Index, e.Field, e.Details, e.Err)
	}
	return fmt.Sprintf("config entry %d: %s: %v", e.Index, e.Details, e.Err)
}

// Unwrap returns the sentinel error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
