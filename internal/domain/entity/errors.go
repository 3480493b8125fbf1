package entity

import (
	"errors"
	"fmt"
)

var (
	ErrCapture           = errors.New("capture failed")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrRoiOutOfBounds    = errors.New("roi out of bounds")
	ErrPositionLock      = errors.New("position lock failed")
	ErrOutputWrite       = errors.New("output write failed")
	ErrConfig            = errors.New("invalid program")
	ErrTriggerDropped    = errors.New("trigger dropped: cycle in flight")
	ErrNotRunning        = errors.New("engine is not running")
	ErrInvalidTransition = errors.New("invalid run state transition")
	ErrNotFound          = errors.New("not found")
)

// ConfigError описывает, какое поле программы не прошло проверку
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid program: %s: %s", e.Field, e.Reason)
}

// Is позволяет сравнивать через errors.Is(err, ErrConfig)
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
