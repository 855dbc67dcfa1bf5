/*
Copyright 2026 The Skaffold Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stage is the part of a build an error is attributed to.
type Stage string

const (
	Config    = Stage("configuration")
	Engine    = Stage("engine")
	Pull      = Stage("pull")
	Phase     = Stage("phase")
	Publish   = Stage("publish")
	Cancelled = Stage("cancelled")
	Unknown   = Stage("unknown")
)

// ConfigError is a malformed or inconsistent build parameter, detected before any container is created.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// WrapConfigError creates a ConfigError caused by err.
func WrapConfigError(field string, err error) error {
	return &ConfigError{Field: field, Reason: err.Error(), Err: err}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// EngineError is a failure to communicate with the container engine.
type EngineError struct {
	Op  string
	Err error
}

func NewEngineError(op string, err error) error {
	return &EngineError{Op: op, Err: err}
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// PullError is a failure to pull the builder or run image.
type PullError struct {
	Ref string
	Err error
}

func (e *PullError) Error() string {
	return fmt.Sprintf("pulling image %q: %v", e.Ref, e.Err)
}

func (e *PullError) Unwrap() error { return e.Err }

// PhaseError is a lifecycle phase that exited with a non-zero status code.
type PhaseError struct {
	Phase    string
	ExitCode int
	Logs     []string
}

func (e *PhaseError) Error() string {
	msg := fmt.Sprintf("builder lifecycle '%s' failed with status code %d: %s", e.Phase, e.ExitCode, LifecycleStatusMessage(e.ExitCode))
	if len(e.Logs) == 0 {
		return msg
	}
	return msg + "\n" + strings.Join(e.Logs, "\n")
}

// PublishError is a failure to push an image that was otherwise built successfully.
type PublishError struct {
	Ref string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("image was built but could not be published to %q: %v", e.Ref, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// CancelledError is returned when the build was interrupted.
type CancelledError struct {
	Phase string
	Err   error
}

func (e *CancelledError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("build cancelled: %v", e.Err)
	}
	return fmt.Sprintf("build cancelled during '%s': %v", e.Phase, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// StageOf classifies an error.
func StageOf(err error) Stage {
	var (
		configErr    *ConfigError
		engineErr    *EngineError
		pullErr      *PullError
		phaseErr     *PhaseError
		publishErr   *PublishError
		cancelledErr *CancelledError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &cancelledErr):
		return Cancelled
	case errors.As(err, &configErr):
		return Config
	case errors.As(err, &phaseErr):
		return Phase
	case errors.As(err, &publishErr):
		return Publish
	case errors.As(err, &pullErr):
		return Pull
	case errors.As(err, &engineErr):
		return Engine
	case errors.Is(err, context.Canceled):
		return Cancelled
	}
	return Unknown
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch StageOf(err) {
	case "":
		return 0
	case Config:
		return 2
	case Engine:
		return 3
	case Pull:
		return 4
	case Phase:
		return 5
	case Publish:
		return 6
	case Cancelled:
		return 130
	}
	return 1
}
