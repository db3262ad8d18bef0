package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the chryso command.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2

	// ExitRunFailed signals that a retention run started but did not
	// complete.
	ExitRunFailed = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// RunFailedError reports retention runs that finished with an error.
type RunFailedError struct {
	Failed int
	Total  int
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("%d of %d retention runs failed", e.Failed, e.Total)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var runErr *RunFailedError
	if errors.As(err, &runErr) {
		return ExitRunFailed
	}
	return ExitFailure
}
