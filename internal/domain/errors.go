package domain

import "errors"

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrCommandFailed    = errors.New("command failed")
	ErrRegistryNotFound = errors.New("devices json file not found")
	ErrRegistryInvalid  = errors.New("error parsing json file")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrConfigInvalid    = errors.New("error parsing config file")
	ErrIncompleteRecord = errors.New("incomplete device record")
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitDeviceNotFound = 1
	ExitUnknownCommand = 2
	ExitCommandError   = 3
	ExitFileNotFound   = 4
	ExitParseError     = 5
)

// ExitCode maps err to the process exit code. Errors outside the known
// taxonomy are reported as command errors.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrDeviceNotFound):
		return ExitDeviceNotFound
	case errors.Is(err, ErrUnknownCommand):
		return ExitUnknownCommand
	case errors.Is(err, ErrRegistryNotFound), errors.Is(err, ErrConfigNotFound):
		return ExitFileNotFound
	case errors.Is(err, ErrRegistryInvalid), errors.Is(err, ErrConfigInvalid):
		return ExitParseError
	default:
		return ExitCommandError
	}
}
