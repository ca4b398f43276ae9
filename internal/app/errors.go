package app

import (
	"errors"
	"fmt"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
)

const (
	exitGeneric         = 1
	exitUsage           = 2
	exitUnauthenticated = 3
	exitNotFound        = 4
	exitConflict        = 5
	exitBackend         = 6
)

const hintLogin = "Run `fitctl login`"

type AppError struct {
	Code    int
	Err     error
	Printed bool
}

func (e AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e AppError) Unwrap() error { return e.Err }

func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err}
}

func WrapPrinted(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err, Printed: true}
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return exitGeneric
}

func failWithHint(printer output.Printer, code contract.ErrorCode, err error, hint string, exitCode int) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = printer.Error(code, err.Error(), hint)
	return WrapPrinted(exitCode, err)
}

func failUsage(printer output.Printer, err error, hint string) error {
	return failWithHint(printer, contract.ErrInvalidUsage, err, hint, exitUsage)
}

func errorCodeForExit(code int) contract.ErrorCode {
	switch code {
	case exitUsage:
		return contract.ErrInvalidUsage
	case exitUnauthenticated:
		return contract.ErrUnauthenticated
	case exitNotFound:
		return contract.ErrNotFound
	case exitConflict:
		return contract.ErrConflict
	case exitBackend:
		return contract.ErrBackendUnavailable
	default:
		return contract.ErrGeneric
	}
}
