// Package faults defines the error codes lar surfaces to callers.
package faults

import (
	"github.com/jmgilman/go/errors"
)

const (
	// CodeInvalidPath marks a filename that escapes the archive root.
	CodeInvalidPath errors.ErrorCode = "INVALID_PATH"
	// CodeIOFailure marks an archive that exists but could not be read.
	CodeIOFailure errors.ErrorCode = "IO_FAILURE"
)

// InvalidPath reports a filename that resolves outside root.
func InvalidPath(filename, root string) error {
	err := errors.Newf(CodeInvalidPath, "path %q resolves outside archive directory", filename)
	return errors.WithContext(err, "root", root)
}

// IOFailure wraps err with the operation and archive that produced it.
func IOFailure(err error, op, archive string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, CodeIOFailure, "%s failed for %s", op, archive)
	return errors.WithContextMap(wrapped, map[string]interface{}{
		"operation": op,
		"archive":   archive,
	})
}

// NotFound reports a missing archive or entry.
func NotFound(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeNotFound, format, args...)
}

// InvalidInput reports a malformed request argument.
func InvalidInput(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeInvalidInput, format, args...)
}

// Config reports an unusable configuration.
func Config(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeInvalidConfig, format, args...)
}

// WrapConfig wraps err as a configuration error.
func WrapConfig(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.CodeInvalidConfig, message)
}

func IsInvalidPath(err error) bool  { return errors.GetCode(err) == CodeInvalidPath }
func IsIOFailure(err error) bool    { return errors.GetCode(err) == CodeIOFailure }
func IsNotFound(err error) bool     { return errors.GetCode(err) == errors.CodeNotFound }
func IsInvalidInput(err error) bool { return errors.GetCode(err) == errors.CodeInvalidInput }
func IsConfig(err error) bool       { return errors.GetCode(err) == errors.CodeInvalidConfig }

// Code returns the error code carried by err, or UNKNOWN.
func Code(err error) string {
	return string(errors.GetCode(err))
}
