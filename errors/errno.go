// Package errors wraps storage I/O failures with a short POSIX-style tag,
// adapted from the teacher's errno/error-wrapping shape but trimmed to the
// one code the storage collaborator actually raises: EIO, for a seek, read,
// or write that failed against the backing image.
package errors

type DiskoError string

const EIO = DiskoError("Input/output error")

func (e DiskoError) Error() string {
	return string(e)
}

func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		message:       e.Error() + ": " + err.Error(),
		originalError: err,
	}
}
