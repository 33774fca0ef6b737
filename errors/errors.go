package errors

// DriverError is a DiskoError that has wrapped an underlying cause.
type DriverError interface {
	error
	WrapError(err error) DriverError
}

type customDriverError struct {
	message       string
	originalError error
}

func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WrapError(err error) DriverError {
	return customDriverError{
		message:       e.Error() + ": " + err.Error(),
		originalError: err,
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}
