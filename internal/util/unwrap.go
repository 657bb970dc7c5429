package util

// Unwrap returns the root cause of err, peeling both stackerr and
// github.com/pkg/errors wrappers.
func Unwrap(err error) error {
	type hasUnderlying interface {
		Underlying() error
	}
	type causer interface {
		Cause() error
	}
	for err != nil {
		switch e := err.(type) {
		case hasUnderlying:
			err = e.Underlying()
		case causer:
			err = e.Cause()
		default:
			return err
		}
	}
	return err
}
