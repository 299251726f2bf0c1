package analyzer

import (
	"errors"
	"fmt"
)

// FileAccessError reports a file whose content could not be read as text.
type FileAccessError struct {
	File string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("read %s: %v", e.File, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// InferenceError reports a failed call to the model for one file.
type InferenceError struct {
	File  string
	Cause error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference for %s: %v", e.File, e.Cause)
}

func (e *InferenceError) Unwrap() error { return e.Cause }

// Kind names the error class used to tag run log entries.
func Kind(err error) string {
	var fe *FileAccessError
	var ie *InferenceError
	switch {
	case errors.As(err, &fe):
		return "FileAccessError"
	case errors.As(err, &ie):
		return "InferenceError"
	default:
		return "Error"
	}
}
