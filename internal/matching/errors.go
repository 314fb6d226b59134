package matching

import (
	"fmt"
	"strings"
)

// ValidationError rejects a request before any file is processed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvalidFileTypeError marks an upload whose extension is not accepted.
type InvalidFileTypeError struct {
	Filename string
	Allowed  []string
}

func (e *InvalidFileTypeError) Error() string {
	return fmt.Sprintf("invalid file type: only %s files are allowed", strings.Join(e.Allowed, ", "))
}
