package source

import "fmt"

// SourceReadError reports a file or directory that could not be read or parsed
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("failed to read source %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}
