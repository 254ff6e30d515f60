package extract

import "fmt"

// ExtractionError wraps any failure of an extraction operation
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
