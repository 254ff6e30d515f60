package dataset

// SchemaMismatchError reports datasets that cannot be compared structurally,
// such as columns of unequal length or a missing key column.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Reason
}
