package domain

// Sentinel errors shared by services and adapters. Wrap them with context via
// fmt.Errorf("...: %w", ErrNotFound) and test with errors.Is.
var (
	ErrNotFound = errString("not found")
	ErrConflict = errString("conflict")
)

type errString string

func (e errString) Error() string { return string(e) }
