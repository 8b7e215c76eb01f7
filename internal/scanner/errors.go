package scanner

import "fmt"

// RecoverableScanError reports a handler file that could not be parsed.
// The file is skipped and the scan continues.
type RecoverableScanError struct {
	File string
	Err  error
}

func (e *RecoverableScanError) Error() string {
	return fmt.Sprintf("skipping %s: %v", e.File, e.Err)
}

func (e *RecoverableScanError) Unwrap() error {
	return e.Err
}

// FatalMetadataError reports a malformed metadata block. It aborts the run
// because emitting a spec without the block's documentation would be silent data loss.
type FatalMetadataError struct {
	File     string
	Function string
	Line     int
	Err      error
}

func (e *FatalMetadataError) Error() string {
	return fmt.Sprintf("invalid OpenAPI metadata block in %s:%d (%s): %v", e.File, e.Line, e.Function, e.Err)
}

func (e *FatalMetadataError) Unwrap() error {
	return e.Err
}
