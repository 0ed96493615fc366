package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoInput           = errors.New("no input documents found")
	ErrNoReadableInput   = errors.New("no input document has a readable text layer")
	ErrNoTextLayer       = errors.New("no extractable text layer")
	ErrMissingCredential = errors.New("oracle API credential is not configured")
	ErrUnknownIdentity   = errors.New("unknown company identity")
)

// ParseError reports a document that could not be turned into text blocks.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReconciliationConflict records two sources disagreeing on a field the merge
// policy keeps from one side. It is logged, never returned to callers.
type ReconciliationConflict struct {
	Key       string
	Field     string
	Kept      string
	Discarded string
}

func (c *ReconciliationConflict) Error() string {
	return fmt.Sprintf("reconciliation conflict on %s.%s: kept %q, discarded %q", c.Key, c.Field, c.Kept, c.Discarded)
}
