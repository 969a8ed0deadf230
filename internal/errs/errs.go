// Package errs defines the error taxonomy shared across bgzf, bai, csi,
// sam, bam and randomaccessmanager, and a Kind helper for recovering a
// taxonomy member from a wrapped error.
package errs

import "github.com/pkg/errors"

// Kind classifies an error into one of a small number of buckets a caller
// can reasonably act on (retry, treat as EOF, report a bad query, ...).
type Kind int

const (
	// Other is any error not classified into one of the kinds below.
	Other Kind = iota
	// InvalidQuery means the caller asked for something that cannot be a
	// valid coordinate interval (e.g. beg > end, or a reference that
	// does not exist).
	InvalidQuery
	// IndexMissing means an index file was required but not supplied or
	// could not be parsed as one.
	IndexMissing
	// UnexpectedEof means the input ended before a complete block or
	// record could be read.
	UnexpectedEof
	// CorruptBlock means a BGZF member failed to parse or decompress.
	CorruptBlock
	// CorruptRecord means a BAM/SAM record failed to parse.
	CorruptRecord
	// IoError means a read, write or seek against the underlying storage
	// failed for reasons unrelated to the data's validity.
	IoError
)

// taggedError attaches a Kind to a wrapped error.
type taggedError struct {
	kind Kind
	err  error
}

func (e *taggedError) Error() string { return e.err.Error() }
func (e *taggedError) Cause() error  { return e.err }
func (e *taggedError) Unwrap() error { return e.err }

// New wraps err, if non-nil, tagging it with kind and an operation
// description. It returns nil if err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{kind: kind, err: errors.Wrap(err, op)}
}

// Kind returns the Kind tagged onto err by New, walking the error's cause
// chain, or Other if err was never tagged.
func Kind(err error) Kind {
	for err != nil {
		if t, ok := err.(*taggedError); ok {
			return t.kind
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = cause.Cause()
	}
	return Other
}
