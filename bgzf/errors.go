package bgzf

import "github.com/mlange-dev/bamra/internal/errs"

// errWrap tags err as an I/O failure reading or seeking the underlying
// storage, unrelated to the validity of the bytes themselves.
func errWrap(op string, err error) error { return errs.New(errs.IoError, op, err) }

// errCorrupt reports a BGZF member that failed to parse.
func errCorrupt(msg string) error { return errs.New(errs.CorruptBlock, msg, errCorruptSentinel) }

var errCorruptSentinel = corruptBlockError{}

type corruptBlockError struct{}

func (corruptBlockError) Error() string { return "bgzf: corrupt block" }

// errTruncated reports a member that ends before all of its declared
// content was available.
func errTruncated(op string, err error) error { return errs.New(errs.UnexpectedEof, op, err) }
