// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"io"

	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/sam"
)

// Reader performs a sequential, linear scan over a BAM stream. It is the
// full-scan counterpart to Query: where Query jumps straight to the
// blocks an index says matter, Reader walks every record in file order,
// decompressing and decoding as it goes. That makes it the natural oracle
// to check Query's output against, and the natural tool when a caller
// really does want every record.
type Reader struct {
	r      *bgzf.Reader
	h      *sam.Header
	omit   Omit
	closer io.Closer
}

// NewReader returns a new Reader reading BAM data from r, whose first
// bytes must be the BAM magic and header. If r also implements io.Closer,
// Reader.Close closes it too.
func NewReader(r io.Reader) (*Reader, error) {
	bg, err := bgzf.NewReader(r)
	if err != nil {
		return nil, err
	}
	h, _ := sam.NewHeader(nil, nil)
	if err := h.DecodeBinary(bg); err != nil {
		return nil, err
	}
	closer, _ := r.(io.Closer)
	return &Reader{r: bg, h: h, closer: closer}, nil
}

// Header returns the SAM Header held by the Reader.
func (br *Reader) Header() *sam.Header { return br.h }

// Omit specifies what portions of the Record to omit reading. When o is
// None, a full sam.Record is returned by Read; when o is AuxTags the
// auxiliary tag data is omitted; when o is AllVariableLengthData,
// sequence, quality and auxiliary data are all omitted.
func (br *Reader) Omit(o Omit) { br.omit = o }

// Read returns the next sam.Record in the BAM stream.
func (br *Reader) Read() (*sam.Record, error) {
	return decodeRecord(br.r, br.h, br.omit)
}

// Close releases the resources held by the Reader.
func (br *Reader) Close() error {
	err := br.r.Close()
	if br.closer != nil {
		if cerr := br.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Iterator wraps a Reader to provide a convenient loop interface for
// reading an entire BAM stream. Successive calls to Next step through
// every record in the Reader. Iteration stops unrecoverably at EOF or the
// first error.
type Iterator struct {
	r   *Reader
	rec *sam.Record
	err error
}

// NewIterator returns an Iterator reading every record from r.
func NewIterator(r *Reader) *Iterator {
	return &Iterator{r: r}
}

// Next advances the Iterator past the next record, which is then
// available through Record. It returns false when iteration stops, either
// by reaching the end of input or by hitting an error; Error then reports
// which.
func (i *Iterator) Next() bool {
	if i.err != nil {
		return false
	}
	i.rec, i.err = i.r.Read()
	return i.err == nil
}

// Error returns the first non-EOF error encountered by the Iterator.
func (i *Iterator) Error() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Record returns the most recent record read by a call to Next.
func (i *Iterator) Record() *sam.Record { return i.rec }

// Close releases the underlying Reader.
func (i *Iterator) Close() error {
	if err := i.r.Close(); err != nil && i.Error() == nil {
		return err
	}
	return i.Error()
}
