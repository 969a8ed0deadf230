// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
)

// ErrNotASeeker is returned by Seek when the underlying reader does not
// implement io.Seeker.
var ErrNotASeeker = errors.New("bgzf: not a seeker")

// countReader wraps an io.Reader and tracks the number of bytes it has
// yielded, so a Reader can detect a mismatch between a member's declared
// BSIZE and the bytes actually consumed decoding it.
type countReader struct {
	r io.Reader
	n int64
}

func (r *countReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

// Reader performs sequential, single-goroutine decompression of a BGZF
// stream, exposing the virtual offset of the next byte to be read via
// Offset. It is the linear-scan counterpart to the chunk-oriented,
// concurrent reading done by randomaccessmanager for interval queries.
type Reader struct {
	cr     *countReader
	gz     *gzip.Reader
	offset Offset
	err    error
}

// NewReader returns a Reader positioned at the start of r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := &countReader{r: r}
	gz, err := gzip.NewReader(cr)
	if err != nil {
		return nil, errors.Wrap(err, "bgzf: reading first block header")
	}
	gz.Multistream(false)
	if _, err := bsizeFromExtra(gz.Header.Extra); err != nil {
		return nil, errors.Wrap(err, "bgzf: missing BC subfield")
	}
	return &Reader{cr: cr, gz: gz}, nil
}

// Offset returns the virtual offset of the next byte Read will return.
func (bg *Reader) Offset() Offset { return bg.offset }

// Seek repositions bg so that the next Read begins at off. The underlying
// reader must implement io.Seeker.
func (bg *Reader) Seek(off Offset) error {
	rs, ok := bg.cr.r.(io.Seeker)
	if !ok {
		return ErrNotASeeker
	}
	if _, err := rs.Seek(off.File, io.SeekStart); err != nil {
		bg.err = err
		return errors.Wrap(err, "bgzf: seeking to block")
	}
	bg.cr.n = off.File
	bg.err = bg.gz.Reset(bg.cr)
	if bg.err != nil {
		return errors.Wrap(bg.err, "bgzf: resetting at block boundary")
	}
	bg.gz.Multistream(false)
	bg.offset = Offset{File: off.File, Block: 0}
	if off.Block > 0 {
		n, err := io.CopyN(io.Discard, bg.gz, int64(off.Block))
		bg.offset.Block = uint16(n)
		if err != nil {
			bg.err = err
			return errors.Wrap(err, "bgzf: discarding to within-block offset")
		}
	}
	return nil
}

// Close releases resources held by the underlying gzip reader.
func (bg *Reader) Close() error { return bg.gz.Close() }

// Read implements io.Reader, transparently crossing member boundaries and
// advancing Offset as it goes.
func (bg *Reader) Read(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}

	var n int
	for n < len(p) && bg.err == nil {
		m, err := bg.gz.Read(p[n:])
		n += m
		bg.offset.Block += uint16(m)
		bg.err = err
		if err == io.EOF {
			if n == len(p) {
				bg.err = nil
				break
			}
			bsize, berr := bsizeFromExtra(bg.gz.Header.Extra)
			if berr != nil {
				bg.err = errors.Wrap(berr, "bgzf: missing BC subfield at member boundary")
				break
			}
			bg.offset.File += int64(bsize) + 1
			bg.offset.Block = 0
			bg.err = bg.gz.Reset(bg.cr)
			if bg.err == io.EOF {
				// No further members: leave err as io.EOF for the caller.
				break
			}
			if bg.err != nil {
				bg.err = errors.Wrap(bg.err, "bgzf: resetting at member boundary")
				break
			}
			bg.gz.Multistream(false)
		}
	}

	return n, bg.err
}
