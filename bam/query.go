// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"context"
	"os"
	"unsafe"

	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/internal/errs"
	"github.com/mlange-dev/bamra/randomaccessmanager"
	"github.com/mlange-dev/bamra/sam"
)

// File bundles a BAM file on disk with the index used to resolve region
// queries against it. A File may be queried any number of times
// concurrently; each Query opens its own file descriptors.
type File struct {
	path string
	h    *sam.Header
	idx  randomaccessmanager.Index
}

// Open opens the BAM file at path, reads its header, and pairs it with
// idx for later Query calls. idx is typically a *bai.Index or *csi.Index
// already loaded by the caller; it may be nil if only Scan is needed.
func Open(path string, idx randomaccessmanager.Index) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.IoError, "bam: opening file", err)
	}
	defer f.Close()

	bg, err := bgzf.NewReader(f)
	if err != nil {
		return nil, err
	}
	h, _ := sam.NewHeader(nil, nil)
	if err := h.DecodeBinary(bg); err != nil {
		return nil, err
	}
	return &File{path: path, h: h, idx: idx}, nil
}

// Header returns the SAM Header held by the File.
func (bf *File) Header() *sam.Header { return bf.h }

// Scan opens a sequential Reader over the whole file, positioned after
// the header. The caller must Close the returned Reader.
func (bf *File) Scan() (*Reader, error) {
	f, err := os.Open(bf.path)
	if err != nil {
		return nil, errs.New(errs.IoError, "bam: opening file", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// QueryOptions configures a region Query beyond the coordinates
// themselves.
type QueryOptions struct {
	// Workers is the decompression worker pool size; see
	// randomaccessmanager.Options.Workers.
	Workers int
	// Cache, if non-nil, memoizes decompressed blocks across repeat
	// queries against this File.
	Cache *randomaccessmanager.Cache
	// Omit controls which variable-length fields decoded records carry.
	Omit Omit
}

// Query resolves the half-open interval [beg, end) on reference refID
// against the File's index and returns a Filter yielding the overlapping
// records in file order. The caller must Close the returned Filter.
// Cancelling ctx stops the query from submitting further decompression
// work; see randomaccessmanager.Query for the exact semantics.
func (bf *File) Query(ctx context.Context, refID, beg, end int, opts QueryOptions) (*randomaccessmanager.Filter, *randomaccessmanager.Stats, error) {
	if bf.idx == nil {
		return nil, nil, errs.New(errs.IndexMissing, "bam: querying file", errNoIndex)
	}

	newSource := func() (bgzf.BlockSource, error) {
		f, err := os.Open(bf.path)
		if err != nil {
			return nil, errs.New(errs.IoError, "bam: opening file for chunk read", err)
		}
		return bgzf.NewFileBlockSource(f), nil
	}
	newDecompress := func() bgzf.Decompressor { return bgzf.NewDecompressor() }
	decoder := &RecordDecoder{Header: bf.h, Omit: opts.Omit}

	return randomaccessmanager.Query(ctx, bf.idx, refID, beg, end, newSource, newDecompress, decoder, randomaccessmanager.Options{
		Workers: opts.Workers,
		Cache:   opts.Cache,
		FileID:  uintptr(unsafe.Pointer(bf)),
	})
}

var errNoIndex = recordError("bam: file opened without an index")
