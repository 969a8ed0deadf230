// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/mlange-dev/bamra/internal/pool"
)

// gzipHeaderFixedLen is the length, in bytes, of the fixed portion of a
// gzip member header: ID1, ID2, CM, FLG, MTIME(4), XFL, OS.
const gzipHeaderFixedLen = 10

// RawBlock is one still-compressed BGZF member as read directly off disk,
// addressed by the virtual offset of its first byte.
type RawBlock struct {
	// Start is the virtual offset of the first decompressed byte this
	// block will produce; its Block field is always zero.
	Start Offset
	// Size is the on-disk length of the member, header through footer.
	Size int
	// Deflate is the raw deflate-compressed payload, excluding the gzip
	// header and footer.
	Deflate []byte
	// ISize is the declared (uncompressed) size of Deflate once inflated.
	ISize uint32
	// CRC32 is the declared CRC-32 of the decompressed payload.
	CRC32 uint32
}

// DecompressedBlock is the result of inflating a RawBlock.
type DecompressedBlock struct {
	// Start is the virtual offset of Data[0].
	Start Offset
	// Data is the decompressed payload of the member, of length ISize.
	Data []byte
}

// BlockSource produces the sequence of raw BGZF blocks making up a file,
// starting wherever it is positioned. It is the external collaborator
// behind the "Compressed-Block Splicer" pipeline stage: the splicer does
// not itself know how to read bytes off disk or over the network, it only
// asks a BlockSource for the next block.
type BlockSource interface {
	// Next returns the next raw block at or after the source's current
	// position, or io.EOF when no block remains (including when only the
	// trailing empty EOF marker block remains).
	Next() (RawBlock, error)
	// SeekFile repositions the source so that the next call to Next
	// returns the block beginning at the given compressed file offset.
	SeekFile(coffset int64) error
	Close() error
}

// Decompressor turns a RawBlock into its decompressed form. Implementations
// may be reused across goroutines provided each call owns a distinct
// RawBlock; a single Decompressor value is not required to be safe for
// concurrent use unless documented otherwise.
type Decompressor interface {
	Decompress(RawBlock) (DecompressedBlock, error)
}

// flateDecompressor implements Decompressor using klauspost/compress's
// flate, which exposes a resettable reader so a single decompressor can be
// reused across many blocks without reallocating its window - exactly the
// shape the parallel decompressor in randomaccessmanager wants for a
// per-worker decompressor instance.
type flateDecompressor struct {
	fr io.ReadCloser
}

// NewDecompressor returns a Decompressor suitable for giving one per worker
// goroutine to randomaccessmanager's parallel decompression pool.
func NewDecompressor() Decompressor {
	return &flateDecompressor{fr: flate.NewReader(bytes.NewReader(nil))}
}

func (d *flateDecompressor) Decompress(rb RawBlock) (DecompressedBlock, error) {
	if err := d.fr.(flate.Resetter).Reset(bytes.NewReader(rb.Deflate), nil); err != nil {
		return DecompressedBlock{}, errWrap("bgzf: resetting inflate stream", err)
	}
	data := make([]byte, rb.ISize)
	if _, err := io.ReadFull(d.fr, data); err != nil {
		return DecompressedBlock{}, errCorrupt("bgzf: inflated data shorter than declared ISize")
	}
	if crc32.ChecksumIEEE(data) != rb.CRC32 {
		return DecompressedBlock{}, errCorrupt("bgzf: CRC-32 mismatch")
	}
	return DecompressedBlock{Start: rb.Start, Data: data}, nil
}

// fileBlockSource reads raw BGZF members directly from an io.ReadSeeker,
// without inflating them - the form randomaccessmanager's splicer wants so
// decompression can happen later, in parallel, across worker goroutines.
type fileBlockSource struct {
	r      io.ReadSeeker
	br     *bufio.Reader
	pos    int64 // current compressed file offset, start of next member.
	closer io.Closer
}

// NewFileBlockSource returns a BlockSource reading raw members from r,
// starting at the current position of r.
func NewFileBlockSource(r io.ReadSeeker) BlockSource {
	c, _ := r.(io.Closer)
	return &fileBlockSource{r: r, br: bufio.NewReader(r), closer: c}
}

func (s *fileBlockSource) SeekFile(coffset int64) error {
	if _, err := s.r.Seek(coffset, io.SeekStart); err != nil {
		return errWrap("bgzf: seeking block source", err)
	}
	s.br.Reset(s.r)
	s.pos = coffset
	return nil
}

func (s *fileBlockSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Next reads and returns the next raw BGZF member.
func (s *fileBlockSource) Next() (RawBlock, error) {
	start := s.pos
	hdr := pool.GetBuffer(gzipHeaderFixedLen + 2)
	defer pool.PutBuffer(hdr)
	if _, err := io.ReadFull(s.br, hdr); err != nil {
		if err == io.EOF {
			return RawBlock{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return RawBlock{}, errTruncated("bgzf: reading member header", err)
		}
		return RawBlock{}, errWrap("bgzf: reading member header", err)
	}
	if hdr[0] != 0x1f || hdr[1] != 0x8b {
		return RawBlock{}, errCorrupt("bgzf: bad gzip magic")
	}
	if hdr[3]&0x04 == 0 {
		return RawBlock{}, errCorrupt("bgzf: member missing FEXTRA flag")
	}
	xlen := int(binary.LittleEndian.Uint16(hdr[10:12]))
	extra := pool.GetBuffer(xlen)
	defer pool.PutBuffer(extra)
	if _, err := io.ReadFull(s.br, extra); err != nil {
		return RawBlock{}, errTruncated("bgzf: reading extra field", err)
	}
	bsize, err := bsizeFromExtra(extra)
	if err != nil {
		return RawBlock{}, errCorrupt("bgzf: missing or short BC subfield")
	}
	total := bsize + 1
	headerLen := gzipHeaderFixedLen + 2 + xlen
	deflateLen := total - headerLen - blockFooterLen
	if deflateLen < 0 {
		return RawBlock{}, errCorrupt("bgzf: member size too small for declared header")
	}
	deflate := make([]byte, deflateLen)
	if _, err := io.ReadFull(s.br, deflate); err != nil {
		return RawBlock{}, errTruncated("bgzf: reading deflate payload", err)
	}
	footer := pool.GetBuffer(blockFooterLen)
	defer pool.PutBuffer(footer)
	if _, err := io.ReadFull(s.br, footer); err != nil {
		return RawBlock{}, errTruncated("bgzf: reading member footer", err)
	}
	s.pos = start + int64(total)
	isize := binary.LittleEndian.Uint32(footer[4:8])
	if isize == 0 {
		// An empty member with nothing after it is the trailing EOF marker.
		if _, err := s.br.Peek(1); err == io.EOF {
			return RawBlock{}, io.EOF
		}
	}
	return RawBlock{
		Start:   Offset{File: start},
		Size:    total,
		Deflate: deflate,
		CRC32:   binary.LittleEndian.Uint32(footer[0:4]),
		ISize:   isize,
	}, nil
}
