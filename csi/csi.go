// Package csi implements reading of the CSI index format: a generalization
// of BAI that replaces its fixed 14-bit/6-level binning scheme and
// 16384bp-windowed linear index with a configurable minShift/depth scheme
// and a per-bin virtual offset (loffset) used for the equivalent pruning
// step. CSI is a supplemental feature this engine offers alongside BAI,
// behind the same Index contract randomaccessmanager consumes.
package csi

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/internal/binning"
	"github.com/mlange-dev/bamra/internal/errs"
)

var magic = [3]byte{'C', 'S', 'I'}

// pseudoBin mirrors BAI's reserved bin id for per-reference statistics;
// CSI writers that carry stats use the same value.
const pseudoBin = 0x924a

// ReferenceStats mirrors bai.ReferenceStats for CSI's optional pseudo-bin.
type ReferenceStats struct {
	Chunk            bgzf.Chunk
	Mapped, Unmapped uint64
}

type bin struct {
	loffset bgzf.Offset
	chunks  []bgzf.Chunk
}

type refIndex struct {
	bins  map[uint32]bin
	stats *ReferenceStats
}

// Index is a parsed CSI index.
type Index struct {
	Version byte
	Aux     []byte

	scheme   binning.Scheme
	refs     []refIndex
	unmapped *uint64
}

// Scheme returns the minShift/depth the index was built with.
func (idx *Index) Scheme() binning.Scheme { return idx.scheme }

// NumRefs returns the number of references the index covers.
func (idx *Index) NumRefs() int { return len(idx.refs) }

// ReferenceStats returns the pseudo-bin statistics for reference id, if the
// index carries them.
func (idx *Index) ReferenceStats(id int) (ReferenceStats, bool) {
	if id < 0 || id >= len(idx.refs) || idx.refs[id].stats == nil {
		return ReferenceStats{}, false
	}
	return *idx.refs[id].stats, true
}

// Unmapped returns the count of unplaced unmapped reads, if the index
// carries a trailing count.
func (idx *Index) Unmapped() (uint64, bool) {
	if idx.unmapped == nil {
		return 0, false
	}
	return *idx.unmapped, true
}

// ReadIndex parses a CSI index from r. Per the CSI specification, a CSI
// file is itself BGZF-compressed on disk; ReadIndex expects r to already
// be decompressed (callers typically wrap the file in bgzf.NewReader
// first).
func ReadIndex(r io.Reader) (*Index, error) {
	var gotMagic [3]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, errs.New(errs.IndexMissing, "csi: reading magic", err)
	}
	if gotMagic != magic {
		return nil, errs.New(errs.IndexMissing, "csi: bad magic", errBadMagic)
	}
	version, err := readByte(r)
	if err != nil {
		return nil, errs.New(errs.IndexMissing, "csi: reading version", err)
	}
	if version != 0x1 && version != 0x2 {
		return nil, errs.New(errs.IndexMissing, "csi: unsupported version", errBadVersion)
	}

	minShift, err := readUint32(r)
	if err != nil {
		return nil, errs.New(errs.IndexMissing, "csi: reading min_shift", err)
	}
	depth, err := readUint32(r)
	if err != nil {
		return nil, errs.New(errs.IndexMissing, "csi: reading depth", err)
	}
	if int(depth) > binning.MaxDepth {
		return nil, errs.New(errs.IndexMissing, "csi: depth out of supported range", errBadScheme)
	}
	scheme := binning.Scheme{MinShift: int(minShift), Depth: int(depth)}

	lAux, err := readInt32(r)
	if err != nil {
		return nil, errs.New(errs.IndexMissing, "csi: reading aux length", err)
	}
	var aux []byte
	if lAux > 0 {
		aux = make([]byte, lAux)
		if _, err := io.ReadFull(r, aux); err != nil {
			return nil, errs.New(errs.IndexMissing, "csi: reading aux data", err)
		}
	}

	nRef, err := readInt32(r)
	if err != nil {
		return nil, errs.New(errs.IndexMissing, "csi: reading reference count", err)
	}

	idx := &Index{Version: version, Aux: aux, scheme: scheme, refs: make([]refIndex, nRef)}
	for i := range idx.refs {
		ref := &idx.refs[i]
		ref.bins = make(map[uint32]bin)

		nBin, err := readInt32(r)
		if err != nil {
			return nil, errs.New(errs.IndexMissing, "csi: reading bin count", err)
		}
		for b := int32(0); b < nBin; b++ {
			binID, err := readUint32(r)
			if err != nil {
				return nil, errs.New(errs.IndexMissing, "csi: reading bin id", err)
			}
			loffset, err := readUint64(r)
			if err != nil {
				return nil, errs.New(errs.IndexMissing, "csi: reading loffset", err)
			}
			if version == 0x2 {
				if _, err := readUint64(r); err != nil { // record count, unused.
					return nil, errs.New(errs.IndexMissing, "csi: reading record count", err)
				}
			}
			nChunk, err := readInt32(r)
			if err != nil {
				return nil, errs.New(errs.IndexMissing, "csi: reading chunk count", err)
			}
			if binID == pseudoBin {
				if nChunk != 2 {
					return nil, errs.New(errs.CorruptRecord, "csi: malformed pseudo-bin", errBadPseudoBin)
				}
				begChunk, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "csi: reading stats chunk begin", err)
				}
				endChunk, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "csi: reading stats chunk end", err)
				}
				mapped, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "csi: reading mapped count", err)
				}
				unmapped, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "csi: reading unmapped count", err)
				}
				ref.stats = &ReferenceStats{
					Chunk:    bgzf.Chunk{Begin: bgzf.Unpack(begChunk), End: bgzf.Unpack(endChunk)},
					Mapped:   mapped,
					Unmapped: unmapped,
				}
				continue
			}
			chunks := make([]bgzf.Chunk, nChunk)
			for c := range chunks {
				beg, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "csi: reading chunk begin", err)
				}
				end, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "csi: reading chunk end", err)
				}
				chunks[c] = bgzf.Chunk{Begin: bgzf.Unpack(beg), End: bgzf.Unpack(end)}
			}
			ref.bins[binID] = bin{loffset: bgzf.Unpack(loffset), chunks: chunks}
		}
	}

	if n, err := readUint64(r); err == nil {
		idx.unmapped = &n
	}

	return idx, nil
}

// Chunks implements the same Index Resolver contract as bai.Index.Chunks,
// using CSI's per-bin loffset in place of BAI's fixed-width linear index
// for pruning: the minimum virtual offset considered is the largest
// loffset among the ancestor bins of beg, since any record relevant to an
// equal-or-coarser bin must start at or after that bin's first record.
func (idx *Index) Chunks(refID, beg, end int) ([]bgzf.Chunk, error) {
	if refID < 0 || refID >= len(idx.refs) {
		return nil, errs.New(errs.InvalidQuery, "csi: reference out of range", errBadReference)
	}
	if beg < 0 || end < beg {
		return nil, errs.New(errs.InvalidQuery, "csi: invalid interval", errBadInterval)
	}
	ref := &idx.refs[refID]

	var minOffset bgzf.Offset
	for _, ancestor := range idx.scheme.BinChainFor(beg) {
		if b, ok := ref.bins[ancestor]; ok && b.loffset.Compare(minOffset) > 0 {
			minOffset = b.loffset
		}
	}

	var chunks []bgzf.Chunk
	for _, binID := range idx.scheme.OverlappingBinsFor(beg, end) {
		b, ok := ref.bins[binID]
		if !ok {
			continue
		}
		for _, c := range b.chunks {
			if c.End.Compare(minOffset) <= 0 {
				continue
			}
			chunks = append(chunks, c)
		}
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Begin.Less(chunks[j].Begin)
	})
	return chunks, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	errBadMagic     = sentinelError("csi: not a CSI file")
	errBadVersion   = sentinelError("csi: unsupported version byte")
	errBadScheme    = sentinelError("csi: unsupported depth")
	errBadPseudoBin = sentinelError("csi: pseudo-bin does not have two chunks")
	errBadReference = sentinelError("csi: reference id out of range")
	errBadInterval  = sentinelError("csi: beg/end out of order")
)
