// Package bai implements reading of the BAI index format: the hierarchical
// bin index plus 16384bp-windowed linear index BAM files use for random
// access, and the Index Resolver (§4.1) that turns a coordinate interval
// into the list of BGZF chunks that might contain overlapping records.
//
// http://samtools.github.io/hts-specs/SAMv1.pdf, section 5.
package bai

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/internal/binning"
	"github.com/mlange-dev/bamra/internal/errs"
)

// pseudoBin is the reserved bin id BAI uses to carry per-reference mapped
// and unmapped record counts instead of alignment chunks.
const pseudoBin = 37450 // 0x924a

// linearWindow is the width, in reference bases, of each linear-index tile.
const linearWindow = 1 << 14

var magic = [4]byte{'B', 'A', 'I', 0x1}

// ReferenceStats holds the per-reference bookkeeping BAI's pseudo-bin
// carries: a chunk spanning the reference's alignment records, and mapped/
// unmapped record counts.
type ReferenceStats struct {
	Chunk           bgzf.Chunk
	Mapped, Unmapped uint64
}

type refIndex struct {
	bins      map[uint32][]bgzf.Chunk
	intervals []bgzf.Offset
	stats     *ReferenceStats
}

// Index is a parsed BAI index.
type Index struct {
	refs     []refIndex
	unmapped *uint64
}

// ReadIndex parses a BAI index from r.
func ReadIndex(r io.Reader) (*Index, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, errs.New(errs.IndexMissing, "bai: reading magic", err)
	}
	if gotMagic != magic {
		return nil, errs.New(errs.IndexMissing, "bai: bad magic", errBadMagic)
	}

	nRef, err := readInt32(r)
	if err != nil {
		return nil, errs.New(errs.IndexMissing, "bai: reading reference count", err)
	}

	idx := &Index{refs: make([]refIndex, nRef)}
	for i := range idx.refs {
		ref := &idx.refs[i]
		ref.bins = make(map[uint32][]bgzf.Chunk)

		nBin, err := readInt32(r)
		if err != nil {
			return nil, errs.New(errs.IndexMissing, "bai: reading bin count", err)
		}
		for b := int32(0); b < nBin; b++ {
			bin, err := readUint32(r)
			if err != nil {
				return nil, errs.New(errs.IndexMissing, "bai: reading bin id", err)
			}
			nChunk, err := readInt32(r)
			if err != nil {
				return nil, errs.New(errs.IndexMissing, "bai: reading chunk count", err)
			}
			chunks := make([]bgzf.Chunk, nChunk)
			for c := range chunks {
				beg, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "bai: reading chunk begin", err)
				}
				end, err := readUint64(r)
				if err != nil {
					return nil, errs.New(errs.IndexMissing, "bai: reading chunk end", err)
				}
				chunks[c] = bgzf.Chunk{Begin: bgzf.Unpack(beg), End: bgzf.Unpack(end)}
			}
			if bin == pseudoBin {
				if len(chunks) != 2 {
					return nil, errs.New(errs.CorruptRecord, "bai: malformed pseudo-bin", errBadPseudoBin)
				}
				ref.stats = &ReferenceStats{
					Chunk:    chunks[0],
					Mapped:   chunks[1].Begin.Pack(),
					Unmapped: chunks[1].End.Pack(),
				}
				continue
			}
			ref.bins[bin] = chunks
		}

		nIntv, err := readInt32(r)
		if err != nil {
			return nil, errs.New(errs.IndexMissing, "bai: reading interval count", err)
		}
		ref.intervals = make([]bgzf.Offset, nIntv)
		for v := range ref.intervals {
			vo, err := readUint64(r)
			if err != nil {
				return nil, errs.New(errs.IndexMissing, "bai: reading linear index entry", err)
			}
			ref.intervals[v] = bgzf.Unpack(vo)
		}
	}

	// The trailing unplaced-unmapped count is optional; its absence is not
	// an error, just a shorter-than-some-writers file.
	if n, err := readUint64(r); err == nil {
		idx.unmapped = &n
	}

	return idx, nil
}

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

// Unmapped returns the count of unplaced unmapped reads recorded at the end
// of the index, if present.
func (idx *Index) Unmapped() (uint64, bool) {
	if idx.unmapped == nil {
		return 0, false
	}
	return *idx.unmapped, true
}

// Chunks implements the Index Resolver (§4.1): it returns every BGZF chunk
// that might hold a record on reference refID overlapping the half-open
// interval [beg, end), pruned by the linear index but not yet coalesced -
// coalescing adjacent/overlapping chunks is the Chunk Coalescer's job, one
// stage further down the pipeline.
func (idx *Index) Chunks(refID, beg, end int) ([]bgzf.Chunk, error) {
	if refID < 0 || refID >= len(idx.refs) {
		return nil, errs.New(errs.InvalidQuery, "bai: reference out of range", errBadReference)
	}
	if beg < 0 || end < beg {
		return nil, errs.New(errs.InvalidQuery, "bai: invalid interval", errBadInterval)
	}
	ref := &idx.refs[refID]

	var minOffset bgzf.Offset
	if iv := beg / linearWindow; iv < len(ref.intervals) {
		for ; iv < len(ref.intervals); iv++ {
			if o := ref.intervals[iv]; o != (bgzf.Offset{}) {
				minOffset = o
				break
			}
		}
	}

	var chunks []bgzf.Chunk
	for _, bin := range binning.OverlappingBinsFor(beg, end) {
		for _, c := range ref.bins[bin] {
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
	errBadMagic     = sentinelError("bai: not a BAI file")
	errBadPseudoBin = sentinelError("bai: pseudo-bin does not have two chunks")
	errBadReference = sentinelError("bai: reference id out of range")
	errBadInterval  = sentinelError("bai: beg/end out of order")
)
