// Package randomaccessmanager implements the random-access query path over
// a BGZF-compressed, BAI/CSI-indexed alignment stream: resolving a genomic
// interval to index chunks, coalescing and splicing the compressed blocks
// those chunks touch, decompressing them (optionally with a bounded worker
// pool), trimming block boundaries down to the chunk's virtual offsets, and
// filtering the decoded records down to those that actually overlap the
// query interval.
package randomaccessmanager

import (
	"github.com/mlange-dev/bamra/bgzf"
)

// Index is the subset of bai.Index and csi.Index this package depends on.
// Both packages' ReadIndex result types satisfy it.
type Index interface {
	Chunks(refID, beg, end int) ([]bgzf.Chunk, error)
}

// Record is the subset of sam.Record this package depends on in order to
// apply the overlap filter of §4.7. *sam.Record satisfies it directly.
type Record interface {
	RefID() int
	Start() int
	BasesCovered() int
}

// RecordDecoder decodes one alignment record from r, advancing r by exactly
// the record's on-disk length. Implementations are expected to return
// io.EOF when the stream is exhausted at a record boundary.
type RecordDecoder interface {
	Decode(r *Stream) (Record, error)
}

// Stats accumulates counters describing a single Query's pipeline activity,
// useful for diagnostics and tests.
type Stats struct {
	ChunksResolved     int
	ChunksCoalesced    int
	BlocksSpliced      int
	BlocksDecompressed int
	CacheHits          int
	RecordsDecoded     int
	RecordsEmitted     int
}

// Options configures the optional layers of a Query.
type Options struct {
	// Workers is the size of the decompression worker pool. Values less
	// than 2 make decompression synchronous on the consuming goroutine.
	Workers int
	// Cache, if non-nil, memoizes decompressed blocks across Splicer reads
	// keyed by (FileID, start offset). A single Cache may be shared across
	// concurrent queries against the same underlying file.
	Cache *Cache
	// FileID identifies the backing file for the Cache's keys. Queries
	// against different files must use distinct FileIDs to avoid cache
	// collisions.
	FileID uintptr
}
