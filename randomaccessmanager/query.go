package randomaccessmanager

import (
	"context"
	"io"
	"sort"

	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/internal/errs"
)

// Query wires the full pipeline of §2 together for a single genomic
// interval and returns a Filter the caller can pull overlapping records
// from, plus the Stats accumulated along the way.
//
// newSource is invoked once per coalesced chunk to obtain a freshly
// seekable bgzf.BlockSource; newDecompress is invoked once (Workers < 2) or
// once per in-flight block (Workers >= 2) to obtain an inflate stream.
// Neither factory is called if the query resolves to zero chunks.
//
// ctx must be non-nil (use context.Background() for an uncancellable
// query). Cancelling ctx stops submission of further decompression jobs
// once Workers >= 2; in-flight inflate work already running is allowed
// to finish, matching Decompressor.Close's own semantics. With Workers
// < 2, ctx is checked once per block before the synchronous inflate
// call.
func Query(
	ctx context.Context,
	idx Index,
	refID, beg, end int,
	newSource func() (bgzf.BlockSource, error),
	newDecompress func() bgzf.Decompressor,
	decoder RecordDecoder,
	opts Options,
) (*Filter, *Stats, error) {
	stats := &Stats{}
	if end <= beg {
		return &Filter{done: true}, stats, nil
	}
	if end < 0 || beg < 0 {
		return nil, nil, errs.New(errs.InvalidQuery, "randomaccessmanager: negative coordinate", errNegativeCoordinate)
	}

	chunks, err := idx.Chunks(refID, beg, end)
	if err != nil {
		return nil, nil, err
	}
	stats.ChunksResolved = len(chunks)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Begin.Less(chunks[j].Begin) })
	merged := Coalesce(chunks)
	stats.ChunksCoalesced = len(merged)

	if len(merged) == 0 {
		return &Filter{done: true}, stats, nil
	}

	splicer := NewSplicer(newSource, merged)
	decomp := NewDecompressor(ctx, splicer, newDecompress, opts, stats)
	trimmer := NewTrimmer(countingDecompressor{decomp, stats}, merged)
	stream := NewStream(trimmer)
	filter := NewFilter(decoder, stream, refID, beg, end, stats)
	filter.closers = []io.Closer{splicer, decomp}
	return filter, stats, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errNegativeCoordinate = sentinelError("randomaccessmanager: beg/end must be non-negative")

// countingDecompressor wraps a Decompressor to count spliced blocks once
// they reach the trimmer, i.e. once they are known to be part of the
// emitted stream rather than a discarded over-run block.
type countingDecompressor struct {
	*Decompressor
	stats *Stats
}

func (c countingDecompressor) Next() (bgzf.DecompressedBlock, error) {
	db, err := c.Decompressor.Next()
	if err == nil && c.stats != nil {
		c.stats.BlocksSpliced++
	}
	return db, err
}
