package randomaccessmanager

import (
	"context"
	"io"
	"sync"

	"github.com/mlange-dev/bamra/bgzf"
)

type decompressResult struct {
	block bgzf.DecompressedBlock
	err   error
}

// Decompressor implements §4.4: it transforms a raw-block stream into a
// same-ordered stream of decompressed blocks. With Workers < 2 it inflates
// synchronously on the calling goroutine; with Workers >= 2 it prefetches
// up to that many inflate tasks ahead of the consumer and reaps them in
// submission order, hiding worker completion order behind a FIFO join.
type Decompressor struct {
	ctx           context.Context
	src           rawBlockSource
	newDecompress func() bgzf.Decompressor
	cache         *Cache
	fileID        uintptr
	workers       int

	sync bgzf.Decompressor // used when workers < 2

	pending  chan chan decompressResult
	stop     chan struct{}
	stopOnce sync.Once

	stats *Stats
}

// NewDecompressor returns a Decompressor pulling raw blocks from src.
// ctx must be non-nil (use context.Background() for an uncancellable
// query). newDecompress must return a fresh, unshared bgzf.Decompressor
// each call; when Workers >= 2 a separate decompressor is used per
// in-flight task since bgzf.Decompressor implementations are not
// required to be concurrency-safe. Cancelling ctx stops submission of
// further jobs; see Query's doc comment for the exact semantics.
func NewDecompressor(ctx context.Context, src rawBlockSource, newDecompress func() bgzf.Decompressor, opts Options, stats *Stats) *Decompressor {
	d := &Decompressor{
		ctx:           ctx,
		src:           src,
		newDecompress: newDecompress,
		cache:         opts.Cache,
		fileID:        opts.FileID,
		workers:       opts.Workers,
		stats:         stats,
	}
	if d.workers >= 2 {
		d.pending = make(chan chan decompressResult, d.workers)
		d.stop = make(chan struct{})
		go d.produce()
	} else {
		d.sync = newDecompress()
	}
	return d
}

func (d *Decompressor) produce() {
	defer close(d.pending)
	for {
		if d.ctx.Err() != nil {
			return
		}
		rb, err := d.src.Next()
		if err != nil {
			rc := make(chan decompressResult, 1)
			rc <- decompressResult{err: err}
			select {
			case d.pending <- rc:
			case <-d.stop:
			case <-d.ctx.Done():
			}
			return
		}
		rc := make(chan decompressResult, 1)
		select {
		case d.pending <- rc:
		case <-d.stop:
			return
		case <-d.ctx.Done():
			return
		}
		go func(rb bgzf.RawBlock, rc chan decompressResult) {
			rc <- d.decompressOne(d.newDecompress(), rb)
		}(rb, rc)
	}
}

func (d *Decompressor) decompressOne(dec bgzf.Decompressor, rb bgzf.RawBlock) decompressResult {
	if d.cache != nil {
		if db, ok := d.cache.get(d.fileID, rb.Start.File); ok {
			if d.stats != nil {
				d.stats.CacheHits++
			}
			return decompressResult{block: db}
		}
	}
	db, err := dec.Decompress(rb)
	if err != nil {
		return decompressResult{err: err}
	}
	if d.cache != nil {
		d.cache.put(d.fileID, rb.Start.File, db)
	}
	return decompressResult{block: db}
}

// Next returns the next decompressed block in raw-stream order, or io.EOF
// once the underlying raw-block stream is exhausted.
func (d *Decompressor) Next() (bgzf.DecompressedBlock, error) {
	block, err := d.next()
	if err == nil && d.stats != nil {
		d.stats.BlocksDecompressed++
	}
	return block, err
}

func (d *Decompressor) next() (bgzf.DecompressedBlock, error) {
	if err := d.ctx.Err(); err != nil {
		return bgzf.DecompressedBlock{}, err
	}
	if d.workers < 2 {
		rb, err := d.src.Next()
		if err != nil {
			return bgzf.DecompressedBlock{}, err
		}
		r := d.decompressOne(d.sync, rb)
		return r.block, r.err
	}
	rc, ok := <-d.pending
	if !ok {
		return bgzf.DecompressedBlock{}, io.EOF
	}
	r := <-rc
	return r.block, r.err
}

// Close cancels any in-flight prefetch tasks. Bytes produced by tasks
// already running are discarded; Close does not wait for them.
func (d *Decompressor) Close() error {
	if d.stop != nil {
		d.stopOnce.Do(func() { close(d.stop) })
	}
	return nil
}
