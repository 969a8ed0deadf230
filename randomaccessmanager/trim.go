package randomaccessmanager

import "github.com/mlange-dev/bamra/bgzf"

type decompressedSource interface {
	Next() (bgzf.DecompressedBlock, error)
}

// AugmentedBlock is a decompressed block annotated with the number of
// leading and trailing bytes that fall outside the chunk currently being
// read, per §4.5.
type AugmentedBlock struct {
	Start              bgzf.Offset
	Data               []byte
	SkipStart, SkipEnd int
}

// Trimmer implements §4.5: it walks a decompressed block stream in lockstep
// with the same sorted, disjoint chunk list the Splicer consumed, assigning
// SkipStart/SkipEnd to the blocks that straddle a chunk boundary.
type Trimmer struct {
	src    decompressedSource
	chunks []bgzf.Chunk
	idx    int
}

// NewTrimmer returns a Trimmer reading from src. chunks must be the same
// coalesced, sorted chunk list given to the Splicer that produced src's raw
// blocks (after decompression).
func NewTrimmer(src decompressedSource, chunks []bgzf.Chunk) *Trimmer {
	return &Trimmer{src: src, chunks: chunks}
}

// Next returns the next augmented block, or the error (typically io.EOF)
// from the underlying decompressed stream.
func (t *Trimmer) Next() (AugmentedBlock, error) {
	db, err := t.src.Next()
	if err != nil {
		return AugmentedBlock{}, err
	}
	ab := AugmentedBlock{Start: db.Start, Data: db.Data}
	if t.idx >= len(t.chunks) {
		return ab, nil
	}
	c := t.chunks[t.idx]
	if db.Start.File == c.Begin.File {
		ab.SkipStart = int(c.Begin.Block)
	}
	if db.Start.File == c.End.File {
		ab.SkipEnd = len(db.Data) - int(c.End.Block)
		t.idx++
	}
	return ab, nil
}
