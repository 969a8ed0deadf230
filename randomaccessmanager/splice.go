package randomaccessmanager

import (
	"io"

	"github.com/mlange-dev/bamra/bgzf"
)

// rawBlockSource is satisfied by bgzf.BlockSource and by the Splicer itself,
// letting the decompressor stage consume either directly.
type rawBlockSource interface {
	Next() (bgzf.RawBlock, error)
}

// Splicer implements §4.3: given a disjoint, VO-ordered chunk list, it
// yields a single ordered stream of raw BGZF blocks covering exactly those
// chunks. Per chunk it opens a fresh bgzf.BlockSource (see DESIGN.md's
// shared-vs-fresh-handle decision) positioned at the chunk's start file
// offset, and reads until a block starts past the chunk's end file offset.
type Splicer struct {
	newSource func() (bgzf.BlockSource, error)
	chunks    []bgzf.Chunk
	idx       int
	src       bgzf.BlockSource
	endFile   int64
}

// NewSplicer returns a Splicer over chunks, using newSource to obtain a
// freshly seekable bgzf.BlockSource for each chunk.
func NewSplicer(newSource func() (bgzf.BlockSource, error), chunks []bgzf.Chunk) *Splicer {
	return &Splicer{newSource: newSource, chunks: chunks}
}

// Next returns the next raw block in the spliced stream, or io.EOF once
// every chunk has been fully read.
func (s *Splicer) Next() (bgzf.RawBlock, error) {
	for {
		if s.src == nil {
			if s.idx >= len(s.chunks) {
				return bgzf.RawBlock{}, io.EOF
			}
			c := s.chunks[s.idx]
			src, err := s.newSource()
			if err != nil {
				return bgzf.RawBlock{}, err
			}
			if err := src.SeekFile(c.Begin.File); err != nil {
				src.Close()
				return bgzf.RawBlock{}, err
			}
			s.src = src
			s.endFile = c.End.File
		}

		rb, err := s.src.Next()
		if err == io.EOF {
			s.src.Close()
			s.src = nil
			s.idx++
			continue
		}
		if err != nil {
			s.src.Close()
			s.src = nil
			return bgzf.RawBlock{}, err
		}
		if rb.Start.File > s.endFile {
			// Block belongs past this chunk; the chunk's blocks are
			// exhausted. The block whose Start.File == endFile was
			// already returned by a prior iteration, per §4.3.
			s.src.Close()
			s.src = nil
			s.idx++
			continue
		}
		return rb, nil
	}
}

// Close releases any open chunk source. Safe to call after Next has
// returned io.EOF.
func (s *Splicer) Close() error {
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}
