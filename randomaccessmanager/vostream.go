package randomaccessmanager

import "github.com/mlange-dev/bamra/bgzf"

type augmentedSource interface {
	Next() (AugmentedBlock, error)
}

// Stream implements §4.6: a linear byte reader over a trimmed block stream
// that tracks the BAI-style virtual offset of the next byte to be read. It
// satisfies io.Reader, so a RecordDecoder can pull from it with io.ReadFull
// and get the conventional (0 bytes read -> io.EOF,
// partial read -> io.ErrUnexpectedEOF) distinction for free.
type Stream struct {
	src     augmentedSource
	cur     AugmentedBlock
	pos     int
	effLen  int
	haveCur bool
}

// NewStream returns a Stream pulling trimmed blocks from src.
func NewStream(src augmentedSource) *Stream {
	return &Stream{src: src}
}

func (s *Stream) advance() error {
	for {
		ab, err := s.src.Next()
		if err != nil {
			return err
		}
		s.cur = ab
		s.pos = ab.SkipStart
		s.effLen = len(ab.Data) - ab.SkipEnd
		s.haveCur = true
		if s.pos < s.effLen {
			return nil
		}
		// Effective length is zero, e.g. a chunk boundary that exactly
		// consumes a whole block; keep pulling.
	}
}

func (s *Stream) ensure() error {
	if s.haveCur && s.pos < s.effLen {
		return nil
	}
	return s.advance()
}

// Read implements io.Reader, never returning more bytes than remain in the
// current block.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.ensure(); err != nil {
		return 0, err
	}
	n := copy(p, s.cur.Data[s.pos:s.effLen])
	s.pos += n
	return n, nil
}

// CurrentVirtualOffset returns the virtual offset of the next byte this
// Stream will yield, pulling a block if none is loaded yet. It is the VO a
// RecordDecoder should tag onto a record about to be decoded.
func (s *Stream) CurrentVirtualOffset() (bgzf.Offset, error) {
	if err := s.ensure(); err != nil {
		return bgzf.Offset{}, err
	}
	return bgzf.Offset{File: s.cur.Start.File, Block: uint16(s.pos)}, nil
}
