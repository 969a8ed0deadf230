package bgzf

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
)

// Writer packs uncompressed data into a BGZF stream of independent,
// BlockSize-sized gzip members, one per Flush. It exists to let tests build
// self-contained BGZF fixtures without external sample files; this package
// is not a channel for producing or modifying BAM files.
type Writer struct {
	w       io.Writer
	level   int
	block   [BlockSize]byte
	next    int
	buf     bytes.Buffer
	err     error
	closed  bool
}

// NewWriter returns a Writer using gzip.DefaultCompression.
func NewWriter(w io.Writer) *Writer { return NewWriterLevel(w, gzip.DefaultCompression) }

// NewWriterLevel returns a Writer compressing at the given gzip level.
func NewWriterLevel(w io.Writer, level int) *Writer {
	return &Writer{w: w, level: level}
}

// Write buffers p, flushing a complete BGZF member each time BlockSize
// bytes have accumulated.
func (bg *Writer) Write(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	if bg.closed {
		return 0, errors.New("bgzf: write to closed writer")
	}
	var n int
	for len(p) > 0 {
		c := copy(bg.block[bg.next:], p)
		n += c
		p = p[c:]
		bg.next += c
		if bg.next == BlockSize {
			if bg.err = bg.flushBlock(); bg.err != nil {
				return n, bg.err
			}
		}
	}
	return n, nil
}

// Flush writes out any buffered data as a (possibly short) BGZF member.
func (bg *Writer) Flush() error {
	if bg.err != nil {
		return bg.err
	}
	if bg.next == 0 {
		return nil
	}
	return bg.flushBlock()
}

func (bg *Writer) flushBlock() error {
	bg.buf.Reset()
	gz, err := gzip.NewWriterLevel(&bg.buf, bg.level)
	if err != nil {
		return errors.Wrap(err, "bgzf: creating member writer")
	}
	gz.Header.Extra = []byte("BC\x02\x00\x00\x00")
	gz.Header.OS = 0xff
	if _, err := gz.Write(bg.block[:bg.next]); err != nil {
		return errors.Wrap(err, "bgzf: compressing member")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "bgzf: closing member writer")
	}
	bg.next = 0

	b := bg.buf.Bytes()
	i := bytes.Index(b, bcSubfieldTag)
	if i < 0 {
		return errors.New("bgzf: lost BC subfield while writing member")
	}
	size := len(b) - 1
	if size >= MaxBlockSize {
		return errors.New("bgzf: member grew beyond MaxBlockSize")
	}
	b[i+4], b[i+5] = byte(size), byte(size>>8)

	_, err = bg.w.Write(b)
	return errors.Wrap(err, "bgzf: writing member")
}

// Close flushes any remaining data and appends the canonical EOF marker.
func (bg *Writer) Close() error {
	if bg.err != nil {
		return bg.err
	}
	if bg.closed {
		return nil
	}
	bg.closed = true
	if err := bg.Flush(); err != nil {
		return err
	}
	_, err := bg.w.Write(EOFMarker())
	return errors.Wrap(err, "bgzf: writing EOF marker")
}
