package bgzf

import "bytes"

// eofMarker is the canonical 28-byte empty BGZF block samtools and htslib
// write (and look for) as the final member of a well-formed BGZF stream:
// an empty deflate stream inside a member whose only extra subfield is the
// BC subfield with BSIZE set to 27 (the member's own length, minus one).
var eofMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff,
	0x06, 0x00, 0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// HasEOFBlock reports whether the last len(eofMarker) bytes of data are the
// canonical empty BGZF EOF marker.
func HasEOFBlock(data []byte) bool {
	if len(data) < len(eofMarker) {
		return false
	}
	return bytes.Equal(data[len(data)-len(eofMarker):], eofMarker)
}

// EOFVirtualOffset returns the virtual offset of the EOF marker in a file
// of the given total size that HasEOFBlock reports true for; it is the
// offset one past the last record, used to bound chunk scans so a reader
// treats the marker itself as "no more data" rather than attempting to
// parse it as a record-bearing block.
func EOFVirtualOffset(size int64) Offset {
	return Offset{File: size - int64(len(eofMarker))}
}

// EOFMarker returns a copy of the canonical empty BGZF EOF block, for use
// by Writer.Close and by tests constructing well-formed fixtures.
func EOFMarker() []byte {
	b := make([]byte, len(eofMarker))
	copy(b, eofMarker)
	return b
}
