package bam_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mlange-dev/bamra/sam"
	"github.com/stretchr/testify/require"
)

// testRecord is the minimal set of fields fixture tests care about; it is
// translated to and from the raw binary record layout by encodeRecord and
// compared against what bam.Reader/bam.File.Query actually decode.
type testRecord struct {
	refID, nextRefID   int32
	pos, nextPos, tLen int32
	name               string
	flags              sam.Flags
	mapQ               byte
	cigar              []sam.CigarOp
	seq                []byte
	aux                []byte
}

// encodeRecord builds one binary BAM alignment record (block size prefix
// included), the inverse of decodeRecord in decode.go.
func encodeRecord(t testing.TB, r testRecord) []byte {
	t.Helper()
	name := append([]byte(r.name), 0)
	cigar := make([]byte, len(r.cigar)*4)
	for i, co := range r.cigar {
		binary.LittleEndian.PutUint32(cigar[i*4:], uint32(co))
	}
	packed := sam.NewSeq(r.seq)
	seqBytes := make([]byte, len(packed.Seq))
	for i, d := range packed.Seq {
		seqBytes[i] = byte(d)
	}
	qual := bytes.Repeat([]byte{0xff}, len(r.seq))

	body := new(bytes.Buffer)
	require.NoError(t, binary.Write(body, binary.LittleEndian, r.refID))
	require.NoError(t, binary.Write(body, binary.LittleEndian, r.pos))
	body.WriteByte(byte(len(name)))
	body.WriteByte(r.mapQ)
	require.NoError(t, binary.Write(body, binary.LittleEndian, uint16(0))) // bin, unused by the decoder
	require.NoError(t, binary.Write(body, binary.LittleEndian, uint16(len(r.cigar))))
	require.NoError(t, binary.Write(body, binary.LittleEndian, uint16(r.flags)))
	require.NoError(t, binary.Write(body, binary.LittleEndian, int32(len(r.seq))))
	require.NoError(t, binary.Write(body, binary.LittleEndian, r.nextRefID))
	require.NoError(t, binary.Write(body, binary.LittleEndian, r.nextPos))
	require.NoError(t, binary.Write(body, binary.LittleEndian, r.tLen))
	body.Write(name)
	body.Write(cigar)
	body.Write(seqBytes)
	body.Write(qual)
	body.Write(r.aux)

	out := new(bytes.Buffer)
	require.NoError(t, binary.Write(out, binary.LittleEndian, int32(body.Len())))
	out.Write(body.Bytes())
	return out.Bytes()
}

// auxI encodes a single int32-valued aux tag.
func auxI(tag string, v int32) []byte {
	b := make([]byte, 7)
	b[0], b[1] = tag[0], tag[1]
	b[2] = 'i'
	binary.LittleEndian.PutUint32(b[3:], uint32(v))
	return b
}

// newTestHeader returns a Header carrying one reference per (name, length)
// pair, along with the *sam.Reference values in the same order, suitable
// for direct use as a testRecord's refID by index.
func newTestHeader(t testing.TB, names []string, lengths []int) (*sam.Header, []*sam.Reference) {
	t.Helper()
	refs := make([]*sam.Reference, len(names))
	for i, name := range names {
		r, err := sam.NewReference(name, "", "", lengths[i], nil, nil)
		require.NoError(t, err)
		refs[i] = r
	}
	h, err := sam.NewHeader(nil, refs)
	require.NoError(t, err)
	return h, refs
}
