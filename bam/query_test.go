package bam_test

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/mlange-dev/bamra/bam"
	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/sam"
	"github.com/stretchr/testify/require"
)

// fakeIndex is a randomaccessmanager.Index returning a fixed chunk list
// regardless of the query interval, letting tests drive File.Query with
// hand-picked chunks rather than a real BAI/CSI index.
type fakeIndex struct {
	chunks []bgzf.Chunk
}

func (i fakeIndex) Chunks(refID, beg, end int) ([]bgzf.Chunk, error) {
	return i.chunks, nil
}

// writeBAMFile writes a full BAM stream (header then one BGZF member per
// record group) to a temp file and returns its path along with the
// virtual offset at the start of each group.
func writeBAMFile(t testing.TB, h *sam.Header, groups [][][]byte) (string, []bgzf.Offset) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "bam-query-*.bam")
	require.NoError(t, err)
	defer f.Close()

	w := bgzf.NewWriter(f)
	require.NoError(t, h.EncodeBinary(w))
	require.NoError(t, w.Flush())

	starts := make([]bgzf.Offset, len(groups))
	for i, g := range groups {
		fi, err := f.Seek(0, io.SeekCurrent)
		require.NoError(t, err)
		starts[i] = bgzf.Offset{File: fi}
		for _, rec := range g {
			_, err := w.Write(rec)
			require.NoError(t, err)
		}
		require.NoError(t, w.Flush())
	}
	require.NoError(t, w.Close())
	return f.Name(), starts
}

func TestFileQueryOverlapFiltering(t *testing.T) {
	h, refs := newTestHeader(t, []string{"chr1"}, []int{1000})
	groups := [][][]byte{
		{
			encodeRecord(t, testRecord{refID: 0, nextRefID: -1, pos: 0, nextPos: -1, name: "before",
				cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 10)}}),
			encodeRecord(t, testRecord{refID: 0, nextRefID: -1, pos: 5, nextPos: -1, name: "spanning",
				cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 10)}}),
		},
		{
			encodeRecord(t, testRecord{refID: 0, nextRefID: -1, pos: 15, nextPos: -1, name: "inside",
				cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 10)}}),
			encodeRecord(t, testRecord{refID: 0, nextRefID: -1, pos: 25, nextPos: -1, name: "after",
				cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 5)}}),
		},
	}
	path, starts := writeBAMFile(t, h, groups)
	info, err := os.Stat(path)
	require.NoError(t, err)

	idx := fakeIndex{chunks: []bgzf.Chunk{{Begin: starts[0], End: bgzf.Offset{File: info.Size()}}}}

	bf, err := bam.Open(path, idx)
	require.NoError(t, err)
	require.Equal(t, refs, bf.Header().Refs())

	filter, stats, err := bf.Query(context.Background(), 0, 10, 20, bam.QueryOptions{})
	require.NoError(t, err)
	defer filter.Close()

	var names []string
	for {
		rec, err := filter.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, rec.(*sam.Record).Name)
	}
	require.Equal(t, []string{"spanning", "inside"}, names)
	require.Equal(t, 4, stats.RecordsDecoded)
	require.Equal(t, 2, stats.RecordsEmitted)
}

func TestFileQueryWithoutIndexFails(t *testing.T) {
	h, _ := newTestHeader(t, []string{"chr1"}, []int{1000})
	path, _ := writeBAMFile(t, h, nil)

	bf, err := bam.Open(path, nil)
	require.NoError(t, err)

	_, _, err = bf.Query(context.Background(), 0, 0, 10, bam.QueryOptions{})
	require.Error(t, err)
}

func TestFileScanMatchesQueryUnion(t *testing.T) {
	h, _ := newTestHeader(t, []string{"chr1"}, []int{1000})
	groups := [][][]byte{
		{
			encodeRecord(t, testRecord{refID: 0, nextRefID: -1, pos: 0, nextPos: -1, name: "a",
				cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 5)}}),
			encodeRecord(t, testRecord{refID: 0, nextRefID: -1, pos: 5, nextPos: -1, name: "b",
				cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 5)}}),
		},
	}
	path, _ := writeBAMFile(t, h, groups)

	bf, err := bam.Open(path, nil)
	require.NoError(t, err)

	r, err := bf.Scan()
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, rec.Name)
	}
	require.Equal(t, []string{"a", "b"}, names)
}
