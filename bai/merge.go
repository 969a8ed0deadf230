package bai

import "github.com/mlange-dev/bamra/bgzf"

// MergeStrategy reduces a sorted list of candidate chunks to a smaller set
// covering the same virtual offset ranges, trading away precision (reading
// a few bytes that will be discarded downstream) for fewer block-source
// opens. randomaccessmanager's own Chunk Coalescer always applies Adjacent
// semantics to whatever an Index returns; these are provided as a
// convenience for callers working directly against a bai.Index outside
// that pipeline (e.g. index inspection tools).
type MergeStrategy func([]bgzf.Chunk) []bgzf.Chunk

// Identity returns chunks unchanged.
var Identity MergeStrategy = identity

// Adjacent merges chunks whose virtual offset ranges touch or overlap.
var Adjacent MergeStrategy = adjacent

// Squash merges every chunk into a single chunk spanning all of them.
var Squash MergeStrategy = squash

func identity(chunks []bgzf.Chunk) []bgzf.Chunk { return chunks }

func adjacent(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	merged := chunks[:1]
	for _, c := range chunks[1:] {
		last := &merged[len(merged)-1]
		if last.End.Compare(c.Begin) >= 0 {
			if c.End.Compare(last.End) > 0 {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

func squash(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	out := bgzf.Chunk{Begin: chunks[0].Begin, End: chunks[0].End}
	for _, c := range chunks[1:] {
		if c.End.Compare(out.End) > 0 {
			out.End = c.End
		}
	}
	return []bgzf.Chunk{out}
}

// CompressorStrategy merges chunks whose backing BGZF member starts within
// near bytes of each other, trading a few redundant decompressions for
// fewer block-source opens when chunks are scattered but close together.
func CompressorStrategy(near int64) MergeStrategy {
	return func(chunks []bgzf.Chunk) []bgzf.Chunk {
		if len(chunks) < 2 {
			return chunks
		}
		merged := chunks[:1]
		for _, c := range chunks[1:] {
			last := &merged[len(merged)-1]
			if c.Begin.File-last.End.File <= near {
				if c.End.Compare(last.End) > 0 {
					last.End = c.End
				}
				continue
			}
			merged = append(merged, c)
		}
		return merged
	}
}
