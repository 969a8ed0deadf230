package randomaccessmanager

import "github.com/mlange-dev/bamra/bgzf"

// Coalesce merges adjacent or overlapping chunks in a VO-ordered chunk list
// into a minimal disjoint set, per §4.2. chunks must already be sorted
// ascending by Begin; Coalesce does not sort. The returned slice may alias
// chunks's backing array.
func Coalesce(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	out := chunks[:1]
	for _, c := range chunks[1:] {
		last := &out[len(out)-1]
		if c.Begin.Compare(last.End) <= 0 {
			if c.End.Compare(last.End) > 0 {
				last.End = c.End
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
