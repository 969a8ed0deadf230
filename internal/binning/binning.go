// Package binning implements the UCSC-style hierarchical binning scheme
// shared by BAI (fixed 14-bit tile width, depth 5, i.e. six levels) and CSI (configurable
// minShift/depth), generalized over those two parameters so both index
// formats can share one implementation of the bin arithmetic.
package binning

// MaxDepth is the largest depth this implementation supports; CSI streams
// declaring a larger depth are rejected rather than silently truncated.
const MaxDepth = 10

// Scheme names the two parameters that fix a binning scheme: minShift is
// the log2 width of the smallest (highest-resolution) bin, and depth is the
// number of additional coarser levels above it. BAI is Scheme{MinShift: 14,
// Depth: 5}.
type Scheme struct {
	MinShift int
	Depth    int
}

// BAI is the fixed scheme used by the legacy BAI index format.
var BAI = Scheme{MinShift: 14, Depth: 5}

// levelOffsets returns, for each level from coarsest (0) to finest
// (s.Depth), the cumulative bin-id offset at which that level's bins begin,
// and the shift applied to a coordinate to find its bin within that level.
//
// level l has 8^l bins, each of width 1<<(minShift+3*(depth-l)).
// Bin ids are assigned coarsest-first starting at 0, matching both the BAI
// level0..level5 constants and the CSI on-disk convention.
func (s Scheme) levelOffsets() (offset []uint32, shift []uint) {
	offset = make([]uint32, s.Depth+1)
	shift = make([]uint, s.Depth+1)
	var acc uint32
	for l := 0; l <= s.Depth; l++ {
		offset[l] = acc
		shift[l] = uint(s.MinShift + 3*(s.Depth-l))
		acc += 1 << uint(3*l)
	}
	return offset, shift
}

// BinFor returns the smallest bin that fully contains the half-open
// interval [beg, end) under scheme s. end is exclusive, matching the rest
// of this codebase's 0-based coordinate convention.
func (s Scheme) BinFor(beg, end int) uint32 {
	end--
	if end < beg {
		end = beg
	}
	offset, shift := s.levelOffsets()
	for l := s.Depth; l >= 0; l-- {
		if beg>>shift[l] == end>>shift[l] {
			return offset[l] + uint32(beg>>shift[l])
		}
	}
	return 0
}

// OverlappingBinsFor returns every bin, across all levels of s, that could
// contain a chunk overlapping [beg, end).
func (s Scheme) OverlappingBinsFor(beg, end int) []uint32 {
	end--
	if end < beg {
		end = beg
	}
	offset, shift := s.levelOffsets()
	var bins []uint32
	for l := 0; l <= s.Depth; l++ {
		lo := offset[l] + uint32(beg>>shift[l])
		hi := offset[l] + uint32(end>>shift[l])
		for b := lo; b <= hi; b++ {
			bins = append(bins, b)
		}
	}
	return bins
}

// BinChainFor returns the bin id containing position pos at every level of
// s, ordered coarsest (root) to finest. It is used to find the ancestor
// chain of a query's start position when pruning by per-bin loffset, the
// way CSI readers do.
func (s Scheme) BinChainFor(pos int) []uint32 {
	offset, shift := s.levelOffsets()
	chain := make([]uint32, s.Depth+1)
	for l := 0; l <= s.Depth; l++ {
		chain[l] = offset[l] + uint32(pos>>shift[l])
	}
	return chain
}

// MaxPosition returns the largest coordinate representable by scheme s,
// i.e. the width of a single level-0 bin.
func (s Scheme) MaxPosition() int64 {
	return int64(1) << uint(s.MinShift+3*s.Depth)
}

// BinFor and OverlappingBinsFor using the fixed BAI scheme, kept as
// package-level functions for callers that only ever deal with BAI.
func BinFor(beg, end int) uint32                  { return BAI.BinFor(beg, end) }
func OverlappingBinsFor(beg, end int) []uint32    { return BAI.OverlappingBinsFor(beg, end) }
