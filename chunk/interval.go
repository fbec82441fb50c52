package chunk

// Range is an inclusive byte interval of the target file.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of bytes the interval spans.
func (r Range) Len() int64 {
	return r.End - r.Start + 1
}

// Overlaps reports whether both intervals share at least one byte.
func (r Range) Overlaps(other Range) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Merge inserts r into a sorted, pairwise disjoint interval set, coalescing
// overlapping and adjacent intervals. The input set is not modified; the
// operation is commutative and idempotent, so re-inserting an already
// covered interval returns an equal set.
func Merge(set []Range, r Range) []Range {
	merged := make([]Range, 0, len(set)+1)
	i := 0
	for ; i < len(set) && set[i].End+1 < r.Start; i++ {
		merged = append(merged, set[i])
	}
	for ; i < len(set) && set[i].Start <= r.End+1; i++ {
		if set[i].Start < r.Start {
			r.Start = set[i].Start
		}
		if set[i].End > r.End {
			r.End = set[i].End
		}
	}
	merged = append(merged, r)
	return append(merged, set[i:]...)
}

// Complement returns the intervals of [0, total-1] not covered by the set.
// The set must be sorted and disjoint, as produced by Merge.
func Complement(set []Range, total int64) []Range {
	var missing []Range
	next := int64(0)
	for _, r := range set {
		if r.Start > next {
			missing = append(missing, Range{Start: next, End: r.Start - 1})
		}
		if r.End+1 > next {
			next = r.End + 1
		}
	}
	if next <= total-1 {
		missing = append(missing, Range{Start: next, End: total - 1})
	}
	return missing
}

// Covered sums the lengths of a disjoint interval set.
func Covered(set []Range) int64 {
	var sum int64
	for _, r := range set {
		sum += r.Len()
	}
	return sum
}

// NextMissing returns the first uncovered offset, or total when the set
// already covers [0, total-1]. Clients use it to decide what to send next.
func NextMissing(set []Range, total int64) int64 {
	missing := Complement(set, total)
	if len(missing) == 0 {
		return total
	}
	return missing[0].Start
}
