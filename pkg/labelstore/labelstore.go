// Package labelstore implements the K-Best Label Store (C3): the bounded
// per-node top-K label maintenance primitive consumed by the Bucket
// K-Best Engine (C4) and the Hex Aggregator's per-cell reduction (C6).
package labelstore

// UNREACHABLE is the sentinel time value meaning "no label recorded".
const UNREACHABLE uint16 = 65535

// NoAnchor is the sentinel anchor value meaning "empty slot".
const NoAnchor int32 = -1

// Store holds, for every node, up to K ascending-time labels
// (time, anchor), flattened row-major as node*K+slot. Ties in time are
// broken by ascending anchor id. CutoffPrimary == UNREACHABLE collapses
// every insert into plain bounded top-K semantics with no primary/overflow
// distinction, which is exactly what the Hex Aggregator's per-cell
// reduction (C6) needs — it reuses this same Store with that cutoff.
type Store struct {
	K             int
	CutoffPrimary uint16
	BestAnchor    []int32
	Time          []uint16
	Used          []uint8
	PrimaryCount  []uint8
}

// New allocates a Store for n nodes with labels bounded to k entries and
// labels at or under cutoffPrimary seconds counted as primary.
func New(n, k int, cutoffPrimary uint16) *Store {
	s := &Store{
		K:             k,
		CutoffPrimary: cutoffPrimary,
		BestAnchor:    make([]int32, n*k),
		Time:          make([]uint16, n*k),
		Used:          make([]uint8, n),
		PrimaryCount:  make([]uint8, n),
	}
	for i := range s.BestAnchor {
		s.BestAnchor[i] = NoAnchor
		s.Time[i] = UNREACHABLE
	}
	return s
}

// less reports whether (ta, aa) sorts strictly before (tb, ab): ascending
// time, ties broken by ascending anchor.
func less(ta uint16, aa int32, tb uint16, ab int32) bool {
	if ta != tb {
		return ta < tb
	}
	return aa < ab
}

func (s *Store) bubbleLeft(base, pos int) {
	for pos > 0 {
		j := base + pos
		if less(s.Time[j], s.BestAnchor[j], s.Time[j-1], s.BestAnchor[j-1]) {
			s.Time[j], s.Time[j-1] = s.Time[j-1], s.Time[j]
			s.BestAnchor[j], s.BestAnchor[j-1] = s.BestAnchor[j-1], s.BestAnchor[j]
			pos--
		} else {
			break
		}
	}
}

// Insert records a candidate (anchor, t) label for node, applying the
// three-case insert algorithm: replace-if-better for an existing anchor,
// insertion-sort while the store has free slots, and primary-dominant
// eviction once full.
func (s *Store) Insert(node uint32, anchor int32, t uint16) {
	k := s.K
	base := int(node) * k
	used := int(s.Used[node])

	for j := 0; j < used; j++ {
		if s.BestAnchor[base+j] == anchor {
			oldT := s.Time[base+j]
			if t < oldT {
				s.Time[base+j] = t
				if oldT > s.CutoffPrimary && t <= s.CutoffPrimary {
					s.PrimaryCount[node]++
				}
				s.bubbleLeft(base, j)
			}
			return
		}
	}

	isPrimary := t <= s.CutoffPrimary

	if used < k {
		ins := used
		for j := 0; j < used; j++ {
			if less(t, anchor, s.Time[base+j], s.BestAnchor[base+j]) {
				ins = j
				break
			}
		}
		for j := used; j > ins; j-- {
			s.Time[base+j] = s.Time[base+j-1]
			s.BestAnchor[base+j] = s.BestAnchor[base+j-1]
		}
		s.Time[base+ins] = t
		s.BestAnchor[base+ins] = anchor
		s.Used[node] = uint8(used + 1)
		if isPrimary {
			s.PrimaryCount[node]++
		}
		return
	}

	if isPrimary {
		worst := k - 1
		worstT := s.Time[base+worst]
		if t < worstT {
			replacedPrimary := worstT <= s.CutoffPrimary
			s.Time[base+worst] = t
			s.BestAnchor[base+worst] = anchor
			if !replacedPrimary {
				s.PrimaryCount[node]++
			}
			s.bubbleLeft(base, worst)
		}
		return
	}

	if int(s.PrimaryCount[node]) >= k {
		return
	}
	worstIdx := -1
	var worstT uint16
	for j := 0; j < k; j++ {
		tj := s.Time[base+j]
		if tj > s.CutoffPrimary && (worstIdx < 0 || tj > worstT) {
			worstIdx = j
			worstT = tj
		}
	}
	if worstIdx >= 0 && t < s.Time[base+worstIdx] {
		s.Time[base+worstIdx] = t
		s.BestAnchor[base+worstIdx] = anchor
		s.bubbleLeft(base, worstIdx)
	}
}

// Row returns the slice views of node's labels: (anchor, time), each of
// length K with unused trailing slots holding the sentinels.
func (s *Store) Row(node uint32) ([]int32, []uint16) {
	base := int(node) * s.K
	return s.BestAnchor[base : base+s.K], s.Time[base : base+s.K]
}

// Reset clears a single node's labels back to empty, for touched-list
// style reuse across queries.
func (s *Store) Reset(node uint32) {
	base := int(node) * s.K
	for j := 0; j < s.K; j++ {
		s.BestAnchor[base+j] = NoAnchor
		s.Time[base+j] = UNREACHABLE
	}
	s.Used[node] = 0
	s.PrimaryCount[node] = 0
}
