package land

// The spatial index answers "does this rect overlap any indexed claim?" and
// "which claim covers this block?" without scanning the whole claim set.
// Three partitions are kept in lockstep:
//
//   cells — coarse 16x16 cell grid over each claim's footprint, prunes
//           overlap candidates to the cells a query rect touches
//   xs/zs — per-axis occupancy (claim present at block column x / row z),
//           resolves point queries by axis intersection
//   all   — canonical membership set, backs the linear fallback used by
//           consistency checks
//
// Invariant: after any completed public registry operation every partition
// agrees with the registry's canonical claim map. All mutation happens under
// the registry write lock, so queries never observe a half-updated index.

const indexCellSize = 16

type cellKey struct{ cx, cz int }

type spatialIndex struct {
	cells map[cellKey][]*Claim
	xs    map[int]map[*Claim]struct{}
	zs    map[int]map[*Claim]struct{}
	all   map[*Claim]struct{}
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		cells: map[cellKey][]*Claim{},
		xs:    map[int]map[*Claim]struct{}{},
		zs:    map[int]map[*Claim]struct{}{},
		all:   map[*Claim]struct{}{},
	}
}

func cellOf(v int) int {
	// Floor division so negative coordinates land in the right cell.
	if v < 0 {
		return (v - indexCellSize + 1) / indexCellSize
	}
	return v / indexCellSize
}

func (s *spatialIndex) insert(c *Claim) {
	if _, ok := s.all[c]; ok {
		return
	}
	s.all[c] = struct{}{}
	r := c.Rect
	for cx := cellOf(r.X1); cx <= cellOf(r.X2); cx++ {
		for cz := cellOf(r.Z1); cz <= cellOf(r.Z2); cz++ {
			k := cellKey{cx, cz}
			s.cells[k] = append(s.cells[k], c)
		}
	}
	for x := r.X1; x <= r.X2; x++ {
		m := s.xs[x]
		if m == nil {
			m = map[*Claim]struct{}{}
			s.xs[x] = m
		}
		m[c] = struct{}{}
	}
	for z := r.Z1; z <= r.Z2; z++ {
		m := s.zs[z]
		if m == nil {
			m = map[*Claim]struct{}{}
			s.zs[z] = m
		}
		m[c] = struct{}{}
	}
}

func (s *spatialIndex) remove(c *Claim) {
	if _, ok := s.all[c]; !ok {
		return
	}
	delete(s.all, c)
	r := c.Rect
	for cx := cellOf(r.X1); cx <= cellOf(r.X2); cx++ {
		for cz := cellOf(r.Z1); cz <= cellOf(r.Z2); cz++ {
			k := cellKey{cx, cz}
			list := s.cells[k]
			for i, cc := range list {
				if cc == c {
					list[i] = list[len(list)-1]
					list = list[:len(list)-1]
					break
				}
			}
			if len(list) == 0 {
				delete(s.cells, k)
			} else {
				s.cells[k] = list
			}
		}
	}
	for x := r.X1; x <= r.X2; x++ {
		if m := s.xs[x]; m != nil {
			delete(m, c)
			if len(m) == 0 {
				delete(s.xs, x)
			}
		}
	}
	for z := r.Z1; z <= r.Z2; z++ {
		if m := s.zs[z]; m != nil {
			delete(m, c)
			if len(m) == 0 {
				delete(s.zs, z)
			}
		}
	}
}

// overlaps prunes by cell, then re-checks each candidate's exact rect.
// The cell grid gives no false negatives, so a miss here is definitive.
func (s *spatialIndex) overlaps(r Rect) bool {
	seen := map[*Claim]struct{}{}
	for cx := cellOf(r.X1); cx <= cellOf(r.X2); cx++ {
		for cz := cellOf(r.Z1); cz <= cellOf(r.Z2); cz++ {
			for _, c := range s.cells[cellKey{cx, cz}] {
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				if r.Overlaps(c.Rect) {
					return true
				}
			}
		}
	}
	return false
}

// at resolves a point query by intersecting the two axis partitions.
func (s *spatialIndex) at(x, z int) *Claim {
	col := s.xs[x]
	if len(col) == 0 {
		return nil
	}
	row := s.zs[z]
	if len(row) == 0 {
		return nil
	}
	// Iterate the smaller side of the intersection.
	if len(row) < len(col) {
		col, row = row, col
	}
	for c := range col {
		if _, ok := row[c]; ok && c.Rect.Contains(x, z) {
			return c
		}
	}
	return nil
}

// scanOverlaps is the linear fallback, kept for consistency checks in tests.
func (s *spatialIndex) scanOverlaps(r Rect) bool {
	for c := range s.all {
		if r.Overlaps(c.Rect) {
			return true
		}
	}
	return false
}

func (s *spatialIndex) size() int { return len(s.all) }
