package land

// Rect is a closed-interval axis-aligned rectangle on the (x, z) block
// plane. X1 <= X2 and Z1 <= Z2 for every rect built through RectFromCenter.
type Rect struct {
	X1 int `json:"x1"`
	Z1 int `json:"z1"`
	X2 int `json:"x2"`
	Z2 int `json:"z2"`
}

// RectFromCenter derives the claim footprint from a center block and a side
// length: x1 = cx - size/2, x2 = x1 + size - 1 (same for z).
func RectFromCenter(cx, cz, size int) Rect {
	x1 := cx - size/2
	z1 := cz - size/2
	return Rect{X1: x1, Z1: z1, X2: x1 + size - 1, Z2: z1 + size - 1}
}

func (r Rect) Valid() bool {
	return r.X1 <= r.X2 && r.Z1 <= r.Z2
}

func (r Rect) Contains(x, z int) bool {
	return x >= r.X1 && x <= r.X2 && z >= r.Z1 && z <= r.Z2
}

// Overlaps is inclusive on both axes: rects touching at a shared boundary
// coordinate DO overlap.
func (r Rect) Overlaps(o Rect) bool {
	return rangesOverlap(r.X1, r.X2, o.X1, o.X2) && rangesOverlap(r.Z1, r.Z2, o.Z1, o.Z2)
}

func rangesOverlap(a1, a2, b1, b2 int) bool {
	return a1 <= b2 && a2 >= b1
}
