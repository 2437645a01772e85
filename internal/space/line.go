package space

// NextBoxAlong returns the next box entered by the segment from p1 to p2,
// which is known to pass through box cur. It returns false when cur already
// contains p2 or the segment leaves cur only through a domain wall.
//
// Only interior box faces are considered. When the earliest crossing is
// shared by several faces, the segment moves along every tied dimension in
// which it exits through the high face; if every tied face is a low face it
// moves along all of them.
func (p *Partition) NextBoxAlong(p1, p2 []float64, cur int) (int, bool) {
	if p.Locate(p2) == cur {
		return 0, false
	}
	idx := append([]int(nil), p.boxes[cur].Index...)

	crossing := func(d int) (crs float64, high bool, ok bool) {
		if p2[d] == p1[d] {
			return 0, false, false
		}
		high = p2[d] > p1[d]
		sum := idx[d]
		if high {
			sum++
		}
		if sum <= 0 || sum >= p.side[d] {
			return 0, false, false
		}
		edge := p.domain.Low[d] + float64(sum)*p.size[d]
		return (edge - p1[d]) / (p2[d] - p1[d]), high, true
	}

	const none = 1.01
	crsmin := none
	dmin, highMin := 0, false
	tie := 0
	for d := range p.side {
		crs, high, ok := crossing(d)
		if !ok {
			continue
		}
		switch {
		case crs < crsmin:
			crsmin, dmin, highMin, tie = crs, d, high, 0
		case crs == crsmin:
			if !high && !highMin && tie != 1 {
				tie = 2
			} else {
				tie = 1
			}
		}
	}

	if tie != 0 {
		moved := append([]int(nil), idx...)
		for d := range p.side {
			crs, high, ok := crossing(d)
			if !ok || crs != crsmin {
				continue
			}
			if high {
				moved[d]++
			} else if tie == 2 {
				moved[d]--
			}
		}
		return p.address(moved), true
	}
	if crsmin == none {
		return 0, false
	}
	if highMin {
		idx[dmin]++
	} else {
		idx[dmin]--
	}
	return p.address(idx), true
}
