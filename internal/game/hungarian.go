package game

// hungarianAssign solves the square assignment problem: costs is an n x n
// row-major matrix and the result maps each row to its assigned column
// such that the total cost is minimal. Costs use int64; the distance
// matrix squares values scaled by 100, which overflows int32 for large
// formations.
//
// This is the classic Munkres algorithm: subtract row and column minima,
// then alternate between starring independent zeros, covering, and
// creating new zeros until n independent zeros exist.
func hungarianAssign(costs []int64, n int) []int {
	if n == 0 {
		return nil
	}

	m := make([]int64, len(costs))
	copy(m, costs)

	at := func(r, c int) int64 { return m[r*n+c] }
	set := func(r, c int, v int64) { m[r*n+c] = v }

	// Step 1: subtract row minima.
	for r := 0; r < n; r++ {
		min := at(r, 0)
		for c := 1; c < n; c++ {
			if at(r, c) < min {
				min = at(r, c)
			}
		}
		for c := 0; c < n; c++ {
			set(r, c, at(r, c)-min)
		}
	}

	// Step 2: subtract column minima.
	for c := 0; c < n; c++ {
		min := at(0, c)
		for r := 1; r < n; r++ {
			if at(r, c) < min {
				min = at(r, c)
			}
		}
		for r := 0; r < n; r++ {
			set(r, c, at(r, c)-min)
		}
	}

	starred := make([]bool, n*n)
	primed := make([]bool, n*n)
	rowCovered := make([]bool, n)
	colCovered := make([]bool, n)

	// Star an independent zero set greedily.
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if at(r, c) == 0 && !rowCovered[r] && !colCovered[c] {
				starred[r*n+c] = true
				rowCovered[r] = true
				colCovered[c] = true
			}
		}
	}
	for i := range rowCovered {
		rowCovered[i] = false
	}
	for i := range colCovered {
		colCovered[i] = false
	}

	coverStarredColumns := func() int {
		count := 0
		for c := 0; c < n; c++ {
			colCovered[c] = false
			for r := 0; r < n; r++ {
				if starred[r*n+c] {
					colCovered[c] = true
					break
				}
			}
			if colCovered[c] {
				count++
			}
		}
		return count
	}

	findUncoveredZero := func() (int, int, bool) {
		for r := 0; r < n; r++ {
			if rowCovered[r] {
				continue
			}
			for c := 0; c < n; c++ {
				if !colCovered[c] && at(r, c) == 0 {
					return r, c, true
				}
			}
		}
		return -1, -1, false
	}

	starInRow := func(r int) int {
		for c := 0; c < n; c++ {
			if starred[r*n+c] {
				return c
			}
		}
		return -1
	}

	starInCol := func(c int) int {
		for r := 0; r < n; r++ {
			if starred[r*n+c] {
				return r
			}
		}
		return -1
	}

	primeInRow := func(r int) int {
		for c := 0; c < n; c++ {
			if primed[r*n+c] {
				return c
			}
		}
		return -1
	}

	for coverStarredColumns() < n {
	inner:
		for {
			r, c, found := findUncoveredZero()
			if !found {
				// Step 4 (create zeros): subtract the minimum uncovered
				// value from uncovered elements, add it to doubly-covered
				// ones.
				var min int64 = 1<<63 - 1
				for rr := 0; rr < n; rr++ {
					if rowCovered[rr] {
						continue
					}
					for cc := 0; cc < n; cc++ {
						if !colCovered[cc] && at(rr, cc) < min {
							min = at(rr, cc)
						}
					}
				}
				for rr := 0; rr < n; rr++ {
					for cc := 0; cc < n; cc++ {
						switch {
						case !rowCovered[rr] && !colCovered[cc]:
							set(rr, cc, at(rr, cc)-min)
						case rowCovered[rr] && colCovered[cc]:
							set(rr, cc, at(rr, cc)+min)
						}
					}
				}
				continue inner
			}

			primed[r*n+c] = true
			sc := starInRow(r)
			if sc >= 0 {
				rowCovered[r] = true
				colCovered[sc] = false
				continue inner
			}

			// Augmenting path: alternate primed and starred zeros.
			type zero struct{ r, c int }
			path := []zero{{r, c}}
			for {
				sr := starInCol(path[len(path)-1].c)
				if sr < 0 {
					break
				}
				path = append(path, zero{sr, path[len(path)-1].c})
				pc := primeInRow(sr)
				path = append(path, zero{sr, pc})
			}
			for _, z := range path {
				starred[z.r*n+z.c] = !starred[z.r*n+z.c]
			}
			for i := range primed {
				primed[i] = false
			}
			for i := range rowCovered {
				rowCovered[i] = false
			}
			break inner
		}
	}

	out := make([]int, n)
	for r := 0; r < n; r++ {
		out[r] = starInRow(r)
	}
	return out
}
