package game

import "testing"

func assignmentCost(costs []int64, n int, assign []int) int64 {
	var total int64
	for r, c := range assign {
		total += costs[r*n+c]
	}
	return total
}

func isPermutation(assign []int, n int) bool {
	seen := make([]bool, n)
	for _, c := range assign {
		if c < 0 || c >= n || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

func bruteForceMin(costs []int64, n int) int64 {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := int64(1<<62 - 1)
	var rec func(k int)
	rec = func(k int) {
		if k == n {
			if c := assignmentCost(costs, n, perm); c < best {
				best = c
			}
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			rec(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	rec(0)
	return best
}

func TestHungarianKnownOptimum(t *testing.T) {
	// Classic 5x5 example; the optimum is found by the brute-force search
	// below.
	costs := []int64{
		90, 75, 75, 80, 105,
		35, 85, 55, 65, 125,
		125, 95, 90, 105, 145,
		45, 110, 95, 115, 60,
		50, 100, 90, 100, 80,
	}
	n := 5

	assign := hungarianAssign(costs, n)
	if !isPermutation(assign, n) {
		t.Fatalf("assignment %v is not a permutation", assign)
	}
	got := assignmentCost(costs, n, assign)
	want := bruteForceMin(costs, n)
	if got != want {
		t.Errorf("cost %d, optimum is %d (assign %v)", got, want, assign)
	}
}

func TestHungarianIdentity(t *testing.T) {
	// Zero diagonal forces the identity assignment.
	n := 4
	costs := make([]int64, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if r != c {
				costs[r*n+c] = 100
			}
		}
	}
	assign := hungarianAssign(costs, n)
	for r, c := range assign {
		if r != c {
			t.Fatalf("assign %v, want identity", assign)
		}
	}
}

func TestHungarianSingle(t *testing.T) {
	assign := hungarianAssign([]int64{42}, 1)
	if len(assign) != 1 || assign[0] != 0 {
		t.Errorf("assign = %v", assign)
	}
}

func TestHungarianLargeValues(t *testing.T) {
	// Distance-squared costs scaled by 100 overflow int32; the solver
	// must stay exact on int64.
	n := 3
	big := int64(3_000_000_000)
	costs := []int64{
		big, big + 1, big + 2,
		big + 1, big, big + 2,
		big + 2, big + 1, big,
	}
	assign := hungarianAssign(costs, n)
	if !isPermutation(assign, n) {
		t.Fatalf("assignment %v is not a permutation", assign)
	}
	if got := assignmentCost(costs, n, assign); got != 3*big {
		t.Errorf("cost %d, want %d", got, 3*big)
	}
}
