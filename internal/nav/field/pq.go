package field

// coordPQ is a binary min-heap of tile coordinates keyed by cost,
// the frontier of the Dijkstra integration pass.
type coordPQ struct {
	costs  []float32
	coords []nav2
}

type nav2 struct{ r, c int }

func newCoordPQ(capHint int) *coordPQ {
	return &coordPQ{
		costs:  make([]float32, 0, capHint),
		coords: make([]nav2, 0, capHint),
	}
}

func (pq *coordPQ) Len() int { return len(pq.costs) }

func (pq *coordPQ) Push(cost float32, r, c int) {
	pq.costs = append(pq.costs, cost)
	pq.coords = append(pq.coords, nav2{r, c})
	i := len(pq.costs) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if pq.costs[parent] <= pq.costs[i] {
			break
		}
		pq.swap(i, parent)
		i = parent
	}
}

func (pq *coordPQ) Pop() (r, c int) {
	top := pq.coords[0]
	n := len(pq.costs) - 1
	pq.swap(0, n)
	pq.costs = pq.costs[:n]
	pq.coords = pq.coords[:n]

	i := 0
	for {
		l, rr := 2*i+1, 2*i+2
		smallest := i
		if l < n && pq.costs[l] < pq.costs[smallest] {
			smallest = l
		}
		if rr < n && pq.costs[rr] < pq.costs[smallest] {
			smallest = rr
		}
		if smallest == i {
			break
		}
		pq.swap(i, smallest)
		i = smallest
	}
	return top.r, top.c
}

func (pq *coordPQ) swap(i, j int) {
	pq.costs[i], pq.costs[j] = pq.costs[j], pq.costs[i]
	pq.coords[i], pq.coords[j] = pq.coords[j], pq.coords[i]
}
