package game

import (
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"warfront/internal/nav"
	"warfront/internal/nav/field"
)

// FormationType selects the aspect ratio of a formation's cell grid.
type FormationType uint8

const (
	FormationNone FormationType = iota
	FormationRank                // wide and shallow
	FormationColumn              // narrow and deep
)

// CellState tracks one formation cell's placement.
type CellState uint8

const (
	// CellNotPlaced means no free tile could be found for the cell.
	CellNotPlaced CellState = iota
	// CellOccupied means an agent is assigned to the cell.
	CellOccupied
	// CellNotOccupied means the cell is placed but unassigned.
	CellNotOccupied
	// CellNotUsed means the cell exceeds the agent count and is skipped.
	CellNotUsed
)

// Cell is one position slot in a subformation grid.
type Cell struct {
	State CellState

	// IdealRaw is the idealized relative position (real-valued);
	// IdealBinned snaps it to a tile; Pos is the final collision-free
	// position.
	IdealRaw    nav.Vec2
	IdealBinned nav.Vec2
	Pos         nav.Vec2

	Tiles []nav.TileDesc // every tile the cell's footprint occupies
}

// occupancy states of the planner's working field.
const (
	occFree uint8 = iota
	occBlocked
	occAllocated
)

// subformation groups the same unit-type agents of a formation into one
// cell grid. Subformations chain parent to children, children placed
// behind their parent.
type subformation struct {
	parent   *subformation
	children []*subformation

	radiusKey  int
	unitRadius float64
	layer      nav.Layer

	nrows, ncols int
	cells        []Cell

	ents       map[uint32]struct{}
	assignment map[uint32]nav.Coord
}

// Formation owns the placement state for one arranged group of agents.
// It is refcounted by bound agents and dropped when the last one leaves.
type Formation struct {
	Target      nav.Vec2
	Orientation nav.Vec2
	Center      nav.Vec2
	Type        FormationType

	centerTD nav.TileDesc
	subs     []*subformation
	refcount int

	occupied [nav.NumLayers][]uint8
	islands  [nav.NumLayers][]uint16

	arrival map[uint32]*field.RegionFlow
}

// ncolsFor computes the grid width from the type's aspect ratio, capped
// at the unit count.
func ncolsFor(t FormationType, nunits int) int {
	ratio := RankWidthRatio
	if t == FormationColumn {
		ratio = ColumnWidthRatio
	}
	cols := int(math.Ceil(math.Sqrt(float64(nunits) / ratio)))
	if cols > nunits {
		cols = nunits
	}
	if cols < 1 {
		cols = 1
	}
	return cols
}

func nrowsFor(t FormationType, nunits int) int {
	return int(math.Ceil(float64(nunits) / float64(ncolsFor(t, nunits))))
}

// AssignedCell returns the cell coordinate assigned to the agent.
func (f *Formation) AssignedCell(uid uint32) (nav.Coord, bool) {
	for _, s := range f.subs {
		if coord, ok := s.assignment[uid]; ok {
			return coord, true
		}
	}
	return nav.Coord{}, false
}

// CellAt returns the cell assigned to the agent.
func (f *Formation) CellAt(uid uint32) *Cell {
	for _, s := range f.subs {
		if coord, ok := s.assignment[uid]; ok {
			return &s.cells[coord.R*s.ncols+coord.C]
		}
	}
	return nil
}

// Arrival returns the agent's cell-arrival field, if computed.
func (f *Formation) Arrival(uid uint32) *field.RegionFlow {
	return f.arrival[uid]
}

// fieldTile maps occupied-field coordinates to the map tile under them.
func (f *Formation) fieldTile(res nav.MapResolution, r, c int) (nav.TileDesc, bool) {
	td := f.centerTD
	ok := td.Relative(res, c-OccupiedFieldRes/2, r-OccupiedFieldRes/2)
	return td, ok
}

// createFormation plans and binds a formation for the selection. Runs on
// the owning goroutine at command drain.
func (c *Core) createFormation(ents []uint32, target nav.Vec2, orientation nav.Vec2, hasOrient bool, ftype FormationType, attack bool) {
	res := c.navData.Res

	var movable []uint32
	for _, uid := range ents {
		if ms := c.states[uid]; ms != nil && ms.MaxSpeed > 0 {
			movable = append(movable, uid)
		}
	}
	if len(movable) == 0 {
		return
	}

	// Orientation defaults to centroid -> target.
	if !hasOrient || orientation.Len() < nav.Epsilon {
		var com nav.Vec2
		for _, uid := range movable {
			com = com.Add(c.states[uid].NextPos)
		}
		com = com.Scale(1 / float64(len(movable)))
		orientation = target.Sub(com).Norm()
	} else {
		orientation = orientation.Norm()
	}
	if orientation.Len() < nav.Epsilon {
		orientation = nav.Vec2{X: 0, Z: -1}
	}

	// Shift the field center a third of the occupied-field span against
	// the orientation: units are placed behind the target, so the
	// padding lands where they go.
	shift := float64(OccupiedFieldRes) / 3 * res.TileSide
	center := c.clampToMap(target.Sub(orientation.Scale(shift)))

	centerTD, ok := nav.DescForPoint(res, c.navData.MapPos, center)
	if !ok {
		return
	}

	f := &Formation{
		Target:      target,
		Orientation: orientation,
		Center:      center,
		Type:        ftype,
		centerTD:    centerTD,
		arrival:     make(map[uint32]*field.RegionFlow),
	}

	c.partitionSubformations(f, movable)
	for _, s := range f.subs {
		c.initOccupiedField(f, s.layer)
	}

	// Place parent first, then each child behind it. Cells anchor at the
	// target; the shifted center only positions the occupied field.
	base := target
	for _, s := range f.subs {
		c.placeSubformation(f, s, base)
		cellH := s.unitRadius*2 + UnitBufferDist
		base = base.Sub(orientation.Scale(float64(s.nrows)*cellH + SubformationBufferDist))
	}

	for _, s := range f.subs {
		markUnusedCells(s)
		c.assignCells(s)
	}

	// Bind agents, form the shared flock, and dispatch the per-cell
	// arrival field builds.
	c.makeFlock(movable, target, attack)
	for _, uid := range movable {
		ms := c.states[uid]
		c.leaveFormation(uid)
		c.unblockAgent(ms)
		ms.State = StateMovingInFormation
		ms.WaitTicksLeft = 0
		c.formations[uid] = f
		f.refcount++
	}

	c.dispatchArrivalFields(f)
}

// partitionSubformations buckets the agents by unit type (quantized
// selection radius) into parent/children subformations, parent being the
// smallest type key.
func (c *Core) partitionSubformations(f *Formation, ents []uint32) {
	byKey := make(map[int][]uint32)
	for _, uid := range ents {
		key := int(math.Round(c.states[uid].Radius * 2))
		byKey[key] = append(byKey[key], uid)
	}

	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var parent *subformation
	for _, k := range keys {
		members := byKey[k]
		radius := c.states[members[0]].Radius
		s := &subformation{
			parent:     parent,
			radiusKey:  k,
			unitRadius: radius,
			layer:      nav.LayerForRadius(radius, c.navData.Res.TileSide),
			ncols:      ncolsFor(f.Type, len(members)),
			nrows:      nrowsFor(f.Type, len(members)),
			ents:       make(map[uint32]struct{}, len(members)),
			assignment: make(map[uint32]nav.Coord, len(members)),
		}
		s.cells = make([]Cell, s.nrows*s.ncols)
		for _, uid := range members {
			s.ents[uid] = struct{}{}
		}
		if parent != nil {
			parent.children = append(parent.children, s)
		}
		parent = s
		f.subs = append(f.subs, s)
	}
}

// initOccupiedField paints the planner's working grids for a layer:
// off-map and impassable tiles are blocked, and every tile carries its
// global island id for connectivity checks.
func (c *Core) initOccupiedField(f *Formation, layer nav.Layer) {
	if f.occupied[layer] != nil {
		return
	}
	res := c.navData.Res
	c.navData.EnsureClean(layer)

	n := OccupiedFieldRes * OccupiedFieldRes
	occ := make([]uint8, n)
	isl := make([]uint16, n)
	for r := 0; r < OccupiedFieldRes; r++ {
		for col := 0; col < OccupiedFieldRes; col++ {
			i := r*OccupiedFieldRes + col
			td, ok := f.fieldTile(res, r, col)
			if !ok || !c.navData.Passable(layer, td) {
				occ[i] = occBlocked
				isl[i] = nav.IslandNone
				continue
			}
			isl[i] = c.navData.GlobalIslandAt(layer, td)
		}
	}
	f.occupied[layer] = occ
	f.islands[layer] = isl
}

// placeSubformation lays the subformation's cells out breadth-first from
// the center-front cell, averaging offsets from already-placed anchors
// and snapping each to the nearest free tile on the desired island.
func (c *Core) placeSubformation(f *Formation, s *subformation, base nav.Vec2) {
	res := c.navData.Res
	right := f.Orientation.Perp()
	cellW := s.unitRadius*2 + UnitBufferDist
	cellH := s.unitRadius*2 + UnitBufferDist

	// Desired island: the reachable approximation of the target.
	targetTD, ok := nav.DescForPoint(res, c.navData.MapPos, f.Target)
	var wantIsland uint16 = nav.IslandNone
	if ok {
		wantIsland = c.navData.GlobalIslandAt(s.layer, targetTD)
		if wantIsland == nav.IslandNone {
			// Fall back to the island under the field center.
			if i := f.islands[s.layer][OccupiedFieldRes/2*OccupiedFieldRes+OccupiedFieldRes/2]; i != nav.IslandNone {
				wantIsland = i
			}
		}
	}

	ideal := func(r, col int) nav.Vec2 {
		return base.
			Sub(f.Orientation.Scale(float64(r) * cellH)).
			Add(right.Scale((float64(col) - float64(s.ncols-1)/2) * cellW))
	}

	type qitem struct{ r, c int }
	start := qitem{0, s.ncols / 2}
	queue := []qitem{start}
	visited := make([]bool, len(s.cells))
	visited[start.r*s.ncols+start.c] = true
	placed := make([]bool, len(s.cells))

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		idx := curr.r*s.ncols + curr.c
		cell := &s.cells[idx]
		cell.IdealRaw = ideal(curr.r, curr.c)

		// Average the positions suggested by every placed neighbour's
		// final position plus the ideal offset between the two cells.
		var want nav.Vec2
		n := 0
		for _, d := range [4]qitem{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := curr.r+d.r, curr.c+d.c
			if nr < 0 || nr >= s.nrows || nc < 0 || nc >= s.ncols {
				continue
			}
			nidx := nr*s.ncols + nc
			if placed[nidx] {
				offset := ideal(curr.r, curr.c).Sub(ideal(nr, nc))
				want = want.Add(s.cells[nidx].Pos.Add(offset))
				n++
			}
		}
		if n > 0 {
			want = want.Scale(1 / float64(n))
		} else {
			want = cell.IdealRaw
		}

		if c.occupyCell(f, s, cell, want, wantIsland) {
			placed[idx] = true
		} else {
			cell.State = CellNotPlaced
		}

		for _, d := range [4]qitem{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := curr.r+d.r, curr.c+d.c
			if nr < 0 || nr >= s.nrows || nc < 0 || nc >= s.ncols {
				continue
			}
			if !visited[nr*s.ncols+nc] {
				visited[nr*s.ncols+nc] = true
				queue = append(queue, qitem{nr, nc})
			}
		}
	}
}

// occupyCell snaps the wanted position to the nearest free tile on the
// desired island and allocates the cell's footprint there. No tile is
// ever allocated to two cells.
func (c *Core) occupyCell(f *Formation, s *subformation, cell *Cell, want nav.Vec2, wantIsland uint16) bool {
	res := c.navData.Res
	occ := f.occupied[s.layer]
	isl := f.islands[s.layer]

	td, ok := nav.DescForPoint(res, c.navData.MapPos, want)
	if !ok {
		return false
	}
	dr, dc := nav.TileDist(res, f.centerTD, td)
	startR := OccupiedFieldRes/2 + dr
	startC := OccupiedFieldRes/2 + dc

	free := func(r, col int) bool {
		if r < 0 || r >= OccupiedFieldRes || col < 0 || col >= OccupiedFieldRes {
			return false
		}
		i := r*OccupiedFieldRes + col
		if occ[i] != occFree {
			return false
		}
		return wantIsland == nav.IslandNone || isl[i] == wantIsland
	}

	// Spiral outward from the wanted tile.
	foundR, foundC := -1, -1
	for ring := 0; ring < OccupiedFieldRes/2; ring++ {
		for r := startR - ring; r <= startR+ring && foundR < 0; r++ {
			for col := startC - ring; col <= startC+ring; col++ {
				if ring > 0 && r != startR-ring && r != startR+ring && col != startC-ring && col != startC+ring {
					continue
				}
				if free(r, col) {
					foundR, foundC = r, col
					break
				}
			}
		}
		if foundR >= 0 {
			break
		}
	}
	if foundR < 0 {
		return false
	}

	tile, _ := f.fieldTile(res, foundR, foundC)
	pos := nav.TileCenter(res, c.navData.MapPos, tile)

	cell.IdealBinned = pos
	cell.Pos = pos
	cell.State = CellNotOccupied
	cell.Tiles = cell.Tiles[:0]

	// A multi-tile footprint marks every tile it covers.
	for _, ftd := range nav.TilesUnderCircle(res, c.navData.MapPos, pos, s.unitRadius) {
		fdr, fdc := nav.TileDist(res, f.centerTD, ftd)
		rr := OccupiedFieldRes/2 + fdr
		cc := OccupiedFieldRes/2 + fdc
		if rr < 0 || rr >= OccupiedFieldRes || cc < 0 || cc >= OccupiedFieldRes {
			continue
		}
		occ[rr*OccupiedFieldRes+cc] = occAllocated
		cell.Tiles = append(cell.Tiles, ftd)
	}
	if len(cell.Tiles) == 0 {
		occ[foundR*OccupiedFieldRes+foundC] = occAllocated
		cell.Tiles = append(cell.Tiles, tile)
	}
	return true
}

// markUnusedCells retires the cells exceeding the agent count, leftmost
// and rightmost back-row cells first.
func markUnusedCells(s *subformation) {
	excess := s.nrows*s.ncols - len(s.ents)
	for r := s.nrows - 1; r >= 0 && excess > 0; r-- {
		left, right := 0, s.ncols-1
		fromLeft := true
		for left <= right && excess > 0 {
			var col int
			if fromLeft {
				col, left = left, left+1
			} else {
				col, right = right, right-1
			}
			fromLeft = !fromLeft
			cell := &s.cells[r*s.ncols+col]
			if cell.State != CellNotUsed {
				cell.State = CellNotUsed
				excess--
			}
		}
	}
}

// assignCells matches agents to placed cells with the Hungarian algorithm
// on squared distances; squaring penalizes one unit overtaking another.
func (c *Core) assignCells(s *subformation) {
	n := len(s.ents)
	if n == 0 {
		return
	}

	// Index the usable cells (everything except NotUsed).
	idxToCell := make([]nav.Coord, 0, n)
	for i := range s.cells {
		if s.cells[i].State == CellNotUsed {
			continue
		}
		idxToCell = append(idxToCell, nav.Coord{R: i / s.ncols, C: i % s.ncols})
	}
	if len(idxToCell) < n {
		return
	}
	idxToCell = idxToCell[:n]

	uids := make([]uint32, 0, n)
	for uid := range s.ents {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	const unplacedCost = int64(1) << 50
	costs := make([]int64, n*n)
	for i, uid := range uids {
		pos := c.states[uid].NextPos
		for j, coord := range idxToCell {
			cell := &s.cells[coord.R*s.ncols+coord.C]
			if cell.State == CellNotPlaced {
				costs[i*n+j] = unplacedCost
				continue
			}
			d := cell.Pos.Sub(pos).Len() * 100
			costs[i*n+j] = int64(d * d)
		}
	}

	assign := hungarianAssign(costs, n)
	for i, uid := range uids {
		j := assign[i]
		if j < 0 || j >= n {
			continue
		}
		coord := idxToCell[j]
		s.assignment[uid] = coord
		cell := &s.cells[coord.R*s.ncols+coord.C]
		if cell.State != CellNotPlaced {
			cell.State = CellOccupied
		}
	}
}

// dispatchArrivalFields computes every member's cell-arrival field on the
// bounded worker group.
func (c *Core) dispatchArrivalFields(f *Formation) {
	// Settle island labels on the owning goroutine; the parallel builds
	// below must only read.
	for _, s := range f.subs {
		c.navData.EnsureClean(s.layer)
	}

	limit := runtime.NumCPU()
	if limit > MaxMoveTasks {
		limit = MaxMoveTasks
	}
	var g errgroup.Group
	g.SetLimit(limit)

	type result struct {
		uid  uint32
		flow *field.RegionFlow
	}
	results := make(chan result, f.refcount)

	for _, s := range f.subs {
		for uid := range s.ents {
			uid := uid
			layer := s.layer
			cell := f.CellAt(uid)
			if cell == nil || cell.State != CellOccupied {
				continue
			}
			tile, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, cell.Pos)
			if !ok {
				continue
			}
			g.Go(func() error {
				flow := c.builder.BuildCellArrival(layer, f.Center, tile, CellArrivalFieldRes, CellArrivalFieldRes)
				results <- result{uid: uid, flow: flow}
				return nil
			})
		}
	}
	_ = g.Wait()
	close(results)
	for r := range results {
		if r.flow != nil {
			f.arrival[r.uid] = r.flow
		}
	}
}

// leaveFormation unbinds the agent from its formation, destroying the
// formation when the last member leaves.
func (c *Core) leaveFormation(uid uint32) {
	f := c.formations[uid]
	if f == nil {
		return
	}
	delete(c.formations, uid)
	for _, s := range f.subs {
		if coord, ok := s.assignment[uid]; ok {
			cell := &s.cells[coord.R*s.ncols+coord.C]
			if cell.State == CellOccupied {
				cell.State = CellNotOccupied
			}
			delete(s.assignment, uid)
		}
		delete(s.ents, uid)
	}
	delete(f.arrival, uid)
	f.refcount--
}
