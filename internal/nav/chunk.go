package nav

// CostImpassable marks a tile that can never be traversed on a layer.
// Passable base costs range over 1..254.
const CostImpassable uint8 = 255

// IslandNone labels tiles that belong to no island (impassable tiles).
const IslandNone uint16 = 0xffff

// Chunk holds one layer's navigation data for a TilesW x TilesH tile
// block. All arrays are row-major (idx = r*TilesW + c) and sized at
// construction; only their contents ever change.
type Chunk struct {
	Coord  Coord
	TilesW int
	TilesH int

	// CostBase is the static terrain cost: 1..254, or CostImpassable.
	CostBase []uint8

	// Blockers is a reference count of dynamic blockers per tile:
	// stationary agents and buildings covering the tile.
	Blockers []uint16

	// Factions counts the agents of each faction occupying each tile.
	// Indexed [faction][tileIdx].
	Factions [MaxFactions][]uint8

	// Islands holds global connected-component ids spanning the whole map.
	Islands []uint16

	// LocalIslands holds connected-component ids local to this chunk.
	LocalIslands []uint16

	// Portals are the gateways to adjacent chunks.
	Portals []Portal
}

// NewChunk allocates a chunk with every tile at base cost 1.
func NewChunk(coord Coord, tilesW, tilesH int) *Chunk {
	n := tilesW * tilesH
	ch := &Chunk{
		Coord:        coord,
		TilesW:       tilesW,
		TilesH:       tilesH,
		CostBase:     make([]uint8, n),
		Blockers:     make([]uint16, n),
		Islands:      make([]uint16, n),
		LocalIslands: make([]uint16, n),
	}
	for i := range ch.CostBase {
		ch.CostBase[i] = 1
		ch.Islands[i] = IslandNone
		ch.LocalIslands[i] = IslandNone
	}
	for f := 0; f < MaxFactions; f++ {
		ch.Factions[f] = make([]uint8, n)
	}
	return ch
}

func (ch *Chunk) idx(r, c int) int { return r*ch.TilesW + c }

// Cost returns the base terrain cost at the tile.
func (ch *Chunk) Cost(r, c int) uint8 { return ch.CostBase[ch.idx(r, c)] }

// BlockerCount returns the dynamic blocker refcount at the tile.
func (ch *Chunk) BlockerCount(r, c int) uint16 { return ch.Blockers[ch.idx(r, c)] }

// OccupyingFactions returns the mask of factions with at least one agent
// on the tile.
func (ch *Chunk) OccupyingFactions(r, c int) FactionMask {
	var m FactionMask
	i := ch.idx(r, c)
	for f := 0; f < MaxFactions; f++ {
		if ch.Factions[f][i] > 0 {
			m = m.With(f)
		}
	}
	return m
}

// Passable reports whether the tile is traversable: the base cost must not
// be impassable and there must be no dynamic blockers.
func (ch *Chunk) Passable(r, c int) bool {
	i := ch.idx(r, c)
	return ch.CostBase[i] != CostImpassable && ch.Blockers[i] == 0
}

// PassableForEnemies reports whether the tile is traversable for an agent
// that is seeking enemies: blocked tiles count as passable when every
// occupying faction is in the enemy mask, so that seek fields can pull
// agents onto enemy-held ground.
func (ch *Chunk) PassableForEnemies(r, c int, enemies FactionMask) bool {
	i := ch.idx(r, c)
	if ch.CostBase[i] == CostImpassable {
		return false
	}
	if ch.Blockers[i] == 0 {
		return true
	}
	occupying := ch.OccupyingFactions(r, c)
	return occupying != 0 && occupying&^enemies == 0
}

// LocalIsland returns the in-chunk island id at the tile.
func (ch *Chunk) LocalIsland(r, c int) uint16 { return ch.LocalIslands[ch.idx(r, c)] }

// GlobalIsland returns the map-wide island id at the tile.
func (ch *Chunk) GlobalIsland(r, c int) uint16 { return ch.Islands[ch.idx(r, c)] }

// repaintLocalIslands relabels the chunk's local connected components with
// a breadth-first flood over passable tiles (4-connected).
func (ch *Chunk) repaintLocalIslands() {
	for i := range ch.LocalIslands {
		ch.LocalIslands[i] = IslandNone
	}

	var next uint16
	queue := make([]Coord, 0, ch.TilesW*2)
	for r := 0; r < ch.TilesH; r++ {
		for c := 0; c < ch.TilesW; c++ {
			if !ch.Passable(r, c) || ch.LocalIslands[ch.idx(r, c)] != IslandNone {
				continue
			}
			id := next
			next++

			queue = queue[:0]
			queue = append(queue, Coord{r, c})
			ch.LocalIslands[ch.idx(r, c)] = id
			for len(queue) > 0 {
				curr := queue[0]
				queue = queue[1:]
				for _, d := range [4]Coord{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nr, nc := curr.R+d.R, curr.C+d.C
					if nr < 0 || nr >= ch.TilesH || nc < 0 || nc >= ch.TilesW {
						continue
					}
					if !ch.Passable(nr, nc) || ch.LocalIslands[ch.idx(nr, nc)] != IslandNone {
						continue
					}
					ch.LocalIslands[ch.idx(nr, nc)] = id
					queue = append(queue, Coord{nr, nc})
				}
			}
		}
	}
}
