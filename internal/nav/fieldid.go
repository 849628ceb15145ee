package nav

import "fmt"

// TargetKind tags the variant of a field target. The tag drives which
// construction algorithm the field builder runs.
type TargetKind uint8

const (
	TargetTile TargetKind = iota
	TargetPortal
	TargetPortalMask
	TargetEnemies
	TargetEntity
)

func (k TargetKind) String() string {
	switch k {
	case TargetTile:
		return "tile"
	case TargetPortal:
		return "portal"
	case TargetPortalMask:
		return "portalmask"
	case TargetEnemies:
		return "enemies"
	case TargetEntity:
		return "entity"
	}
	return "unknown"
}

// Target describes what a flow field steers toward. Exactly the fields
// relevant to Kind are meaningful.
type Target struct {
	Kind TargetKind

	// TargetTile
	Tile TileDesc

	// TargetPortal: route hop out of the keyed chunk.
	Portal   *Portal
	PortIID  uint16 // local island the agent stands on
	NextIID  uint16 // local island on the far side of the portal
	PortalIx int

	// TargetPortalMask: bitset over the keyed chunk's portal indices.
	PortalMask uint64

	// TargetEnemies
	Faction int

	// TargetEntity
	EntityUID uint32
}

// FieldID is a compact 64-bit key identifying one cached field:
//
//	[layer:4][kind:4][target-specific:40][chunk_r:8][chunk_c:8]
//
// Tile targets pack (tile_r, tile_c); portal targets pack
// (next_iid:4, port_iid:4, r0:6, c0:6, r1:6, c1:6); enemy targets pack the
// faction id; entity targets pack the target uid.
type FieldID uint64

const (
	fieldIDChunkBits = 8
	fieldIDSpecBits  = 40
	fieldIDKindBits  = 4
)

// MakeFieldID packs a field id for a target as seen from a chunk.
func MakeFieldID(layer Layer, chunk Coord, tgt Target) FieldID {
	var spec uint64
	switch tgt.Kind {
	case TargetTile:
		spec = uint64(tgt.Tile.TileR)<<8 | uint64(tgt.Tile.TileC)
	case TargetPortal:
		p := tgt.Portal
		spec = uint64(tgt.NextIID&0xf)<<28 |
			uint64(tgt.PortIID&0xf)<<24 |
			uint64(p.Endpoints[0].R&0x3f)<<18 |
			uint64(p.Endpoints[0].C&0x3f)<<12 |
			uint64(p.Endpoints[1].R&0x3f)<<6 |
			uint64(p.Endpoints[1].C&0x3f)
	case TargetPortalMask:
		spec = tgt.PortalMask & (1<<fieldIDSpecBits - 1)
	case TargetEnemies:
		spec = uint64(uint32(tgt.Faction))
	case TargetEntity:
		spec = uint64(tgt.EntityUID)
	}
	return FieldID(uint64(layer)<<60 |
		uint64(tgt.Kind)<<56 |
		(spec&(1<<fieldIDSpecBits-1))<<16 |
		uint64(uint8(chunk.R))<<8 |
		uint64(uint8(chunk.C)))
}

// losKind is the reserved kind nibble keying line-of-sight fields, which
// share the cache namespace with flow fields but are distinct entries.
const losKind = 0xf

// MakeLOSFieldID packs the cache key of a chunk's LOS field for a tile
// target.
func MakeLOSFieldID(layer Layer, chunk Coord, target TileDesc) FieldID {
	spec := uint64(uint8(target.ChunkR))<<24 |
		uint64(uint8(target.ChunkC))<<16 |
		uint64(target.TileR&0xff)<<8 |
		uint64(target.TileC&0xff)
	return FieldID(uint64(layer)<<60 |
		uint64(losKind)<<56 |
		(spec&(1<<fieldIDSpecBits-1))<<16 |
		uint64(uint8(chunk.R))<<8 |
		uint64(uint8(chunk.C)))
}

// Layer extracts the navigation layer from the id.
func (id FieldID) Layer() Layer { return Layer(id >> 60) }

// Kind extracts the target kind from the id.
func (id FieldID) Kind() TargetKind { return TargetKind((id >> 56) & 0xf) }

// Chunk extracts the chunk coordinate from the id.
func (id FieldID) Chunk() Coord {
	return Coord{R: int(uint8(id >> 8)), C: int(uint8(id))}
}

// Spec extracts the target-specific payload bits.
func (id FieldID) Spec() uint64 { return uint64(id>>16) & (1<<fieldIDSpecBits - 1) }

func (id FieldID) String() string {
	c := id.Chunk()
	return fmt.Sprintf("%s/%s@(%d,%d):%x", id.Layer(), id.Kind(), c.R, c.C, id.Spec())
}

// UnitRef is the minimal view of an external agent the navigation system
// needs when building entity- and enemy-seek fields.
type UnitRef struct {
	UID     uint32
	Pos     Vec2
	Radius  float64
	Faction int
	Dying   bool
}

// UnitQuery is the snapshot-backed view of the unit gamestate the field
// builders read. Implementations must be safe for concurrent reads for
// the duration of a tick.
type UnitQuery interface {
	// EntsInRect returns every unit whose position lies inside the box.
	EntsInRect(box BoxXZ) []UnitRef
	// Enemies returns the mask of factions hostile to the given faction.
	Enemies(faction int) FactionMask
	// Visible reports whether the unit at pos is visible to the faction
	// (fog of war). Builders skip invisible enemies.
	Visible(faction int, pos Vec2) bool
}
