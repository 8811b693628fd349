package spatial

import (
	"math"

	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/vmath"
)

// CellKey addresses one cubic cell of the grid
type CellKey struct {
	X, Y, Z int
}

// Grid is a sparse uniform 3D grid of particle indices for radius queries
// Rebuilt from scratch each tick; not maintained incrementally
type Grid struct {
	CellSize float64

	cells     map[CellKey][]int
	keys      []CellKey     // Cell of each indexed position
	positions []vmath.Vec3F // Raw positions used for exact distance checks
}

// NewGrid creates an empty grid; non-positive cell sizes fall back to 1
func NewGrid(cellSize float64) *Grid {
	if !(cellSize > 0) || !vmath.IsFinite(cellSize) {
		cellSize = 1
	}
	return &Grid{
		CellSize: cellSize,
		cells:    make(map[CellKey][]int),
	}
}

// sanitize maps non-finite coordinates to 0 and bounds the rest
// Keeps one divergent particle from producing huge or invalid cell keys
func sanitize(c float64) float64 {
	return vmath.ClampFinite(c, -parameter.GridCoordLimit, parameter.GridCoordLimit)
}

// CellOf returns the cell containing pos
func (g *Grid) CellOf(pos vmath.Vec3F) CellKey {
	return CellKey{
		X: int(math.Floor(sanitize(pos.X) / g.CellSize)),
		Y: int(math.Floor(sanitize(pos.Y) / g.CellSize)),
		Z: int(math.Floor(sanitize(pos.Z) / g.CellSize)),
	}
}

// Build clears the grid and buckets every position by index
func (g *Grid) Build(positions []vmath.Vec3F) {
	clear(g.cells)
	g.positions = positions
	if cap(g.keys) >= len(positions) {
		g.keys = g.keys[:len(positions)]
	} else {
		g.keys = make([]CellKey, len(positions))
	}

	for i, pos := range positions {
		key := g.CellOf(pos)
		g.keys[i] = key
		g.cells[key] = append(g.cells[key], i)
	}
}

// Query appends to dst the indices j != i within radius of position i
// Scans i's cell and its 26 neighbors, then filters by exact distance
// Result order is deterministic: cells in (dx, dy, dz) order, indices in insertion order
func (g *Grid) Query(i int, radius float64, dst []int) []int {
	if i < 0 || i >= len(g.positions) {
		return dst
	}
	origin := g.positions[i]
	center := g.keys[i]

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				key := CellKey{center.X + dx, center.Y + dy, center.Z + dz}
				for _, j := range g.cells[key] {
					if j == i {
						continue
					}
					if vmath.V3FDist(origin, g.positions[j]) <= radius {
						dst = append(dst, j)
					}
				}
			}
		}
	}
	return dst
}

// Len returns the number of indexed positions
func (g *Grid) Len() int {
	return len(g.positions)
}

// CellCount returns the number of occupied cells
func (g *Grid) CellCount() int {
	return len(g.cells)
}
