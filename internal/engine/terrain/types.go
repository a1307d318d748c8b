// Package terrain provides the ground heightfield that vegetation and the
// ground drawable sit on.
package terrain

import (
	"github.com/Faultbox/worldview/pkg/math"
)

// Land resolves terrain height and the patch owning a point.
type Land interface {
	ResolveHeight(p math.Vec3) float32
	ResolvePatch(p math.Vec3) *Patch
}

// Patch is a square block of the heightfield with its own modification
// time, so consumers can detect edits that affect them.
type Patch struct {
	X, Z    int
	updated uint64
}

// LastUpdateTime returns the surface tick of the latest edit touching the
// patch.
func (p *Patch) LastUpdateTime() uint64 {
	return p.updated
}

// Heightmap stores heights at grid vertices, indexed [x][z].
type Heightmap struct {
	Altitudes [][]float32
	CellsX    int
	CellsZ    int
	CellSize  float32
}

// Bounds holds the axis-aligned bounding box of the terrain.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}
