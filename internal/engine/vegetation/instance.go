package vegetation

import (
	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/terrain"
	"github.com/Faultbox/worldview/pkg/math"
)

// densityFactor converts area over distance into a target blade count.
const densityFactor = 5

// Instance is one patch of grass.
type Instance struct {
	Position math.Vec3
	// Scale is the horizontal extent along X and Z.
	Scale   math.Vec2
	Species int

	numBlades       int
	patch           *terrain.Patch
	lastPatchUpdate uint64
}

// NewInstance creates an instance at full detail.
func NewInstance(pos math.Vec3, scale math.Vec2, species int) *Instance {
	return &Instance{
		Position:  pos,
		Scale:     scale,
		Species:   species,
		numBlades: MaxBlades,
	}
}

// NumBlades returns the current blade count.
func (g *Instance) NumBlades() int {
	return g.numBlades
}

// Patch returns the terrain patch resolved by the last Generate.
func (g *Instance) Patch() *terrain.Patch {
	return g.patch
}

// Area returns the horizontal footprint.
func (g *Instance) Area() float32 {
	return g.Scale.X * g.Scale.Y
}

// UpdateSpecies substitutes the lowest known species when the current one
// is not in the table. It reports whether a substitution happened.
func (g *Instance) UpdateSpecies(table *SpeciesTable, log *zap.Logger) bool {
	if _, ok := table.Lookup(g.Species); ok {
		return false
	}
	lowest, ok := table.Lowest()
	if !ok {
		return false
	}
	log.Info("unknown grass species, substituting",
		zap.Int("species", g.Species),
		zap.Int("substitute", lowest))
	g.Species = lowest
	return true
}

// TargetBlades returns the blade count the camera distance asks for.
func (g *Instance) TargetBlades(distance float32) int {
	if distance <= 0 {
		return MaxBlades
	}
	n := int(math32.Trunc(g.Area() / distance * densityFactor))
	return min(max(n, 1), MaxBlades)
}

// UpdateLOD moves the blade count towards the target for distance by
// doubling or halving only. Nothing changes until the target reaches twice
// the current count or falls to half of it, so small distance jitter
// never rebuilds the mesh. It reports whether the count changed.
func (g *Instance) UpdateLOD(distance float32) bool {
	target := g.TargetBlades(distance)
	n := g.numBlades
	switch {
	case target >= n<<1:
		for n < target {
			n <<= 1
		}
	case target <= n>>1:
		for n > target {
			n >>= 1
		}
	default:
		return false
	}
	g.numBlades = n
	return true
}

// IdleUpdate reports whether the terrain under the instance changed since
// the mesh was built.
func (g *Instance) IdleUpdate() bool {
	return g.patch != nil && g.patch.LastUpdateTime() != g.lastPatchUpdate
}

// PixelArea estimates the screen area of a one meter sprite at the
// instance, for texture priority.
func (g *Instance) PixelArea(camera math.Vec3, viewHeightPx, fovY float32) float32 {
	r := g.Position.Distance(camera)
	if r <= 0 {
		r = 0.001
	}
	ppm := viewHeightPx / (math32.Tan(fovY) * r)
	return ppm * ppm
}
