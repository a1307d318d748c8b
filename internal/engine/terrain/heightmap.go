package terrain

import (
	"github.com/Faultbox/worldview/pkg/math"
)

// DefaultPatchCells is the patch edge length in cells.
const DefaultPatchCells = 16

// Surface is a heightfield split into square patches. The origin sits at
// the world origin and the surface extends along +X and +Z.
type Surface struct {
	hm         Heightmap
	patchCells int
	patchesX   int
	patchesZ   int
	patches    []Patch
	tick       uint64
}

// NewSurface creates a flat surface of cellsX by cellsZ cells.
func NewSurface(cellsX, cellsZ int, cellSize float32, patchCells int) *Surface {
	if patchCells <= 0 {
		patchCells = DefaultPatchCells
	}
	alt := make([][]float32, cellsX+1)
	for x := range alt {
		alt[x] = make([]float32, cellsZ+1)
	}
	s := &Surface{
		hm: Heightmap{
			Altitudes: alt,
			CellsX:    cellsX,
			CellsZ:    cellsZ,
			CellSize:  cellSize,
		},
		patchCells: patchCells,
		patchesX:   (cellsX + patchCells - 1) / patchCells,
		patchesZ:   (cellsZ + patchCells - 1) / patchCells,
	}
	s.patches = make([]Patch, s.patchesX*s.patchesZ)
	for z := range s.patchesZ {
		for x := range s.patchesX {
			s.patches[z*s.patchesX+x] = Patch{X: x, Z: z}
		}
	}
	return s
}

// Fill sets every vertex height from fn, evaluated at world X/Z.
func (s *Surface) Fill(fn func(x, z float32) float32) {
	for x := 0; x <= s.hm.CellsX; x++ {
		for z := 0; z <= s.hm.CellsZ; z++ {
			s.hm.Altitudes[x][z] = fn(float32(x)*s.hm.CellSize, float32(z)*s.hm.CellSize)
		}
	}
	s.tick++
	for i := range s.patches {
		s.patches[i].updated = s.tick
	}
}

// Heightmap returns the underlying grid.
func (s *Surface) Heightmap() *Heightmap {
	return &s.hm
}

// Revision increases with every edit.
func (s *Surface) Revision() uint64 {
	return s.tick
}

// Size returns the surface extent in world units along X and Z.
func (s *Surface) Size() (float32, float32) {
	return float32(s.hm.CellsX) * s.hm.CellSize, float32(s.hm.CellsZ) * s.hm.CellSize
}

// SetHeight sets the height of grid vertex (x, z) and bumps every patch
// sharing that vertex.
func (s *Surface) SetHeight(x, z int, h float32) {
	if x < 0 || z < 0 || x > s.hm.CellsX || z > s.hm.CellsZ {
		return
	}
	s.hm.Altitudes[x][z] = h
	s.tick++

	for _, px := range s.patchSpan(x, s.patchesX) {
		for _, pz := range s.patchSpan(z, s.patchesZ) {
			s.patches[pz*s.patchesX+px].updated = s.tick
		}
	}
}

// patchSpan returns the patch indices along one axis that contain vertex v.
// A vertex on a patch boundary belongs to both neighbours.
func (s *Surface) patchSpan(v, count int) []int {
	p := v / s.patchCells
	out := make([]int, 0, 2)
	if v%s.patchCells == 0 && p > 0 {
		out = append(out, p-1)
	}
	if p < count {
		out = append(out, p)
	}
	return out
}

// ResolveHeight returns the bilinearly interpolated height at p.X, p.Z.
// Points outside the surface clamp to the edge.
func (s *Surface) ResolveHeight(p math.Vec3) float32 {
	if s.hm.CellsX == 0 || s.hm.CellsZ == 0 {
		return 0
	}
	cellFX := p.X / s.hm.CellSize
	cellFZ := p.Z / s.hm.CellSize

	cellX := clampi(int(cellFX), 0, s.hm.CellsX-1)
	cellZ := clampi(int(cellFZ), 0, s.hm.CellsZ-1)

	fracX := clampf(cellFX-float32(cellX), 0, 1)
	fracZ := clampf(cellFZ-float32(cellZ), 0, 1)

	a := s.hm.Altitudes
	south := a[cellX][cellZ]*(1-fracX) + a[cellX+1][cellZ]*fracX
	north := a[cellX][cellZ+1]*(1-fracX) + a[cellX+1][cellZ+1]*fracX
	return south*(1-fracZ) + north*fracZ
}

// ResolvePatch returns the patch under p, or nil outside the surface.
func (s *Surface) ResolvePatch(p math.Vec3) *Patch {
	w, d := s.Size()
	if p.X < 0 || p.Z < 0 || p.X > w || p.Z > d {
		return nil
	}
	span := float32(s.patchCells) * s.hm.CellSize
	px := clampi(int(p.X/span), 0, s.patchesX-1)
	pz := clampi(int(p.Z/span), 0, s.patchesZ-1)
	return &s.patches[pz*s.patchesX+px]
}

// Normal returns the surface normal at grid vertex (x, z) using central
// differences.
func (s *Surface) Normal(x, z int) math.Vec3 {
	a := s.hm.Altitudes
	x0, x1 := clampi(x-1, 0, s.hm.CellsX), clampi(x+1, 0, s.hm.CellsX)
	z0, z1 := clampi(z-1, 0, s.hm.CellsZ), clampi(z+1, 0, s.hm.CellsZ)
	dx := (a[x1][z] - a[x0][z]) / (float32(x1-x0) * s.hm.CellSize)
	dz := (a[x][z1] - a[x][z0]) / (float32(z1-z0) * s.hm.CellSize)
	return math.Vec3{X: -dx, Y: 1, Z: -dz}.Normalize()
}

func clampf(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampi(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
