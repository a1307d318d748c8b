package terrain

import (
	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/pkg/math"
)

// texRepeat is how many cells one ground texture tile spans.
const texRepeat = 4

// BuildMesh writes the surface as a regular grid into f: one vertex per
// grid point and two triangles per cell. It returns drawable.ErrNotReady
// when f has not been sized yet.
func (s *Surface) BuildMesh(f *drawable.Face) error {
	cx, cz := s.hm.CellsX, s.hm.CellsZ
	stride := cz + 1
	f.SetSize((cx+1)*stride, cx*cz*6)

	g, err := f.Geometry()
	if err != nil {
		return err
	}

	for x := 0; x <= cx; x++ {
		for z := 0; z <= cz; z++ {
			i := x*stride + z
			g.Positions[i] = math.Vec3{
				X: float32(x) * s.hm.CellSize,
				Y: s.hm.Altitudes[x][z],
				Z: float32(z) * s.hm.CellSize,
			}
			if g.Normals != nil {
				g.Normals[i] = s.Normal(x, z)
			}
			if g.TexCoords != nil {
				g.TexCoords[i] = math.Vec2{X: float32(x) / texRepeat, Y: float32(z) / texRepeat}
			}
			if g.Colors != nil {
				g.Colors[i] = [4]uint8{255, 255, 255, 255}
			}
		}
	}

	n := 0
	for x := range cx {
		for z := range cz {
			i0 := uint32(x*stride + z)
			i1 := i0 + uint32(stride)
			// Counter-clockwise seen from +Y.
			g.Indices[n+0] = i0
			g.Indices[n+1] = i0 + 1
			g.Indices[n+2] = i1
			g.Indices[n+3] = i1
			g.Indices[n+4] = i0 + 1
			g.Indices[n+5] = i1 + 1
			n += 6
		}
	}

	f.CenterLocal = s.Bounds().Center()
	return nil
}

// Bounds returns the bounding box of the surface.
func (s *Surface) Bounds() Bounds {
	w, d := s.Size()
	b := Bounds{
		Min: math.Vec3{X: 0, Y: 1e10, Z: 0},
		Max: math.Vec3{X: w, Y: -1e10, Z: d},
	}
	for _, col := range s.hm.Altitudes {
		for _, h := range col {
			b.Min.Y = min(b.Min.Y, h)
			b.Max.Y = max(b.Max.Y, h)
		}
	}
	return b
}

// Center returns the midpoint of the box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}
