package model

import (
	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/pkg/math"
)

const (
	boxSides       = 6
	vertsPerSide   = 4
	indicesPerSide = 6
)

// boxSide is one face of the unit cube: its outward normal and the two
// in-plane axes, ordered so u x v equals the normal.
type boxSide struct {
	normal, u, v math.Vec3
}

var sides = [boxSides]boxSide{
	{normal: math.Vec3{X: 1}, u: math.Vec3{Y: 1}, v: math.Vec3{Z: 1}},
	{normal: math.Vec3{X: -1}, u: math.Vec3{Z: 1}, v: math.Vec3{Y: 1}},
	{normal: math.Vec3{Y: 1}, u: math.Vec3{Z: 1}, v: math.Vec3{X: 1}},
	{normal: math.Vec3{Y: -1}, u: math.Vec3{X: 1}, v: math.Vec3{Z: 1}},
	{normal: math.Vec3{Z: 1}, u: math.Vec3{X: 1}, v: math.Vec3{Y: 1}},
	{normal: math.Vec3{Z: -1}, u: math.Vec3{Y: 1}, v: math.Vec3{X: 1}},
}

// BoxSize returns the vertex and index counts BuildBox writes.
func BoxSize(opts BuildOptions) (int, int) {
	nv, ni := boxSides*vertsPerSide, boxSides*indicesPerSide
	if opts.TwoSided {
		nv, ni = nv*2, ni*2
	}
	return nv, ni
}

// BuildBox writes an axis-aligned box centered on the origin into f, in
// the drawable's local space. It returns drawable.ErrNotReady when f's
// storage has not caught up with the size.
func BuildBox(f *drawable.Face, opts BuildOptions) (Bounds, error) {
	f.SetSize(BoxSize(opts))
	g, err := f.Geometry()
	if err != nil {
		return Bounds{}, err
	}

	half := opts.Size.Scale(0.5)
	bounds := Bounds{
		Min: math.Vec3{X: 1e10, Y: 1e10, Z: 1e10},
		Max: math.Vec3{X: -1e10, Y: -1e10, Z: -1e10},
	}

	var nv, ni int
	addSide := func(s boxSide, flip bool) {
		base := uint32(nv)
		normal := s.normal
		if flip {
			normal = normal.Scale(-1)
		}
		corners := [vertsPerSide][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			p := s.normal.Add(s.u.Scale(c[0])).Add(s.v.Scale(c[1]))
			pos := math.Vec3{X: p.X * half.X, Y: p.Y * half.Y, Z: p.Z * half.Z}
			updateBounds(&bounds, pos)

			g.Positions[nv] = pos
			if g.Normals != nil {
				g.Normals[nv] = normal
			}
			if g.TexCoords != nil {
				g.TexCoords[nv] = math.Vec2{X: (c[0] + 1) / 2, Y: (c[1] + 1) / 2}
			}
			if g.Colors != nil {
				g.Colors[nv] = opts.Color
			}
			nv++
		}

		quad := [indicesPerSide]uint32{0, 1, 2, 0, 2, 3}
		if flip {
			quad = [indicesPerSide]uint32{0, 2, 1, 0, 3, 2}
		}
		for _, q := range quad {
			g.Indices[ni] = base + q
			ni++
		}
	}

	for _, s := range sides {
		addSide(s, false)
	}
	if opts.TwoSided {
		for _, s := range sides {
			addSide(s, true)
		}
	}

	f.CenterLocal = bounds.Center()
	return bounds, nil
}

func updateBounds(b *Bounds, p math.Vec3) {
	b.Min.X = min(b.Min.X, p.X)
	b.Min.Y = min(b.Min.Y, p.Y)
	b.Min.Z = min(b.Min.Z, p.Z)
	b.Max.X = max(b.Max.X, p.X)
	b.Max.Y = max(b.Max.Y, p.Y)
	b.Max.Z = max(b.Max.Z, p.Z)
}
