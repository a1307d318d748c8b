package model

import (
	"errors"
	"testing"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/pkg/math"
)

func buildBox(t *testing.T, opts BuildOptions) (*drawable.Face, Bounds) {
	t.Helper()
	f := drawable.New(1, drawable.TypeVolume).AddFace(drawable.PassSimple, drawable.StreamAll)
	if _, err := BuildBox(f, opts); !errors.Is(err, drawable.ErrNotReady) {
		t.Fatalf("first BuildBox() error = %v, want ErrNotReady", err)
	}
	f.Allocate()
	b, err := BuildBox(f, opts)
	if err != nil {
		t.Fatalf("BuildBox() error = %v", err)
	}
	return f, b
}

func TestBuildBox(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = math.Vec3{X: 2, Y: 4, Z: 1}
	f, b := buildBox(t, opts)

	if nv, ni := f.Size(); nv != 24 || ni != 36 {
		t.Fatalf("Size() = %d, %d, want 24, 36", nv, ni)
	}
	if b.Min != (math.Vec3{X: -1, Y: -2, Z: -0.5}) || b.Max != (math.Vec3{X: 1, Y: 2, Z: 0.5}) {
		t.Errorf("bounds = %v", b)
	}
	if f.CenterLocal != (math.Vec3{}) {
		t.Errorf("CenterLocal = %v, want origin", f.CenterLocal)
	}

	g := f.View()
	for i := 0; i < len(g.Indices); i += 3 {
		a, bb, c := g.Positions[g.Indices[i]], g.Positions[g.Indices[i+1]], g.Positions[g.Indices[i+2]]
		face := bb.Sub(a).Cross(c.Sub(a))
		if face.Dot(g.Normals[g.Indices[i]]) <= 0 {
			t.Fatalf("triangle %d winds against its normal", i/3)
		}
	}
	if g.Colors[0] != opts.Color {
		t.Errorf("color = %v, want %v", g.Colors[0], opts.Color)
	}
}

func TestBuildBoxTwoSided(t *testing.T) {
	opts := DefaultOptions()
	opts.TwoSided = true
	f, _ := buildBox(t, opts)

	if nv, ni := f.Size(); nv != 48 || ni != 72 {
		t.Fatalf("Size() = %d, %d, want 48, 72", nv, ni)
	}
	g := f.View()
	if g.Normals[24] != g.Normals[0].Scale(-1) {
		t.Errorf("back side normal = %v, want %v", g.Normals[24], g.Normals[0].Scale(-1))
	}
}
