package vegetation

import (
	"testing"

	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/terrain"
	"github.com/Faultbox/worldview/pkg/math"
)

func TestTargetBlades(t *testing.T) {
	g := NewInstance(math.Vec3{}, math.Vec2{X: 4, Y: 4}, 0)

	tests := []struct {
		distance float32
		want     int
	}{
		{0, MaxBlades},
		{1, 32}, // 80 clamps to 32
		{10, 8}, // 16/10*5
		{40, 2},
		{100, 1}, // 0.8 clamps to 1
		{1e6, 1},
	}
	for _, tt := range tests {
		if got := g.TargetBlades(tt.distance); got != tt.want {
			t.Errorf("TargetBlades(%v) = %d, want %d", tt.distance, got, tt.want)
		}
	}
}

func TestUpdateLODMonotonicAndBounded(t *testing.T) {
	g := NewInstance(math.Vec3{}, math.Vec2{X: 3, Y: 2}, 0)
	prev := g.NumBlades()

	for d := float32(0.1); d < 500; d *= 1.07 {
		changed := g.UpdateLOD(d)
		n := g.NumBlades()

		if n < 1 || n > MaxBlades {
			t.Fatalf("distance %v: blade count %d out of range", d, n)
		}
		if n&(n-1) != 0 {
			t.Fatalf("distance %v: blade count %d is not a power of two", d, n)
		}
		if n > prev {
			t.Fatalf("distance %v: blade count rose from %d to %d", d, prev, n)
		}
		if changed != (n != prev) {
			t.Fatalf("distance %v: changed = %v but count went %d -> %d", d, changed, prev, n)
		}
		prev = n
	}
	if prev != 1 {
		t.Errorf("far away count = %d, want 1", prev)
	}
}

func TestUpdateLODHysteresis(t *testing.T) {
	g := NewInstance(math.Vec3{}, math.Vec2{X: 4, Y: 4}, 0)

	g.UpdateLOD(10) // target 8
	if g.NumBlades() != 8 {
		t.Fatalf("NumBlades() = %d, want 8", g.NumBlades())
	}
	// Targets 5 through 15 keep 8 blades.
	for _, d := range []float32{10, 6, 12, 15} {
		if g.UpdateLOD(d) {
			t.Errorf("distance %v changed the count to %d", d, g.NumBlades())
		}
	}
	// Target 20 needs more blades.
	if !g.UpdateLOD(4) || g.NumBlades() != 32 {
		t.Errorf("moving closer should double to 32, got %d", g.NumBlades())
	}
}

func TestUpdateSpeciesSubstitutesLowest(t *testing.T) {
	table := NewSpeciesTable(Species{ID: 4}, Species{ID: 2}, Species{ID: 7})

	g := NewInstance(math.Vec3{}, math.Vec2{X: 1, Y: 1}, 9)
	if !g.UpdateSpecies(table, zap.NewNop()) || g.Species != 2 {
		t.Errorf("Species = %d, want substitute 2", g.Species)
	}
	if g.UpdateSpecies(table, zap.NewNop()) {
		t.Error("known species should not be substituted")
	}

	empty := NewSpeciesTable()
	g.Species = 9
	if g.UpdateSpecies(empty, zap.NewNop()) || g.Species != 9 {
		t.Error("an empty table has nothing to substitute")
	}
}

func TestIdleUpdateTracksPatch(t *testing.T) {
	land := terrain.NewSurface(8, 8, 1, 4)
	gen := NewGenerator(NewSpeciesTable(Species{ID: 0, BladeSizeX: 1, BladeSizeY: 1}), NewSeededDistribution(1), zap.NewNop())
	g := NewInstance(math.Vec3{X: 2, Z: 2}, math.Vec2{X: 1, Y: 1}, 0)

	if g.IdleUpdate() {
		t.Error("no patch resolved yet")
	}
	f := newGrassFace()
	generate(t, gen, g, f, land)
	if g.IdleUpdate() {
		t.Error("fresh mesh should be current")
	}

	land.SetHeight(6, 6, 1)
	if g.IdleUpdate() {
		t.Error("edit in another patch should not trigger a rebuild")
	}
	land.SetHeight(1, 1, 1)
	if !g.IdleUpdate() {
		t.Error("edit in the owning patch should trigger a rebuild")
	}
	generate(t, gen, g, f, land)
	if g.IdleUpdate() {
		t.Error("rebuild should record the new patch time")
	}
}

func TestPixelAreaFallsWithDistance(t *testing.T) {
	g := NewInstance(math.Vec3{}, math.Vec2{X: 1, Y: 1}, 0)
	near := g.PixelArea(math.Vec3{X: 2}, 600, 0.8)
	far := g.PixelArea(math.Vec3{X: 20}, 600, 0.8)
	if near <= far || far <= 0 {
		t.Errorf("PixelArea near %v far %v", near, far)
	}
}
