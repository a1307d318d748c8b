package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/config"
	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/pipeline"
	"github.com/Faultbox/worldview/internal/game/entity"
	"github.com/Faultbox/worldview/pkg/math"
)

const speciesYAML = `max_species: 2
species:
  - {species_id: 0, name: a, texture_name: a, blade_size_x: 0.2, blade_size_y: 0.4}
  - {species_id: 1, name: b, texture_name: b, blade_size_x: 0.3, blade_size_y: 0.8}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "grass.yaml")
	if err := os.WriteFile(path, []byte(speciesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Vegetation.SpeciesFile = path
	return cfg
}

func TestLoadAssets(t *testing.T) {
	cfg := testConfig(t)
	a, err := LoadAssets(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadAssets() error = %v", err)
	}
	defer a.Close()
	if a.Species.Len() != 2 {
		t.Errorf("species = %d, want 2", a.Species.Len())
	}
	if a.Skeleton == nil || len(a.Skeleton.Points) == 0 {
		t.Error("expected the built-in skeleton")
	}
	if a.Watcher != nil {
		t.Error("watcher should be off by default")
	}
}

func TestLoadAssetsWatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vegetation.Watch = true
	a, err := LoadAssets(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadAssets() error = %v", err)
	}
	if a.Watcher == nil {
		t.Fatal("expected a species watcher")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLoadAssetsFallbacks(t *testing.T) {
	cfg := config.Default()
	cfg.Vegetation.SpeciesFile = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Vegetation.Watch = true
	a, err := LoadAssets(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadAssets() error = %v", err)
	}
	if a.Species.Len() != DefaultSpecies().Len() {
		t.Errorf("species = %d, want the built-in table", a.Species.Len())
	}
	if a.Watcher != nil {
		t.Error("a missing file should not be watched")
	}
}

func TestLoadAssetsErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("species: {"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Vegetation.SpeciesFile = bad
	if _, err := LoadAssets(cfg, zap.NewNop()); err == nil {
		t.Error("expected an error for a malformed species file")
	}

	cfg = testConfig(t)
	cfg.Avatar.SkeletonFile = filepath.Join(dir, "missing-skeleton.yaml")
	if _, err := LoadAssets(cfg, zap.NewNop()); err == nil {
		t.Error("expected an error for a missing skeleton file")
	}
}

func newDemo(t *testing.T) (*Demo, *pipeline.Recorder) {
	t.Helper()
	cfg := testConfig(t)
	a, err := LoadAssets(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	rec := pipeline.NewRecorder()
	surface := NewSurface()
	w := NewWorld(rec, cfg, a, surface, zap.NewNop())
	d, err := Populate(w, surface, zap.NewNop())
	if err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	return d, rec
}

func TestPopulate(t *testing.T) {
	d, _ := newDemo(t)
	per := regionCells * cellSize / grassTile
	if len(d.Grass) != per*per {
		t.Errorf("grass objects = %d, want %d", len(d.Grass), per*per)
	}

	sk, ok := d.world.Skeleton(d.Avatar)
	if !ok {
		t.Fatal("avatar has no skeleton")
	}
	for point, want := range map[string]entity.ID{
		HatPoint:    d.Hat,
		ShieldPoint: d.Shield,
		BadgePoint:  d.Badge,
	} {
		p, _ := sk.Point(point)
		if p.Object() != want {
			t.Errorf("%s holds %v, want %v", point, p.Object(), want)
		}
	}
	hat, _ := sk.Point(HatPoint)
	if hat.ItemID() == uuid.Nil {
		t.Error("hat should carry its item id")
	}
}

func TestToggleHat(t *testing.T) {
	d, _ := newDemo(t)
	d.world.Idle(context.Background(), 0, math.Vec3{X: 32, Y: 5, Z: 40})

	hat, _ := d.world.Registry().Get(d.Hat)
	if hat.Drawable == nil {
		t.Fatal("attached hat should have a drawable")
	}
	if hat.Drawable.RenderType != drawable.TypeVolume {
		t.Fatalf("RenderType = %v, want volume", hat.Drawable.RenderType)
	}
	d.ToggleHat()
	if hat.Drawable.RenderType != drawable.TypeNone {
		t.Errorf("hidden hat RenderType = %v, want none", hat.Drawable.RenderType)
	}
	d.ToggleHat()
	if hat.Drawable.RenderType != drawable.TypeVolume {
		t.Errorf("shown hat RenderType = %v, want volume", hat.Drawable.RenderType)
	}
}

func TestToggleShield(t *testing.T) {
	d, _ := newDemo(t)
	sk, _ := d.world.Skeleton(d.Avatar)
	p, _ := sk.Point(ShieldPoint)

	if err := d.ToggleShield(); err != nil {
		t.Fatal(err)
	}
	if p.Occupied() {
		t.Error("shield should be off")
	}
	if err := d.ToggleShield(); err != nil {
		t.Fatal(err)
	}
	if p.Object() != d.Shield {
		t.Error("shield should be back on")
	}
}

func TestApplyRenderConfig(t *testing.T) {
	d, _ := newDemo(t)
	p := d.world.Pipeline()
	rc := config.Default().Render
	rc.Grass = false
	rc.HUD = false
	ApplyRenderConfig(p, rc)
	if p.HasRenderType(drawable.TypeGrass) || p.HasRenderType(drawable.TypeHUD) {
		t.Error("grass and HUD should be off")
	}
	if !p.HasRenderType(drawable.TypeGround) {
		t.Error("ground should stay on")
	}
}

func TestRunHeadless(t *testing.T) {
	cfg := testConfig(t)
	a, err := LoadAssets(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := RunHeadless(context.Background(), cfg, a, 4, 1.0/30, zap.NewNop())
	if err != nil {
		t.Fatalf("RunHeadless() error = %v", err)
	}
	if res.Frames != 4 {
		t.Errorf("Frames = %d, want 4", res.Frames)
	}
	// Grass, the avatar with four more objects, and the ground.
	per := regionCells * cellSize / grassTile
	if want := per*per + 5 + 1; res.Objects != want {
		t.Errorf("Objects = %d, want %d", res.Objects, want)
	}
	if res.Stats.BatchesDrawn == 0 {
		t.Error("expected batches to be drawn")
	}
	if res.Draws[drawable.PassGrass.String()] == 0 {
		t.Error("expected grass draws in the last frame")
	}
}

func TestRunHeadlessCancelled(t *testing.T) {
	cfg := testConfig(t)
	a, err := LoadAssets(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunHeadless(ctx, cfg, a, 10, 0.1, zap.NewNop()); err == nil {
		t.Error("expected a cancelled run to fail")
	}
}

func TestDemoScript(t *testing.T) {
	d, _ := newDemo(t)
	d.world.Idle(context.Background(), 0, math.Vec3{X: 32, Y: 5, Z: 40})
	sk, _ := d.world.Skeleton(d.Avatar)
	hat, _ := sk.Point(HatPoint)
	shield, _ := sk.Point(ShieldPoint)

	step := func(seconds float32) {
		t.Helper()
		if err := d.Update(seconds); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	step(3.5)
	if hat.Hidden() || !shield.Occupied() {
		t.Fatal("nothing should change before the first interval")
	}
	step(1) // 4.5s
	if !hat.Hidden() {
		t.Error("hat should blink off at 4s")
	}
	step(2) // 6.5s
	if shield.Occupied() {
		t.Error("shield should come off at 6s")
	}
	step(2) // 8.5s
	if hat.Hidden() {
		t.Error("hat should be back at 8s")
	}
	step(4) // 12.5s
	if shield.Object() != d.Shield {
		t.Error("shield should be back on at 12s")
	}
}
