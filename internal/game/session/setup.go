// Package session assembles a populated world from configuration and
// drives it without a window.
package session

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/chewxy/math32"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/config"
	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/pipeline"
	"github.com/Faultbox/worldview/internal/engine/terrain"
	"github.com/Faultbox/worldview/internal/engine/vegetation"
	"github.com/Faultbox/worldview/internal/game/avatar"
	"github.com/Faultbox/worldview/internal/game/world"
)

// Terrain extent of the demo region.
const (
	regionCells = 64
	cellSize    = 1
)

// Assets are the definitions a world is built from.
type Assets struct {
	Species  *vegetation.SpeciesTable
	Skeleton *avatar.Definition
	// Watcher is set when species hot reload is enabled.
	Watcher *vegetation.Watcher
}

// Close stops the species watcher, if any.
func (a *Assets) Close() error {
	if a.Watcher == nil {
		return nil
	}
	return a.Watcher.Close()
}

// LoadAssets reads the species and skeleton definitions named by cfg. A
// species file that does not exist falls back to the built-in species; a
// file that exists but cannot be parsed is an error.
func LoadAssets(cfg *config.Config, log *zap.Logger) (*Assets, error) {
	a := &Assets{}

	path := cfg.Vegetation.SpeciesFile
	table, err := vegetation.LoadSpecies(path, vegetation.NamedArt, log.Named("vegetation"))
	var missing *vegetation.MissingSpeciesError
	switch {
	case err == nil:
	case errors.As(err, &missing):
		log.Warn("species file has gaps", zap.String("path", path), zap.Ints("ids", missing.IDs))
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("species file not found, using built-in species", zap.String("path", path))
		table = DefaultSpecies()
		path = ""
	default:
		return nil, fmt.Errorf("load species: %w", err)
	}
	a.Species = table

	if cfg.Vegetation.Watch && path != "" {
		a.Watcher, err = vegetation.WatchSpecies(path, log.Named("vegetation"))
		if err != nil {
			return nil, fmt.Errorf("watch species: %w", err)
		}
	}

	if f := cfg.Avatar.SkeletonFile; f != "" {
		a.Skeleton, err = avatar.LoadSkeletonFile(f)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load skeleton: %w", err)
		}
	} else {
		a.Skeleton = avatar.DefaultDefinition()
	}

	log.Info("assets loaded",
		zap.Int("species", a.Species.Len()),
		zap.Int("joints", len(a.Skeleton.Joints)),
		zap.Int("attachment_points", len(a.Skeleton.Points)),
		zap.Bool("watch", a.Watcher != nil))
	return a, nil
}

// DefaultSpecies is used when no species file is available.
func DefaultSpecies() *vegetation.SpeciesTable {
	return vegetation.NewSpeciesTable(
		vegetation.Species{ID: 0, Name: "meadow", BladeSizeX: 0.25, BladeSizeY: 0.45},
		vegetation.Species{ID: 1, Name: "tall", BladeSizeX: 0.3, BladeSizeY: 0.9},
	)
}

// NewSurface returns the demo region's rolling terrain.
func NewSurface() *terrain.Surface {
	s := terrain.NewSurface(regionCells, regionCells, cellSize, terrain.DefaultPatchCells)
	s.Fill(func(x, z float32) float32 {
		return 0.6*math32.Sin(x*0.15)*math32.Cos(z*0.11) + 0.3*math32.Sin((x+z)*0.05)
	})
	return s
}

// NewWorld builds a world on dev from the loaded assets and config.
func NewWorld(dev pipeline.Device, cfg *config.Config, assets *Assets, surface *terrain.Surface, log *zap.Logger) *world.World {
	w := world.New(dev, world.Config{
		Surface:           surface,
		Species:           assets.Species,
		Distribution:      vegetation.NewSeededDistribution(cfg.Vegetation.Seed),
		SpeciesWatcher:    assets.Watcher,
		Art:               vegetation.NamedArt,
		Skeleton:          assets.Skeleton,
		MaxAttachDistance: cfg.Avatar.MaxAttachDistance,
		DrawDistance:      cfg.Render.DrawDistance,
		Tracer:            otel.Tracer("github.com/Faultbox/worldview/world"),
		Logger:            log.Named("world"),
	})
	ApplyRenderConfig(w.Pipeline(), cfg.Render)
	return w
}

// ApplyRenderConfig switches the optional passes and render types.
func ApplyRenderConfig(p *pipeline.Pipeline, rc config.RenderConfig) {
	p.SetPassEnabled(drawable.PassGlow, rc.Glow)
	p.SetPassEnabled(drawable.PassInvisible, rc.Invisible)
	p.SetPassEnabled(drawable.PassHUD, rc.HUD)
	p.SetPassEnabled(drawable.PassGrass, rc.Grass)
	p.SetRenderTypeEnabled(drawable.TypeHUD, rc.HUD)
	p.SetRenderTypeEnabled(drawable.TypeGrass, rc.Grass)
	p.SetRenderTypeEnabled(drawable.TypeGround, rc.Ground)
}
