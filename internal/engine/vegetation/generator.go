package vegetation

import (
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/terrain"
	"github.com/Faultbox/worldview/internal/logger"
	"github.com/Faultbox/worldview/pkg/math"
)

// Streams are the vertex streams a grass face carries.
const Streams = drawable.StreamAll

var (
	bladeColor = [4]uint8{255, 255, 255, 255}
	upNormal   = math.Vec3{Y: 1}
	// Two double-sided triangles per blade.
	bladeIndices = [12]uint32{0, 1, 2, 1, 3, 2, 0, 2, 1, 1, 2, 3}
)

// Generator writes grass meshes. It holds the read-only shared tables;
// both must be fully built before the first frame.
type Generator struct {
	species *SpeciesTable
	dist    *Distribution
	log     *zap.Logger
}

// NewGenerator creates a generator over the given tables.
func NewGenerator(species *SpeciesTable, dist *Distribution, log *zap.Logger) *Generator {
	if log == nil {
		log = logger.Named("vegetation")
	}
	return &Generator{species: species, dist: dist, log: log}
}

// Species returns the species table.
func (gen *Generator) Species() *SpeciesTable {
	return gen.species
}

// SetSpecies swaps the species table. Only call between frames.
func (gen *Generator) SetSpecies(t *SpeciesTable) {
	gen.species = t
}

// Generate writes the instance mesh into f in world coordinates. Each
// blade is two quads sharing four vertices whose base heights come from
// land. It returns drawable.ErrNotReady when f is too small for the
// current blade count. An unknown species leaves the face empty.
func (gen *Generator) Generate(g *Instance, f *drawable.Face, land terrain.Land) error {
	g.patch = land.ResolvePatch(g.Position)
	if g.patch != nil {
		g.lastPatchUpdate = g.patch.LastUpdateTime()
	}

	sp, ok := gen.species.Lookup(g.Species)
	if !ok {
		gen.log.Info("unknown grass species", zap.Int("species", g.Species))
		f.SetSize(0, 0)
		return nil
	}

	n := g.numBlades
	f.SetStreams(Streams)
	f.SetState(drawable.FaceGlobal)
	f.SetTexture(sp.Texture)
	f.SetSize(n*4, n*12)

	geo, err := f.Geometry()
	if err != nil {
		return err
	}

	width, height := sp.BladeSizeX, sp.BladeSizeY
	for i := range n {
		b := &gen.dist[i]
		x := b.OffsetX * g.Scale.X
		z := b.OffsetZ * g.Scale.Y
		xf := b.RotSin * BladeBase * width * b.Wind
		zf := b.RotCos * BladeBase * width * b.Wind
		bladeHeight := BladeHeight * height * b.Wind

		v := i * 4
		left := math.Vec3{X: g.Position.X + x + xf, Z: g.Position.Z + z + zf}
		right := math.Vec3{X: g.Position.X + x - xf, Z: g.Position.Z + z - zf}
		left.Y = land.ResolveHeight(left)
		right.Y = land.ResolveHeight(right)
		tip := math.Vec3{X: b.TipX, Y: bladeHeight, Z: b.TipZ}

		geo.Positions[v+0] = left
		geo.Positions[v+1] = left.Add(tip)
		geo.Positions[v+2] = right
		geo.Positions[v+3] = right.Add(tip)

		geo.TexCoords[v+0] = math.Vec2{X: 0, Y: 0}
		geo.TexCoords[v+1] = math.Vec2{X: 0, Y: 0.98}
		geo.TexCoords[v+2] = math.Vec2{X: 1, Y: 0}
		geo.TexCoords[v+3] = math.Vec2{X: 1, Y: 0.98}

		for k := range 4 {
			geo.Normals[v+k] = upNormal
			geo.Colors[v+k] = bladeColor
		}
		for k, idx := range bladeIndices {
			geo.Indices[i*12+k] = uint32(v) + idx
		}
	}

	f.CenterLocal = g.Position
	return nil
}
