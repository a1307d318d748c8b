// Package vegetation generates patch-local grass meshes whose blade count
// follows the camera distance.
package vegetation

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
)

const (
	// MaxBlades is the blade count of a fully detailed instance.
	MaxBlades = 32
	// BladeBase is the blade width at its base, in meters.
	BladeBase = 0.25
	// BladeHeight is the nominal blade height, in meters.
	BladeHeight = 0.5
	// DistributionSD is the standard deviation of blade offsets.
	DistributionSD = 0.15
)

// Blade is one precomputed entry of the blade distribution.
type Blade struct {
	// OffsetX, OffsetZ are gaussian offsets from the instance center,
	// before scaling by the instance size.
	OffsetX, OffsetZ float32
	// RotSin, RotCos orient the blade quad.
	RotSin, RotCos float32
	// TipX, TipZ lean the blade tip.
	TipX, TipZ float32
	// Wind scales width, height and wind response, in [0.5, 1.5).
	Wind float32
}

// Distribution is the blade table shared by every instance. It is filled
// once and read-only afterwards.
type Distribution [MaxBlades]Blade

// NewDistribution samples a blade table from rng using the Box-Muller
// transform.
func NewDistribution(rng *rand.Rand) *Distribution {
	var d Distribution
	for i := range d {
		// 1-u keeps the log argument in (0, 1].
		u := math32.Sqrt(-2 * math32.Log(1-rng.Float32()))
		v := 2 * math32.Pi * rng.Float32()
		rot := rng.Float32() * math32.Pi

		d[i] = Blade{
			OffsetX: u * math32.Sin(v) * DistributionSD,
			OffsetZ: u * math32.Cos(v) * DistributionSD,
			RotSin:  math32.Sin(rot),
			RotCos:  math32.Cos(rot),
			TipX:    rng.Float32() * BladeBase * 0.25,
			TipZ:    rng.Float32() * BladeBase * 0.25,
			Wind:    0.5 + rng.Float32(),
		}
	}
	return &d
}

// NewSeededDistribution is NewDistribution over a PCG source.
func NewSeededDistribution(seed uint64) *Distribution {
	return NewDistribution(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}
