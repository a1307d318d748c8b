package pipeline

import (
	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/pkg/math"
)

// BlendFactor is a source or destination blend factor.
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

// Lighting selects the shading model for subsequent draws.
type Lighting uint8

const (
	LightingDynamic Lighting = iota
	LightingFullbright
)

// Batch is one face ready to be issued.
type Batch struct {
	Face  *drawable.Face
	Model math.Mat4
	// Streams are the vertex streams enabled for the draw.
	Streams drawable.StreamMask
}

// Device is the graphics state machine the pools drive. Implementations
// are not required to be safe for concurrent use.
type Device interface {
	BeginPass(p drawable.Pass)
	EndPass(p drawable.Pass)

	SetBlend(enabled bool)
	BlendFunc(src, dst BlendFactor)
	SetAlphaTest(enabled bool)
	AlphaFunc(ref float32)
	ColorMask(enabled bool)
	SetStreams(m drawable.StreamMask)
	SetLighting(l Lighting)
	SetColor(c [4]uint8)
	ClearDepth()

	Draw(b *Batch)
	// ReleaseFace frees any device-side buffers held for the face.
	ReleaseFace(f *drawable.Face)
}
