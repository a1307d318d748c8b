package pipeline

import (
	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/pkg/math"
)

// PassOrder is the fixed order the world passes render in. Later passes
// depend on the depth and color state left by earlier ones, so this is
// part of the output contract.
var PassOrder = []drawable.Pass{
	drawable.PassSimple,
	drawable.PassGrass,
	drawable.PassFullbright,
	drawable.PassGlow,
	drawable.PassInvisible,
}

// PoolOrder is PassOrder followed by the screen-space overlay.
var PoolOrder = []drawable.Pass{
	drawable.PassSimple,
	drawable.PassGrass,
	drawable.PassFullbright,
	drawable.PassGlow,
	drawable.PassInvisible,
	drawable.PassHUD,
}

const (
	grassAlphaRef   = 0.5
	defaultAlphaRef = 0.01
)

var white = [4]uint8{255, 255, 255, 255}

// Pool batches the faces that share one pass configuration.
type Pool struct {
	pass  drawable.Pass
	faces []*drawable.Face
	index map[*drawable.Face]int
}

func newPool(p drawable.Pass) *Pool {
	return &Pool{
		pass:  p,
		index: make(map[*drawable.Face]int),
	}
}

// Pass returns the pool's pass kind.
func (p *Pool) Pass() drawable.Pass {
	return p.pass
}

// Len returns the number of member faces.
func (p *Pool) Len() int {
	return len(p.faces)
}

// Contains reports whether f is a member.
func (p *Pool) Contains(f *drawable.Face) bool {
	_, ok := p.index[f]
	return ok
}

func (p *Pool) add(f *drawable.Face) {
	if _, ok := p.index[f]; ok {
		return
	}
	p.index[f] = len(p.faces)
	p.faces = append(p.faces, f)
}

func (p *Pool) remove(f *drawable.Face) {
	i, ok := p.index[f]
	if !ok {
		return
	}
	last := len(p.faces) - 1
	if i != last {
		p.faces[i] = p.faces[last]
		p.index[p.faces[i]] = i
	}
	p.faces[last] = nil
	p.faces = p.faces[:last]
	delete(p.index, f)
}

// StreamMask returns the vertex streams a batch must carry to be drawn in
// this pool.
func (p *Pool) StreamMask() drawable.StreamMask {
	switch p.pass {
	case drawable.PassFullbright:
		return drawable.StreamPosition | drawable.StreamTexCoord | drawable.StreamColor
	case drawable.PassGlow:
		return drawable.StreamPosition | drawable.StreamTexCoord
	case drawable.PassInvisible:
		return drawable.StreamPosition
	default:
		return drawable.StreamAll
	}
}

// NumPasses returns how many sub-passes the pool renders per frame.
func (p *Pool) NumPasses() int {
	return 1
}

// Prerender selects the shading model for the pool.
func (p *Pool) Prerender(dev Device) {
	switch p.pass {
	case drawable.PassFullbright, drawable.PassGlow, drawable.PassHUD:
		dev.SetLighting(LightingFullbright)
	default:
		dev.SetLighting(LightingDynamic)
	}
}

// BeginPass sets up fixed-function state for sub-pass i.
func (p *Pool) BeginPass(dev Device, i int) {
	dev.BeginPass(p.pass)
	dev.SetStreams(p.StreamMask())

	switch p.pass {
	case drawable.PassSimple, drawable.PassFullbright:
		dev.SetBlend(false)
		dev.SetAlphaTest(false)
	case drawable.PassGrass:
		dev.SetBlend(true)
		dev.BlendFunc(BlendSrcAlpha, BlendOneMinusSrcAlpha)
		dev.SetAlphaTest(true)
		dev.AlphaFunc(grassAlphaRef)
	case drawable.PassGlow:
		dev.SetBlend(true)
		dev.BlendFunc(BlendSrcAlpha, BlendOne)
	case drawable.PassInvisible:
		dev.ColorMask(false)
	case drawable.PassHUD:
		dev.ClearDepth()
		dev.SetBlend(true)
		dev.BlendFunc(BlendSrcAlpha, BlendOneMinusSrcAlpha)
	}
}

// Render issues every visible member face. Faces lacking a required
// stream are skipped and counted; the rest of the pass still renders.
func (p *Pool) Render(dev Device, i int, visible func(*drawable.Drawable) bool, stats *Stats) {
	required := p.StreamMask()
	var b Batch
	for _, f := range p.faces {
		d := f.Drawable()
		if !visible(d) {
			continue
		}
		if _, ni := f.Size(); ni == 0 {
			continue
		}
		if f.Streams()&required != required {
			stats.BatchesSkipped++
			continue
		}
		if p.pass == drawable.PassGlow {
			dev.SetColor(f.GlowColor())
		}
		b.Face = f
		b.Streams = required
		if f.IsState(drawable.FaceGlobal) {
			b.Model = math.Identity()
		} else {
			b.Model = d.WorldMatrix()
		}
		dev.Draw(&b)
		stats.BatchesDrawn++
	}
}

// EndPass restores the state BeginPass changed.
func (p *Pool) EndPass(dev Device, i int) {
	switch p.pass {
	case drawable.PassGrass:
		dev.AlphaFunc(defaultAlphaRef)
		dev.SetBlend(false)
	case drawable.PassGlow:
		dev.SetColor(white)
		dev.BlendFunc(BlendSrcAlpha, BlendOneMinusSrcAlpha)
		dev.SetBlend(false)
	case drawable.PassInvisible:
		dev.ColorMask(true)
	case drawable.PassHUD:
		dev.SetBlend(false)
	}
	dev.EndPass(p.pass)
}
