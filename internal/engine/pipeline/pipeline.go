// Package pipeline batches drawable faces into pass pools and renders the
// pools in a fixed order once per frame.
//
// All methods run on the frame thread. Mutations are queued with the
// Mark* calls and resolved by UpdateGeometry during the idle phase, so no
// pool observes a half-updated drawable while Render is iterating.
package pipeline

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/logger"
)

// UpdateFunc rebuilds a drawable's face geometry. It returns
// drawable.ErrNotReady when a face was resized and needs storage first.
type UpdateFunc func(d *drawable.Drawable) error

// Stats are cumulative pipeline counters.
type Stats struct {
	Frames         int
	BatchesDrawn   int
	BatchesSkipped int
	Moves          int
	Rebuilds       int
	Deferrals      int
	Failures       int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTracer sets the tracer used for per-pass spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline owns the pass pools and the deferred update queues.
type Pipeline struct {
	device Device
	update UpdateFunc
	tracer trace.Tracer
	log    *zap.Logger

	pools      [drawable.NumPasses]*Pool
	membership map[*drawable.Face]drawable.Pass
	drawables  map[*drawable.Drawable]struct{}

	moved    []*drawable.Drawable
	textured []*drawable.Drawable
	build    []*drawable.Drawable
	spare    []*drawable.Drawable

	types  [drawable.NumRenderTypes]bool
	passes [drawable.NumPasses]bool

	stats Stats
}

// New creates a pipeline rendering to dev. update is called for every
// drawable whose geometry rebuild is pending.
func New(dev Device, update UpdateFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		device:     dev,
		update:     update,
		tracer:     otel.Tracer("github.com/Faultbox/worldview/pipeline"),
		log:        logger.Named("pipeline"),
		membership: make(map[*drawable.Face]drawable.Pass),
		drawables:  make(map[*drawable.Drawable]struct{}),
	}
	for i := range p.pools {
		p.pools[i] = newPool(drawable.Pass(i))
		p.passes[i] = true
	}
	for i := range p.types {
		p.types[i] = true
	}
	p.types[drawable.TypeNone] = false

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pool returns the pool for pass kind k.
func (p *Pipeline) Pool(k drawable.Pass) *Pool {
	return p.pools[k]
}

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// SetRenderTypeEnabled toggles drawing of a render type. TypeNone can
// never be enabled.
func (p *Pipeline) SetRenderTypeEnabled(t drawable.RenderType, on bool) {
	if t == drawable.TypeNone || int(t) >= len(p.types) {
		return
	}
	p.types[t] = on
}

// HasRenderType reports whether a render type is drawn.
func (p *Pipeline) HasRenderType(t drawable.RenderType) bool {
	if int(t) >= len(p.types) {
		return false
	}
	return p.types[t]
}

// SetPassEnabled toggles an optional pass. The opaque pass is always on.
func (p *Pipeline) SetPassEnabled(k drawable.Pass, on bool) {
	if k == drawable.PassSimple {
		return
	}
	p.passes[k] = on
}

// AddDrawable registers d and places its faces in their pools.
func (p *Pipeline) AddDrawable(d *drawable.Drawable) {
	if _, ok := p.drawables[d]; ok {
		return
	}
	p.drawables[d] = struct{}{}
	p.assignFaces(d)
}

// RemoveDrawable takes d out of every pool and releases its device buffers.
// Queued work for d is dropped.
func (p *Pipeline) RemoveDrawable(d *drawable.Drawable) {
	if _, ok := p.drawables[d]; !ok {
		return
	}
	delete(p.drawables, d)
	for _, f := range d.Faces() {
		if k, ok := p.membership[f]; ok {
			p.pools[k].remove(f)
			delete(p.membership, f)
		}
		p.device.ReleaseFace(f)
	}
	d.ClearState(drawable.OnMovedList | drawable.OnTexturedList | drawable.OnBuildList)
}

// Contains reports whether d is registered.
func (p *Pipeline) Contains(d *drawable.Drawable) bool {
	_, ok := p.drawables[d]
	return ok
}

// MarkMoved queues a transform refresh for d.
func (p *Pipeline) MarkMoved(d *drawable.Drawable) {
	d.SetState(drawable.RebuildPosition)
	if d.IsState(drawable.OnMovedList) {
		return
	}
	d.SetState(drawable.OnMovedList)
	p.moved = append(p.moved, d)
}

// MarkRebuild sets rebuild flags on d and queues it once per frame.
func (p *Pipeline) MarkRebuild(d *drawable.Drawable, flag drawable.State) {
	flag &= drawable.RebuildAll
	if flag == 0 {
		return
	}
	if flag&drawable.RebuildPosition != 0 {
		p.MarkMoved(d)
	}
	if flag&drawable.RebuildGeometry == 0 {
		return
	}
	d.SetState(drawable.RebuildGeometry)
	if d.IsState(drawable.OnBuildList) {
		return
	}
	d.SetState(drawable.OnBuildList)
	p.build = append(p.build, d)
}

// MarkTextured queues re-evaluation of d's pool membership.
func (p *Pipeline) MarkTextured(d *drawable.Drawable) {
	if d.IsState(drawable.OnTexturedList) {
		return
	}
	d.SetState(drawable.OnTexturedList)
	p.textured = append(p.textured, d)
}

// UpdateGeometry resolves the queued work. Each pending rebuild has its
// flag cleared before the update callback runs, so a callback may re-arm
// it for the next frame. A drawable whose face storage is short gets the
// storage allocated and is retried next frame.
func (p *Pipeline) UpdateGeometry() {
	for _, d := range p.moved {
		d.ClearState(drawable.OnMovedList | drawable.RebuildPosition)
		if p.Contains(d) {
			p.stats.Moves++
		}
	}
	clear(p.moved)
	p.moved = p.moved[:0]

	pending := p.build
	p.build = p.spare[:0]
	for _, d := range pending {
		d.ClearState(drawable.OnBuildList)
		if !p.Contains(d) || !d.IsState(drawable.RebuildGeometry) {
			continue
		}
		d.ClearState(drawable.RebuildGeometry)
		p.rebuild(d)
	}
	clear(pending)
	p.spare = pending[:0]

	for _, d := range p.textured {
		d.ClearState(drawable.OnTexturedList)
		if p.Contains(d) {
			p.assignFaces(d)
		}
	}
	clear(p.textured)
	p.textured = p.textured[:0]
}

func (p *Pipeline) rebuild(d *drawable.Drawable) {
	err := p.update(d)
	switch {
	case err == nil:
		p.stats.Rebuilds++
	case errors.Is(err, drawable.ErrNotReady):
		for _, f := range d.Faces() {
			f.Allocate()
		}
		p.stats.Deferrals++
		p.MarkRebuild(d, drawable.RebuildGeometry)
	default:
		p.stats.Failures++
		p.log.Warn("geometry update failed",
			zap.Uint64("owner", d.Owner),
			zap.Stringer("type", d.RenderType),
			zap.Error(err))
	}
	// Updates may add faces.
	p.assignFaces(d)
}

func (p *Pipeline) assignFaces(d *drawable.Drawable) {
	for _, f := range d.Faces() {
		want := f.Pass()
		if f.IsState(drawable.FaceHUDRender) {
			want = drawable.PassHUD
		}
		cur, ok := p.membership[f]
		if ok && cur == want {
			continue
		}
		if ok {
			p.pools[cur].remove(f)
		}
		p.pools[want].add(f)
		p.membership[f] = want
	}
}

func (p *Pipeline) visible(d *drawable.Drawable) bool {
	return p.HasRenderType(d.RenderType)
}

// Render draws every pool in PoolOrder. The world passes always run; the
// overlay runs only when it has members.
func (p *Pipeline) Render(ctx context.Context) {
	p.stats.Frames++
	for _, k := range PoolOrder {
		pool := p.pools[k]
		if !p.passes[k] {
			continue
		}
		if k == drawable.PassHUD && pool.Len() == 0 {
			continue
		}
		p.renderPool(ctx, pool)
	}
}

func (p *Pipeline) renderPool(ctx context.Context, pool *Pool) {
	_, span := p.tracer.Start(ctx, "pipeline.render."+pool.Pass().String())
	defer span.End()

	drawn, skipped := p.stats.BatchesDrawn, p.stats.BatchesSkipped
	pool.Prerender(p.device)
	for i := 0; i < pool.NumPasses(); i++ {
		pool.BeginPass(p.device, i)
		pool.Render(p.device, i, p.visible, &p.stats)
		pool.EndPass(p.device, i)
	}
	span.SetAttributes(
		attribute.Int("pool.faces", pool.Len()),
		attribute.Int("batches.drawn", p.stats.BatchesDrawn-drawn),
		attribute.Int("batches.skipped", p.stats.BatchesSkipped-skipped),
	)
}
