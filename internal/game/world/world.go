// Package world owns the scene: the entity arena, the render pipeline and
// the per-frame idle work that keeps drawables in step with their objects.
package world

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/model"
	"github.com/Faultbox/worldview/internal/engine/pipeline"
	"github.com/Faultbox/worldview/internal/engine/terrain"
	"github.com/Faultbox/worldview/internal/engine/vegetation"
	"github.com/Faultbox/worldview/internal/game/avatar"
	"github.com/Faultbox/worldview/internal/game/entity"
	"github.com/Faultbox/worldview/internal/logger"
	"github.com/Faultbox/worldview/pkg/math"
)

// ErrNotAvatar is returned when an attachment names an object that has no
// skeleton.
var ErrNotAvatar = errors.New("object is not an avatar")

// Config holds the world's collaborators and tuning.
type Config struct {
	// Surface is the ground. Without one grass sits at height zero.
	Surface *terrain.Surface

	Species      *vegetation.SpeciesTable
	Distribution *vegetation.Distribution
	// SpeciesWatcher, when set, triggers species reloads between frames.
	SpeciesWatcher *vegetation.Watcher
	Art            vegetation.ArtLookup

	Skeleton          *avatar.Definition
	MaxAttachDistance float32

	// DrawDistance is how close the camera must be before an object gets
	// a drawable. Zero means everything is drawn.
	DrawDistance float32

	Tracer trace.Tracer
	Logger *zap.Logger
}

// World is the single-threaded scene. Mutate it, then call Idle and
// Render once per frame from the same goroutine.
type World struct {
	cfg  Config
	reg  *entity.Registry
	pipe *pipeline.Pipeline
	gen  *vegetation.Generator
	land terrain.Land

	ground         *entity.Entity
	groundRevision uint64

	skeletons map[entity.ID]*avatar.Skeleton

	tracer trace.Tracer
	log    *zap.Logger
	tick   uint64
}

// New creates a world rendering to dev.
func New(dev pipeline.Device, cfg Config) *World {
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("world")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/Faultbox/worldview/world")
	}
	if cfg.Species == nil {
		cfg.Species = vegetation.NewSpeciesTable()
	}
	if cfg.Distribution == nil {
		cfg.Distribution = vegetation.NewSeededDistribution(1)
	}
	if cfg.Skeleton == nil {
		cfg.Skeleton = avatar.DefaultDefinition()
	}
	if cfg.MaxAttachDistance <= 0 {
		cfg.MaxAttachDistance = avatar.DefaultMaxDistance
	}

	w := &World{
		cfg:       cfg,
		reg:       entity.NewRegistry(),
		gen:       vegetation.NewGenerator(cfg.Species, cfg.Distribution, cfg.Logger.Named("vegetation")),
		land:      flatLand{},
		skeletons: make(map[entity.ID]*avatar.Skeleton),
		tracer:    cfg.Tracer,
		log:       cfg.Logger,
	}
	w.pipe = pipeline.New(dev, w.updateGeometry,
		pipeline.WithTracer(cfg.Tracer),
		pipeline.WithLogger(cfg.Logger.Named("pipeline")))

	if cfg.Surface != nil {
		w.land = cfg.Surface
		w.ground = w.reg.Create(entity.KindGround)
		w.groundRevision = cfg.Surface.Revision()
	}
	return w
}

// Registry returns the entity arena.
func (w *World) Registry() *entity.Registry {
	return w.reg
}

// Pipeline returns the render pipeline.
func (w *World) Pipeline() *pipeline.Pipeline {
	return w.pipe
}

// Species returns the active species table.
func (w *World) Species() *vegetation.SpeciesTable {
	return w.gen.Species()
}

// Ground returns the ground object, or nil without a surface.
func (w *World) Ground() *entity.Entity {
	return w.ground
}

// Skeleton returns the skeleton of an avatar object.
func (w *World) Skeleton(id entity.ID) (*avatar.Skeleton, bool) {
	sk, ok := w.skeletons[id]
	return sk, ok
}

// ObjectAppeared creates an object from its first update.
func (w *World) ObjectAppeared(u entity.Update) entity.ID {
	e := w.reg.Create(u.Kind)
	if u.Kind == entity.KindGrass {
		e.Grass = vegetation.NewInstance(u.Position, math.Vec2{X: u.Scale.X, Y: u.Scale.Z}, u.Species)
	}
	e.Apply(u, w.log)
	if e.Grass != nil {
		e.Grass.UpdateSpecies(w.gen.Species(), w.log)
		e.Species = e.Grass.Species
	}
	if !u.Parent.IsZero() {
		if err := w.reg.Link(e.ID(), u.Parent); err != nil {
			w.log.Warn("object parent unknown",
				zap.Uint64("object", e.ID().Handle()),
				zap.Uint64("parent", u.Parent.Handle()))
		}
	}

	if u.Kind == entity.KindAvatar {
		sk := avatar.NewSkeleton(w.cfg.Skeleton, w.reg, w.pipe, w.log.Named("avatar"))
		sk.SetMaxDistance(w.cfg.MaxAttachDistance)
		sk.SetRootTransform(e.Position, e.Rotation)
		w.skeletons[e.ID()] = sk
	}

	w.log.Debug("object appeared",
		zap.Uint64("id", e.ID().Handle()),
		zap.Stringer("kind", e.Kind))
	return e.ID()
}

// ObjectUpdated applies a later update. Attached objects take the update
// position and rotation as joint-local and are clamped to the attachment
// range.
func (w *World) ObjectUpdated(id entity.ID, u entity.Update) error {
	e, ok := w.reg.Get(id)
	if !ok {
		return fmt.Errorf("update %d: %w", id.Handle(), entity.ErrNotFound)
	}
	if u.Kind != e.Kind {
		w.log.Debug("object kind cannot change",
			zap.Uint64("id", id.Handle()),
			zap.Stringer("kind", e.Kind),
			zap.Stringer("update", u.Kind))
	}

	material, glow, species := e.Material, e.GlowColor, e.Species
	oldPos := e.Position
	scaleChanged := e.Apply(u, w.log)

	if u.Parent != e.Parent {
		w.reparent(e, u.Parent)
	}

	point := w.pointFor(id)
	if point != nil && point.Dirty() {
		// The deferred attach converts a world transform once a drawable exists.
		e.Position, e.Rotation = point.LocalToWorld(e.Position, e.Rotation)
	}

	if e.Grass != nil {
		e.Grass.UpdateSpecies(w.gen.Species(), w.log)
		e.Species = e.Grass.Species
	}

	if point != nil && scaleChanged {
		point.CalcLOD()
	}

	d := e.Drawable
	if d == nil {
		return nil
	}
	d.SetPosition(e.Position)
	d.SetRotation(e.Rotation)
	if point != nil {
		point.ClampDistance()
	}
	w.pipe.MarkMoved(d)

	rebuild := scaleChanged
	if e.Grass != nil && (e.Species != species || e.Position != oldPos) {
		rebuild = true
	}
	if rebuild {
		w.pipe.MarkRebuild(d, drawable.RebuildGeometry)
	}
	if e.Material != material || e.GlowColor != glow {
		w.applyMaterial(e)
	}
	return nil
}

// ObjectRemoved destroys an object. It is detached first so attachments
// never dangle, and its drawable leaves the pipeline.
func (w *World) ObjectRemoved(id entity.ID) error {
	e, ok := w.reg.Get(id)
	if !ok {
		return fmt.Errorf("remove %d: %w", id.Handle(), entity.ErrNotFound)
	}
	for _, sk := range w.skeletons {
		sk.DetachObject(id)
	}
	if sk, ok := w.skeletons[id]; ok {
		for _, name := range sk.PointNames() {
			if err := sk.Detach(name); err != nil {
				return err
			}
		}
		delete(w.skeletons, id)
	}

	for _, c := range w.reg.Children(e) {
		w.unparentDrawable(c)
	}
	if e.Drawable != nil {
		w.pipe.RemoveDrawable(e.Drawable)
		e.Drawable = nil
	}
	if e == w.ground {
		w.ground = nil
	}
	return w.reg.Remove(id)
}

// AttachObject puts an object on an avatar's attachment point.
func (w *World) AttachObject(avatarID entity.ID, point string, objectID entity.ID) error {
	sk, ok := w.skeletons[avatarID]
	if !ok {
		return fmt.Errorf("attach to %d: %w", avatarID.Handle(), ErrNotAvatar)
	}
	if _, ok := w.reg.Get(objectID); !ok {
		return fmt.Errorf("attach %d: %w", objectID.Handle(), entity.ErrNotFound)
	}
	for other, s := range w.skeletons {
		if other != avatarID {
			s.DetachObject(objectID)
		}
	}
	return sk.Attach(point, objectID)
}

// DetachObject removes an object from whichever avatar wears it.
func (w *World) DetachObject(objectID entity.ID) bool {
	for _, sk := range w.skeletons {
		if sk.DetachObject(objectID) {
			return true
		}
	}
	return false
}

func (w *World) pointFor(id entity.ID) *avatar.AttachmentPoint {
	for _, sk := range w.skeletons {
		if p := sk.PointFor(id); p != nil {
			return p
		}
	}
	return nil
}

func (w *World) reparent(e *entity.Entity, parent entity.ID) {
	if parent.IsZero() {
		w.reg.Unlink(e.ID())
		w.unparentDrawable(e)
		return
	}
	if err := w.reg.Link(e.ID(), parent); err != nil {
		w.log.Warn("object parent unknown",
			zap.Uint64("object", e.ID().Handle()),
			zap.Uint64("parent", parent.Handle()))
		return
	}
	if e.Drawable == nil {
		return
	}
	if p, ok := w.reg.Get(parent); ok && p.Drawable != nil {
		e.Drawable.SetParent(p.Drawable.Node)
		w.pipe.MarkMoved(e.Drawable)
	}
}

// unparentDrawable makes e's drawable a root, keeping where it is drawn.
func (w *World) unparentDrawable(e *entity.Entity) {
	d := e.Drawable
	if d == nil || d.Parent() == nil {
		return
	}
	pos, rot := d.World()
	d.SetParent(nil)
	d.SetPosition(pos)
	d.SetRotation(rot)
	e.Position, e.Rotation = pos, rot
	w.pipe.MarkMoved(d)
}

func (w *World) applyMaterial(e *entity.Entity) {
	if e.Drawable == nil || e.Kind == entity.KindGrass || e.Kind == entity.KindGround {
		return
	}
	for _, f := range e.Drawable.Faces() {
		f.SetPass(e.Material.Pass())
		f.SetGlowColor(e.GlowColor)
	}
	w.pipe.MarkTextured(e.Drawable)
}

// Idle runs the between-frames work: species reloads, motion, lazy
// drawable creation, deferred attachments, grass detail and terrain
// changes, then the pipeline's geometry flush.
func (w *World) Idle(ctx context.Context, dt float32, camera math.Vec3) {
	_, span := w.tracer.Start(ctx, "world.idle")
	defer span.End()
	w.tick++

	w.reloadSpecies()

	for _, e := range w.reg.All() {
		if !e.Parent.IsZero() || w.pointFor(e.ID()) != nil {
			continue
		}
		if e.Integrate(dt) && e.Drawable != nil {
			e.Drawable.SetPosition(e.Position)
			e.Drawable.SetRotation(e.Rotation)
			w.pipe.MarkMoved(e.Drawable)
		}
	}

	created := 0
	for _, e := range w.reg.All() {
		if e.Drawable == nil && w.inRange(e, camera) && w.createDrawable(e) {
			created++
		}
	}

	for id, sk := range w.skeletons {
		if e, ok := w.reg.Get(id); ok {
			sk.SetRootTransform(e.RenderPosition(), e.RenderRotation())
		}
		sk.SyncDeferred()
	}

	for _, e := range w.reg.All() {
		if e.Grass == nil || e.Drawable == nil {
			continue
		}
		dist := e.Drawable.UpdateDistance(camera)
		lod := e.Grass.UpdateLOD(dist)
		if lod || e.Grass.IdleUpdate() {
			w.pipe.MarkRebuild(e.Drawable, drawable.RebuildGeometry)
			e.Drawable.SetLastUpdateTick(w.tick)
		}
	}

	if s := w.cfg.Surface; s != nil && w.ground != nil && w.ground.Drawable != nil {
		if rev := s.Revision(); rev != w.groundRevision {
			w.groundRevision = rev
			w.pipe.MarkRebuild(w.ground.Drawable, drawable.RebuildGeometry)
		}
	}

	w.pipe.UpdateGeometry()
	span.SetAttributes(
		attribute.Int("objects", w.reg.Count()),
		attribute.Int("drawables.created", created),
	)
}

// Render draws the frame.
func (w *World) Render(ctx context.Context) {
	w.pipe.Render(ctx)
}

func (w *World) reloadSpecies() {
	watcher := w.cfg.SpeciesWatcher
	if watcher == nil || !watcher.Changed() {
		return
	}
	table, err := vegetation.LoadSpecies(watcher.Path(), w.cfg.Art, w.log.Named("vegetation"))
	var missing *vegetation.MissingSpeciesError
	if err != nil && !errors.As(err, &missing) {
		w.log.Warn("species reload failed, keeping current table",
			zap.String("path", watcher.Path()),
			zap.Error(err))
		return
	}
	w.gen.SetSpecies(table)
	w.log.Info("species reloaded",
		zap.String("path", watcher.Path()),
		zap.Int("species", table.Len()))

	for _, e := range w.reg.All() {
		if e.Grass == nil {
			continue
		}
		e.Grass.UpdateSpecies(table, w.log)
		e.Species = e.Grass.Species
		if e.Drawable != nil {
			w.pipe.MarkRebuild(e.Drawable, drawable.RebuildGeometry)
		}
	}
}

func (w *World) inRange(e *entity.Entity, camera math.Vec3) bool {
	switch {
	case e.Kind == entity.KindGround, w.cfg.DrawDistance <= 0:
		return true
	case w.pointFor(e.ID()) != nil:
		return true
	case !e.Parent.IsZero():
		p, ok := w.reg.Get(e.Parent)
		return ok && w.inRange(p, camera)
	}
	return e.Position.Distance(camera) <= w.cfg.DrawDistance
}

// createDrawable builds e's drawable and queues its first geometry build.
// Children wait until their parent has a drawable.
func (w *World) createDrawable(e *entity.Entity) bool {
	var parent *drawable.Drawable
	if !e.Parent.IsZero() {
		p, ok := w.reg.Get(e.Parent)
		if !ok || p.Drawable == nil {
			return false
		}
		parent = p.Drawable
	}

	d := drawable.New(e.ID().Handle(), e.Kind.RenderType())
	switch e.Kind {
	case entity.KindGrass:
		f := d.AddFace(drawable.PassGrass, vegetation.Streams)
		f.SetState(drawable.FaceGlobal)
	case entity.KindGround:
		d.AddFace(drawable.PassSimple, drawable.StreamAll)
	default:
		f := d.AddFace(e.Material.Pass(), drawable.StreamAll)
		f.SetGlowColor(e.GlowColor)
	}
	if parent != nil {
		d.SetParent(parent.Node)
	}
	d.SetPosition(e.Position)
	d.SetRotation(e.Rotation)

	e.Drawable = d
	w.pipe.AddDrawable(d)
	w.pipe.MarkRebuild(d, drawable.RebuildAll)
	return true
}

// updateGeometry is the pipeline's rebuild callback.
func (w *World) updateGeometry(d *drawable.Drawable) error {
	e, ok := w.reg.Get(entity.IDFromHandle(d.Owner))
	if !ok || e.Drawable != d {
		return fmt.Errorf("drawable %d: %w", d.Owner, entity.ErrNotFound)
	}
	switch e.Kind {
	case entity.KindGrass:
		return w.gen.Generate(e.Grass, d.Face(0), w.land)
	case entity.KindGround:
		return w.cfg.Surface.BuildMesh(d.Face(0))
	default:
		opts := model.DefaultOptions()
		opts.Size = e.Scale
		_, err := model.BuildBox(d.Face(0), opts)
		return err
	}
}

// flatLand stands in for a missing ground surface.
type flatLand struct{}

func (flatLand) ResolveHeight(math.Vec3) float32 { return 0 }

func (flatLand) ResolvePatch(math.Vec3) *terrain.Patch { return nil }
