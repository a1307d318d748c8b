// Package avatar implements the avatar skeleton and the attachment points
// that carry objects rigidly on its joints.
package avatar

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/scene"
	"github.com/Faultbox/worldview/internal/game/entity"
	"github.com/Faultbox/worldview/pkg/math"
)

var (
	// ErrOccupied is returned when attaching to a point that already holds
	// a different object.
	ErrOccupied = errors.New("attachment point occupied")
	// ErrUnknownPoint is returned for attachment point names the skeleton
	// does not define.
	ErrUnknownPoint = errors.New("unknown attachment point")
)

const (
	// DefaultMaxDistance is the farthest an attached object may sit from
	// its attachment point, in meters.
	DefaultMaxDistance = 3.5

	// avatarPixelArea is the minimum pixel area that keeps an avatar-sized
	// attachment at full detail.
	avatarPixelArea = 4 * 4
	minCrossSection = 0.01 * 0.01
	maxCrossSection = 1
)

// Objects resolves attached objects and their children.
type Objects interface {
	Get(id entity.ID) (*entity.Entity, bool)
	Children(e *entity.Entity) []*entity.Entity
}

// Notifier receives the deferred-update requests attachment changes make.
type Notifier interface {
	MarkMoved(d *drawable.Drawable)
	MarkTextured(d *drawable.Drawable)
}

// ToJointLocal expresses a world transform relative to a joint.
func ToJointLocal(pos math.Vec3, rot math.Quat, jointPos math.Vec3, jointRot math.Quat) (math.Vec3, math.Quat) {
	inv := jointRot.Inverse()
	return inv.Rotate(pos.Sub(jointPos)), inv.Mul(rot)
}

// ToWorld reverses ToJointLocal.
func ToWorld(pos math.Vec3, rot math.Quat, jointPos math.Vec3, jointRot math.Quat) (math.Vec3, math.Quat) {
	return jointPos.Add(jointRot.Rotate(pos)), jointRot.Mul(rot)
}

// AttachmentPoint is a socket on a skeleton joint holding at most one
// object. It stores the object's ID, never the object.
type AttachmentPoint struct {
	Name     string
	Slot     int
	Group    int
	PieSlice int
	HUD      bool

	joint       *Joint
	node        *scene.Node
	originalPos math.Vec3

	object entity.ID
	itemID uuid.UUID
	dirty  bool
	hidden bool

	minPixelArea float32
	maxDistance  float32

	objects Objects
	notify  Notifier
	log     *zap.Logger
}

func newAttachmentPoint(name string, slot int, joint *Joint, objects Objects, notify Notifier, log *zap.Logger) *AttachmentPoint {
	p := &AttachmentPoint{
		Name:        name,
		Slot:        slot,
		PieSlice:    -1,
		joint:       joint,
		node:        scene.NewNode(),
		maxDistance: DefaultMaxDistance,
		objects:     objects,
		notify:      notify,
		log:         log,
	}
	p.node.SetParent(joint.Node)
	return p
}

// Joint returns the joint the point hangs off.
func (p *AttachmentPoint) Joint() *Joint {
	return p.joint
}

// Node returns the point's transform node, a child of the joint node.
func (p *AttachmentPoint) Node() *scene.Node {
	return p.node
}

// SetOriginalPosition sets the rest offset from the joint.
func (p *AttachmentPoint) SetOriginalPosition(pos math.Vec3) {
	p.originalPos = pos
	p.node.SetPosition(pos)
}

// OriginalPosition returns the rest offset from the joint.
func (p *AttachmentPoint) OriginalPosition() math.Vec3 {
	return p.originalPos
}

// LocalToWorld expresses a transform given relative to the point in world
// space, using the point's current placement.
func (p *AttachmentPoint) LocalToWorld(pos math.Vec3, rot math.Quat) (math.Vec3, math.Quat) {
	jointPos, jointRot := p.node.World()
	return ToWorld(pos, rot, jointPos, jointRot)
}

// Object returns the attached object's ID, or the zero ID.
func (p *AttachmentPoint) Object() entity.ID {
	return p.object
}

// Occupied reports whether an object is attached.
func (p *AttachmentPoint) Occupied() bool {
	return !p.object.IsZero()
}

// ItemID returns the inventory item the attached object came from.
func (p *AttachmentPoint) ItemID() uuid.UUID {
	return p.itemID
}

// Dirty reports whether the attach-time setup is waiting for a drawable.
func (p *AttachmentPoint) Dirty() bool {
	return p.dirty
}

// Hidden reports whether the visibility override is active.
func (p *AttachmentPoint) Hidden() bool {
	return p.hidden
}

// MinPixelArea returns the LOD threshold computed by CalcLOD.
func (p *AttachmentPoint) MinPixelArea() float32 {
	return p.minPixelArea
}

// SetMaxDistance sets the clamp radius used by ClampDistance.
func (p *AttachmentPoint) SetMaxDistance(d float32) {
	p.maxDistance = d
}

// Attach binds the object. Attaching the object already held is a no-op;
// any other object yields ErrOccupied. The joint-local transform is
// computed now when the object has a drawable, otherwise on the first
// SyncDeferred after one exists.
func (p *AttachmentPoint) Attach(id entity.ID) error {
	e, ok := p.objects.Get(id)
	if !ok {
		return entity.ErrNotFound
	}
	if p.Occupied() {
		if p.object == id {
			return nil
		}
		p.log.Warn("attachment point already occupied",
			zap.String("point", p.Name),
			zap.Uint64("held", p.object.Handle()),
			zap.Uint64("object", id.Handle()))
		return ErrOccupied
	}

	p.object = id
	p.itemID = uuid.Nil
	if s, ok := e.NameValue(entity.NameAttachItemID); ok {
		item, err := uuid.Parse(s)
		if err != nil {
			p.log.Debug("bad attach item id", zap.String("value", s), zap.Error(err))
		}
		p.itemID = item
	}

	if e.Drawable != nil {
		p.setupDrawable(e)
	} else {
		p.dirty = true
	}

	if p.HUD {
		e.TextOnHUD = true
		for _, c := range p.objects.Children(e) {
			c.TextOnHUD = true
		}
	}

	p.CalcLOD()
	return nil
}

func (p *AttachmentPoint) setupDrawable(e *entity.Entity) {
	d := e.Drawable
	pos, rot := d.World()
	jointPos, jointRot := p.node.World()
	localPos, localRot := ToJointLocal(pos, rot, jointPos, jointRot)

	d.SetParent(p.node)
	d.SetPosition(localPos)
	d.SetRotation(localRot)
	e.Position, e.Rotation = localPos, localRot
	d.SetState(drawable.Active | drawable.UseBacklight)
	p.applyVisibility(e)
	p.notify.MarkMoved(d)
	// Faces may move between the world and overlay pools.
	p.notify.MarkTextured(d)
	if p.HUD {
		tagFaces(d, true)
	}

	for _, c := range p.objects.Children(e) {
		if c.Drawable == nil {
			continue
		}
		c.Drawable.SetState(drawable.UseBacklight)
		p.notify.MarkTextured(c.Drawable)
		if p.HUD {
			tagFaces(c.Drawable, true)
		}
	}
}

// Detach releases the object and restores its absolute world transform.
// Detaching an empty point does nothing.
func (p *AttachmentPoint) Detach() {
	if !p.Occupied() {
		return
	}
	p.SetVisibility(true)

	if e, ok := p.objects.Get(p.object); ok {
		if d := e.Drawable; d != nil {
			pos, rot := d.World()
			d.SetParent(nil)
			d.SetPosition(pos)
			d.SetRotation(rot)
			d.ClearState(drawable.UseBacklight)
			d.RenderType = e.Kind.RenderType()
			e.Position, e.Rotation = pos, rot

			p.notify.MarkMoved(d)
			p.notify.MarkTextured(d)
			if p.HUD {
				tagFaces(d, false)
			}
		}
		for _, c := range p.objects.Children(e) {
			if c.Drawable != nil {
				c.Drawable.ClearState(drawable.UseBacklight)
				p.notify.MarkTextured(c.Drawable)
				if p.HUD {
					tagFaces(c.Drawable, false)
				}
			}
			if p.HUD {
				c.TextOnHUD = false
			}
		}
		if p.HUD {
			e.TextOnHUD = false
		}
	}

	p.object = entity.ID{}
	p.itemID = uuid.Nil
	p.dirty = false
	p.hidden = false
}

// SyncDeferred completes an attach that happened before the object had a
// drawable.
func (p *AttachmentPoint) SyncDeferred() {
	if !p.dirty {
		return
	}
	e, ok := p.objects.Get(p.object)
	if !ok {
		// The object vanished without a detach.
		p.object = entity.ID{}
		p.itemID = uuid.Nil
		p.dirty = false
		p.hidden = false
		return
	}
	if e.Drawable == nil {
		return
	}
	p.setupDrawable(e)
	p.dirty = false
}

// SetVisibility shows or hides the attached object and its linked
// children by switching their render types. Buffers are never touched.
func (p *AttachmentPoint) SetVisibility(visible bool) {
	if !p.Occupied() {
		return
	}
	p.hidden = !visible
	if e, ok := p.objects.Get(p.object); ok {
		p.applyVisibility(e)
	}
}

func (p *AttachmentPoint) applyVisibility(e *entity.Entity) {
	if d := e.Drawable; d != nil {
		if p.hidden {
			d.RenderType = drawable.TypeNone
		} else {
			d.RenderType = p.visibleType()
		}
	}
	for _, c := range p.objects.Children(e) {
		if c.Drawable == nil {
			continue
		}
		if p.hidden {
			c.Drawable.RenderType = drawable.TypeNone
		} else {
			c.Drawable.RenderType = c.Kind.RenderType()
		}
	}
}

func (p *AttachmentPoint) visibleType() drawable.RenderType {
	if p.HUD {
		return drawable.TypeHUD
	}
	return drawable.TypeVolume
}

// ClampDistance pulls the attached object back to the clamp radius along
// its current direction from the point. The offset is rescaled from its
// direction each call rather than reduced step by step. It reports
// whether the object was moved.
func (p *AttachmentPoint) ClampDistance() bool {
	e, ok := p.objects.Get(p.object)
	if !ok || e.Drawable == nil {
		return false
	}
	dir, dist := e.Drawable.Position().NormalizeWithLength()
	if dist <= p.maxDistance {
		return false
	}
	clamped := dir.Scale(p.maxDistance)
	e.Drawable.SetPosition(clamped)
	e.Position = clamped
	p.notify.MarkMoved(e.Drawable)
	return true
}

// CalcLOD recomputes the minimum pixel area from the largest cross
// section among the object and its children.
func (p *AttachmentPoint) CalcLOD() float32 {
	e, ok := p.objects.Get(p.object)
	if !ok {
		return p.minPixelArea
	}
	area := e.CrossSection()
	for _, c := range p.objects.Children(e) {
		area = max(area, c.CrossSection())
	}
	area = min(max(area, minCrossSection), maxCrossSection)
	p.minPixelArea = avatarPixelArea / area
	return p.minPixelArea
}

func tagFaces(d *drawable.Drawable, hud bool) {
	for _, f := range d.Faces() {
		if hud {
			f.SetState(drawable.FaceHUDRender)
		} else {
			f.ClearState(drawable.FaceHUDRender)
		}
	}
}
