// Package drawable holds the renderable form of a world object: a transform
// node plus the faces that carry its geometry.
package drawable

import (
	"github.com/Faultbox/worldview/internal/engine/scene"
	"github.com/Faultbox/worldview/pkg/math"
)

// State is a bitset of drawable flags.
type State uint32

const (
	// UseBacklight lets the avatar backlight tint this drawable.
	UseBacklight State = 1 << iota
	// Active drawables are considered for per-frame updates.
	Active
	// RebuildGeometry requests a geometry rebuild on the next idle pass.
	RebuildGeometry
	// RebuildPosition requests a transform refresh on the next idle pass.
	RebuildPosition

	// OnMovedList, OnTexturedList and OnBuildList dedupe pipeline queues.
	OnMovedList
	OnTexturedList
	OnBuildList

	RebuildAll = RebuildGeometry | RebuildPosition
)

// RenderType classifies a drawable for per-type enable toggles.
type RenderType uint8

const (
	TypeNone RenderType = iota
	TypeVolume
	TypeHUD
	TypeGrass
	TypeGround
	TypeAvatar
	typeCount
)

// NumRenderTypes is the number of render types, including TypeNone.
const NumRenderTypes = int(typeCount)

var typeNames = [...]string{
	TypeNone:   "none",
	TypeVolume: "volume",
	TypeHUD:    "hud",
	TypeGrass:  "grass",
	TypeGround: "ground",
	TypeAvatar: "avatar",
}

func (t RenderType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Drawable is the renderable representation of one world object.
// Owner is an opaque handle back to the object; drawables never hold a
// reference to it.
type Drawable struct {
	*scene.Node

	Owner      uint64
	RenderType RenderType

	state          State
	faces          []*Face
	distanceToCam  float32
	lastUpdateTick uint64
}

// New creates an active drawable with its own transform node.
func New(owner uint64, rt RenderType) *Drawable {
	return &Drawable{
		Node:       scene.NewNode(),
		Owner:      owner,
		RenderType: rt,
		state:      Active,
	}
}

// AddFace appends a face that renders in pass p with the given streams.
func (d *Drawable) AddFace(p Pass, streams StreamMask) *Face {
	f := &Face{
		drawable: d,
		index:    len(d.faces),
		pass:     p,
	}
	f.SetStreams(streams)
	d.faces = append(d.faces, f)
	return f
}

// Faces returns the drawable's faces in index order.
func (d *Drawable) Faces() []*Face {
	return d.faces
}

// Face returns face i, or nil when out of range.
func (d *Drawable) Face(i int) *Face {
	if i < 0 || i >= len(d.faces) {
		return nil
	}
	return d.faces[i]
}

// NumFaces returns the face count.
func (d *Drawable) NumFaces() int {
	return len(d.faces)
}

// SetState sets the given flags.
func (d *Drawable) SetState(s State) {
	d.state |= s
}

// ClearState clears the given flags.
func (d *Drawable) ClearState(s State) {
	d.state &^= s
}

// IsState reports whether all given flags are set.
func (d *Drawable) IsState(s State) bool {
	return d.state&s == s
}

// IsAnyState reports whether any of the given flags is set.
func (d *Drawable) IsAnyState(s State) bool {
	return d.state&s != 0
}

// DistanceToCamera returns the distance recorded by UpdateDistance.
func (d *Drawable) DistanceToCamera() float32 {
	return d.distanceToCam
}

// UpdateDistance records the distance from the camera to the drawable's
// world position and returns it.
func (d *Drawable) UpdateDistance(camera math.Vec3) float32 {
	d.distanceToCam = d.WorldPosition().Distance(camera)
	return d.distanceToCam
}

// LastUpdateTick is the source revision the geometry was last built from.
func (d *Drawable) LastUpdateTick() uint64 {
	return d.lastUpdateTick
}

// SetLastUpdateTick records the source revision used for the geometry.
func (d *Drawable) SetLastUpdateTick(t uint64) {
	d.lastUpdateTick = t
}
