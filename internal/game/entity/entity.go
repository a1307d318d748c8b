// Package entity implements world objects and the arena that owns them.
package entity

import (
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/vegetation"
	"github.com/Faultbox/worldview/pkg/math"
)

// Kind is the object variant.
type Kind uint8

const (
	KindVolume Kind = iota
	KindGrass
	KindGround
	KindAvatar
)

var kindNames = [...]string{
	KindVolume: "volume",
	KindGrass:  "grass",
	KindGround: "ground",
	KindAvatar: "avatar",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Static kinds never move once placed.
func (k Kind) Static() bool {
	return k == KindGrass || k == KindGround
}

// RenderType returns the drawable classification for the kind.
func (k Kind) RenderType() drawable.RenderType {
	switch k {
	case KindGrass:
		return drawable.TypeGrass
	case KindGround:
		return drawable.TypeGround
	case KindAvatar:
		return drawable.TypeAvatar
	default:
		return drawable.TypeVolume
	}
}

// Material selects the pass an object's faces render in.
type Material uint8

const (
	MaterialDefault Material = iota
	MaterialAlphaMask
	MaterialFullbright
	MaterialGlow
	MaterialInvisible
)

// Pass returns the draw pass for the material.
func (m Material) Pass() drawable.Pass {
	switch m {
	case MaterialAlphaMask:
		return drawable.PassGrass
	case MaterialFullbright:
		return drawable.PassFullbright
	case MaterialGlow:
		return drawable.PassGlow
	case MaterialInvisible:
		return drawable.PassInvisible
	default:
		return drawable.PassSimple
	}
}

// NameAttachItemID is the name-value key carrying the inventory item an
// object was attached from.
const NameAttachItemID = "AttachItemID"

// Update is one structural update record for an object.
type Update struct {
	Kind            Kind
	Position        math.Vec3
	Rotation        math.Quat
	Scale           math.Vec3
	Velocity        math.Vec3
	Acceleration    math.Vec3
	AngularVelocity math.Vec3
	// Species selects the grass species for grass objects.
	Species    int
	Material   Material
	GlowColor  [4]uint8
	Parent     ID
	NameValues map[string]string
}

// Entity is a world object. The Registry owns it; other components refer
// to it by ID.
type Entity struct {
	id   ID
	Kind Kind

	Position        math.Vec3
	Rotation        math.Quat
	Scale           math.Vec3
	Velocity        math.Vec3
	Acceleration    math.Vec3
	AngularVelocity math.Vec3

	Species   int
	Material  Material
	GlowColor [4]uint8

	Parent     ID
	Children   []ID
	NameValues map[string]string

	// TextOnHUD moves the object's floating text to the overlay.
	TextOnHUD bool

	// Drawable is created lazily once the object is render-relevant.
	Drawable *drawable.Drawable
	Grass    *vegetation.Instance
}

// ID returns the entity's arena id.
func (e *Entity) ID() ID {
	return e.id
}

// Apply copies an update onto the entity. Static kinds keep no motion:
// non-zero velocity, acceleration or spin is logged and zeroed. It
// reports whether the scale changed.
func (e *Entity) Apply(u Update, log *zap.Logger) bool {
	scaleChanged := e.Scale != u.Scale

	e.Position = u.Position
	e.Rotation = u.Rotation
	if e.Rotation == (math.Quat{}) {
		e.Rotation = math.QuatIdentity()
	}
	e.Scale = u.Scale
	e.Velocity = u.Velocity
	e.Acceleration = u.Acceleration
	e.AngularVelocity = u.AngularVelocity
	e.Species = u.Species
	e.Material = u.Material
	e.GlowColor = u.GlowColor
	for k, v := range u.NameValues {
		if e.NameValues == nil {
			e.NameValues = make(map[string]string, len(u.NameValues))
		}
		e.NameValues[k] = v
	}

	if e.Kind.Static() && e.moving() {
		log.Warn("static object has motion, zeroing",
			zap.Stringer("kind", e.Kind),
			zap.Uint64("id", e.id.Handle()),
			zap.Any("velocity", e.Velocity),
			zap.Any("acceleration", e.Acceleration),
			zap.Any("angular_velocity", e.AngularVelocity))
		e.Velocity = math.Vec3{}
		e.Acceleration = math.Vec3{}
		e.AngularVelocity = math.Vec3{}
	}
	if e.Grass != nil {
		e.Grass.Position = e.Position
		e.Grass.Scale = math.Vec2{X: e.Scale.X, Y: e.Scale.Z}
		e.Grass.Species = e.Species
	}
	return scaleChanged
}

func (e *Entity) moving() bool {
	var zero math.Vec3
	return e.Velocity != zero || e.Acceleration != zero || e.AngularVelocity != zero
}

// Integrate advances position and rotation by dt seconds of motion and
// reports whether anything moved.
func (e *Entity) Integrate(dt float32) bool {
	if !e.moving() || dt <= 0 {
		return false
	}
	e.Position = e.Position.Add(e.Velocity.Scale(dt)).Add(e.Acceleration.Scale(0.5 * dt * dt))
	e.Velocity = e.Velocity.Add(e.Acceleration.Scale(dt))

	if spin, rate := e.AngularVelocity.NormalizeWithLength(); rate > 0 {
		e.Rotation = math.QuatFromAxisAngle(spin, rate*dt).Mul(e.Rotation).Normalize()
	}
	return true
}

// NameValue returns a name-value pair.
func (e *Entity) NameValue(key string) (string, bool) {
	v, ok := e.NameValues[key]
	return v, ok
}

// MaxScale returns the largest scale component.
func (e *Entity) MaxScale() float32 {
	return e.Scale.MaxComponent()
}

// MidScale returns the middle scale component.
func (e *Entity) MidScale() float32 {
	return e.Scale.MidComponent()
}

// CrossSection approximates the largest silhouette area.
func (e *Entity) CrossSection() float32 {
	return e.MaxScale() * e.MidScale()
}

// RenderPosition returns where the object is drawn: the drawable's world
// position when it has one, otherwise the last reported position.
func (e *Entity) RenderPosition() math.Vec3 {
	if e.Drawable != nil {
		return e.Drawable.WorldPosition()
	}
	return e.Position
}

// RenderRotation is the rotational counterpart of RenderPosition.
func (e *Entity) RenderRotation() math.Quat {
	if e.Drawable != nil {
		return e.Drawable.WorldRotation()
	}
	return e.Rotation
}
