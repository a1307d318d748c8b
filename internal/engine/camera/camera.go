// Package camera provides the viewer's orbit camera.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/worldview/pkg/math"
)

// OrbitCamera orbits a center point. Units are meters.
type OrbitCamera struct {
	Center math.Vec3

	Distance float32
	Pitch    float32 // radians above the horizon
	Yaw      float32 // radians around +Y

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// FOV is the vertical field of view in degrees.
	FOV       float32
	Near, Far float32

	// OrbitSpeed is the yaw rate of Advance in radians per second.
	OrbitSpeed float32
}

// NewOrbitCamera returns a camera a few meters behind and above the origin.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:    8,
		Pitch:       0.4,
		MinDistance: 1,
		MaxDistance: 400,
		MinPitch:    0.05,
		MaxPitch:    1.5,
		FOV:         60,
		Near:        0.1,
		Far:         1000,
		OrbitSpeed:  0.2,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	horiz := c.Distance * math32.Cos(c.Pitch)
	return math.Vec3{
		X: c.Center.X + horiz*math32.Sin(c.Yaw),
		Y: c.Center.Y + c.Distance*math32.Sin(c.Pitch),
		Z: c.Center.Z + horiz*math32.Cos(c.Yaw),
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{Y: 1})
}

// Projection returns the perspective projection for the given aspect.
func (c *OrbitCamera) Projection(aspect float32) math.Mat4 {
	return math.Perspective(c.FOV*math32.Pi/180, aspect, c.Near, c.Far)
}

// Advance swings the camera around the center by dt seconds of orbit and
// keeps distance and pitch inside their limits.
func (c *OrbitCamera) Advance(dt float32) {
	c.Yaw = math32.Mod(c.Yaw+c.OrbitSpeed*dt, 2*math32.Pi)
	c.Distance = clamp(c.Distance, c.MinDistance, c.MaxDistance)
	c.Pitch = clamp(c.Pitch, c.MinPitch, c.MaxPitch)
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}
