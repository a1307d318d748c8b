// Package model builds procedural meshes for objects that have no geometry
// of their own: volumes and avatar bodies are drawn as boxes.
package model

import "github.com/Faultbox/worldview/pkg/math"

// BuildOptions contains options for mesh building.
type BuildOptions struct {
	// Size is the full extent of the box along each axis.
	Size math.Vec3
	// TwoSided adds inward-facing copies of every triangle.
	TwoSided bool
	// Color is written to every vertex when the face has a color stream.
	Color [4]uint8
}

// DefaultOptions returns a unit opaque white box.
func DefaultOptions() BuildOptions {
	return BuildOptions{
		Size:  math.Vec3{X: 1, Y: 1, Z: 1},
		Color: [4]uint8{255, 255, 255, 255},
	}
}

// Bounds holds the axis-aligned bounding box of a mesh.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Center returns the midpoint of the box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}
