// Package scene provides the transform hierarchy shared by drawables,
// skeleton joints and attachment points.
package scene

import (
	"github.com/Faultbox/worldview/pkg/math"
)

// maxDepth bounds parent walks so an accidental cycle cannot hang a frame.
const maxDepth = 64

// Node is a positioned and oriented element of the scene graph.
// Position and rotation are relative to the parent, or world space when
// the node has no parent. The parent reference is non-owning.
//
// World transforms are composed on demand from the live ancestor chain, so
// a node never observes a stale parent transform across frames.
type Node struct {
	position math.Vec3
	rotation math.Quat
	parent   *Node
}

// NewNode creates a node at the origin with identity rotation.
func NewNode() *Node {
	n := &Node{}
	n.Reset()
	return n
}

// Reset clears the node back to an unparented identity transform.
func (n *Node) Reset() {
	n.position = math.Vec3{}
	n.rotation = math.QuatIdentity()
	n.parent = nil
}

// Position returns the parent-relative position.
func (n *Node) Position() math.Vec3 {
	return n.position
}

// Rotation returns the parent-relative rotation.
func (n *Node) Rotation() math.Quat {
	return n.rotation
}

// SetPosition sets the parent-relative position.
func (n *Node) SetPosition(p math.Vec3) {
	n.position = p
}

// SetRotation sets the parent-relative rotation.
func (n *Node) SetRotation(q math.Quat) {
	n.rotation = q
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// SetParent re-parents the node without touching its local transform.
// Passing a node that has n as an ancestor is rejected and leaves the
// node unchanged.
func (n *Node) SetParent(p *Node) bool {
	for a := p; a != nil; a = a.parent {
		if a == n {
			return false
		}
	}
	n.parent = p
	return true
}

// World returns the world-space position and rotation.
func (n *Node) World() (math.Vec3, math.Quat) {
	pos := n.position
	rot := n.rotation
	depth := 0
	for p := n.parent; p != nil && depth < maxDepth; p = p.parent {
		pos = p.position.Add(p.rotation.Rotate(pos))
		rot = p.rotation.Mul(rot)
		depth++
	}
	return pos, rot
}

// WorldPosition returns the world-space position.
func (n *Node) WorldPosition() math.Vec3 {
	pos, _ := n.World()
	return pos
}

// WorldRotation returns the world-space rotation.
func (n *Node) WorldRotation() math.Quat {
	_, rot := n.World()
	return rot
}

// WorldMatrix returns the world transform as a matrix for device upload.
func (n *Node) WorldMatrix() math.Mat4 {
	pos, rot := n.World()
	return math.FromTransform(pos, rot)
}
