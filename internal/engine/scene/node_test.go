package scene

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/worldview/pkg/math"
)

func TestNodeRootWorldIsLocal(t *testing.T) {
	n := NewNode()
	n.SetPosition(math.Vec3{X: 1, Y: 2, Z: 3})

	if got := n.WorldPosition(); got != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("WorldPosition() = %v, want (1, 2, 3)", got)
	}
	if got := n.WorldRotation(); got != math.QuatIdentity() {
		t.Errorf("WorldRotation() = %v, want identity", got)
	}
}

func TestNodeComposesParentChain(t *testing.T) {
	root := NewNode()
	root.SetPosition(math.Vec3{X: 10})
	root.SetRotation(math.QuatFromAxisAngle(math.Vec3{Y: 1}, float32(gomath.Pi/2)))

	child := NewNode()
	child.SetParent(root)
	child.SetPosition(math.Vec3{X: 1})

	// +X in the root frame points along -Z in the world.
	got := child.WorldPosition()
	want := math.Vec3{X: 10, Z: -1}
	if got.Distance(want) > 0.0001 {
		t.Errorf("WorldPosition() = %v, want %v", got, want)
	}

	grandchild := NewNode()
	grandchild.SetParent(child)
	grandchild.SetRotation(math.QuatFromAxisAngle(math.Vec3{Y: 1}, float32(gomath.Pi/2)))

	dir := grandchild.WorldRotation().Rotate(math.Vec3{X: 1})
	if dir.Distance(math.Vec3{X: -1}) > 0.0001 {
		t.Errorf("two quarter turns should face -X, got %v", dir)
	}
}

func TestNodeSeesParentMoveImmediately(t *testing.T) {
	root := NewNode()
	child := NewNode()
	child.SetParent(root)
	child.SetPosition(math.Vec3{Y: 1})

	before := child.WorldPosition()
	root.SetPosition(math.Vec3{X: 5})
	after := child.WorldPosition()

	if before == after {
		t.Fatal("child world position did not follow parent move")
	}
	if after != (math.Vec3{X: 5, Y: 1}) {
		t.Errorf("WorldPosition() = %v, want (5, 1, 0)", after)
	}
}

func TestNodeRejectsCycle(t *testing.T) {
	a := NewNode()
	b := NewNode()
	b.SetParent(a)

	if a.SetParent(b) {
		t.Error("SetParent should reject a cycle")
	}
	if a.Parent() != nil {
		t.Error("rejected SetParent must leave the parent unchanged")
	}
	if a.SetParent(a) {
		t.Error("SetParent should reject self-parenting")
	}
}

func TestNodeWorldMatrix(t *testing.T) {
	n := NewNode()
	n.SetPosition(math.Vec3{X: 1, Y: 2, Z: 3})

	m := n.WorldMatrix()
	if m[12] != 1 || m[13] != 2 || m[14] != 3 {
		t.Errorf("translation = (%v, %v, %v), want (1, 2, 3)", m[12], m[13], m[14])
	}
}
