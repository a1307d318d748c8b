package avatar

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/game/entity"
	"github.com/Faultbox/worldview/pkg/math"
)

func TestDefaultSkeleton(t *testing.T) {
	sk := NewSkeleton(DefaultDefinition(), entity.NewRegistry(), nil, zap.NewNop())

	names := sk.PointNames()
	if len(names) == 0 {
		t.Fatal("default skeleton has no attachment points")
	}
	if !slices.IsSorted(names) {
		t.Errorf("PointNames() not sorted: %v", names)
	}
	for _, name := range names {
		p, ok := sk.Point(name)
		if !ok || p.Joint() == nil {
			t.Fatalf("point %q has no joint", name)
		}
		if p.Node().Parent() != p.Joint().Node {
			t.Errorf("point %q is not parented to its joint", name)
		}
	}

	hud, _ := sk.Point("HUD Center")
	chest, _ := sk.Point("Chest")
	if !hud.HUD || chest.HUD {
		t.Error("unexpected HUD flags")
	}
	if chest.Slot != 1 || chest.PieSlice != 2 {
		t.Errorf("chest slot/pie = %d/%d", chest.Slot, chest.PieSlice)
	}

	head, ok := sk.Joint("mHead")
	if !ok || head.Parent() == nil || head.Parent().Name != "mNeck" {
		t.Fatal("mHead should hang off mNeck")
	}
	if y := head.WorldPosition().Y; y < 1.5 || y > 1.7 {
		t.Errorf("head height = %v, want about 1.6m", y)
	}
}

func TestRootTransformMovesJoints(t *testing.T) {
	sk := NewSkeleton(DefaultDefinition(), entity.NewRegistry(), nil, zap.NewNop())
	pelvis, _ := sk.Joint("mPelvis")
	before := pelvis.WorldPosition()

	sk.SetRootTransform(math.Vec3{X: 5, Z: -2}, math.QuatIdentity())
	after := pelvis.WorldPosition()
	if !nearVec(after.Sub(before), math.Vec3{X: 5, Z: -2}) {
		t.Errorf("pelvis moved by %v, want (5, 0, -2)", after.Sub(before))
	}
	if sk.Root().Position() != (math.Vec3{X: 5, Z: -2}) {
		t.Error("Root() should carry the avatar transform")
	}
}

func TestPointNamesIsACopy(t *testing.T) {
	sk := NewSkeleton(DefaultDefinition(), entity.NewRegistry(), nil, zap.NewNop())
	names := sk.PointNames()
	names[0] = "zzz"
	if sk.PointNames()[0] == "zzz" {
		t.Error("PointNames() exposed internal state")
	}
}

func TestLoadSkeletonRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "duplicate joint",
			yaml: "joints:\n  - {name: a}\n  - {name: a}\n",
			want: "duplicate joint",
		},
		{
			name: "parent defined later",
			yaml: "joints:\n  - {name: b, parent: a}\n  - {name: a}\n",
			want: "before it is defined",
		},
		{
			name: "point on unknown joint",
			yaml: "joints:\n  - {name: a}\nattachment_points:\n  - {name: p, joint: x}\n",
			want: "unknown joint",
		},
		{
			name: "duplicate point",
			yaml: "joints:\n  - {name: a}\nattachment_points:\n  - {name: p, joint: a}\n  - {name: p, joint: a}\n",
			want: "duplicate attachment point",
		},
		{
			name: "unknown field",
			yaml: "joints:\n  - {name: a, length: 2}\n",
			want: "failed to parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSkeleton([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadSkeleton() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadSkeletonFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skeleton.yaml")
	data := "joints:\n  - {name: mRoot}\nattachment_points:\n  - {name: Top, slot: 3, joint: mRoot, position: [0, 1, 0], rotation: [0, 90, 0]}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := LoadSkeletonFile(path)
	if err != nil {
		t.Fatalf("LoadSkeletonFile() error = %v", err)
	}
	sk := NewSkeleton(def, entity.NewRegistry(), nil, zap.NewNop())
	top, ok := sk.Point("Top")
	if !ok {
		t.Fatal("point Top missing")
	}
	if top.PieSlice != -1 {
		t.Errorf("PieSlice = %d, want -1 when unset", top.PieSlice)
	}
	if top.OriginalPosition() != (math.Vec3{Y: 1}) {
		t.Errorf("OriginalPosition() = %v", top.OriginalPosition())
	}
	// 90 degrees about Y turns +Z into +X.
	if got := top.Node().Rotation().Rotate(math.Vec3{Z: 1}); !nearVec(got, math.Vec3{X: 1}) {
		t.Errorf("point rotation maps +Z to %v, want +X", got)
	}

	if _, err := LoadSkeletonFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
