package avatar

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/chewxy/math32"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/worldview/internal/engine/scene"
	"github.com/Faultbox/worldview/internal/game/entity"
	"github.com/Faultbox/worldview/internal/logger"
	"github.com/Faultbox/worldview/pkg/math"
)

//go:embed skeleton.yaml
var defaultSkeleton []byte

// JointDef describes one joint relative to its parent.
type JointDef struct {
	Name     string     `yaml:"name"`
	Parent   string     `yaml:"parent"`
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"`
}

// PointDef describes one attachment point relative to its joint.
type PointDef struct {
	Name     string     `yaml:"name"`
	Slot     int        `yaml:"slot"`
	Joint    string     `yaml:"joint"`
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"`
	Group    int        `yaml:"group"`
	PieSlice *int       `yaml:"pie_slice"`
	HUD      bool       `yaml:"hud"`
}

// Definition is a skeleton file.
type Definition struct {
	Joints []JointDef `yaml:"joints"`
	Points []PointDef `yaml:"attachment_points"`
}

// DefaultDefinition returns the built-in skeleton.
func DefaultDefinition() *Definition {
	def, err := LoadSkeleton(defaultSkeleton)
	if err != nil {
		panic(fmt.Sprintf("built-in skeleton: %v", err))
	}
	return def
}

// LoadSkeletonFile reads a skeleton definition from disk.
func LoadSkeletonFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skeleton: %w", err)
	}
	return LoadSkeleton(data)
}

// LoadSkeleton parses and validates a skeleton definition.
func LoadSkeleton(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse skeleton: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) validate() error {
	joints := make(map[string]bool, len(d.Joints))
	for _, j := range d.Joints {
		if j.Name == "" {
			return fmt.Errorf("skeleton: joint without a name")
		}
		if joints[j.Name] {
			return fmt.Errorf("skeleton: duplicate joint %q", j.Name)
		}
		if j.Parent != "" && !joints[j.Parent] {
			return fmt.Errorf("skeleton: joint %q names parent %q before it is defined", j.Name, j.Parent)
		}
		joints[j.Name] = true
	}
	points := make(map[string]bool, len(d.Points))
	for _, p := range d.Points {
		if p.Name == "" {
			return fmt.Errorf("skeleton: attachment point without a name")
		}
		if points[p.Name] {
			return fmt.Errorf("skeleton: duplicate attachment point %q", p.Name)
		}
		if !joints[p.Joint] {
			return fmt.Errorf("skeleton: attachment point %q on unknown joint %q", p.Name, p.Joint)
		}
		points[p.Name] = true
	}
	return nil
}

// Joint is a named bone of the skeleton.
type Joint struct {
	*scene.Node
	Name   string
	parent *Joint
}

// Parent returns the parent joint, or nil for joints on the avatar root.
func (j *Joint) Parent() *Joint {
	return j.parent
}

// Skeleton is an avatar's joint hierarchy with its attachment points.
type Skeleton struct {
	root   *scene.Node
	joints map[string]*Joint
	points map[string]*AttachmentPoint
	names  []string

	objects Objects
	log     *zap.Logger
}

// NewSkeleton builds a skeleton from a definition. Attached objects are
// resolved through objects and update requests go to notify.
func NewSkeleton(def *Definition, objects Objects, notify Notifier, log *zap.Logger) *Skeleton {
	if log == nil {
		log = logger.Named("avatar")
	}
	s := &Skeleton{
		root:    scene.NewNode(),
		joints:  make(map[string]*Joint, len(def.Joints)),
		points:  make(map[string]*AttachmentPoint, len(def.Points)),
		objects: objects,
		log:     log,
	}

	for _, jd := range def.Joints {
		j := &Joint{Node: scene.NewNode(), Name: jd.Name}
		j.SetPosition(vec3(jd.Position))
		j.SetRotation(euler(jd.Rotation))
		if parent, ok := s.joints[jd.Parent]; ok {
			j.parent = parent
			j.SetParent(parent.Node)
		} else {
			j.SetParent(s.root)
		}
		s.joints[jd.Name] = j
	}

	for _, pd := range def.Points {
		p := newAttachmentPoint(pd.Name, pd.Slot, s.joints[pd.Joint], objects, notify, log)
		p.Group = pd.Group
		if pd.PieSlice != nil {
			p.PieSlice = *pd.PieSlice
		}
		p.HUD = pd.HUD
		p.SetOriginalPosition(vec3(pd.Position))
		p.node.SetRotation(euler(pd.Rotation))
		s.points[pd.Name] = p
		s.names = append(s.names, pd.Name)
	}
	slices.Sort(s.names)

	log.Debug("skeleton built",
		zap.Int("joints", len(s.joints)),
		zap.Int("attachment_points", len(s.points)))
	return s
}

func vec3(v [3]float32) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func euler(deg [3]float32) math.Quat {
	const toRad = math32.Pi / 180
	if deg == ([3]float32{}) {
		return math.QuatIdentity()
	}
	return math.QuatFromEuler(deg[0]*toRad, deg[1]*toRad, deg[2]*toRad)
}

// Root returns the node carrying the avatar's world transform.
func (s *Skeleton) Root() *scene.Node {
	return s.root
}

// SetRootTransform places the avatar in the world.
func (s *Skeleton) SetRootTransform(pos math.Vec3, rot math.Quat) {
	s.root.SetPosition(pos)
	s.root.SetRotation(rot)
}

// Joint looks up a joint by name.
func (s *Skeleton) Joint(name string) (*Joint, bool) {
	j, ok := s.joints[name]
	return j, ok
}

// PointNames returns the attachment point names in sorted order.
func (s *Skeleton) PointNames() []string {
	return slices.Clone(s.names)
}

// Point looks up an attachment point by name.
func (s *Skeleton) Point(name string) (*AttachmentPoint, bool) {
	p, ok := s.points[name]
	return p, ok
}

// Attach puts the object on the named point. An object already worn on
// another point moves to the new one.
func (s *Skeleton) Attach(name string, id entity.ID) error {
	p, ok := s.points[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPoint, name)
	}
	if old := s.PointFor(id); old != nil && old != p {
		if p.Occupied() {
			return ErrOccupied
		}
		old.Detach()
	}
	if err := p.Attach(id); err != nil {
		return err
	}
	s.log.Debug("object attached",
		zap.String("point", name),
		zap.Uint64("object", id.Handle()),
		zap.Bool("deferred", p.Dirty()))
	return nil
}

// Detach empties the named point.
func (s *Skeleton) Detach(name string) error {
	p, ok := s.points[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPoint, name)
	}
	p.Detach()
	return nil
}

// IsOccupied reports whether the named point holds an object.
func (s *Skeleton) IsOccupied(name string) bool {
	p, ok := s.points[name]
	return ok && p.Occupied()
}

// PointFor returns the point holding the object, or nil.
func (s *Skeleton) PointFor(id entity.ID) *AttachmentPoint {
	if id.IsZero() {
		return nil
	}
	for _, name := range s.names {
		if p := s.points[name]; p.object == id {
			return p
		}
	}
	return nil
}

// DetachObject removes the object from whichever point holds it and
// reports whether one did.
func (s *Skeleton) DetachObject(id entity.ID) bool {
	p := s.PointFor(id)
	if p == nil {
		return false
	}
	p.Detach()
	return true
}

// SyncDeferred completes pending attaches whose objects now have drawables.
func (s *Skeleton) SyncDeferred() {
	for _, name := range s.names {
		s.points[name].SyncDeferred()
	}
}

// SetMaxDistance sets the clamp radius on every point.
func (s *Skeleton) SetMaxDistance(d float32) {
	for _, p := range s.points {
		p.SetMaxDistance(d)
	}
}
