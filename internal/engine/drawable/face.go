package drawable

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Faultbox/worldview/pkg/math"
)

// ErrNotReady is returned when a face's storage has not yet been sized for
// the geometry requested with SetSize. The caller should retry next frame.
var ErrNotReady = errors.New("face storage not ready")

// Pass identifies the draw pool a face renders in.
type Pass uint8

const (
	PassSimple Pass = iota
	PassGrass
	PassFullbright
	PassGlow
	PassInvisible
	PassHUD
	passCount
)

// NumPasses is the number of distinct passes.
const NumPasses = int(passCount)

var passNames = [...]string{
	PassSimple:     "simple",
	PassGrass:      "grass",
	PassFullbright: "fullbright",
	PassGlow:       "glow",
	PassInvisible:  "invisible",
	PassHUD:        "hud",
}

func (p Pass) String() string {
	if int(p) < len(passNames) {
		return passNames[p]
	}
	return "unknown"
}

// StreamMask selects vertex attribute streams.
type StreamMask uint8

const (
	StreamPosition StreamMask = 1 << iota
	StreamNormal
	StreamTexCoord
	StreamColor

	StreamAll = StreamPosition | StreamNormal | StreamTexCoord | StreamColor
)

// FaceState holds per-face render flags.
type FaceState uint8

const (
	// FaceHUDRender routes the face to the HUD overlay pool.
	FaceHUDRender FaceState = 1 << iota
	// FaceGlobal marks geometry already expressed in world coordinates.
	FaceGlobal
)

// Geometry is the writable vertex and index range of a face.
type Geometry struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	TexCoords []math.Vec2
	Colors    [][4]uint8
	Indices   []uint32
}

// Face is a contiguous geometry range of a drawable rendered by one pool.
type Face struct {
	drawable *Drawable
	index    int

	pass      Pass
	state     FaceState
	texture   uuid.UUID
	glowColor [4]uint8

	streams     StreamMask
	numVertices int
	numIndices  int
	storage     Geometry
	allocations int
	revision    uint64

	// CenterLocal is the geometric center used for sorting and distance.
	CenterLocal math.Vec3
}

// Drawable returns the owning drawable.
func (f *Face) Drawable() *Drawable {
	return f.drawable
}

// Index returns the face's position within its drawable.
func (f *Face) Index() int {
	return f.index
}

// Pass returns the pass the face's material selects.
func (f *Face) Pass() Pass {
	return f.pass
}

// SetPass changes the material pass. Callers must notify the pipeline
// (MarkTextured) so pool membership is re-evaluated.
func (f *Face) SetPass(p Pass) {
	f.pass = p
}

// Texture returns the face's texture reference.
func (f *Face) Texture() uuid.UUID {
	return f.texture
}

// SetTexture sets the face's texture reference.
func (f *Face) SetTexture(id uuid.UUID) {
	f.texture = id
}

// GlowColor returns the color multiplied in by the glow pass.
func (f *Face) GlowColor() [4]uint8 {
	return f.glowColor
}

// SetGlowColor sets the glow multiply color.
func (f *Face) SetGlowColor(c [4]uint8) {
	f.glowColor = c
}

// SetState sets the given face flags.
func (f *Face) SetState(s FaceState) {
	f.state |= s
}

// ClearState clears the given face flags.
func (f *Face) ClearState(s FaceState) {
	f.state &^= s
}

// IsState reports whether all given flags are set.
func (f *Face) IsState(s FaceState) bool {
	return f.state&s == s
}

// SetStreams declares which vertex streams the face carries. Streams not
// declared are not allocated.
func (f *Face) SetStreams(m StreamMask) {
	f.streams = m | StreamPosition
}

// Streams returns the streams backed by allocated storage.
func (f *Face) Streams() StreamMask {
	if f.numVertices == 0 {
		return 0
	}
	var m StreamMask
	if cap(f.storage.Positions) >= f.numVertices {
		m |= StreamPosition
	}
	if f.streams&StreamNormal != 0 && cap(f.storage.Normals) >= f.numVertices {
		m |= StreamNormal
	}
	if f.streams&StreamTexCoord != 0 && cap(f.storage.TexCoords) >= f.numVertices {
		m |= StreamTexCoord
	}
	if f.streams&StreamColor != 0 && cap(f.storage.Colors) >= f.numVertices {
		m |= StreamColor
	}
	return m
}

// SetSize records the vertex and index counts the next geometry write
// needs. Storage is grown separately by Allocate.
func (f *Face) SetSize(numVertices, numIndices int) {
	f.numVertices = numVertices
	f.numIndices = numIndices
}

// Size returns the requested vertex and index counts.
func (f *Face) Size() (int, int) {
	return f.numVertices, f.numIndices
}

// Ready reports whether storage can hold the requested counts.
func (f *Face) Ready() bool {
	if cap(f.storage.Indices) < f.numIndices || cap(f.storage.Positions) < f.numVertices {
		return false
	}
	return f.Streams()&f.streams == f.streams || f.numVertices == 0
}

// Allocate grows storage to the requested counts. Existing capacity is
// reused; it reports whether a new allocation was made.
func (f *Face) Allocate() bool {
	if f.Ready() {
		return false
	}
	nv, ni := f.numVertices, f.numIndices
	f.storage = Geometry{
		Positions: make([]math.Vec3, nv),
		Indices:   make([]uint32, ni),
	}
	if f.streams&StreamNormal != 0 {
		f.storage.Normals = make([]math.Vec3, nv)
	}
	if f.streams&StreamTexCoord != 0 {
		f.storage.TexCoords = make([]math.Vec2, nv)
	}
	if f.streams&StreamColor != 0 {
		f.storage.Colors = make([][4]uint8, nv)
	}
	f.allocations++
	return true
}

// Allocations returns how many times storage has been (re)allocated.
func (f *Face) Allocations() int {
	return f.allocations
}

// Geometry returns writable storage trimmed to the requested counts, or
// ErrNotReady when Allocate has not caught up with SetSize. A successful
// call bumps the revision so devices re-upload the range.
func (f *Face) Geometry() (*Geometry, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}
	f.revision++
	return f.view(), nil
}

// View returns the current geometry without marking it modified.
func (f *Face) View() *Geometry {
	if !f.Ready() {
		return &Geometry{}
	}
	return f.view()
}

func (f *Face) view() *Geometry {
	nv, ni := f.numVertices, f.numIndices
	g := &Geometry{
		Positions: f.storage.Positions[:nv],
		Indices:   f.storage.Indices[:ni],
	}
	if f.storage.Normals != nil {
		g.Normals = f.storage.Normals[:nv]
	}
	if f.storage.TexCoords != nil {
		g.TexCoords = f.storage.TexCoords[:nv]
	}
	if f.storage.Colors != nil {
		g.Colors = f.storage.Colors[:nv]
	}
	return g
}

// Revision changes every time the geometry is handed out for writing.
func (f *Face) Revision() uint64 {
	return f.revision
}
