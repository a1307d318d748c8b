package pipeline

import (
	"fmt"

	"github.com/Faultbox/worldview/internal/engine/drawable"
)

// Op is one recorded device call.
type Op struct {
	Name string
	Pass drawable.Pass
	Arg  string
	Face *drawable.Face
}

func (o Op) String() string {
	if o.Arg == "" {
		return o.Name
	}
	return o.Name + "(" + o.Arg + ")"
}

// Recorder is a Device that records every call. It backs headless runs
// and render-order assertions.
type Recorder struct {
	Ops      []Op
	Released []*drawable.Face

	current drawable.Pass
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Reset drops recorded calls.
func (r *Recorder) Reset() {
	r.Ops = r.Ops[:0]
	r.Released = r.Released[:0]
}

func (r *Recorder) record(name, arg string) {
	r.Ops = append(r.Ops, Op{Name: name, Pass: r.current, Arg: arg})
}

// Passes returns the passes begun, in order.
func (r *Recorder) Passes() []drawable.Pass {
	var out []drawable.Pass
	for _, op := range r.Ops {
		if op.Name == "begin" {
			out = append(out, op.Pass)
		}
	}
	return out
}

// Draws returns the faces drawn during pass p, in order.
func (r *Recorder) Draws(p drawable.Pass) []*drawable.Face {
	var out []*drawable.Face
	for _, op := range r.Ops {
		if op.Name == "draw" && op.Pass == p {
			out = append(out, op.Face)
		}
	}
	return out
}

// Calls returns the textual ops recorded during pass p.
func (r *Recorder) Calls(p drawable.Pass) []string {
	var out []string
	for _, op := range r.Ops {
		if op.Pass == p {
			out = append(out, op.String())
		}
	}
	return out
}

func (r *Recorder) BeginPass(p drawable.Pass) {
	r.current = p
	r.record("begin", "")
}

func (r *Recorder) EndPass(p drawable.Pass) {
	r.record("end", "")
}

func (r *Recorder) SetBlend(enabled bool) {
	r.record("blend", fmt.Sprint(enabled))
}

func (r *Recorder) BlendFunc(src, dst BlendFactor) {
	r.record("blendfunc", fmt.Sprintf("%d,%d", src, dst))
}

func (r *Recorder) SetAlphaTest(enabled bool) {
	r.record("alphatest", fmt.Sprint(enabled))
}

func (r *Recorder) AlphaFunc(ref float32) {
	r.record("alphafunc", fmt.Sprint(ref))
}

func (r *Recorder) ColorMask(enabled bool) {
	r.record("colormask", fmt.Sprint(enabled))
}

func (r *Recorder) SetStreams(m drawable.StreamMask) {
	r.record("streams", fmt.Sprintf("%04b", m))
}

func (r *Recorder) SetLighting(l Lighting) {
	r.record("lighting", fmt.Sprint(l))
}

func (r *Recorder) SetColor(c [4]uint8) {
	r.record("color", fmt.Sprintf("%d,%d,%d,%d", c[0], c[1], c[2], c[3]))
}

func (r *Recorder) ClearDepth() {
	r.record("cleardepth", "")
}

func (r *Recorder) Draw(b *Batch) {
	r.Ops = append(r.Ops, Op{Name: "draw", Pass: r.current, Face: b.Face})
}

func (r *Recorder) ReleaseFace(f *drawable.Face) {
	r.Released = append(r.Released, f)
}
