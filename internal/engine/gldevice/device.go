// Package gldevice drives the draw pools with OpenGL 4.1 core.
package gldevice

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/drawable"
	"github.com/Faultbox/worldview/internal/engine/pipeline"
	"github.com/Faultbox/worldview/internal/engine/shader"
	"github.com/Faultbox/worldview/internal/logger"
	"github.com/Faultbox/worldview/pkg/math"
)

// Attribute locations fixed by the scene shader.
const (
	attribPosition = 0
	attribNormal   = 1
	attribTexCoord = 2
	attribColor    = 3
)

// faceBuffers are the GPU copies of one face's geometry.
type faceBuffers struct {
	vao      uint32
	vbo      [4]uint32
	ebo      uint32
	revision uint64
	count    int32
	uploaded bool
	// present are the streams that have data.
	present drawable.StreamMask
}

// Device implements pipeline.Device on the current GL context.
type Device struct {
	program *shader.Program
	faces   map[*drawable.Face]*faceBuffers

	viewProj math.Mat4
	hudProj  math.Mat4
	width    int
	height   int

	alphaTest bool
	alphaRef  float32
	streams   drawable.StreamMask
	hud       bool

	draws int
}

// New initializes GL and compiles the scene program. A GL context must be
// current on the calling thread.
func New(width, height int) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}
	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	prog, err := shader.CompileScene()
	if err != nil {
		return nil, fmt.Errorf("scene shader: %w", err)
	}

	d := &Device{
		program:  prog,
		faces:    make(map[*drawable.Face]*faceBuffers),
		viewProj: math.Identity(),
		streams:  drawable.StreamAll,
	}
	d.Resize(width, height)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	gl.ClearColor(0.53, 0.68, 0.85, 1.0)

	prog.Use()
	light := math.Vec3{X: -0.4, Y: -1, Z: -0.3}.Normalize()
	gl.Uniform3f(prog.Uniform("uLightDir"), light.X, light.Y, light.Z)
	gl.Uniform4f(prog.Uniform("uTint"), 1, 1, 1, 1)
	gl.Uniform1f(prog.Uniform("uAlphaRef"), -1)
	return d, nil
}

// Resize updates the viewport and the HUD projection.
func (d *Device) Resize(width, height int) {
	d.width, d.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	aspect := float32(width) / float32(max(height, 1))
	// HUD space spans [-aspect, aspect] x [-1, 1] around the screen center.
	d.hudProj = math.Ortho(-aspect, aspect, -1, 1, -10, 10)
}

// SetCamera sets the world view and projection used outside the HUD pass.
func (d *Device) SetCamera(view, proj math.Mat4) {
	d.viewProj = proj.Mul(view)
}

// BeginFrame clears the framebuffer.
func (d *Device) BeginFrame() {
	d.draws = 0
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	d.program.Use()
}

// Draws returns the draw calls issued since BeginFrame.
func (d *Device) Draws() int {
	return d.draws
}

func (d *Device) BeginPass(p drawable.Pass) {
	d.hud = p == drawable.PassHUD
	vp := d.viewProj
	if d.hud {
		vp = d.hudProj
	}
	gl.UniformMatrix4fv(d.program.Uniform("uViewProj"), 1, false, vp.Ptr())
	if p == drawable.PassGrass {
		// Blades are single quads seen from both sides.
		gl.Disable(gl.CULL_FACE)
	}
}

func (d *Device) EndPass(p drawable.Pass) {
	if p == drawable.PassGrass {
		gl.Enable(gl.CULL_FACE)
	}
	d.hud = false
}

func (d *Device) SetBlend(enabled bool) {
	if enabled {
		gl.Enable(gl.BLEND)
	} else {
		gl.Disable(gl.BLEND)
	}
}

func (d *Device) BlendFunc(src, dst pipeline.BlendFactor) {
	gl.BlendFunc(blendFactor(src), blendFactor(dst))
}

func blendFactor(f pipeline.BlendFactor) uint32 {
	switch f {
	case pipeline.BlendZero:
		return gl.ZERO
	case pipeline.BlendSrcAlpha:
		return gl.SRC_ALPHA
	case pipeline.BlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	default:
		return gl.ONE
	}
}

// SetAlphaTest and AlphaFunc emulate the fixed-function alpha test in the
// fragment shader.
func (d *Device) SetAlphaTest(enabled bool) {
	d.alphaTest = enabled
	d.updateAlpha()
}

func (d *Device) AlphaFunc(ref float32) {
	d.alphaRef = ref
	d.updateAlpha()
}

func (d *Device) updateAlpha() {
	ref := float32(-1)
	if d.alphaTest {
		ref = d.alphaRef
	}
	gl.Uniform1f(d.program.Uniform("uAlphaRef"), ref)
}

func (d *Device) ColorMask(enabled bool) {
	gl.ColorMask(enabled, enabled, enabled, enabled)
}

func (d *Device) SetStreams(m drawable.StreamMask) {
	d.streams = m
}

func (d *Device) SetLighting(l pipeline.Lighting) {
	var full int32
	if l == pipeline.LightingFullbright {
		full = 1
	}
	gl.Uniform1i(d.program.Uniform("uFullbright"), full)
}

func (d *Device) SetColor(c [4]uint8) {
	gl.Uniform4f(d.program.Uniform("uTint"),
		float32(c[0])/255, float32(c[1])/255, float32(c[2])/255, float32(c[3])/255)
}

func (d *Device) ClearDepth() {
	gl.Clear(gl.DEPTH_BUFFER_BIT)
}

func (d *Device) Draw(b *pipeline.Batch) {
	buf := d.upload(b.Face)
	if buf == nil || buf.count == 0 {
		return
	}
	gl.BindVertexArray(buf.vao)
	d.applyStreams(b.Streams & d.streams & buf.present)
	gl.UniformMatrix4fv(d.program.Uniform("uModel"), 1, false, &b.Model[0])
	gl.DrawElements(gl.TRIANGLES, buf.count, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
	d.draws++
}

// applyStreams disables arrays the batch does not use; disabled attributes
// read the constant values set here.
func (d *Device) applyStreams(m drawable.StreamMask) {
	toggle := func(loc uint32, on bool) {
		if on {
			gl.EnableVertexAttribArray(loc)
		} else {
			gl.DisableVertexAttribArray(loc)
		}
	}
	toggle(attribNormal, m&drawable.StreamNormal != 0)
	toggle(attribTexCoord, m&drawable.StreamTexCoord != 0)
	toggle(attribColor, m&drawable.StreamColor != 0)
	gl.VertexAttrib3f(attribNormal, 0, 1, 0)
	gl.VertexAttrib2f(attribTexCoord, 0, 0)
	gl.VertexAttrib4f(attribColor, 1, 1, 1, 1)
}

// upload creates or refreshes the face's buffers when its revision moved.
func (d *Device) upload(f *drawable.Face) *faceBuffers {
	buf, ok := d.faces[f]
	if ok && buf.uploaded && buf.revision == f.Revision() {
		return buf
	}
	if !f.Ready() {
		return buf
	}
	if !ok {
		buf = &faceBuffers{}
		gl.GenVertexArrays(1, &buf.vao)
		gl.GenBuffers(int32(len(buf.vbo)), &buf.vbo[0])
		gl.GenBuffers(1, &buf.ebo)
		d.faces[f] = buf
	}

	g := f.View()
	gl.BindVertexArray(buf.vao)

	buf.present = 0
	if bindStream(buf.vbo[attribPosition], attribPosition, 3, gl.FLOAT, false, len(g.Positions)*12, g.Positions) {
		buf.present |= drawable.StreamPosition
	}
	if bindStream(buf.vbo[attribNormal], attribNormal, 3, gl.FLOAT, false, len(g.Normals)*12, g.Normals) {
		buf.present |= drawable.StreamNormal
	}
	if bindStream(buf.vbo[attribTexCoord], attribTexCoord, 2, gl.FLOAT, false, len(g.TexCoords)*8, g.TexCoords) {
		buf.present |= drawable.StreamTexCoord
	}
	if bindStream(buf.vbo[attribColor], attribColor, 4, gl.UNSIGNED_BYTE, true, len(g.Colors)*4, g.Colors) {
		buf.present |= drawable.StreamColor
	}

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, buf.ebo)
	if len(g.Indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, gl.Ptr(g.Indices), gl.DYNAMIC_DRAW)
	}
	gl.BindVertexArray(0)

	buf.count = int32(len(g.Indices))
	buf.revision = f.Revision()
	buf.uploaded = true
	return buf
}

// bindStream uploads one attribute stream and reports whether it had
// data. data must be a slice.
func bindStream(vbo, loc uint32, size int32, xtype uint32, normalized bool, bytes int, data any) bool {
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	if bytes == 0 {
		gl.DisableVertexAttribArray(loc)
		return false
	}
	gl.BufferData(gl.ARRAY_BUFFER, bytes, gl.Ptr(data), gl.DYNAMIC_DRAW)
	gl.VertexAttribPointer(loc, size, xtype, normalized, 0, nil)
	gl.EnableVertexAttribArray(loc)
	return true
}

func (d *Device) ReleaseFace(f *drawable.Face) {
	buf, ok := d.faces[f]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &buf.vao)
	gl.DeleteBuffers(int32(len(buf.vbo)), &buf.vbo[0])
	gl.DeleteBuffers(1, &buf.ebo)
	delete(d.faces, f)
}

// Close frees every buffer and the program.
func (d *Device) Close() {
	for f := range d.faces {
		d.ReleaseFace(f)
	}
	d.program.Delete()
}

var _ pipeline.Device = (*Device)(nil)

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (d *Device) ReadPixels() ([]byte, int, int) {
	pixels := make([]byte, d.width*d.height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(d.width), int32(d.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, d.width, d.height
}
