package math

import "github.com/chewxy/math32"

// Mat4 is a column-major 4x4 matrix, laid out the way OpenGL uploads it.
// Element (row r, column c) lives at index c*4+r.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective builds a right-handed projection with a vertical field of
// view in radians. Depth maps to [-1, 1].
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)
	depth := near - far
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / depth, -1,
		0, 0, 2 * far * near / depth, 0,
	}
}

// Ortho builds an orthographic projection of the given box.
func Ortho(left, right, bottom, top, near, far float32) Mat4 {
	w, h, d := right-left, top-bottom, far-near
	return Mat4{
		2 / w, 0, 0, 0,
		0, 2 / h, 0, 0,
		0, 0, -2 / d, 0,
		-(right + left) / w, -(top + bottom) / h, -(far + near) / d, 1,
	}
}

// LookAt builds a view matrix for a camera at eye facing center.
func LookAt(eye, center, up Vec3) Mat4 {
	fwd := center.Sub(eye).Normalize()
	side := fwd.Cross(up).Normalize()
	u := side.Cross(fwd)
	return Mat4{
		side.X, u.X, -fwd.X, 0,
		side.Y, u.Y, -fwd.Y, 0,
		side.Z, u.Z, -fwd.Z, 0,
		-side.Dot(eye), -u.Dot(eye), fwd.Dot(eye), 1,
	}
}

// FromTransform builds a matrix that rotates by rot and then translates by pos.
func FromTransform(pos Vec3, rot Quat) Mat4 {
	m := rot.ToMat4()
	m[12], m[13], m[14] = pos.X, pos.Y, pos.Z
	return m
}

// Mul returns m * other, so other is applied first.
func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * other[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Ptr returns the address of the first element for uniform uploads.
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}
