package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is a normalized plane in the form dot(Normal, p) + Distance = 0.
// Points with a positive signed distance lie inside.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// Frustum holds the six clip planes of a view-projection matrix.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts the frustum planes from a view-projection matrix producing [0, 1] depth.
//
// Parameters:
//   - viewProj: projection * view
//
// Returns:
//   - Frustum: the six normalized planes
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFromRow(r3.Add(r0))
	f.Planes[FrustumRight] = planeFromRow(r3.Sub(r0))
	f.Planes[FrustumBottom] = planeFromRow(r3.Add(r1))
	f.Planes[FrustumTop] = planeFromRow(r3.Sub(r1))
	// depth in [0, 1]: the near plane is row 2 alone
	f.Planes[FrustumNear] = planeFromRow(r2)
	f.Planes[FrustumFar] = planeFromRow(r3.Sub(r2))
	return f
}

func planeFromRow(row mgl32.Vec4) Plane {
	n := row.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{Normal: n, Distance: row.W()}
	}
	return Plane{Normal: n.Mul(1 / l), Distance: row.W() / l}
}

// IntersectsAABB reports whether the box is at least partially inside the frustum.
// The test is conservative: boxes near frustum corners may be reported as intersecting.
func (f Frustum) IntersectsAABB(min, max mgl32.Vec3) bool {
	for _, p := range f.Planes {
		// most positive corner along the plane normal
		v := min
		if p.Normal.X() >= 0 {
			v[0] = max.X()
		}
		if p.Normal.Y() >= 0 {
			v[1] = max.Y()
		}
		if p.Normal.Z() >= 0 {
			v[2] = max.Z()
		}
		if p.Normal.Dot(v)+p.Distance < 0 {
			return false
		}
	}
	return true
}
