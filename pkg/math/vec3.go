// Package math provides double-precision vector, quaternion and matrix types
// for placing mesh geometry in world space.
package math

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float64
}
