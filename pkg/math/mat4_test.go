package math

import "testing"

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Translate(0, 0, 0))

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Translate diagonal should be 1")
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	result := m.TransformPoint([3]float64{1, 2, 3})

	expected := [3]float64{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestRigidTransformRotatesThenTranslates(t *testing.T) {
	// 180 degrees about Z, then +1 along X.
	m := RigidTransform(Quat{Z: 1}, Vec3{X: 1})

	tests := []struct {
		in, want [3]float64
	}{
		{[3]float64{0, 0, 0}, [3]float64{1, 0, 0}},
		{[3]float64{1, 0, 0}, [3]float64{0, 0, 0}},
		{[3]float64{1, 1, 1}, [3]float64{0, -1, 1}},
		{[3]float64{0, 1, 0}, [3]float64{1, -1, 0}},
	}
	for _, tt := range tests {
		if got := m.TransformPoint(tt.in); !nearPoint(got, tt.want) {
			t.Errorf("RigidTransform(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
