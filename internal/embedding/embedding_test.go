package embedding

import "testing"

func TestFromFloat32(t *testing.T) {
	v := FromFloat32([]float32{0.5, -1, 0})
	if len(v) != 3 {
		t.Fatalf("expected 3 values, got %d", len(v))
	}
	if v[0] != 0.5 || v[1] != -1 || v[2] != 0 {
		t.Fatalf("unexpected vector: %v", v)
	}

	if empty := FromFloat32(nil); len(empty) != 0 {
		t.Fatalf("expected empty vector, got %v", empty)
	}
}
