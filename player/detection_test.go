package player

import "testing"

func TestDetectionStoreSetAndSnapshot(t *testing.T) {
	s := newDetectionStore(320, 240)
	boxes := []DetectionBox{{CenterX: 10, CenterY: 10, Width: 4, Height: 4, Score: 0.5}}
	s.Set(boxes, 640, 480)

	got, w, h := s.snapshot()
	if len(got) != 1 || got[0] != boxes[0] {
		t.Errorf("snapshot boxes = %v, want %v", got, boxes)
	}
	if w != 640 || h != 480 {
		t.Errorf("snapshot dims = %d,%d, want 640,480", w, h)
	}
}

func TestDetectionStoreZeroDimsFallBackToDefaults(t *testing.T) {
	s := newDetectionStore(320, 240)
	s.Set([]DetectionBox{{Score: 1}}, 0, 0)

	_, w, h := s.snapshot()
	if w != 320 || h != 240 {
		t.Errorf("snapshot dims = %d,%d, want fallback 320,240", w, h)
	}
}

func TestDetectionStoreClearKeepsDimensions(t *testing.T) {
	s := newDetectionStore(320, 240)
	s.Set([]DetectionBox{{Score: 1}}, 640, 480)
	s.Clear()

	got, w, h := s.snapshot()
	if len(got) != 0 {
		t.Errorf("after Clear, snapshot boxes = %v, want empty", got)
	}
	if w != 640 || h != 480 {
		t.Errorf("Clear should not reset source dims, got %d,%d", w, h)
	}
}
