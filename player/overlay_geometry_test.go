package player

import "testing"

func TestComputeRenderBoxesScalesAndCenters(t *testing.T) {
	boxes := []DetectionBox{{CenterX: 160, CenterY: 120, Width: 40, Height: 40, Score: 0.75}}
	// video is 2x the source in both axes (e.g. 640x480 video over a 320x240 detector)
	rb := computeRenderBoxes(boxes, 320, 240, 640, 480)
	if len(rb) != 1 {
		t.Fatalf("len = %d, want 1", len(rb))
	}
	b := rb[0]
	wantX, wantY, wantW, wantH := 140.0*2, 100.0*2, 40.0*2, 40.0*2
	if b.X != wantX || b.Y != wantY || b.W != wantW || b.H != wantH {
		t.Errorf("box = (%v,%v,%v,%v), want (%v,%v,%v,%v)", b.X, b.Y, b.W, b.H, wantX, wantY, wantW, wantH)
	}
	if !b.HasLabel || b.Label != "75%" {
		t.Errorf("label = %q (has=%v), want 75%%", b.Label, b.HasLabel)
	}
}

func TestComputeRenderBoxesNoDetectionsOrUnknownDims(t *testing.T) {
	boxes := []DetectionBox{{CenterX: 1, CenterY: 1, Width: 1, Height: 1, Score: 1}}
	if rb := computeRenderBoxes(nil, 320, 240, 640, 480); rb != nil {
		t.Errorf("empty input should yield nil, got %v", rb)
	}
	if rb := computeRenderBoxes(boxes, 0, 240, 640, 480); rb != nil {
		t.Errorf("zero source width should yield nil, got %v", rb)
	}
	if rb := computeRenderBoxes(boxes, 320, 240, 0, 480); rb != nil {
		t.Errorf("zero video width should yield nil, got %v", rb)
	}
}

func TestComputeRenderBoxesZeroScoreHasNoLabel(t *testing.T) {
	boxes := []DetectionBox{{CenterX: 10, CenterY: 10, Width: 5, Height: 5, Score: 0}}
	rb := computeRenderBoxes(boxes, 100, 100, 100, 100)
	if rb[0].HasLabel {
		t.Errorf("zero score should not render a label")
	}
}

func TestLabelPositionAboveOrBelow(t *testing.T) {
	above := renderBox{X: 10, Y: 50, H: 20, LabelAbove: true}
	x, y := above.labelPosition()
	if x != 10 || y != 45 {
		t.Errorf("above: (%v,%v), want (10,45)", x, y)
	}

	below := renderBox{X: 10, Y: 5, H: 20, LabelAbove: false}
	x, y = below.labelPosition()
	if x != 10 || y != 40 {
		t.Errorf("below: (%v,%v), want (10,40)", x, y)
	}
}

func TestDetectionStoreCapsAtMaxDetectionBoxes(t *testing.T) {
	boxes := make([]DetectionBox, 0, MaxDetectionBoxes+5)
	for i := 0; i < MaxDetectionBoxes+5; i++ {
		boxes = append(boxes, DetectionBox{CenterX: 1, CenterY: 1, Width: 1, Height: 1})
	}
	store := newDetectionStore(320, 240)
	store.Set(boxes, 320, 240)
	stored, _, _ := store.snapshot()
	if len(stored) != MaxDetectionBoxes {
		t.Errorf("store kept %d boxes, want %d", len(stored), MaxDetectionBoxes)
	}
}
