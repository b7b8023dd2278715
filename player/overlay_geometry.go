package player

import "fmt"

// renderBox is one detection box already transformed into display-space
// pixel coordinates, ready to stroke. X/Y are the top-left corner per spec
// §4.G's "rectangle top-left is (cx - w/2, cy - h/2)".
type renderBox struct {
	X, Y, W, H float64
	Label      string
	HasLabel   bool
	LabelAbove bool
}

// computeRenderBoxes rescales each detection from source space to video
// (post-scale) space and computes label placement, per spec §4.G steps 2-3.
// It is pure and cairo-free so the geometry can be unit tested directly;
// the cgo draw callback in overlay_cgo.go calls this and then issues the
// actual cairo drawing calls.
func computeRenderBoxes(boxes []DetectionBox, sourceW, sourceH, videoW, videoH int) []renderBox {
	if len(boxes) == 0 || videoW <= 0 || videoH <= 0 || sourceW <= 0 || sourceH <= 0 {
		return nil
	}
	scaleX := float64(videoW) / float64(sourceW)
	scaleY := float64(videoH) / float64(sourceH)

	out := make([]renderBox, 0, len(boxes))
	for _, b := range boxes {
		w := b.Width * scaleX
		h := b.Height * scaleY
		cx := b.CenterX * scaleX
		cy := b.CenterY * scaleY
		x := cx - w/2
		y := cy - h/2

		rb := renderBox{X: x, Y: y, W: w, H: h}
		if b.Score > 0 {
			rb.HasLabel = true
			rb.Label = fmt.Sprintf("%.0f%%", b.Score*100)
			// Position just above the box, or just below if that would clip
			// off the top of the frame (spec §4.G).
			rb.LabelAbove = y > 20
		}
		out = append(out, rb)
	}
	return out
}

// labelPosition returns the (x, y) cairo move_to coordinates for rb's
// label, matching on_cairo_draw's `y > 20 ? y - 5 : y + h + 15` placement.
func (rb renderBox) labelPosition() (x, y float64) {
	if rb.LabelAbove {
		return rb.X, rb.Y - 5
	}
	return rb.X, rb.Y + rb.H + 15
}
