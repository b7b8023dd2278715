package player

import "sync"

// MaxDetectionBoxes is the compile-time cap on simultaneously tracked
// detections (spec §3 invariant: "detection rectangle counts never exceed
// a compile-time cap (10)"), named per spec §9's "name the bound" guidance.
const MaxDetectionBoxes = 10

// DetectionBox is one detection rectangle in the detector's source image
// space, not display space (spec §3). Score is in [0,1]; a score of 0 means
// "no confidence to render" per spec §4.G.
type DetectionBox struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
	Score   float64
}

// DetectionStore is the thread-safe set of current detection rectangles
// plus the source image dimensions the overlay needs to rescale them
// (spec §4.H). The overlay renderer reads the same state under the same
// mutex it is written with.
type DetectionStore struct {
	mu               sync.Mutex
	boxes            [MaxDetectionBoxes]DetectionBox
	count            int
	sourceW, sourceH int
	defaultW, defaultH int
}

// newDetectionStore seeds the fallback source dimensions with the
// detection pipeline's configured face-detect geometry, used whenever a
// caller passes sourceW/sourceH = 0 to Set.
func newDetectionStore(defaultW, defaultH int) *DetectionStore {
	return &DetectionStore{defaultW: defaultW, defaultH: defaultH}
}

// Set replaces the current detection set atomically. Only the first
// MaxDetectionBoxes entries of boxes are retained if more are supplied
// (spec §8 quantified invariant). sourceW/sourceH of 0 fall back to the
// detection pipeline's configured dimensions.
func (s *DetectionStore) Set(boxes []DetectionBox, sourceW, sourceH int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(boxes)
	if n > MaxDetectionBoxes {
		n = MaxDetectionBoxes
	}
	copy(s.boxes[:], boxes[:n])
	s.count = n

	if sourceW > 0 {
		s.sourceW = sourceW
	} else {
		s.sourceW = s.defaultW
	}
	if sourceH > 0 {
		s.sourceH = sourceH
	} else {
		s.sourceH = s.defaultH
	}
}

// Clear zeros the detection count without touching recorded source
// dimensions.
func (s *DetectionStore) Clear() {
	s.mu.Lock()
	s.count = 0
	s.mu.Unlock()
}

// snapshot copies out the current boxes and source geometry under the
// mutex, for the overlay draw callback.
func (s *DetectionStore) snapshot() (boxes []DetectionBox, sourceW, sourceH int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes = append([]DetectionBox(nil), s.boxes[:s.count]...)
	return boxes, s.sourceW, s.sourceH
}
