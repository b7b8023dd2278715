package mpp

import "testing"

func TestSlotSizes(t *testing.T) {
	pkt, frm, horStride, verStride := slotSizes(640, 480)
	if pkt != 640*480 {
		t.Errorf("pktSize = %d, want %d", pkt, 640*480)
	}
	if horStride != 640 || verStride != 480 {
		t.Errorf("stride = %dx%d, want 640x480 (already aligned)", horStride, verStride)
	}
	if frm != 640*480*4 {
		t.Errorf("frmSize = %d, want %d", frm, 640*480*4)
	}
}

func TestSlotSizesAlignsUnalignedDimensions(t *testing.T) {
	pkt, frm, horStride, verStride := slotSizes(641, 481)
	if horStride != 656 || verStride != 496 {
		t.Errorf("stride = %dx%d, want 656x496", horStride, verStride)
	}
	if pkt != 641*481 {
		t.Errorf("pktSize = %d, want unaligned width*height", pkt)
	}
	if frm != 656*496*4 {
		t.Errorf("frmSize = %d, want aligned_w*aligned_h*4", frm)
	}
}

func TestNextSlotWrapsRoundRobin(t *testing.T) {
	idx := 0
	seen := make(map[int]bool)
	for i := 0; i < SlotCount*3; i++ {
		seen[idx] = true
		idx = nextSlot(idx)
	}
	if len(seen) != SlotCount {
		t.Errorf("visited %d distinct slots, want %d", len(seen), SlotCount)
	}
	if idx != 0 {
		t.Errorf("after %d steps should be back at 0, got %d", SlotCount*3, idx)
	}
}
