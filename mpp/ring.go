package mpp

import "rkcam/internal/align"

// SlotCount is the size of the decode buffer slot ring (spec §3: "a ring of
// N (N=8) such slots is reused round-robin"). Named per spec §9's open
// question resolution rather than left as a magic literal.
const SlotCount = 8

// slotSizes computes the per-slot input-packet and output-frame buffer
// capacities for a decoder handling images of the given dimensions, per
// spec §3's Decode buffer slot: input >= width*height bytes, output >=
// aligned_w*aligned_h*4 bytes to cover the 4:2:2 worst case.
func slotSizes(width, height int) (pktSize, frmSize, horStride, verStride int) {
	horStride = align.Up(width)
	verStride = align.Up(height)
	pktSize = width * height
	frmSize = horStride * verStride * 4
	return
}

// nextSlot advances the round-robin index, wrapping modulo SlotCount.
func nextSlot(current int) int {
	return (current + 1) % SlotCount
}
