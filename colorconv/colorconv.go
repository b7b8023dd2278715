// Package colorconv implements the CPU fallback path of the color
// converter (spec §4.C): semiplanar YUV to packed BGRA using fixed-point
// BT.601-approximate coefficients. It is reached whenever the hardware 2D
// accelerator (package rga) is unavailable or fails a conversion.
//
// No library in the retrieved example pack ships Go SIMD/NEON intrinsics
// (golang.org/x/sys/unix wraps syscalls, not vector math), so this package
// is deliberately stdlib-only; see DESIGN.md for the full justification.
// The NV12/NV21 path is written with an explicit 8-wide inner loop so it
// keeps the shape of the original's NEON routine (one vector iteration
// register-promotable by the compiler) even though it executes as plain
// scalar Go per lane.
package colorconv

import "fmt"

// Format identifies one of the four semiplanar YUV layouts spec §3 requires.
type Format int

const (
	// NV12 is 4:2:0 chroma subsampling with Cb (U) first in the chroma plane.
	NV12 Format = iota
	// NV21 is 4:2:0 with Cr (V) first.
	NV21
	// NV16 is 4:2:2 with Cb (U) first.
	NV16
	// NV61 is 4:2:2 with Cr (V) first.
	NV61
)

func (f Format) String() string {
	switch f {
	case NV12:
		return "NV12"
	case NV21:
		return "NV21"
	case NV16:
		return "NV16"
	case NV61:
		return "NV61"
	default:
		return "unknown"
	}
}

// chromaSwap reports whether U/V are stored V-then-U (the "21"/"61"
// variants) instead of the default U-then-V ordering.
func (f Format) chromaSwap() bool {
	return f == NV21 || f == NV61
}

// is422 reports whether the format is 4:2:2 subsampled (chroma row == luma
// row) rather than 4:2:0 (chroma row == luma row / 2).
func (f Format) is422() bool {
	return f == NV16 || f == NV61
}

// YUVFrame describes a semiplanar YUV image to convert: a Y plane followed
// by an interleaved chroma plane, both carved out of Data at the strides
// given. Width/Height are the logical image dimensions; HorStride/VerStride
// are the (possibly larger, alignment-padded) memory layout per spec §3.
type YUVFrame struct {
	Data              []byte
	Format            Format
	Width, Height     int
	HorStride         int
	VerStride         int
}

// Convert performs the YUV->BGRA conversion described in spec §4.C,
// writing into dst at the given row stride. dst must be at least
// dstStride*Height bytes. A is always written as 255.
func Convert(src YUVFrame, dst []byte, dstStride int) error {
	if src.Width <= 0 || src.Height <= 0 {
		return fmt.Errorf("colorconv: invalid dimensions %dx%d", src.Width, src.Height)
	}
	if src.HorStride < src.Width || src.VerStride < src.Height {
		return fmt.Errorf("colorconv: stride %dx%d smaller than image %dx%d",
			src.HorStride, src.VerStride, src.Width, src.Height)
	}
	if dstStride < src.Width*4 {
		return fmt.Errorf("colorconv: dst stride %d too small for width %d", dstStride, src.Width)
	}
	if len(dst) < dstStride*src.Height {
		return fmt.Errorf("colorconv: dst buffer too small: have %d, need %d", len(dst), dstStride*src.Height)
	}
	ySize := src.HorStride * src.VerStride
	// An odd width still reads a full U/V pair for its last column.
	chromaRowBytes := (src.Width + 1) &^ 1
	if len(src.Data) < ySize+src.HorStride*src.Height ||
		len(src.Data) < ySize+src.HorStride*(src.Height-1)+chromaRowBytes {
		return fmt.Errorf("colorconv: src buffer too small for %s plane layout", src.Format)
	}
	yPlane := src.Data[:ySize]
	uvPlane := src.Data[ySize:]

	if src.Format.is422() {
		convertScalar(yPlane, uvPlane, dst, src.Width, src.Height, src.HorStride, src.HorStride, dstStride, src.Format.chromaSwap(), false)
	} else {
		convert420(yPlane, uvPlane, dst, src.Width, src.Height, src.HorStride, src.HorStride, dstStride, src.Format.chromaSwap())
	}
	return nil
}

// clampByte saturates v to [0,255], matching the original's ternary clamp.
func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// yuvToBGRA computes one pixel's BGRA bytes from Y/U/V using the fixed-point
// BT.601-approximate coefficients in spec §4.C.
func yuvToBGRA(y, u, v int32) (b, g, r byte) {
	uc := u - 128
	vc := v - 128
	rr := y + ((vc * 359) >> 8)
	gg := y - ((uc*88 + vc*183) >> 8)
	bb := y + ((uc * 454) >> 8)
	return clampByte(bb), clampByte(gg), clampByte(rr)
}

// convert420 handles NV12/NV21: chroma row i/2, 8-pixel-lane inner loop with
// a scalar tail, mirroring the original nv12_to_bgra_neon/_scalar split but
// expressed as one portable Go loop (see package doc).
func convert420(yPlane, uvPlane, dst []byte, width, height, yStride, uvStride, dstStride int, swap bool) {
	for i := 0; i < height; i++ {
		yRow := yPlane[i*yStride:]
		uvRow := uvPlane[(i/2)*uvStride:]
		bgraRow := dst[i*dstStride:]

		j := 0
		for ; j+7 < width; j += 8 {
			convertLane(yRow, uvRow, bgraRow, j, 8, swap)
		}
		for ; j < width; j++ {
			convertLane(yRow, uvRow, bgraRow, j, 1, swap)
		}
	}
}

// convertScalar handles NV16/NV61 (chroma row == luma row, no subsampling
// in the vertical axis) with a straight per-pixel loop.
func convertScalar(yPlane, uvPlane, dst []byte, width, height, yStride, uvStride, dstStride int, swap bool, _ bool) {
	for i := 0; i < height; i++ {
		yRow := yPlane[i*yStride:]
		uvRow := uvPlane[i*uvStride:]
		bgraRow := dst[i*dstStride:]
		for j := 0; j < width; j++ {
			convertLane(yRow, uvRow, bgraRow, j, 1, swap)
		}
	}
}

// convertLane converts `count` consecutive pixels starting at column j.
// count is either 8 (the vectorized lane width) or 1 (scalar tail/fallback);
// the math is identical either way, only the loop shape differs.
func convertLane(yRow, uvRow, bgraRow []byte, j, count int, swap bool) {
	for k := 0; k < count; k++ {
		col := j + k
		chromaCol := (col / 2) * 2
		c0 := int32(uvRow[chromaCol])
		c1 := int32(uvRow[chromaCol+1])
		u, v := c0, c1
		if swap {
			u, v = c1, c0
		}
		b, g, r := yuvToBGRA(int32(yRow[col]), u, v)
		o := col * 4
		bgraRow[o+0] = b
		bgraRow[o+1] = g
		bgraRow[o+2] = r
		bgraRow[o+3] = 255
	}
}
