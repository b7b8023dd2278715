package rga

/*
#include <im2d.h>
#include <rga.h>
*/
import "C"

import (
	"unsafe"

	"rkcam/colorconv"
	"rkcam/errs"
)

// rkFormat maps the shared semiplanar YUV enum to the RGA's own format
// constants, grounded on yuv_to_bgra_rga's switch in the original source.
func rkFormat(f colorconv.Format) C.int {
	switch f {
	case colorconv.NV12:
		return C.RK_FORMAT_YCbCr_420_SP
	case colorconv.NV21:
		return C.RK_FORMAT_YCrCb_420_SP
	case colorconv.NV16:
		return C.RK_FORMAT_YCbCr_422_SP
	case colorconv.NV61:
		return C.RK_FORMAT_YCrCb_422_SP
	default:
		return C.RK_FORMAT_YCbCr_420_SP
	}
}

// Convert imports yuvFD (the decoded frame's DMA buffer) and dstBGRA (a
// pre-allocated, pinned BGRA destination) as RGA handles and executes a
// single color-space-conversion blit. Both import handles are released on
// every exit path, success or failure, per spec §7's unconditional-release
// rule. dstBGRA must outlive the call and be at least height*dstStride
// bytes; the caller (package camera) owns its lifetime.
func Convert(yuvFD int, format colorconv.Format, width, height, horStride, verStride int, dstBGRA []byte, dstStride int) error {
	if len(dstBGRA) < dstStride*height {
		return errs.New(errs.InvalidParam, "rga: dst buffer too small: have %d, need %d", len(dstBGRA), dstStride*height)
	}

	srcParam := C.im_handle_param_t{
		width:  C.uint32_t(horStride),
		height: C.uint32_t(verStride),
		format: C.uint32_t(rkFormat(format)),
	}
	srcHandle := C.importbuffer_fd(C.int(yuvFD), &srcParam)
	if srcHandle == 0 {
		return errs.New(errs.PipelineFailed, "rga: importbuffer_fd failed")
	}
	defer C.releasebuffer_handle(srcHandle)

	dstParam := C.im_handle_param_t{
		width:  C.uint32_t(width),
		height: C.uint32_t(height),
		format: C.uint32_t(C.RK_FORMAT_BGRA_8888),
	}
	dstHandle := C.importbuffer_virtualaddr(unsafe.Pointer(&dstBGRA[0]), &dstParam)
	if dstHandle == 0 {
		return errs.New(errs.PipelineFailed, "rga: importbuffer_virtualaddr failed")
	}
	defer C.releasebuffer_handle(dstHandle)

	src := C.wrapbuffer_handle(srcHandle, C.int(width), C.int(height), rkFormat(format))
	src.wstride = C.int(horStride)
	src.hstride = C.int(verStride)

	dst := C.wrapbuffer_handle(dstHandle, C.int(width), C.int(height), C.RK_FORMAT_BGRA_8888)
	dst.wstride = C.int(width)
	dst.hstride = C.int(height)

	if ret := C.imcvtcolor(src, dst, src.format, dst.format); ret != C.IM_STATUS_SUCCESS {
		return errs.New(errs.PipelineFailed, "rga: imcvtcolor failed: %d", int(ret))
	}
	return nil
}
