// Package mpp wraps the Rockchip Media Process Platform (MPP) MJPEG
// decoder behind the dual-port task-queue protocol described in spec §4.B.
// It is the hardware counterpart to package device (the V4L2 source): where
// device pulls MJPEG packets off the kernel ring, mpp.Decoder turns them
// into semiplanar YUV frames backed by DMA-capable buffers.
//
// This file centralizes the cgo compiler directives, in the same style as
// v4l2/cgo.go: one file owns every #cgo line so build-time header overrides
// (CGO_CFLAGS, cross-compilation sysroots) have a single point of entry.
package mpp

/*
#cgo linux CFLAGS: -I/usr/include/rockchip
#cgo linux LDFLAGS: -lrockchip_mpp

#include "shim.h"
#include <rockchip/mpp_buffer.h>
#include <rockchip/mpp_frame.h>
#include <rockchip/mpp_packet.h>
#include <rockchip/mpp_task.h>
*/
import "C"

// The headers above are the real Rockchip MPP UAPI headers
// (rockchip/rk_mpi.h and friends), present on BSP root filesystems at
// /usr/include/rockchip. They are not part of this repository; builders
// targeting non-Rockchip hosts should cross-compile with CGO_CFLAGS pointed
// at a BSP sysroot, exactly as documented in v4l2/cgo.go for kernel headers.
