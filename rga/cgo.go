// Package rga wraps the Rockchip 2D raster graphics accelerator for the
// hardware path of the color converter (spec §4.C). It imports a decoded
// YUV frame's DMA file descriptor directly (zero-copy) and the BGRA
// destination buffer's virtual address, then executes a single
// color-space-conversion blit. Callers fall back to package colorconv on
// any error, per spec §4.C.
package rga

/*
#cgo linux CFLAGS: -I/usr/include/rga
#cgo linux LDFLAGS: -lrga

#include <im2d.h>
#include <rga.h>
*/
import "C"

// See v4l2/cgo.go for the convention this file follows: compiler directives
// live here, only here, so cross-compilation header/library overrides via
// CGO_CFLAGS/CGO_LDFLAGS have one place to aim at.
