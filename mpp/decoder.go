package mpp

/*
#include "shim.h"
#include <rockchip/mpp_buffer.h>
#include <rockchip/mpp_frame.h>
#include <rockchip/mpp_packet.h>
#include <rockchip/mpp_task.h>
*/
import "C"

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"rkcam/colorconv"
	"rkcam/errs"
)

// slot is one entry of the decode buffer ring: a DMA-capable input-packet
// buffer paired with a DMA-capable output-frame buffer, both sized once at
// Init (spec §3 Decode buffer slot).
type slot struct {
	pktBuf     C.MppBuffer
	frmBuf     C.MppBuffer
	pktBufSize int
}

// Decoder wraps a single MPP decoding context configured for MJPEG with
// split-parse disabled and fast-out enabled (spec §4.B Configuration). It is
// not safe for concurrent Decode calls: the capture worker (package camera)
// owns exactly one Decoder and calls Decode from its single thread.
type Decoder struct {
	ctx C.MppCtx
	mpi *C.MppApi
	grp C.MppBufferGroup

	slots   [SlotCount]slot
	ringIdx int

	width, height        int
	horStride, verStride int

	firstFrameOnce sync.Once

	timingMu         sync.Mutex
	accumPollInput   time.Duration
	accumPollOutput  time.Duration
	timingCount      int
}

// Stats reports the averaged decode timing breakdown supplemented from the
// original implementation's print_decode_timing: time spent submitting to
// the input port versus blocked waiting on the output port (the dominant,
// hardware-bound cost per spec §5).
type Stats struct {
	AvgPollInput  time.Duration
	AvgPollOutput time.Duration
	Frames        int
}

// Stats returns the averaged timing since the last ResetStats call (or
// since Init, if never reset).
func (d *Decoder) Stats() Stats {
	d.timingMu.Lock()
	defer d.timingMu.Unlock()
	if d.timingCount == 0 {
		return Stats{}
	}
	return Stats{
		AvgPollInput:  d.accumPollInput / time.Duration(d.timingCount),
		AvgPollOutput: d.accumPollOutput / time.Duration(d.timingCount),
		Frames:        d.timingCount,
	}
}

// ResetStats zeroes the timing accumulators, matching print_decode_timing's
// reset-after-report behavior in the original source.
func (d *Decoder) ResetStats() {
	d.timingMu.Lock()
	defer d.timingMu.Unlock()
	d.accumPollInput = 0
	d.accumPollOutput = 0
	d.timingCount = 0
}

// Init creates an MPP decoding context for MJPEG at the given resolution and
// pre-allocates the slot ring's DMA buffers (spec §4.B "a single DMA buffer
// group owns both input packet buffers and output frame buffers for the
// lifetime of the decoder").
func Init(width, height int) (*Decoder, error) {
	d := &Decoder{width: width, height: height}

	if ret := C.mpp_create(&d.ctx, &d.mpi); ret != C.MPP_OK {
		return nil, errs.New(errs.MPPInitFailed, "mpp_create failed: %d", int(ret))
	}
	if ret := C.mpp_init(d.ctx, C.MPP_CTX_DEC, C.MPP_VIDEO_CodingMJPEG); ret != C.MPP_OK {
		C.mpp_destroy(d.ctx)
		return nil, errs.New(errs.MPPInitFailed, "mpp_init failed: %d", int(ret))
	}

	d.configureFastOut()

	if ret := C.mpp_buffer_group_get_internal(&d.grp, C.MPP_BUFFER_TYPE_ION); ret != C.MPP_OK {
		C.mpp_destroy(d.ctx)
		return nil, errs.New(errs.MPPInitFailed, "mpp_buffer_group_get_internal failed: %d", int(ret))
	}

	pktSize, frmSize, horStride, verStride := slotSizes(width, height)
	d.horStride, d.verStride = horStride, verStride

	for i := 0; i < SlotCount; i++ {
		var pktBuf, frmBuf C.MppBuffer
		if ret := C.mpp_buffer_get(d.grp, &pktBuf, C.size_t(pktSize)); ret != C.MPP_OK {
			d.releaseSlots(i)
			C.mpp_buffer_group_put(d.grp)
			C.mpp_destroy(d.ctx)
			return nil, errs.New(errs.OutOfMemory, "mpp_buffer_get (packet) slot %d failed: %d", i, int(ret))
		}
		if ret := C.mpp_buffer_get(d.grp, &frmBuf, C.size_t(frmSize)); ret != C.MPP_OK {
			C.mpp_buffer_put(pktBuf)
			d.releaseSlots(i)
			C.mpp_buffer_group_put(d.grp)
			C.mpp_destroy(d.ctx)
			return nil, errs.New(errs.OutOfMemory, "mpp_buffer_get (frame) slot %d failed: %d", i, int(ret))
		}
		d.slots[i] = slot{pktBuf: pktBuf, frmBuf: frmBuf, pktBufSize: pktSize}
	}

	slog.Info("mpp decoder initialized", "slots", SlotCount, "width", width, "height", height)
	return d, nil
}

// configureFastOut disables split-parse (MJPEG packets are always whole
// pictures) and requests fast-out. Per spec §9's open question, a rejected
// key is logged, not fatal: the decoder proceeds with framework defaults.
func (d *Decoder) configureFastOut() {
	var cfg C.MppDecCfg
	if ret := C.mpp_dec_cfg_init(&cfg); ret != C.MPP_OK {
		slog.Warn("mpp_dec_cfg_init failed, using framework defaults", "ret", int(ret))
		return
	}
	defer C.mpp_dec_cfg_deinit(cfg)

	if ret := C.mpp_shim_control(d.mpi, d.ctx, C.MPP_DEC_GET_CFG, unsafe.Pointer(cfg)); ret != C.MPP_OK {
		slog.Warn("MPP_DEC_GET_CFG failed, using framework defaults", "ret", int(ret))
		return
	}
	splitParse := C.CString("base:split_parse")
	fastOut := C.CString("base:fast_out")
	defer C.free(unsafe.Pointer(splitParse))
	defer C.free(unsafe.Pointer(fastOut))

	if ret := C.mpp_dec_cfg_set_u32(cfg, splitParse, 0); ret != C.MPP_OK {
		slog.Info("base:split_parse rejected by framework", "ret", int(ret))
	}
	if ret := C.mpp_dec_cfg_set_u32(cfg, fastOut, 1); ret != C.MPP_OK {
		slog.Info("base:fast_out rejected by framework, decoding without fast-out", "ret", int(ret))
	}
	if ret := C.mpp_shim_control(d.mpi, d.ctx, C.MPP_DEC_SET_CFG, unsafe.Pointer(cfg)); ret != C.MPP_OK {
		slog.Warn("MPP_DEC_SET_CFG failed, using framework defaults", "ret", int(ret))
	}
}

func (d *Decoder) releaseSlots(n int) {
	for i := 0; i < n; i++ {
		if d.slots[i].pktBuf != nil {
			C.mpp_buffer_put(d.slots[i].pktBuf)
		}
		if d.slots[i].frmBuf != nil {
			C.mpp_buffer_put(d.slots[i].frmBuf)
		}
	}
}

// Frame is a decoded YUV frame on loan from the output port. Callers must
// call Release exactly once to return the underlying task to the decoder's
// pool (spec §4.B step 8).
type Frame struct {
	Format        colorconv.Format
	Width, Height int
	HorStride     int
	VerStride     int
	FD            int    // DMA file descriptor, for zero-copy import into the RGA
	Data          []byte // CPU-mapped view of the same buffer, for the colorconv fallback

	decoder *Decoder
	task    C.MppTask
}

// Decode implements spec §4.B's per-decode protocol in full: advance the
// slot, copy the packet, wrap input/output descriptors, submit to the input
// port (non-blocking poll), wait on the output port (blocking poll — the HW
// decode latency), and extract the resulting frame. A failure at any step
// is reported but leaves the decoder usable for the next call (spec §4.B
// Failure semantics); all packet/frame descriptors are released on every
// exit path.
func (d *Decoder) Decode(packetBytes []byte) (*Frame, error) {
	idx := d.ringIdx
	d.ringIdx = nextSlot(d.ringIdx)
	s := &d.slots[idx]

	if len(packetBytes) > s.pktBufSize {
		return nil, errs.New(errs.DecodeFailed, "packet %d bytes exceeds slot capacity %d", len(packetBytes), s.pktBufSize)
	}

	ptr := C.mpp_buffer_get_ptr(s.pktBuf)
	C.memcpy(ptr, unsafe.Pointer(&packetBytes[0]), C.size_t(len(packetBytes)))

	var packet C.MppPacket
	if ret := C.mpp_packet_init_with_buffer(&packet, s.pktBuf); ret != C.MPP_OK {
		return nil, errs.New(errs.DecodeFailed, "mpp_packet_init_with_buffer: %d", int(ret))
	}
	C.mpp_packet_set_length(packet, C.size_t(len(packetBytes)))
	defer C.mpp_packet_deinit(&packet)

	var frame C.MppFrame
	if ret := C.mpp_frame_init(&frame); ret != C.MPP_OK {
		return nil, errs.New(errs.DecodeFailed, "mpp_frame_init: %d", int(ret))
	}
	C.mpp_frame_set_buffer(frame, s.frmBuf)
	defer C.mpp_frame_deinit(&frame)

	t1 := time.Now()
	if ret := C.mpp_shim_poll(d.mpi, d.ctx, C.MPP_PORT_INPUT, C.MPP_POLL_NON_BLOCK); ret != C.MPP_OK {
		return nil, errs.New(errs.DecodeFailed, "input port not ready: %d", int(ret))
	}
	var task C.MppTask
	if ret := C.mpp_shim_dequeue(d.mpi, d.ctx, C.MPP_PORT_INPUT, &task); ret != C.MPP_OK || task == nil {
		return nil, errs.New(errs.DecodeFailed, "dequeue input task: %d", int(ret))
	}

	C.mpp_task_meta_set_packet(task, C.KEY_INPUT_PACKET, packet)
	C.mpp_task_meta_set_frame(task, C.KEY_OUTPUT_FRAME, frame)

	if ret := C.mpp_shim_enqueue(d.mpi, d.ctx, C.MPP_PORT_INPUT, task); ret != C.MPP_OK {
		return nil, errs.New(errs.DecodeFailed, "enqueue input task: %d", int(ret))
	}
	t2 := time.Now()

	if ret := C.mpp_shim_poll(d.mpi, d.ctx, C.MPP_PORT_OUTPUT, C.MPP_POLL_BLOCK); ret != C.MPP_OK {
		return nil, errs.New(errs.DecodeFailed, "output port poll: %d", int(ret))
	}
	t3 := time.Now()

	d.timingMu.Lock()
	d.accumPollInput += t2.Sub(t1)
	d.accumPollOutput += t3.Sub(t2)
	d.timingCount++
	d.timingMu.Unlock()

	var outTask C.MppTask
	if ret := C.mpp_shim_dequeue(d.mpi, d.ctx, C.MPP_PORT_OUTPUT, &outTask); ret != C.MPP_OK || outTask == nil {
		return nil, errs.New(errs.DecodeFailed, "dequeue output task: %d", int(ret))
	}

	var outFrame C.MppFrame
	C.mpp_task_meta_get_frame(outTask, C.KEY_OUTPUT_FRAME, &outFrame)
	if outFrame == nil {
		C.mpp_shim_enqueue(d.mpi, d.ctx, C.MPP_PORT_OUTPUT, outTask)
		return nil, errs.New(errs.DecodeFailed, "output task carried no frame")
	}

	outBuf := C.mpp_frame_get_buffer(outFrame)
	errInfo := C.mpp_frame_get_errinfo(outFrame)
	if outBuf == nil || errInfo != 0 {
		C.mpp_shim_enqueue(d.mpi, d.ctx, C.MPP_PORT_OUTPUT, outTask)
		return nil, errs.New(errs.DecodeFailed, "decoder reported err_info=%d", int(errInfo))
	}

	width := int(C.mpp_frame_get_width(outFrame))
	height := int(C.mpp_frame_get_height(outFrame))
	horStride := int(C.mpp_frame_get_hor_stride(outFrame))
	verStride := int(C.mpp_frame_get_ver_stride(outFrame))
	mppFmt := C.mpp_frame_get_fmt(outFrame)

	d.firstFrameOnce.Do(func() {
		slog.Info("mpp first decoded frame", "width", width, "height", height,
			"hor_stride", horStride, "ver_stride", verStride, "fmt", fmt.Sprintf("0x%x", uint32(mppFmt)))
	})

	fd := int(C.mpp_buffer_get_fd(outBuf))
	size := int(C.mpp_buffer_get_size(outBuf))
	dataPtr := C.mpp_buffer_get_ptr(outBuf)
	data := unsafe.Slice((*byte)(dataPtr), size)

	f := &Frame{
		Format:    formatFromMPP(mppFmt),
		Width:     width,
		Height:    height,
		HorStride: horStride,
		VerStride: verStride,
		FD:        fd,
		Data:      data,
		decoder:   d,
		task:      outTask,
	}
	return f, nil
}

// Release returns the task underlying f to the output port pool (spec §4.B
// step 8: "after the caller consumes the frame, re-enqueue the task"). It is
// safe to call once per Frame; the Frame must not be used afterward.
func (f *Frame) Release() error {
	if f == nil || f.decoder == nil {
		return nil
	}
	ret := C.mpp_shim_enqueue(f.decoder.mpi, f.decoder.ctx, C.MPP_PORT_OUTPUT, f.task)
	f.decoder = nil
	if ret != C.MPP_OK {
		return errs.New(errs.DecodeFailed, "re-enqueue output task: %d", int(ret))
	}
	return nil
}

// Deinit releases every buffer and the buffer group and destroys the MPP
// context. Safe to call on a zero-value or already-deinited Decoder.
func (d *Decoder) Deinit() error {
	if d == nil || d.ctx == nil {
		return nil
	}
	d.releaseSlots(SlotCount)
	if d.grp != nil {
		C.mpp_buffer_group_put(d.grp)
		d.grp = nil
	}
	if d.mpi != nil {
		C.mpp_shim_reset(d.mpi, d.ctx)
	}
	C.mpp_destroy(d.ctx)
	d.ctx = nil
	d.mpi = nil
	return nil
}

// formatFromMPP maps the hardware frame-format word to the semiplanar
// variant enum shared with package colorconv and package rga, per spec §3's
// four supported subsampling variants.
func formatFromMPP(f C.MppFrameFormat) colorconv.Format {
	switch f & C.MPP_FRAME_FMT_MASK {
	case C.MPP_FMT_YUV420SP:
		return colorconv.NV12
	case C.MPP_FMT_YUV420SP_VU:
		return colorconv.NV21
	case C.MPP_FMT_YUV422SP:
		return colorconv.NV16
	case C.MPP_FMT_YUV422SP_VU:
		return colorconv.NV61
	default:
		return colorconv.NV12
	}
}
