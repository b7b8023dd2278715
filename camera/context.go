// Package camera implements the capture context of spec §6: V4L2 ingest
// (package device) feeding the hardware decoder (package mpp), color
// conversion (packages rga/colorconv), and the publish double buffer
// (Exchange), orchestrated by a single capture worker goroutine (spec §4.E).
package camera

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	sys "golang.org/x/sys/unix"

	"rkcam/colorconv"
	"rkcam/device"
	"rkcam/errs"
	"rkcam/internal/align"
	"rkcam/mpp"
	"rkcam/rga"
	"rkcam/v4l2"
)

// V4L2BufferCount is the number of kernel streaming buffers requested at
// Open (spec §3: "buffer_count as four... an implementation should treat
// the bound as named, not magic").
const V4L2BufferCount = 4

// Config configures a capture Context.
type Config struct {
	Device string
	Width  int
	Height int
	FPS    uint32

	// UseRGA enables the hardware 2D-accelerator color conversion path,
	// falling back to colorconv on any failure. Open does not change it: a
	// Config that leaves it false converts on the CPU only.
	UseRGA bool
}

// FrameCallback receives the currently published BGRA frame. data is a
// zero-copy view into the publish double buffer (spec §4.E step 4); callers
// that need to retain it beyond the callback's return must copy.
type FrameCallback func(data []byte, width, height, stride int)

// Stats accumulates the four wall-clock spans of spec §4.E point 6:
// capture wait, decode, callback, and total per-iteration time. Values are
// cumulative sums; divide by Frames for the per-frame averages that Stop
// logs.
type Stats struct {
	CaptureWait time.Duration
	Decode      time.Duration
	Callback    time.Duration
	Total       time.Duration
	Frames      uint64
	DecodeFails uint64
}

// Context is a capture/decode/display pipeline instance bound to one V4L2
// device. The zero value is not usable; create one with Open.
type Context struct {
	cfg Config

	dev      *device.Device
	decoder  *mpp.Decoder
	exchange *Exchange

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	cb   FrameCallback
	cbMu sync.RWMutex

	statsMu sync.Mutex
	stats   Stats
}

// Open opens the V4L2 device, negotiates MJPEG at the given geometry
// (failing if the driver substitutes another codec, per spec §4.A), and
// initializes the hardware decoder. The capture worker is not started until
// Start is called.
func Open(cfg Config) (*Context, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errs.New(errs.InvalidParam, "width/height must be positive, got %dx%d", cfg.Width, cfg.Height)
	}

	dev, err := device.Open(cfg.Device,
		device.WithPixFormat(v4l2.PixFormat{Width: uint32(cfg.Width), Height: uint32(cfg.Height), PixelFormat: v4l2.PixelFmtMJPEG}),
		device.WithRequiredPixFormat(v4l2.PixelFmtMJPEG),
		device.WithBufferSize(V4L2BufferCount),
		device.WithFPS(cfg.FPS),
	)
	if err != nil {
		if errors.Is(err, v4l2.ErrorSystem) {
			return nil, errs.Wrap(errs.DeviceNotFound, err)
		}
		return nil, errs.Wrap(errs.V4L2InitFailed, err)
	}

	negotiated := dev.PixFormat()
	width, height := int(negotiated.Width), int(negotiated.Height)

	decoder, err := mpp.Init(width, height)
	if err != nil {
		_ = dev.Close()
		return nil, errs.Wrap(errs.MPPInitFailed, err)
	}

	bgraCapacity := align.Up(width) * align.Up(height) * 4
	ctx := &Context{
		cfg:      cfg,
		dev:      dev,
		decoder:  decoder,
		exchange: NewExchange(bgraCapacity),
	}
	ctx.cfg.Width, ctx.cfg.Height = width, height
	return ctx, nil
}

// Start allocates kernel streaming resources and spawns the capture worker.
// Start is idempotent: calling it while already running returns nil without
// restarting anything, per spec §8's idempotent-start law.
func (c *Context) Start(cb FrameCallback) error {
	if c.running.Load() {
		return nil
	}

	c.cbMu.Lock()
	c.cb = cb
	c.cbMu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	if err := c.dev.Start(loopCtx); err != nil {
		cancel()
		return errs.Wrap(errs.V4L2InitFailed, err)
	}
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running.Store(true)

	go c.captureLoop()
	return nil
}

// Stop is cooperative: it signals the worker and waits for it to join,
// then disables streaming. Calling Stop when not running is a no-op, per
// spec §8's idempotent-stop law. Pending in-flight decodes complete
// normally before the worker returns (spec §4.E Cancellation). Once the
// worker has joined, the per-frame averages of Stats are logged.
func (c *Context) Stop() error {
	if !c.running.Load() {
		return nil
	}
	c.cancel()
	<-c.done
	c.running.Store(false)
	if s := c.Stats(); s.Frames > 0 {
		n := time.Duration(s.Frames)
		slog.Info("capture worker stopped", "frames", s.Frames, "decode_fails", s.DecodeFails,
			"avg_capture_wait", s.CaptureWait/n, "avg_decode", s.Decode/n,
			"avg_callback", s.Callback/n, "avg_total", s.Total/n)
	}
	return errs.Wrap(errs.NotRunning, c.dev.Stop())
}

// IsRunning reports whether the capture worker is active.
func (c *Context) IsRunning() bool { return c.running.Load() }

// CaptureFrame copies the most recently published BGRA frame into dst,
// implementing the synchronous camera_capture_frame entry point. timeout
// bounds the wait for a first frame to ever be published; once any frame
// has been published the call returns immediately.
func (c *Context) CaptureFrame(dst []byte, timeout time.Duration) (width, height int, err error) {
	deadline := time.Now().Add(timeout)
	for {
		if w, h, _, ok := c.exchange.Snapshot(dst); ok {
			return w, h, nil
		}
		if time.Now().After(deadline) {
			return 0, 0, errs.New(errs.NotRunning, "no frame published within %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

// Stats returns a copy of the accumulated per-iteration timing.
func (c *Context) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close performs final teardown: decoder and device resources are released
// unconditionally. Start must not be called afterward.
func (c *Context) Close() error {
	if c.running.Load() {
		if err := c.Stop(); err != nil {
			return err
		}
	}
	var firstErr error
	if err := c.decoder.Deinit(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.dev.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// setRealtimeScheduling raises the priority of the calling goroutine's OS
// thread on a best-effort basis by lowering its nice value through
// Setpriority. The scheduling policy is left as it is: the thread is not
// switched to SCHED_FIFO. Denial (EPERM, the common case without
// CAP_SYS_NICE) is logged and ignored, never fatal.
func setRealtimeScheduling() {
	const prioMax = 99 // passed as nice -99, which the kernel clamps to -20
	err := sys.Setpriority(sys.PRIO_PROCESS, 0, -prioMax)
	if err != nil {
		slog.Debug("capture worker: real-time priority denied, continuing at default scheduling", "err", err)
	}
}

// captureLoop is the single goroutine spawned by Start. It implements spec
// §4.E's loop verbatim: wait for V4L2 readability, dequeue, decode, convert,
// publish, invoke the frame callback, and always requeue the V4L2 buffer —
// even when decode failed — to keep the kernel ring full.
func (c *Context) captureLoop() {
	defer close(c.done)

	// SCHED_FIFO/priority changes in Linux are per-thread; pin this
	// goroutine to its OS thread before attempting them.
	runtime.LockOSThread()
	setRealtimeScheduling()

	for {
		iterStart := time.Now()

		select {
		case frame, open := <-c.dev.Frames():
			if !open {
				return
			}
			waitDone := time.Now()

			var decodeDur, cbDur time.Duration
			if len(frame.Data) > 0 {
				decodeDur, cbDur = c.processFrame(frame.Data)
			}
			frame.Release()

			c.recordStats(waitDone.Sub(iterStart), decodeDur, cbDur, time.Since(iterStart))

		case err, open := <-c.dev.Errors():
			if !open {
				return
			}
			if !errors.Is(err, device.ErrNoFrame) {
				slog.Debug("capture worker: stream error", "err", err)
			}
		}
	}
}

// processFrame decodes one MJPEG packet, converts it to BGRA (hardware path
// first, CPU fallback on any failure), and publishes the result. It returns
// the decode and callback spans for Stats. A decode or convert failure is
// counted and swallowed: the loop always continues (spec §4.E/§7).
func (c *Context) processFrame(packet []byte) (decodeDur, cbDur time.Duration) {
	t0 := time.Now()
	yuv, err := c.decoder.Decode(packet)
	if err != nil {
		c.statsMu.Lock()
		c.stats.DecodeFails++
		c.statsMu.Unlock()
		slog.Debug("capture worker: decode failed", "err", err)
		return time.Since(t0), 0
	}
	defer yuv.Release()

	dstStride := yuv.Width * 4
	dst := c.exchange.BeginWrite(dstStride * yuv.Height)

	converted := false
	if c.cfg.UseRGA {
		if err := rga.Convert(yuv.FD, yuv.Format, yuv.Width, yuv.Height, yuv.HorStride, yuv.VerStride, dst, dstStride); err == nil {
			converted = true
		} else {
			slog.Debug("rga convert failed, falling back to cpu", "err", err)
		}
	}
	if !converted {
		src := colorconv.YUVFrame{
			Data:      yuv.Data,
			Format:    yuv.Format,
			Width:     yuv.Width,
			Height:    yuv.Height,
			HorStride: yuv.HorStride,
			VerStride: yuv.VerStride,
		}
		if err := colorconv.Convert(src, dst, dstStride); err != nil {
			c.statsMu.Lock()
			c.stats.DecodeFails++
			c.statsMu.Unlock()
			slog.Debug("cpu convert failed", "err", err)
			return time.Since(t0), 0
		}
	}
	c.exchange.Commit(yuv.Width, yuv.Height, dstStride)
	decodeDur = time.Since(t0)

	t1 := time.Now()
	c.cbMu.RLock()
	cb := c.cb
	c.cbMu.RUnlock()
	if cb != nil {
		if data, w, h, stride, ok := c.exchange.View(); ok {
			cb(data, w, h, stride)
		}
	}
	cbDur = time.Since(t1)
	return decodeDur, cbDur
}

func (c *Context) recordStats(wait, decode, callback, total time.Duration) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.CaptureWait += wait
	c.stats.Decode += decode
	c.stats.Callback += callback
	c.stats.Total += total
	c.stats.Frames++
}
