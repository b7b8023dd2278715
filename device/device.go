package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	sys "golang.org/x/sys/unix"

	"rkcam/v4l2"
)

// ErrNoFrame is sent on the capture loop's error channel when a read wait
// times out or fails. It is not fatal: callers should treat it as "no frame
// this cycle" and keep reading. A dequeue that reports EAGAIN or EINTR is
// skipped without sending anything.
var ErrNoFrame = errors.New("device: no frame available")

// Device represents an opened V4L2 video capture device using the
// memory-mapped, streaming I/O model.
type Device struct {
	path   string
	fd     uintptr
	config config

	cap     v4l2.Capability
	cropCap v4l2.CropCapability

	buffers      [][]byte
	requestedBuf v4l2.RequestBuffers

	streaming bool

	frames    chan *Frame
	streamErr chan error
	cancel    context.CancelFunc
	done      chan struct{}

	pool *FramePool
}

// Open opens the video device at path, queries its capability, and applies
// the given options. Streaming is not started until Start is called.
func Open(path string, options ...Option) (*Device, error) {
	fd, err := v4l2.OpenDevice(path, sys.O_RDWR|sys.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("device open: %w", err)
	}

	dev := &Device{path: path, fd: fd, pool: DefaultFramePool()}
	for _, o := range options {
		o(&dev.config)
	}

	cap, err := v4l2.GetCapability(dev.fd)
	if err != nil {
		_ = v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: %w", path, err)
	}
	dev.cap = cap

	if !cap.IsVideoCaptureSupported() {
		_ = v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: %w", path, v4l2.ErrorUnsupportedFeature)
	}
	if !cap.IsStreamingSupported() {
		_ = v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: %w", path, v4l2.ErrorUnsupportedFeature)
	}

	if dev.config.bufSize == 0 {
		dev.config.bufSize = 4
	}
	dev.config.ioType = v4l2.IOTypeMMAP

	if cropCap, err := v4l2.GetCropCapability(dev.fd, v4l2.BufTypeVideoCapture); err == nil {
		dev.cropCap = cropCap
		_ = v4l2.SetCropRect(dev.fd, cropCap.DefaultRect) // best-effort, not every driver allows it
	}

	if dev.config.pixFormat != (v4l2.PixFormat{}) {
		if err := dev.SetPixFormat(dev.config.pixFormat); err != nil {
			_ = v4l2.CloseDevice(dev.fd)
			return nil, fmt.Errorf("device open: %s: set format: %w", path, err)
		}
	} else {
		dev.config.pixFormat, err = v4l2.GetPixFormat(dev.fd)
		if err != nil {
			_ = v4l2.CloseDevice(dev.fd)
			return nil, fmt.Errorf("device open: %s: get format: %w", path, err)
		}
	}

	if dev.config.requiredPixFormat != 0 && dev.config.pixFormat.PixelFormat != dev.config.requiredPixFormat {
		_ = v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: driver negotiated pixel format %s, want %s: %w",
			path, v4l2.PixelFormats[dev.config.pixFormat.PixelFormat], v4l2.PixelFormats[dev.config.requiredPixFormat], v4l2.ErrorUnsupportedFeature)
	}

	if dev.config.fps != 0 {
		if err := dev.SetFrameRate(dev.config.fps); err != nil {
			_ = v4l2.CloseDevice(dev.fd)
			return nil, fmt.Errorf("device open: %s: set fps: %w", path, err)
		}
	} else if dev.config.fps, err = dev.GetFrameRate(); err != nil {
		_ = v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: get fps: %w", path, err)
	}

	return dev, nil
}

// Close stops streaming, if active, and closes the device file descriptor.
func (d *Device) Close() error {
	if d.streaming {
		if err := d.Stop(); err != nil {
			return err
		}
	}
	return v4l2.CloseDevice(d.fd)
}

// Name returns the device's file system path.
func (d *Device) Name() string { return d.path }

// Fd returns the device's open file descriptor.
func (d *Device) Fd() uintptr { return d.fd }

// Capability returns the device's queried capability bits.
func (d *Device) Capability() v4l2.Capability { return d.cap }

// BufferCount returns the number of streaming buffers requested from the driver.
func (d *Device) BufferCount() uint32 { return d.config.bufSize }

// MemIOType returns the configured memory I/O method (always MMAP today).
func (d *Device) MemIOType() v4l2.IOType { return d.config.ioType }

// PixFormat returns the negotiated pixel format.
func (d *Device) PixFormat() v4l2.PixFormat { return d.config.pixFormat }

// GetPixFormat queries the driver for its current pixel format and records it.
func (d *Device) GetPixFormat() (v4l2.PixFormat, error) {
	pixFmt, err := v4l2.GetPixFormat(d.fd)
	if err != nil {
		return v4l2.PixFormat{}, fmt.Errorf("device: get pix format: %w", err)
	}
	d.config.pixFormat = pixFmt
	return pixFmt, nil
}

// SetPixFormat requests a new pixel format from the driver and records
// whatever the driver actually negotiated.
func (d *Device) SetPixFormat(pixFmt v4l2.PixFormat) error {
	if err := v4l2.SetPixFormat(d.fd, pixFmt); err != nil {
		return fmt.Errorf("device: set pix format: %w", err)
	}
	negotiated, err := v4l2.GetPixFormat(d.fd)
	if err != nil {
		return fmt.Errorf("device: confirm pix format: %w", err)
	}
	d.config.pixFormat = negotiated
	return nil
}

// SetFrameRate requests fps via VIDIOC_S_PARM. The driver may round to the
// nearest value it supports; GetFrameRate reflects what was actually applied.
func (d *Device) SetFrameRate(fps uint32) error {
	param := v4l2.CaptureParam{TimePerFrame: v4l2.Fract{Numerator: 1, Denominator: fps}}
	applied, err := v4l2.SetStreamCaptureParam(d.fd, param)
	if err != nil {
		return fmt.Errorf("device: set frame rate: %w", err)
	}
	if applied.TimePerFrame.Denominator != 0 {
		d.config.fps = applied.TimePerFrame.Denominator
	} else {
		d.config.fps = fps
	}
	return nil
}

// GetFrameRate returns the currently configured frame rate.
func (d *Device) GetFrameRate() (uint32, error) {
	param, err := v4l2.GetStreamCaptureParam(d.fd)
	if err != nil {
		return 0, fmt.Errorf("device: frame rate: %w", err)
	}
	if param.TimePerFrame.Denominator != 0 {
		d.config.fps = param.TimePerFrame.Denominator
	}
	return d.config.fps, nil
}

// Frames returns the channel that delivers captured frames while streaming.
// The channel is closed when Stop is called or the capture goroutine exits.
func (d *Device) Frames() <-chan *Frame { return d.frames }

// Errors returns the channel that reports non-fatal capture errors (including
// ErrNoFrame on read timeouts). It is closed along with Frames.
func (d *Device) Errors() <-chan error { return d.streamErr }

// Start allocates and maps V4L2 buffers, queues them, turns on streaming, and
// launches the capture goroutine. Start is not idempotent; call Stop before
// calling Start again.
func (d *Device) Start(ctx context.Context) error {
	if d.streaming {
		return fmt.Errorf("device: start: already streaming")
	}

	bufReq, err := v4l2.InitBuffers(d.fd, d.config.bufSize)
	if err != nil {
		return fmt.Errorf("device: start: %w", err)
	}
	d.requestedBuf = bufReq
	d.config.bufSize = bufReq.Count

	buffers := make([][]byte, bufReq.Count)
	for i := uint32(0); i < bufReq.Count; i++ {
		info, err := v4l2.GetBuffer(d.fd, i)
		if err != nil {
			return fmt.Errorf("device: start: query buffer %d: %w", i, err)
		}
		mapped, err := v4l2.MapMemoryBuffer(d.fd, int64(info.Info.Offset), int(info.Length))
		if err != nil {
			return fmt.Errorf("device: start: map buffer %d: %w", i, err)
		}
		buffers[i] = mapped
	}
	d.buffers = buffers

	for i := uint32(0); i < bufReq.Count; i++ {
		if _, err := v4l2.QueueBuffer(d.fd, i); err != nil {
			return fmt.Errorf("device: start: queue buffer %d: %w", i, err)
		}
	}

	if err := v4l2.StreamOn(d.fd); err != nil {
		return fmt.Errorf("device: start: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.frames = make(chan *Frame, bufReq.Count)
	d.streamErr = make(chan error, bufReq.Count)
	d.done = make(chan struct{})
	d.streaming = true

	go d.captureLoop(loopCtx)

	return nil
}

// Stop turns off streaming, unmaps buffers, and waits for the capture
// goroutine to exit. Calling Stop when not streaming is a no-op.
func (d *Device) Stop() error {
	if !d.streaming {
		return nil
	}
	d.cancel()
	<-d.done

	var firstErr error
	for _, b := range d.buffers {
		if err := v4l2.UnmapMemoryBuffer(b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.buffers = nil

	if err := v4l2.StreamOff(d.fd); err != nil && firstErr == nil {
		firstErr = err
	}
	d.streaming = false

	if firstErr != nil {
		return fmt.Errorf("device: stop: %w", firstErr)
	}
	return nil
}

// captureLoop waits for the device to become readable, dequeues the filled
// buffer, copies its bytes into a pooled Frame, and re-queues the buffer.
// Errors are reported on streamErr rather than causing a panic; the loop
// keeps running until ctx is cancelled, matching the "never fatal per-frame"
// rule for the capture worker.
func (d *Device) captureLoop(ctx context.Context) {
	defer close(d.done)
	defer close(d.frames)
	defer close(d.streamErr)

	var sequence uint32
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := v4l2.WaitForDeviceRead(d.fd, 200*time.Millisecond); err != nil {
			select {
			case d.streamErr <- ErrNoFrame:
			default:
			}
			continue
		}

		buf, err := v4l2.DequeueBuffer(d.fd)
		if err != nil {
			if errors.Is(err, sys.EAGAIN) || errors.Is(err, v4l2.ErrorTemporary) || errors.Is(err, v4l2.ErrorInterrupted) {
				continue
			}
			select {
			case d.streamErr <- fmt.Errorf("device: dequeue: %w", err):
			default:
			}
			continue
		}

		if int(buf.Index) >= len(d.buffers) {
			select {
			case d.streamErr <- fmt.Errorf("device: dequeue: buffer index %d out of range", buf.Index):
			default:
			}
			continue
		}

		frame := &Frame{
			Timestamp: time.Now(),
			Sequence:  sequence,
			Flags:     buf.Flags,
			Index:     buf.Index,
			pool:      d.pool,
		}
		sequence++

		if buf.Flags&v4l2.BufFlagError == 0 {
			frame.Data = d.pool.Get(buf.BytesUsed)
			copy(frame.Data, d.buffers[buf.Index][:buf.BytesUsed])
		}

		select {
		case d.frames <- frame:
		case <-ctx.Done():
			frame.Release()
			if _, err := v4l2.QueueBuffer(d.fd, buf.Index); err != nil {
				select {
				case d.streamErr <- fmt.Errorf("device: queue: %w", err):
				default:
				}
			}
			return
		default:
			// consumer too slow: drop this frame rather than block the driver
			frame.Release()
			select {
			case d.streamErr <- fmt.Errorf("device: frame dropped: consumer not keeping up"):
			default:
			}
		}

		if _, err := v4l2.QueueBuffer(d.fd, buf.Index); err != nil {
			select {
			case d.streamErr <- fmt.Errorf("device: queue: %w", err):
			default:
			}
		}
	}
}
