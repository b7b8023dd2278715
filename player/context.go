package player

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
	"github.com/go-gst/go-gst/gst/video"

	"rkcam/errs"
)

// gstInitOnce guards the process-wide one-shot GStreamer initialization
// (spec §9 "Global framework init"): gst.Init must run exactly once per
// process, regardless of how many player.Context instances are created.
var gstInitOnce sync.Once

func ensureGstInit() {
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
}

// State is the player lifecycle of spec §4.F:
// CREATED -> WINDOW_SET -> PLAYING -> STOPPED -> DESTROYED.
type State int

const (
	StateCreated State = iota
	StateWindowSet
	StatePlaying
	StateStopped
	StateDestroyed
)

// FrameCallback receives each detection-tap buffer: a BGRA frame at the
// configured face-detect resolution (spec §4.F app-sink branch).
type FrameCallback func(data []byte, width, height, stride int)

// Stats mirrors spec §6's player_get_stats. Dropped is always zero: the
// original implementation reports it unconditionally as zero and spec §9
// leaves it that way pending a framework-side drop-counter mechanism.
type Stats struct {
	FPS     float64
	Dropped uint64
}

// Context is a display pipeline instance. The zero value is not usable;
// create one with New.
type Context struct {
	cfg Config

	mu    sync.Mutex
	state State

	pipeline   *gst.Pipeline
	videoSink  *gst.Element
	overlayEl  *gst.Element
	faceSink   *app.Sink
	renderer   *Renderer
	store      *DetectionStore

	cbMu sync.RWMutex
	cb   FrameCallback

	frameCount atomic.Uint64
	startedAt  time.Time
}

// New assembles the media graph from the declarative pipeline string built
// from cfg (spec §4.F). The pipeline is parsed and its named elements are
// looked up, but no state transition happens until SetWindow and Start.
func New(cfg Config) (*Context, error) {
	ensureGstInit()

	pipelineStr := buildPipeline(cfg)
	slog.Info("player: pipeline", "pipeline", pipelineStr)

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, errs.Wrap(errs.PipelineFailed, err)
	}

	videoSink, err := pipeline.GetElementByName("videosink")
	if err != nil {
		return nil, errs.New(errs.PipelineFailed, "videosink element not found: %v", err)
	}
	overlayEl, err := pipeline.GetElementByName("overlay")
	if err != nil {
		return nil, errs.New(errs.PipelineFailed, "overlay element not found: %v", err)
	}
	faceSinkEl, err := pipeline.GetElementByName("facesink")
	if err != nil {
		return nil, errs.New(errs.PipelineFailed, "facesink element not found: %v", err)
	}
	faceSink := app.SinkFromElement(faceSinkEl)

	faceW, faceH, _ := cfg.faceGeometry()
	store := newDetectionStore(faceW, faceH)

	c := &Context{
		cfg:       cfg,
		pipeline:  pipeline,
		videoSink: videoSink,
		overlayEl: overlayEl,
		faceSink:  faceSink,
		store:     store,
		state:     StateCreated,
	}

	c.renderer = newRenderer(overlayEl, store)

	faceSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: c.onFaceSample,
	})

	if _, err := pipeline.GetBus().AddWatch(c.onBusMessage); err != nil {
		slog.Warn("player: bus watch not installed", "err", err)
	}

	return c, nil
}

// SetWindow attaches the native window handle to the render sink via the
// video-overlay interface (spec §4.F). Required before Start.
func (c *Context) SetWindow(nativeWindowID uintptr) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCreated {
		return errs.New(errs.InvalidParam, "SetWindow called in state %d, want CREATED", c.state)
	}

	overlay, err := video.NewOverlay(c.videoSink)
	if err != nil {
		return errs.New(errs.NoDisplay, "videosink does not implement video overlay: %v", err)
	}
	overlay.SetWindowHandle(nativeWindowID)
	c.state = StateWindowSet
	return nil
}

// SetFrameCallback registers cb for the detection tap (spec §6
// player_set_frame_callback).
func (c *Context) SetFrameCallback(cb FrameCallback) {
	c.cbMu.Lock()
	c.cb = cb
	c.cbMu.Unlock()
}

// Start transitions the pipeline to PLAYING. A no-op if already playing
// (spec §4.F state machine).
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePlaying {
		return nil
	}
	if c.state == StateCreated {
		return errs.New(errs.WindowInvalid, "Start called before SetWindow")
	}
	if err := c.pipeline.SetState(gst.StatePlaying); err != nil {
		return errs.Wrap(errs.PipelineFailed, err)
	}
	c.state = StatePlaying
	c.startedAt = time.Now()
	return nil
}

// Stop transitions the pipeline to STOPPED. A no-op if already stopped.
func (c *Context) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped || c.state == StateDestroyed {
		return nil
	}
	if err := c.pipeline.SetState(gst.StateNull); err != nil {
		return errs.Wrap(errs.PipelineFailed, err)
	}
	c.state = StateStopped
	return nil
}

// IsPlaying reports whether the pipeline is in the PLAYING state.
func (c *Context) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePlaying
}

// Destroy performs final teardown of the pipeline and overlay bridge.
func (c *Context) Destroy() error {
	if err := c.Stop(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.close()
	c.state = StateDestroyed
	return nil
}

// SetFaceBoxes updates the detection set (spec §6 player_set_face_boxes).
func (c *Context) SetFaceBoxes(boxes []DetectionBox, sourceW, sourceH int) {
	c.store.Set(boxes, sourceW, sourceH)
}

// ClearFaceBoxes empties the detection set (spec §6 player_clear_face_boxes).
func (c *Context) ClearFaceBoxes() {
	c.store.Clear()
}

// GetStats reports the average rate of detection-tap frames since Start and
// the (always-zero) dropped count, per spec §6 player_get_stats and §9's
// resolution of the open question about drop counters.
func (c *Context) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying || c.startedAt.IsZero() {
		return Stats{}
	}
	elapsed := time.Since(c.startedAt).Seconds()
	if elapsed <= 0 {
		return Stats{}
	}
	return Stats{FPS: float64(c.frameCount.Load()) / elapsed}
}

// onFaceSample is the app-sink "new-sample" callback: map the buffer
// read-only, invoke the external frame callback, and unmap (spec §4.F). An
// unreadable sample returns OK to the framework (back-pressure) without
// invoking the callback, per spec §7.
func (c *Context) onFaceSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	defer sample.Unref()

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapped := buffer.Map(gst.MapRead)
	if mapped == nil {
		return gst.FlowOK
	}
	defer buffer.Unmap()

	faceW, faceH, _ := c.cfg.faceGeometry()
	stride := faceW * 4

	c.frameCount.Add(1)

	c.cbMu.RLock()
	cb := c.cb
	c.cbMu.RUnlock()
	if cb != nil {
		cb(mapped.Bytes(), faceW, faceH, stride)
	}
	return gst.FlowOK
}

// onBusMessage logs and ignores messages the player doesn't specifically
// handle, per spec §7 "Unknown signals/events from the media framework are
// logged and ignored."
func (c *Context) onBusMessage(msg *gst.Message) bool {
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		slog.Error("player: pipeline error", "err", gerr.Error())
	case gst.MessageEOS:
		slog.Info("player: end of stream")
	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		slog.Warn("player: pipeline warning", "err", gerr.Error())
	default:
		slog.Debug("player: bus message ignored", "type", fmt.Sprint(msg.Type()))
	}
	return true
}
