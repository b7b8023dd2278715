package player

/*
#cgo pkg-config: gstreamer-1.0 cairo

#include <gst/gst.h>
#include <cairo/cairo.h>
#include <glib-object.h>
#include <stdint.h>

extern void goCairoDraw(GstElement *overlay, cairo_t *cr, uint64_t timestamp, uint64_t duration, void *userData);
extern void goCapsChanged(GstElement *overlay, GstCaps *caps, void *userData);

static inline gulong rkcam_connect_draw(GstElement *overlay, void *userData) {
	return g_signal_connect(overlay, "draw", G_CALLBACK(goCairoDraw), userData);
}
static inline gulong rkcam_connect_caps_changed(GstElement *overlay, void *userData) {
	return g_signal_connect(overlay, "caps-changed", G_CALLBACK(goCapsChanged), userData);
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/go-gst/go-gst/gst"
)

// Renderer is the synchronous draw callback of spec §4.G, bridged from the
// cairooverlay element's "draw" glib signal via the cgo trampoline below.
// go-gst does not wrap cairooverlay's raw cairo_t* signal (it is not an
// introspectable GObject type), so this is a small, direct cgo shim in the
// same style v4l2/cgo.go and mpp/shim.h use for the rest of the vendor SDK
// surface — grounded on on_cairo_draw in gst_video_player.c.
type Renderer struct {
	store   *DetectionStore
	videoW  int
	videoH  int
	handle  cgo.Handle
}

// newRenderer creates a Renderer bound to store and connects it to
// overlay's "draw" and "caps-changed" signals.
func newRenderer(overlay *gst.Element, store *DetectionStore) *Renderer {
	r := &Renderer{store: store}
	r.handle = cgo.NewHandle(r)

	cElem := (*C.GstElement)(unsafe.Pointer(overlay.Unsafe()))
	userData := unsafe.Pointer(r.handle)
	C.rkcam_connect_draw(cElem, userData)
	C.rkcam_connect_caps_changed(cElem, userData)
	return r
}

// close releases the cgo.Handle; call once the overlay element and
// pipeline have been torn down.
func (r *Renderer) close() {
	if r.handle != 0 {
		r.handle.Delete()
		r.handle = 0
	}
}

// draw is called on the GStreamer rendering stream for every displayed
// frame. It must not block beyond a frame interval: the only lock taken is
// the detection store's, which is uncontended for ≪ 1 microsecond (spec
// §5). No I/O, no allocation beyond the boxes slice computeRenderBoxes
// already needs.
func (r *Renderer) draw(cr *C.cairo_t) {
	r.store.mu.Lock()
	boxes := append([]DetectionBox(nil), r.store.boxes[:r.store.count]...)
	sourceW, sourceH := r.store.sourceW, r.store.sourceH
	videoW, videoH := r.videoW, r.videoH
	r.store.mu.Unlock()

	rbs := computeRenderBoxes(boxes, sourceW, sourceH, videoW, videoH)
	for _, rb := range rbs {
		C.cairo_set_source_rgb(cr, 0.0, 1.0, 0.0)
		C.cairo_set_line_width(cr, 3.0)
		C.cairo_rectangle(cr, C.double(rb.X), C.double(rb.Y), C.double(rb.W), C.double(rb.H))
		C.cairo_stroke(cr)

		if rb.HasLabel {
			x, y := rb.labelPosition()
			C.cairo_set_font_size(cr, 16)
			C.cairo_move_to(cr, C.double(x), C.double(y))
			label := C.CString(rb.Label)
			C.cairo_show_text(cr, label)
			C.free(unsafe.Pointer(label))
		}
	}
}

// setVideoSize records the post-scale video dimensions delivered by a
// "caps-changed" signal, used for the source->video coordinate transform
// (spec §4.F/§4.G).
func (r *Renderer) setVideoSize(w, h int) {
	r.store.mu.Lock()
	r.videoW, r.videoH = w, h
	r.store.mu.Unlock()
}

//export goCairoDraw
func goCairoDraw(overlay *C.GstElement, cr *C.cairo_t, timestamp, duration C.uint64_t, userData unsafe.Pointer) {
	h := cgo.Handle(userData)
	r, ok := h.Value().(*Renderer)
	if !ok {
		return
	}
	r.draw(cr)
}

//export goCapsChanged
func goCapsChanged(overlay *C.GstElement, caps *C.GstCaps, userData unsafe.Pointer) {
	h := cgo.Handle(userData)
	r, ok := h.Value().(*Renderer)
	if !ok {
		return
	}
	s := C.gst_caps_get_structure(caps, 0)
	var w, h2 C.gint
	C.gst_structure_get_int(s, C.CString("width"), &w)
	C.gst_structure_get_int(s, C.CString("height"), &h2)
	r.setVideoSize(int(w), int(h2))
}
