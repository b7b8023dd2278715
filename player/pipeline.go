package player

import (
	"fmt"
	"strings"
)

// buildPipeline renders the declarative pipeline string of spec §4.F,
// grounded on build_pipeline_string in gst_video_player.c but expressed
// with a strings.Builder/fmt.Sprintf instead of C snprintf — same content,
// idiomatic Go assembly.
//
//	source(device) -> caps(MJPEG|YUY2|NV12, wxh@fps/1)
//	               -> [MJPEG: jpegdec ->]
//	               -> tee name=t
//	                  t. -> queue(2, leaky=downstream) -> videoconvert -> cairooverlay name=overlay ->
//	                        videoconvert -> xvimagesink(name=videosink, sync=false, force-aspect-ratio=false)
//	                  t. -> queue(1, leaky=downstream) -> videorate -> fps -> videoscale -> wxh ->
//	                        videoconvert(BGRA) -> appsink(name=facesink, max-buffers=1, drop=true, sync=false)
func buildPipeline(cfg Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "v4l2src device=%s ! ", cfg.Device)

	switch cfg.Format {
	case FormatMJPEG:
		fmt.Fprintf(&b, "image/jpeg,width=%d,height=%d,framerate=%d/1 ! jpegdec ! ", cfg.Width, cfg.Height, cfg.FPS)
	case FormatYUY2:
		fmt.Fprintf(&b, "video/x-raw,format=YUY2,width=%d,height=%d,framerate=%d/1 ! ", cfg.Width, cfg.Height, cfg.FPS)
	default:
		fmt.Fprintf(&b, "video/x-raw,format=NV12,width=%d,height=%d,framerate=%d/1 ! ", cfg.Width, cfg.Height, cfg.FPS)
	}

	b.WriteString("tee name=t ")
	b.WriteString("t. ! queue max-size-buffers=2 leaky=downstream ! videoconvert ! " +
		"cairooverlay name=overlay ! videoconvert ! " +
		"xvimagesink name=videosink sync=false force-aspect-ratio=false ")

	faceW, faceH, faceFPS := cfg.faceGeometry()
	fmt.Fprintf(&b, "t. ! queue max-size-buffers=1 leaky=downstream ! "+
		"videorate ! video/x-raw,framerate=%d/1 ! "+
		"videoscale ! video/x-raw,width=%d,height=%d ! videoconvert ! video/x-raw,format=BGRA ! "+
		"appsink name=facesink emit-signals=true max-buffers=1 drop=true sync=false",
		faceFPS, faceW, faceH)

	return b.String()
}
