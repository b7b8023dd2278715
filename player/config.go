// Package player implements the display pipeline of spec §4.F–H: a
// declarative GStreamer media graph that fans the camera stream out to a
// native-window render sink (with a synchronous detection-box overlay) and
// a downsampled app-sink tap for an external face detector.
package player

// Format enumerates the ingress pixel formats the pipeline's caps negotiate
// against, matching spec §6's player_create config.format enumeration.
type Format int

const (
	FormatMJPEG Format = iota
	FormatYUY2
	FormatNV12
)

func (f Format) String() string {
	switch f {
	case FormatMJPEG:
		return "MJPEG"
	case FormatYUY2:
		return "YUY2"
	case FormatNV12:
		return "NV12"
	default:
		return "unknown"
	}
}

// Config mirrors spec §6's player_create config enumeration exactly.
type Config struct {
	Device string
	Width  int
	Height int
	FPS    int
	Format Format

	// HardwareDecode and UseRGA are accepted and recorded but, per spec §9's
	// open question, software jpegdec is hard-wired in buildPipeline for
	// overlay compatibility: the hardware hardware-decode path is not
	// currently wired into the display graph.
	HardwareDecode bool
	UseRGA         bool

	FaceDetectFPS    int
	FaceDetectWidth  int
	FaceDetectHeight int
}

// faceGeometry returns the detection-tap resolution and rate, falling back
// to the main stream's dimensions and a 10fps default exactly as
// build_pipeline_string does in the original source.
func (c Config) faceGeometry() (w, h, fps int) {
	w, h, fps = c.FaceDetectWidth, c.FaceDetectHeight, c.FaceDetectFPS
	if w <= 0 {
		w = c.Width
	}
	if h <= 0 {
		h = c.Height
	}
	if fps <= 0 {
		fps = 10
	}
	return
}
