package player

import (
	"strings"
	"testing"
)

func TestBuildPipelineMJPEG(t *testing.T) {
	cfg := Config{Device: "/dev/video12", Width: 640, Height: 480, FPS: 30, Format: FormatMJPEG,
		FaceDetectFPS: 5, FaceDetectWidth: 320, FaceDetectHeight: 240}
	p := buildPipeline(cfg)

	for _, want := range []string{
		"v4l2src device=/dev/video12",
		"image/jpeg,width=640,height=480,framerate=30/1",
		"jpegdec",
		"tee name=t",
		"queue max-size-buffers=2 leaky=downstream",
		"cairooverlay name=overlay",
		"videosink name=videosink sync=false force-aspect-ratio=false",
		"queue max-size-buffers=1 leaky=downstream",
		"framerate=5/1",
		"width=320,height=240",
		"appsink name=facesink emit-signals=true max-buffers=1 drop=true sync=false",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("pipeline missing %q\ngot: %s", want, p)
		}
	}
}

func TestBuildPipelineYUY2SkipsJpegdec(t *testing.T) {
	cfg := Config{Device: "/dev/video0", Width: 1280, Height: 720, FPS: 30, Format: FormatYUY2}
	p := buildPipeline(cfg)
	if strings.Contains(p, "jpegdec") {
		t.Errorf("YUY2 pipeline should not include jpegdec: %s", p)
	}
	if !strings.Contains(p, "format=YUY2") {
		t.Errorf("pipeline missing YUY2 caps: %s", p)
	}
}

func TestFaceGeometryDefaultsFallBackToMainStream(t *testing.T) {
	cfg := Config{Width: 640, Height: 480}
	w, h, fps := cfg.faceGeometry()
	if w != 640 || h != 480 || fps != 10 {
		t.Errorf("faceGeometry() = %d,%d,%d want 640,480,10", w, h, fps)
	}
}

func TestFaceGeometryHonorsOverrides(t *testing.T) {
	cfg := Config{Width: 640, Height: 480, FaceDetectWidth: 320, FaceDetectHeight: 240, FaceDetectFPS: 5}
	w, h, fps := cfg.faceGeometry()
	if w != 320 || h != 240 || fps != 5 {
		t.Errorf("faceGeometry() = %d,%d,%d want 320,240,5", w, h, fps)
	}
}
