// Command camtool is a thin flag-driven harness that exercises
// camera.Context end to end: open, start, optionally save one frame, report
// stats, stop. It mirrors the plain style of go4vl's examples/capture and
// examples/webcam, adapted to the rkcam/camera package.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"rkcam/camera"
)

func main() {
	var (
		devPath  = flag.String("d", "/dev/video0", "V4L2 device path")
		width    = flag.Int("width", 1280, "capture width")
		height   = flag.Int("height", 720, "capture height")
		fps      = flag.Uint("fps", 30, "capture frame rate")
		useRGA   = flag.Bool("rga", true, "use the RGA hardware color converter")
		snapshot = flag.String("snapshot", "", "if set, write one captured BGRA frame to this path and exit")
		duration = flag.Duration("duration", 3*time.Second, "how long to run before stopping and printing stats")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cam, err := camera.Open(camera.Config{
		Device: *devPath,
		Width:  *width,
		Height: *height,
		FPS:    uint32(*fps),
		UseRGA: *useRGA,
	})
	if err != nil {
		log.Fatalf("camera.Open: %v", err)
	}
	defer cam.Close()

	if err := cam.Start(nil); err != nil {
		log.Fatalf("camera.Start: %v", err)
	}
	defer cam.Stop()

	if *snapshot != "" {
		buf := make([]byte, *width**height*4)
		w, h, err := cam.CaptureFrame(buf, 5*time.Second)
		if err != nil {
			log.Fatalf("CaptureFrame: %v", err)
		}
		if err := os.WriteFile(*snapshot, buf[:w*h*4], 0o644); err != nil {
			log.Fatalf("write %s: %v", *snapshot, err)
		}
		fmt.Printf("wrote %s (%dx%d BGRA)\n", *snapshot, w, h)
		return
	}

	fmt.Printf("capturing from %s for %s...\n", *devPath, *duration)
	time.Sleep(*duration)

	if err := cam.Stop(); err != nil {
		log.Fatalf("camera.Stop: %v", err)
	}

	stats := cam.Stats()
	if stats.Frames > 0 {
		fmt.Printf("frames=%d avg_decode=%s avg_total=%s decode_fails=%d\n",
			stats.Frames,
			stats.Decode/time.Duration(stats.Frames),
			stats.Total/time.Duration(stats.Frames),
			stats.DecodeFails)
	} else {
		fmt.Println("no frames captured")
	}
}
