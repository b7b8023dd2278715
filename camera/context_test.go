package camera

import (
	"testing"
	"time"
)

func TestOpenRejectsInvalidDimensions(t *testing.T) {
	if _, err := Open(Config{Device: "/dev/video0", Width: 0, Height: 480}); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := Open(Config{Device: "/dev/video0", Width: 640, Height: -1}); err == nil {
		t.Fatal("expected error for negative height")
	}
}

func TestRecordStatsAccumulates(t *testing.T) {
	c := &Context{}
	c.recordStats(10*time.Millisecond, 5*time.Millisecond, 1*time.Millisecond, 16*time.Millisecond)
	c.recordStats(10*time.Millisecond, 5*time.Millisecond, 1*time.Millisecond, 16*time.Millisecond)

	s := c.Stats()
	if s.Frames != 2 {
		t.Errorf("Frames = %d, want 2", s.Frames)
	}
	if s.CaptureWait != 20*time.Millisecond {
		t.Errorf("CaptureWait = %v, want 20ms", s.CaptureWait)
	}
	if s.Total != 32*time.Millisecond {
		t.Errorf("Total = %v, want 32ms", s.Total)
	}
}

func TestCaptureFrameTimesOutWithoutPublish(t *testing.T) {
	c := &Context{exchange: NewExchange(4)}
	_, _, err := c.CaptureFrame(make([]byte, 4), 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error when nothing has been published")
	}
}

func TestCaptureFrameReturnsPublishedFrame(t *testing.T) {
	c := &Context{exchange: NewExchange(4)}
	c.exchange.Publish([]byte{1, 2, 3, 4}, 2, 1, 2)
	dst := make([]byte, 4)
	w, h, err := c.CaptureFrame(dst, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if w != 2 || h != 1 {
		t.Errorf("geometry = %d,%d, want 2,1", w, h)
	}
}
