package camera

import (
	"sync"
	"testing"
)

func TestExchangePublishSnapshot(t *testing.T) {
	e := NewExchange(16)
	if _, _, _, ok := e.Snapshot(make([]byte, 16)); ok {
		t.Fatal("Snapshot before any Publish should report ok=false")
	}

	frame := []byte{1, 2, 3, 4}
	e.Publish(frame, 2, 1, 2)

	dst := make([]byte, 4)
	w, h, stride, ok := e.Snapshot(dst)
	if !ok {
		t.Fatal("Snapshot after Publish should report ok=true")
	}
	if w != 2 || h != 1 || stride != 2 {
		t.Errorf("geometry = %d,%d,%d, want 2,1,2", w, h, stride)
	}
	if string(dst) != string(frame) {
		t.Errorf("Snapshot data = %v, want %v", dst, frame)
	}
}

func TestExchangeReaderNeverObservesWriterSlot(t *testing.T) {
	// For every reader read R and concurrent writer write W, R.slot != W.slot
	// (spec §8 invariant): drive many publishes from one goroutine while many
	// readers snapshot concurrently and assert the data they see is always
	// one complete, self-consistent generation (no torn reads).
	e := NewExchange(8)
	const generations = 200
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 8)
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, _, _, ok := e.Snapshot(buf); ok {
					for i := 1; i < len(buf); i++ {
						if buf[i] != buf[0] {
							t.Errorf("torn read: %v", buf)
						}
					}
				}
			}
		}()
	}

	for g := 1; g <= generations; g++ {
		b := byte(g)
		e.Publish([]byte{b, b, b, b, b, b, b, b}, 2, 1, 4)
	}
	close(stop)
	wg.Wait()
}

func TestExchangeViewZeroCopy(t *testing.T) {
	e := NewExchange(4)
	e.Publish([]byte{9, 9, 9, 9}, 2, 1, 2)
	data, w, h, stride, ok := e.View()
	if !ok || w != 2 || h != 1 || stride != 2 {
		t.Fatalf("View() = %v,%d,%d,%d,%v", data, w, h, stride, ok)
	}
	if len(data) != 4 {
		t.Fatalf("View() data len = %d, want 4", len(data))
	}
}
