package colorconv

import "testing"

// solidFrame builds a uniform-color YUV frame (no subsampling effects to
// worry about) for straightforward arithmetic checks.
func solidFrame(format Format, w, h int, y, u, v byte) YUVFrame {
	data := make([]byte, w*h+h*(w+1)) // plenty for 4:2:0 and 4:2:2 both, odd widths included
	for i := 0; i < w*h; i++ {
		data[i] = y
	}
	chroma := data[w*h:]
	for i := 0; i+1 < len(chroma); i += 2 {
		chroma[i] = u
		chroma[i+1] = v
	}
	return YUVFrame{Data: data, Format: format, Width: w, Height: h, HorStride: w, VerStride: h}
}

func TestConvertGray(t *testing.T) {
	// Y=128, U=V=128 (neutral chroma) should produce a gray pixel with R=G=B=128.
	f := solidFrame(NV12, 4, 4, 128, 128, 128)
	dst := make([]byte, 4*4*4)
	if err := Convert(f, dst, 4*4); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for i := 0; i < 4*4; i++ {
		o := i * 4
		b, g, r, a := dst[o], dst[o+1], dst[o+2], dst[o+3]
		if b != 128 || g != 128 || r != 128 || a != 255 {
			t.Fatalf("pixel %d = (%d,%d,%d,%d), want (128,128,128,255)", i, b, g, r, a)
		}
	}
}

func TestConvertAlphaAlwaysOpaque(t *testing.T) {
	f := solidFrame(NV16, 9, 3, 60, 200, 10) // odd width: the last column reads the row's final U/V pair
	dst := make([]byte, 9*3*4)
	if err := Convert(f, dst, 9*4); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for i := 0; i < 9*3; i++ {
		if dst[i*4+3] != 255 {
			t.Fatalf("pixel %d alpha = %d, want 255", i, dst[i*4+3])
		}
	}
}

func TestConvertNV12VsNV21Swapped(t *testing.T) {
	w, h := 4, 4
	nv12 := solidFrame(NV12, w, h, 100, 90, 180) // U=90 V=180
	nv21 := solidFrame(NV21, w, h, 100, 180, 90) // stored swapped, same logical U/V
	dst12 := make([]byte, w*h*4)
	dst21 := make([]byte, w*h*4)
	if err := Convert(nv12, dst12, w*4); err != nil {
		t.Fatal(err)
	}
	if err := Convert(nv21, dst21, w*4); err != nil {
		t.Fatal(err)
	}
	for i := range dst12 {
		if dst12[i] != dst21[i] {
			t.Fatalf("byte %d differs: nv12=%d nv21=%d", i, dst12[i], dst21[i])
		}
	}
}

func TestConvertRejectsUndersizedDst(t *testing.T) {
	f := solidFrame(NV12, 4, 4, 0, 128, 128)
	dst := make([]byte, 4) // far too small
	if err := Convert(f, dst, 16); err == nil {
		t.Fatal("expected error for undersized dst")
	}
}

func TestFormatString(t *testing.T) {
	cases := map[Format]string{NV12: "NV12", NV21: "NV21", NV16: "NV16", NV61: "NV61"}
	for f, want := range cases {
		if got := f.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", f, got, want)
		}
	}
}
