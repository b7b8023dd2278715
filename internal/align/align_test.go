package align

import "testing"

func TestUp(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0},
		{1, 16},
		{16, 16},
		{17, 32},
		{640, 640},
		{641, 656},
		{480, 480},
	}
	for _, c := range cases {
		if got := Up(c.in); got != c.want {
			t.Errorf("Up(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestUpNeverRoundsDown(t *testing.T) {
	for n := 1; n < 200; n++ {
		got := Up(n)
		if got < n {
			t.Fatalf("Up(%d) = %d rounded down", n, got)
		}
		if got%Boundary != 0 {
			t.Fatalf("Up(%d) = %d not aligned to %d", n, got, Boundary)
		}
	}
}
