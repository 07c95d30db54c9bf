package main

import "testing"

func TestClampTop(t *testing.T) {
	cases := []struct {
		top, n, want int
	}{
		{10, 25, 10},
		{10, 4, 4},
		{0, 25, 0},
		{-5, 25, 0},
		{-1, 0, 0},
	}
	for _, c := range cases {
		if got := clampTop(c.top, c.n); got != c.want {
			t.Fatalf("clampTop(%d, %d)=%d want %d", c.top, c.n, got, c.want)
		}
	}
}
