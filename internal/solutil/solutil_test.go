package solutil

import "testing"

func TestFormatSol(t *testing.T) {
	cases := []struct {
		lamports uint64
		want     string
	}{
		{0, "0"},
		{1_000_000_000, "1"},
		{1_500_000_000, "1.5"},
		{123, "0.000000123"},
		{2_030_000_000, "2.03"},
	}
	for _, c := range cases {
		if got := FormatSol(c.lamports); got != c.want {
			t.Fatalf("FormatSol(%d)=%q want %q", c.lamports, got, c.want)
		}
	}
}

func TestFormatOre(t *testing.T) {
	if got := FormatOre(100_000_000_000); got != "1" {
		t.Fatalf("FormatOre=%q want 1", got)
	}
	if got := FormatOre(250_000_000_000); got != "2.5" {
		t.Fatalf("FormatOre=%q want 2.5", got)
	}
}
