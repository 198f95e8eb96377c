package utils

import (
	"math"
	"testing"
)

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestWindow(t *testing.T) {
	cases := []struct {
		name                        string
		total, page, size           int
		start, end, pages, wantPage int
	}{
		{"first page", 30, 1, 12, 0, 12, 3, 1},
		{"last partial page", 30, 3, 12, 24, 30, 3, 3},
		{"past the end", 30, 9, 12, 30, 30, 3, 9},
		{"page below one", 5, 0, 12, 0, 5, 1, 1},
		{"empty", 0, 1, 12, 0, 0, 0, 1},
		{"bad size", 3, 2, 0, 1, 2, 3, 2},
		{"max int page", 30, math.MaxInt, 12, 30, 30, 3, math.MaxInt},
		{"max int page, empty", 0, math.MaxInt, 12, 0, 0, 0, math.MaxInt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, e, p, pg := Window(tc.total, tc.page, tc.size)
			if s != tc.start || e != tc.end || p != tc.pages || pg != tc.wantPage {
				t.Fatalf("Window(%d,%d,%d) = %d,%d,%d,%d", tc.total, tc.page, tc.size, s, e, p, pg)
			}
		})
	}
}
