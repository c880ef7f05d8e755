package pool

import "testing"

func TestParseParallelHint(t *testing.T) {
	cases := []struct {
		name string
		hint string
		def  int
		want int
	}{
		{"simple", "/*+ PARALLEL(8) */", 4, 8},
		{"lowercase", "/*+ parallel(16) */", 4, 16},
		{"spaced", "/*+ PARALLEL ( 12 ) */", 4, 12},
		{"with other components", "/*+ PARALLEL(6) FULL(A) */", 4, 6},
		{"empty falls back", "", 4, 4},
		{"no parallel component", "/*+ FULL(A) INDEX(B) */", 4, 4},
		{"zero degree falls back", "/*+ PARALLEL(0) */", 4, 4},
		{"garbage falls back", "run it fast please", 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseParallelHint(tc.hint, tc.def); got != tc.want {
				t.Fatalf("ParseParallelHint(%q, %d) = %d, want %d", tc.hint, tc.def, got, tc.want)
			}
		})
	}
}

func TestBuildParallelHint(t *testing.T) {
	if got := BuildParallelHint(8, false); got != "/*+ PARALLEL(8) */" {
		t.Fatalf("got %q", got)
	}
	if got := BuildParallelHint(8, true); got != "/*+ PARALLEL(8) FULL(A) */" {
		t.Fatalf("got %q", got)
	}
}

func TestAdjustParallelHint(t *testing.T) {
	cases := []struct {
		name     string
		original string
		parallel int
		want     string
	}{
		{"replaces degree", "/*+ PARALLEL(16) */", 4, "/*+ PARALLEL(4) */"},
		{"keeps other components", "/*+ PARALLEL(16) FULL(A) INDEX(B) */", 4, "/*+ PARALLEL(4) FULL(A) INDEX(B) */"},
		{"normalizes casing and spacing", "/*+ parallel ( 16 ) */", 4, "/*+ PARALLEL(4) */"},
		{"empty builds fresh hint", "", 4, "/*+ PARALLEL(4) FULL(A) */"},
		{"no parallel component builds fresh hint", "/*+ FULL(A) */", 4, "/*+ PARALLEL(4) FULL(A) */"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AdjustParallelHint(tc.original, tc.parallel); got != tc.want {
				t.Fatalf("AdjustParallelHint(%q, %d) = %q, want %q", tc.original, tc.parallel, got, tc.want)
			}
		})
	}
}
