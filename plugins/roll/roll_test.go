package roll

import (
	"math/rand"
	"testing"
)

func TestParseSpec(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    spec
		wantErr bool
	}{
		{"1d6", spec{count: 1, sides: 6}, false},
		{"d20", spec{count: 1, sides: 20}, false},
		{"2d6+1", spec{count: 2, sides: 6, modifier: 1}, false},
		{"3d8-2", spec{count: 3, sides: 8, modifier: -2}, false},
		{" 2D10 ", spec{count: 2, sides: 10}, false},
		{"0d6", spec{}, true},
		{"2d1", spec{}, true},
		{"2d", spec{}, true},
		{"banana", spec{}, true},
		{"101d6", spec{}, true},
		{"1d1001", spec{}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseSpec(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseSpec(%q) succeeded, want error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSpec(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("parseSpec(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestRollBounds(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	s := spec{count: 4, sides: 6, modifier: 2}

	for i := 0; i < 200; i++ {
		total, rolls := s.roll(rng)
		if len(rolls) != 4 {
			t.Fatalf("got %d rolls, want 4", len(rolls))
		}
		sum := s.modifier
		for _, r := range rolls {
			if r < 1 || r > 6 {
				t.Fatalf("die outside 1..6: %d", r)
			}
			sum += r
		}
		if total != sum {
			t.Fatalf("total %d does not match rolls %v + %d", total, rolls, s.modifier)
		}
	}
}
