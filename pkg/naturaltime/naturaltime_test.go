package naturaltime

import (
	"errors"
	"testing"
	"time"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := ResolveZone(name)
	if err != nil {
		t.Fatalf("ResolveZone(%q): %v", name, err)
	}
	return loc
}

func TestParseRelative(t *testing.T) {
	t.Parallel()
	loc := mustZone(t, "Pacific/Auckland")
	ref := time.Date(2024, 3, 13, 10, 0, 0, 0, loc) // a Wednesday morning

	cases := []struct {
		expr string
		want time.Duration
	}{
		{"in 20 minutes", 20 * time.Minute},
		{"in 5 min", 5 * time.Minute},
		{"in 2 hrs", 2 * time.Hour},
		{"in 1 h", time.Hour},
		{"5 minutes from now", 5 * time.Minute},
		{"in about 10 minutes", 10 * time.Minute},
		{"around 15 mins", 15 * time.Minute},
		{"twenty minutes", 20 * time.Minute},
		{"in three days", 3 * 24 * time.Hour},
		{"in 2 weeks", 2 * 7 * 24 * time.Hour},
		{"in 1 month", 30 * 24 * time.Hour},
		{"in 90 seconds", 90 * time.Second},
		{"a minute", time.Minute},
		{"in a few minutes", 3 * time.Minute},
		{"a second", time.Second},
		{"a few seconds", 5 * time.Second},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tc.expr, loc, ref)
			if !ok {
				t.Fatalf("Parse(%q) did not match", tc.expr)
			}
			if want := ref.Add(tc.want); !got.Equal(want) {
				t.Fatalf("Parse(%q) = %v, want %v", tc.expr, got, want)
			}
			if !got.After(ref) {
				t.Fatalf("Parse(%q) = %v is not after ref %v", tc.expr, got, ref)
			}
		})
	}
}

func TestParseCalendar(t *testing.T) {
	t.Parallel()
	loc := mustZone(t, "Pacific/Auckland")
	morning := time.Date(2024, 3, 13, 10, 0, 0, 0, loc)   // Wednesday 10:00
	afternoon := time.Date(2024, 3, 13, 15, 0, 0, 0, loc) // Wednesday 15:00
	evening := time.Date(2024, 3, 13, 19, 0, 0, 0, loc)   // Wednesday 19:00

	day := func(d, h, m int) time.Time {
		return time.Date(2024, 3, d, h, m, 0, 0, loc)
	}

	cases := []struct {
		expr string
		ref  time.Time
		want time.Time
	}{
		{"tomorrow", morning, day(14, 9, 0)},
		{"tomorrow at 6pm", morning, day(14, 18, 0)},
		{"tomorrow at 8:15 am", morning, day(14, 8, 15)},
		{"noon", morning, day(13, 12, 0)},
		{"noon", afternoon, day(14, 12, 0)},
		{"midday", morning, day(13, 12, 0)},
		{"midnight", morning, day(14, 0, 0)},
		{"tonight", morning, day(13, 20, 0)},
		{"tonight at 11pm", morning, day(13, 23, 0)},
		{"9pm tonight", morning, day(13, 21, 0)},
		{"today at 4pm", morning, day(13, 16, 0)},
		{"today", morning, day(13, 17, 0)},
		{"today", evening, day(14, 17, 0)}, // default slot already past
		{"6pm", morning, day(13, 18, 0)},
		{"9am", morning, day(14, 9, 0)}, // past clock time rolls forward
		{"15:30", morning, day(13, 15, 30)},
		{"6:30", morning, day(14, 6, 30)},
		{"friday", morning, day(15, 9, 0)},
		{"friday at 3pm", morning, day(15, 15, 0)},
		{"on saturday at 10:30 am", morning, day(16, 10, 30)},
		{"next wednesday", morning, day(20, 9, 0)},
		{"wednesday", afternoon, day(20, 9, 0)},        // same day, said after noon
		{"wednesday at 3pm", morning, day(13, 15, 0)},  // same day, said before noon
		{"wednesday at 11am", morning, day(13, 11, 0)}, // same day, said before noon
		{"wednesday at 3pm", afternoon, day(20, 15, 0)},
		{"next wednesday at 3pm", morning, day(20, 15, 0)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.expr+"/"+tc.ref.Format("15:04"), func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tc.expr, loc, tc.ref)
			if !ok {
				t.Fatalf("Parse(%q) did not match", tc.expr)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParseNoMatch(t *testing.T) {
	t.Parallel()
	loc := mustZone(t, "UTC")
	ref := time.Date(2024, 3, 13, 10, 0, 0, 0, loc)

	for _, expr := range []string{
		"",
		"   ",
		"whenever",
		"in soon",
		"in 0 minutes",
		"in -5 minutes",
		"in 5 fortnights",
	} {
		expr := expr
		t.Run("q="+expr, func(t *testing.T) {
			t.Parallel()
			if got, ok := Parse(expr, loc, ref); ok {
				t.Fatalf("Parse(%q) unexpectedly matched: %v", expr, got)
			}
		})
	}
}

func TestParseNormalization(t *testing.T) {
	t.Parallel()
	loc := mustZone(t, "UTC")
	ref := time.Date(2024, 3, 13, 10, 0, 0, 0, loc)

	a, ok := Parse("IN   20   Minutes", loc, ref)
	if !ok {
		t.Fatalf("mixed-case expression did not match")
	}
	b, _ := Parse("in 20 minutes", loc, ref)
	if !a.Equal(b) {
		t.Fatalf("normalization mismatch: %v vs %v", a, b)
	}
}

func TestResolveZone(t *testing.T) {
	t.Parallel()

	if _, err := ResolveZone("Pacific/Auckland"); err != nil {
		t.Fatalf("valid zone rejected: %v", err)
	}
	for _, name := range []string{"", "Mars/Olympus", "not a zone"} {
		if _, err := ResolveZone(name); !errors.Is(err, ErrUnknownZone) {
			t.Fatalf("ResolveZone(%q) = %v, want ErrUnknownZone", name, err)
		}
	}
}

func TestParseIn(t *testing.T) {
	t.Parallel()
	ref := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

	if _, _, err := ParseIn("in 5 minutes", "Nowhere/Town", ref); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("bad zone: got %v, want ErrUnknownZone", err)
	}
	got, ok, err := ParseIn("in 5 minutes", "UTC", ref)
	if err != nil || !ok {
		t.Fatalf("ParseIn: ok=%v err=%v", ok, err)
	}
	if want := ref.Add(5 * time.Minute); !got.Equal(want) {
		t.Fatalf("ParseIn = %v, want %v", got, want)
	}
	if _, ok, err := ParseIn("gibberish", "UTC", ref); err != nil || ok {
		t.Fatalf("no-match: ok=%v err=%v", ok, err)
	}
}
