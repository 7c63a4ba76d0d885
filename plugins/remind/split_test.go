package remind

import (
	"reflect"
	"testing"
)

func TestSplitCandidates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want [][2]string
	}{
		{
			"me in 20 minutes to stretch",
			[][2]string{{"in 20 minutes", "stretch"}},
		},
		{
			"tomorrow at 6pm to call mum",
			[][2]string{{"tomorrow at 6pm", "call mum"}},
		},
		{
			// multiple " to " tokens: every split is offered, leftmost first
			"me at 6pm to talk to sam",
			[][2]string{
				{"at 6pm", "talk to sam"},
				{"at 6pm to talk", "sam"},
			},
		},
		{
			`"buy milk" friday at 3pm`,
			[][2]string{{"friday at 3pm", "buy milk"}},
		},
		{
			"'walk the dog' in 2 hours",
			[][2]string{{"in 2 hours", "walk the dog"}},
		},
		{"", nil},
		{"me", nil},
		{"no time marker here", nil},
		{`"unterminated quote tomorrow`, nil},
		{`"msg"`, nil}, // quoted message with no time part
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := splitCandidates(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("splitCandidates(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}
