package core

import (
	"reflect"
	"testing"

	"chimebot/internal/kit"
)

func msgWithText(s string) *kit.Message { return &kit.Message{Text: s} }

func TestTokenizeCommandLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/remind me in 20 minutes", []string{"/remind", "me", "in", "20", "minutes"}},
		{`/remind "buy milk" tomorrow`, []string{"/remind", "buy milk", "tomorrow"}},
		{"/remind 'walk the dog' at 6pm", []string{"/remind", "walk the dog", "at", "6pm"}},
		{`/cmd a\ b`, []string{"/cmd", "a b"}},
		{"  /tz   set   Pacific/Auckland  ", []string{"/tz", "set", "Pacific/Auckland"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := tokenizeCommandLine(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("tokenize(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	pos, flags, bools := parseFlags([]string{"a", "--k=v", "b", "--flag", "-x", "1", "-yz"})
	if !reflect.DeepEqual(pos, []string{"a", "b"}) {
		t.Fatalf("pos = %#v", pos)
	}
	if flags["k"] != "v" || flags["x"] != "1" {
		t.Fatalf("flags = %#v", flags)
	}
	if !bools["flag"] || !bools["y"] || !bools["z"] {
		t.Fatalf("bools = %#v", bools)
	}
}

func TestRequestText(t *testing.T) {
	t.Parallel()
	req := &Request{Path: []string{"remind", "cancel"}}
	req.Update.Message = msgWithText("/remind cancel  abc   def ")

	if got := req.Text(); got != "abc   def" {
		t.Fatalf("Text() = %q", got)
	}

	req2 := &Request{Path: []string{"remind"}}
	req2.Update.Message = msgWithText("/remind")
	if got := req2.Text(); got != "" {
		t.Fatalf("Text() on bare command = %q", got)
	}
}
