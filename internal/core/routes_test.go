package core

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func nopHandler(context.Context, *Request) error { return nil }

func testRoutes(t *testing.T) *routeSet {
	t.Helper()
	rs := newRouteSet()
	for _, route := range []string{"remind", "remind list", "remind cancel", "timezone", "roll"} {
		rs.put(routeWords(route), Command{Route: route, Description: "about " + route, Handle: nopHandler})
	}
	return rs
}

func TestRouteSetLookup(t *testing.T) {
	t.Parallel()
	rs := testRoutes(t)

	cases := []struct {
		path []string
		want string // "" means no match
	}{
		{[]string{"remind"}, "remind"},
		{[]string{"remind", "list"}, "remind list"},
		{[]string{"remind", "cancel"}, "remind cancel"},
		{[]string{"timezone"}, "timezone"},
		{[]string{"remind", "nope"}, ""},
		{[]string{"unknown"}, ""},
		{[]string{"unknown", "list"}, ""},
	}
	for _, tc := range cases {
		got := rs.lookup(tc.path)
		switch {
		case tc.want == "" && got != nil:
			t.Errorf("lookup(%v) = %q, want no match", tc.path, got.Route)
		case tc.want != "" && (got == nil || got.Route != tc.want):
			t.Errorf("lookup(%v) = %+v, want route %q", tc.path, got, tc.want)
		}
	}

	if got := rs.words(); !reflect.DeepEqual(got, []string{"remind", "roll", "timezone"}) {
		t.Fatalf("words() = %v", got)
	}
	e, ok := rs.entry("remind")
	if !ok {
		t.Fatal("entry(remind) missing")
	}
	if got := e.subWords(); !reflect.DeepEqual(got, []string{"cancel", "list"}) {
		t.Fatalf("subWords() = %v", got)
	}
}

func TestHelpForAliasAndContainers(t *testing.T) {
	t.Parallel()
	rs := newRouteSet()
	rs.put(routeWords("remind list"), Command{Route: "remind list", Description: "list reminders", Handle: nopHandler})
	rs.put(routeWords("remind cancel"), Command{Route: "remind cancel", Description: "cancel one", Handle: nopHandler})
	rs.put(routeWords("roll"), Command{
		Route: "roll", Description: "roll dice", Usage: "/roll NdM",
		Aliases: []string{"dice"}, Handle: nopHandler,
	})
	alias := map[string]*Command{"dice": rs.lookup([]string{"roll"})}

	// A bare container word lists its subcommands.
	got := helpFor(rs, alias, []string{"remind"})
	for _, want := range []string{"/remind list", "/remind cancel", "list reminders"} {
		if !strings.Contains(got, want) {
			t.Fatalf("container help = %q, missing %q", got, want)
		}
	}

	// An alias resolves to its canonical command's detail.
	got = helpFor(rs, alias, []string{"dice"})
	for _, want := range []string{"roll dice", "/roll NdM", "/dice"} {
		if !strings.Contains(got, want) {
			t.Fatalf("alias help = %q, missing %q", got, want)
		}
	}

	if got := helpFor(rs, alias, []string{"nope"}); !strings.Contains(got, "not found") {
		t.Fatalf("unknown help = %q", got)
	}
}
