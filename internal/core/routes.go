package core

import (
	"sort"
	"strings"
)

// routeEntry is one top-level command word. It may carry its own handler
// ("remind") and a flat set of single-word subcommands ("remind list",
// "remind cancel"). Deeper nesting is not supported: every route in this bot
// is one or two words, and the router only ever consumes one subcommand
// token.
type routeEntry struct {
	word string
	cmd  *Command
	subs map[string]*Command
}

// subWords returns the entry's subcommand words sorted for stable output.
func (e *routeEntry) subWords() []string {
	out := make([]string, 0, len(e.subs))
	for w := range e.subs {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// routeSet is the command registry index rebuilt on every SetRegistry.
type routeSet struct {
	entries map[string]*routeEntry
}

func newRouteSet() *routeSet {
	return &routeSet{entries: map[string]*routeEntry{}}
}

func routeWords(route string) []string {
	return strings.Fields(route)
}

// put indexes a command under its one- or two-word route. Extra words beyond
// the second are ignored rather than rejected; registration happens at
// startup and a silent deep route is easier to spot in /help than a panic.
func (rs *routeSet) put(words []string, c Command) {
	if len(words) == 0 {
		return
	}
	e, ok := rs.entries[words[0]]
	if !ok {
		e = &routeEntry{word: words[0], subs: map[string]*Command{}}
		rs.entries[words[0]] = e
	}
	if len(words) == 1 {
		e.cmd = &c
		return
	}
	e.subs[words[1]] = &c
}

// lookup resolves an exact one- or two-word path to its command.
func (rs *routeSet) lookup(words []string) *Command {
	e, ok := rs.entries[words[0]]
	if !ok {
		return nil
	}
	if len(words) == 1 {
		return e.cmd
	}
	return e.subs[words[1]]
}

func (rs *routeSet) entry(word string) (*routeEntry, bool) {
	e, ok := rs.entries[word]
	return e, ok
}

// words returns the top-level command words sorted for stable output.
func (rs *routeSet) words() []string {
	out := make([]string, 0, len(rs.entries))
	for w := range rs.entries {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
