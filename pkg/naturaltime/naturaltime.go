package naturaltime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownZone is returned by ResolveZone for names the tz database does
// not know. It is a configuration problem, distinct from a parse no-match.
var ErrUnknownZone = errors.New("unknown time zone")

// ResolveZone validates an IANA zone name. It never falls back silently;
// callers that want a default zone must apply it before calling.
func ResolveZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	return loc, nil
}

// family is one self-contained expression pattern group. Families are tried
// in a fixed precedence order and the first match wins, so e.g. "tonight"
// never gets shadowed by the "today" contained inside it.
type family struct {
	name  string
	match func(s string, now time.Time) (time.Time, bool)
}

var families = []family{
	{"keyword", matchKeyword},
	{"tonight", matchTonight},
	{"today", matchToday},
	{"relative", matchRelative},
	{"tomorrow-at", matchTomorrowAt},
	{"weekday", matchWeekday},
	{"clock", matchClock},
}

// Parse maps an English time expression, interpreted in loc, to an absolute
// instant relative to ref. The second return is false when no family
// understood the expression; that is an expected outcome for free text, not
// an error.
func Parse(expr string, loc *time.Location, ref time.Time) (time.Time, bool) {
	s := normalize(expr)
	if s == "" {
		return time.Time{}, false
	}
	now := ref.In(loc)
	for _, f := range families {
		if t, ok := f.match(s, now); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseIn resolves zone and parses expr against it. A zone failure is
// reported as an error; an unparseable expression as (_, false, nil).
func ParseIn(expr, zone string, ref time.Time) (time.Time, bool, error) {
	loc, err := ResolveZone(zone)
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := Parse(expr, loc, ref)
	return t, ok, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// dayAt pins t's calendar day to the given wall-clock time.
func dayAt(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// ---- family 1: fixed keywords ----

func matchKeyword(s string, now time.Time) (time.Time, bool) {
	switch s {
	case "tomorrow":
		return dayAt(now.AddDate(0, 0, 1), 9, 0), true
	case "noon", "midday":
		if now.Hour() >= 12 {
			return dayAt(now.AddDate(0, 0, 1), 12, 0), true
		}
		return dayAt(now, 12, 0), true
	case "midnight":
		return dayAt(now.AddDate(0, 0, 1), 0, 0), true
	case "tonight":
		return dayAt(now, 20, 0), true
	}
	return time.Time{}, false
}

// ---- family 2: compound "tonight" ----

func matchTonight(s string, now time.Time) (time.Time, bool) {
	if !strings.Contains(s, "tonight") {
		return time.Time{}, false
	}
	if strings.Contains(s, "midnight") {
		return dayAt(now.AddDate(0, 0, 1), 0, 0), true
	}
	if part := extractTimePart(s, "tonight"); part != "" {
		if h, m, ok := clockTime(part); ok {
			return rollToFuture(dayAt(now, h, m), now), true
		}
	}
	// "tonight" with an unextractable time still means this evening.
	return dayAt(now, 20, 0), true
}

// ---- family 3: compound "today" ----

func matchToday(s string, now time.Time) (time.Time, bool) {
	if !strings.Contains(s, "today") {
		return time.Time{}, false
	}
	if part := extractTimePart(s, "today"); part != "" {
		if h, m, ok := clockTime(part); ok {
			return rollToFuture(dayAt(now, h, m), now), true
		}
	}
	return rollToFuture(dayAt(now, 17, 0), now), true
}

// extractTimePart pulls the clock-time clause out of "<time> <kw>",
// "<kw> at <time>" or "... at <time>" shapes.
func extractTimePart(s, kw string) string {
	if strings.HasSuffix(s, " "+kw) {
		return strings.TrimSpace(strings.TrimSuffix(s, " "+kw))
	}
	if rest, ok := strings.CutPrefix(s, kw+" at "); ok {
		return strings.TrimSpace(rest)
	}
	if i := strings.LastIndex(s, " at "); i >= 0 {
		return strings.TrimSpace(s[i+len(" at "):])
	}
	return ""
}

func rollToFuture(target, now time.Time) time.Time {
	if !target.After(now) {
		return target.AddDate(0, 0, 1)
	}
	return target
}

// ---- family 4: relative offsets ----

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60,
}

func matchRelative(s string, now time.Time) (time.Time, bool) {
	rest := strings.TrimPrefix(s, "in ")
	rest = strings.TrimSpace(strings.ReplaceAll(rest, "from now", ""))
	rest = strings.ReplaceAll(rest, "about ", "")
	rest = strings.TrimSpace(strings.ReplaceAll(rest, "around ", ""))

	switch rest {
	case "a minute", "1 minute", "one minute":
		return now.Add(time.Minute), true
	case "a few minutes", "few minutes":
		return now.Add(3 * time.Minute), true
	case "a second", "1 second", "one second":
		return now.Add(time.Second), true
	case "a few seconds", "few seconds":
		return now.Add(5 * time.Second), true
	}

	parts := strings.Fields(rest)
	if len(parts) < 2 {
		return time.Time{}, false
	}

	amount, ok := wordNumbers[parts[0]]
	if !ok {
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, false
		}
		amount = n
	}
	// Zero or negative offsets cannot produce a future instant.
	if amount < 1 {
		return time.Time{}, false
	}

	unit, ok := unitDuration(parts[1])
	if !ok {
		return time.Time{}, false
	}
	return now.Add(time.Duration(amount) * unit), true
}

// unitDuration maps a unit token (optional plural) onto its base duration.
// Months are approximated as exactly 30 days.
func unitDuration(u string) (time.Duration, bool) {
	if len(u) > 1 {
		u = strings.TrimSuffix(u, "s")
	}
	switch u {
	case "second", "sec", "s":
		return time.Second, true
	case "minute", "min", "m":
		return time.Minute, true
	case "hour", "hr", "h":
		return time.Hour, true
	case "day", "d":
		return 24 * time.Hour, true
	case "week", "w":
		return 7 * 24 * time.Hour, true
	case "month":
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// ---- family 5: "tomorrow at <time>" ----

func matchTomorrowAt(s string, now time.Time) (time.Time, bool) {
	if !strings.Contains(s, "tomorrow") {
		return time.Time{}, false
	}
	i := strings.LastIndex(s, " at ")
	if i < 0 {
		return time.Time{}, false
	}
	h, m, ok := clockTime(strings.TrimSpace(s[i+len(" at "):]))
	if !ok {
		return time.Time{}, false
	}
	return dayAt(now.AddDate(0, 0, 1), h, m), true
}

// ---- family 6: weekday names ----

var weekdays = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

func matchWeekday(s string, now time.Time) (time.Time, bool) {
	for _, wd := range weekdays {
		if !strings.Contains(s, wd.name) {
			continue
		}
		ahead := (int(wd.day) - int(now.Weekday()) + 7) % 7
		if ahead == 0 {
			// The named day is today: "next friday" always means a week out,
			// and a bare "friday" said in the afternoon does too.
			if strings.Contains(s, "next") || now.Hour() >= 12 {
				ahead = 7
			}
		}

		hour, minute := 9, 0
		if i := strings.LastIndex(s, " at "); i >= 0 {
			if h, m, ok := clockTime(strings.TrimSpace(s[i+len(" at "):])); ok {
				hour, minute = h, m
			}
		}
		return dayAt(now.AddDate(0, 0, ahead), hour, minute), true
	}
	return time.Time{}, false
}

// ---- family 7: standalone clock time ----

func matchClock(s string, now time.Time) (time.Time, bool) {
	h, m, ok := clockTime(s)
	if !ok {
		return time.Time{}, false
	}
	return rollToFuture(dayAt(now, h, m), now), true
}

// clockTime parses a bare clock-time clause like "6pm", "3:30 am" or
// "15:30". 12-hour layouts are tried before the 24-hour one.
var clockLayouts = []string{"3:04 PM", "3:04PM", "3 PM", "3PM", "15:04"}

func clockTime(s string) (hour, minute int, ok bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, 0, false
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}
