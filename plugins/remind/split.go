package remind

import "strings"

// splitCandidates proposes (when, message) pairs from free text.
//
// Two request shapes are supported:
//
//	/remind "buy milk" tomorrow at 6pm        — quoted message, rest is the time
//	/remind me in 20 minutes to buy milk      — "<when> to <message>"
//
// For the second shape every " to " occurrence yields a candidate, leftmost
// first, because the time parser decides which split actually works
// ("remind me at 6pm to talk to sam" must not split inside the message).
func splitCandidates(text string) [][2]string {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "me ")
	t = strings.TrimSpace(t)
	if t == "" {
		return nil
	}

	if len(t) > 1 && (t[0] == '"' || t[0] == '\'') {
		if i := strings.IndexByte(t[1:], t[0]); i >= 0 {
			msg := strings.TrimSpace(t[1 : 1+i])
			when := strings.TrimSpace(t[i+2:])
			if msg == "" || when == "" {
				return nil
			}
			return [][2]string{{when, msg}}
		}
	}

	var out [][2]string
	idx := 0
	for {
		i := strings.Index(t[idx:], " to ")
		if i < 0 {
			break
		}
		i += idx
		when := strings.TrimSpace(t[:i])
		msg := strings.TrimSpace(t[i+len(" to "):])
		if when != "" && msg != "" {
			out = append(out, [2]string{when, msg})
		}
		idx = i + len(" to ")
	}
	return out
}
