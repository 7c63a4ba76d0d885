package reminder

import (
	"fmt"
	"strings"
	"time"
)

const dueLayout = "Mon 2 Jan 2006 at 3:04 PM"

// DeliveryText is the message an owner receives when a reminder fires.
func DeliveryText(e Entry) string {
	return "⏰ Reminder: " + e.Message
}

// ShortID is the prefix owners use to refer to a reminder in commands.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LocalDue renders the due instant in the entry's own zone.
func LocalDue(e Entry) string {
	loc, err := time.LoadLocation(e.Zone)
	if err != nil {
		loc = time.UTC
	}
	return e.DueAt.In(loc).Format(dueLayout)
}

// FormatList renders an owner's pending reminders as a numbered list.
func FormatList(entries []Entry) string {
	if len(entries) == 0 {
		return "You have no pending reminders."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d pending reminder(s):\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s — %s [%s]\n", i+1, e.Message, LocalDue(e), ShortID(e.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}
