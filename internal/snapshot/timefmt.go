package snapshot

import (
	"fmt"
	"time"
)

// RelativeTime renders the age of t at now as "just now", "Nm ago",
// "Nh ago" or "Nd ago". Zero times render as "".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	elapsed := now.Sub(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}
