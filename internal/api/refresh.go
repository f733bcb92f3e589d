package api

import (
	"fmt"
	"time"
)

const never = "Never"

// FormatTimestamp renders t as dd/mm/yyyy, hh:mm with its zone.
func FormatTimestamp(t time.Time) string {
	return t.Format("02/01/2006, 15:04 MST")
}

// RelativeTime describes how long before now t happened. Anything a week
// old or more falls back to FormatTimestamp.
func RelativeTime(t, now time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d hours ago", hours)
	}

	days := hours / 24
	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return FormatTimestamp(t)
	}
}
