package render

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
)

func formatBytes(n uint64) string {
	return datasize.ByteSize(n).HumanReadable()
}

// formatRate prints a per-second byte rate
func formatRate(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return formatBytes(uint64(bytesPerSec)) + "/s"
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatAge prints a staleness duration at a readable precision
func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Truncate(time.Millisecond).String()
	case d < time.Minute:
		return d.Truncate(100 * time.Millisecond).String()
	default:
		return d.Truncate(time.Second).String()
	}
}

func optString(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func optUint(u *uint) string {
	if u == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *u)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func upDown(up bool) string {
	if up {
		return "Up"
	}
	return "Down"
}
