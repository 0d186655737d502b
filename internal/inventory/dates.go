package inventory

import (
	"strings"
	"time"
)

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// parseInstallDate turns the registry's YYYYMMDD into YYYY-MM-DD. Other
// non-empty values are kept verbatim.
func parseInstallDate(s string) *string {
	s = strings.TrimSpace(s)
	if len(s) == 8 && isDigits(s) {
		return optional(s[:4] + "-" + s[4:6] + "-" + s[6:])
	}
	return optional(s)
}

// parseWMICDate keeps the date part of a CIM datetime
// (YYYYMMDDHHMMSS.ffffff+UUU). Values shorter than a date are dropped.
func parseWMICDate(s string) *string {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return nil
	}
	return optional(s[:4] + "-" + s[4:6] + "-" + s[6:8])
}

// formatUpdateTime renders a last-modified time the way update_date is
// reported.
func formatUpdateTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Local().Format("2006-01-02 15:04:05")
	return &s
}
