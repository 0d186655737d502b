package inventory

import (
	"sort"
	"strings"
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/facts"
)

// Source identifiers carried on every entry.
const (
	SourceRegistry = "registry"
	SourceWMIC     = "wmic"
	SourceDpkg     = "dpkg"
	SourceRPM      = "rpm"
)

// SoftwareEntry is one installed product. Optional attributes are nil when
// the source did not report them.
type SoftwareEntry struct {
	Name        string  `json:"name" yaml:"name"`
	Version     *string `json:"version" yaml:"version"`
	Vendor      *string `json:"vendor" yaml:"vendor"`
	InstallDate *string `json:"install_date" yaml:"install_date"`
	UpdateDate  *string `json:"update_date" yaml:"update_date"`
	Source      string  `json:"source" yaml:"source"`
}

// Report is a complete scan result. It is never modified after NewReport
// returns; a new scan produces a new Report.
type Report struct {
	Facts         *facts.Bundle   `json:"system_info" yaml:"system_info"`
	ScanTimestamp time.Time       `json:"scan_timestamp" yaml:"scan_timestamp"`
	SoftwareCount int             `json:"software_count" yaml:"software_count"`
	SoftwareList  []SoftwareEntry `json:"software_list" yaml:"software_list"`
}

// NewReport builds a Report from entries, which are deduplicated and
// sorted by Merge.
func NewReport(f *facts.Bundle, scannedAt time.Time, entries []SoftwareEntry) *Report {
	list := Merge(entries)
	return &Report{
		Facts:         f,
		ScanTimestamp: scannedAt,
		SoftwareCount: len(list),
		SoftwareList:  list,
	}
}

// Merge concatenates lists in priority order, keeps the first entry seen
// for each case-insensitive name, drops entries without a name and sorts
// the result by lower-cased name.
func Merge(lists ...[]SoftwareEntry) []SoftwareEntry {
	seen := make(map[string]bool)
	out := make([]SoftwareEntry, 0)
	for _, list := range lists {
		for _, e := range list {
			e.Name = strings.TrimSpace(e.Name)
			if e.Name == "" {
				continue
			}
			key := strings.ToLower(e.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Names lists software names in report order.
func (r *Report) Names() []string {
	names := make([]string, len(r.SoftwareList))
	for i, e := range r.SoftwareList {
		names[i] = e.Name
	}
	return names
}

// Find returns the entries whose name contains pattern, ignoring case. The
// result is a fresh slice; an empty pattern matches everything.
func (r *Report) Find(pattern string) []SoftwareEntry {
	needle := strings.ToLower(pattern)
	out := make([]SoftwareEntry, 0)
	for _, e := range r.SoftwareList {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}
