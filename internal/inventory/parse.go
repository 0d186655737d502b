package inventory

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

// dpkgFormat is the dpkg-query -f template parseDpkg understands.
const dpkgFormat = "${binary:Package}\t${Version}\t${Maintainer}\t${db:Status-Abbrev}\n"

// parseDpkg reads dpkg-query output. Only fully installed packages ("ii")
// are kept; the maintainer e-mail is stripped from the vendor.
func parseDpkg(out []byte) ([]SoftwareEntry, error) {
	var entries []SoftwareEntry
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "\t")
		if len(parts) < 2 {
			continue
		}
		if len(parts) > 3 && !strings.HasPrefix(strings.TrimSpace(parts[3]), "ii") {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		e := SoftwareEntry{Name: name, Version: optional(parts[1]), Source: SourceDpkg}
		if len(parts) > 2 {
			vendor := parts[2]
			if i := strings.Index(vendor, "<"); i >= 0 {
				vendor = vendor[:i]
			}
			e.Vendor = optional(vendor)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// rpmFormat is the rpm --queryformat template parseRPM understands.
const rpmFormat = "%{NAME}\t%{VERSION}-%{RELEASE}\t%{VENDOR}\t%{INSTALLTIME}\n"

// parseRPM reads rpm -qa output. INSTALLTIME is a unix timestamp.
func parseRPM(out []byte) ([]SoftwareEntry, error) {
	var entries []SoftwareEntry
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "\t")
		name := strings.TrimSpace(parts[0])
		if name == "" || name == "gpg-pubkey" {
			continue
		}
		e := SoftwareEntry{Name: name, Source: SourceRPM}
		if len(parts) > 1 {
			e.Version = optional(parts[1])
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "(none)" {
			e.Vendor = optional(parts[2])
		}
		if len(parts) > 3 {
			if ts, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64); err == nil && ts > 0 {
				d := time.Unix(ts, 0).UTC().Format("2006-01-02")
				e.InstallDate = &d
			}
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// parseWMICCSV reads `wmic product get ... /format:csv`. wmic pads the
// output with blank lines and CRs, and orders columns alphabetically after
// Node, so columns are located by header.
func parseWMICCSV(out []byte) ([]SoftwareEntry, error) {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var entries []SoftwareEntry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return entries, err
		}
		name := strings.TrimSpace(field(rec, "name"))
		if name == "" {
			continue
		}
		entries = append(entries, SoftwareEntry{
			Name:        name,
			Version:     optional(field(rec, "version")),
			Vendor:      optional(field(rec, "vendor")),
			InstallDate: parseWMICDate(field(rec, "installdate")),
			Source:      SourceWMIC,
		})
	}
	return entries, nil
}
