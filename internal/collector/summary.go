package collector

import (
	"log/slog"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

const previewItems = 5

// logReport writes one structured line per accepted report. Absent fields
// are logged as "Unknown".
func logReport(d *api.AgentData, requestID string, seq int64) {
	attrs := []any{
		logging.KeyRequestID, requestID,
		"seq", seq,
		"hostname", orUnknown(d.Hostname()),
		"scanTimestamp", orUnknown(d.ScanTimestamp),
		"softwareCount", softwareCount(d),
	}

	if si := d.SystemInfo; si != nil {
		attrs = append(attrs,
			slog.Group("system",
				"platform", orUnknown(si.System.Platform),
				"release", si.System.PlatformRelease,
				"architecture", orUnknown(si.System.Architecture),
			),
			slog.Group("hardware",
				"cpu", orUnknown(si.Hardware.CPU.Name),
				"memoryGB", si.Hardware.Memory.TotalGB,
			),
			slog.Group("network",
				"ip", orUnknown(si.Network.IPAddress),
				"mac", orUnknown(si.Network.MACAddress),
			),
			"biosSerial", orUnknown(si.BIOS.SerialNumber),
		)
	}

	if len(d.SoftwareList) > 0 {
		attrs = append(attrs, "firstItems", preview(d.SoftwareList))
	}
	log.Info("received agent data", attrs...)
}

func softwareCount(d *api.AgentData) int {
	if d.SoftwareCount != nil {
		return *d.SoftwareCount
	}
	return len(d.SoftwareList)
}

func preview(items []api.SoftwareItem) []string {
	n := min(len(items), previewItems)
	out := make([]string, 0, n)
	for _, it := range items[:n] {
		version := "Unknown"
		if it.Version != nil {
			version = *it.Version
		}
		out = append(out, orUnknown(it.Name)+" [v"+version+"]")
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
