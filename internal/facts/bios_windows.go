//go:build windows

package facts

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/windows/registry"
)

const wmicTimeout = 15 * time.Second

// biosKey mirrors the SMBIOS fields the firmware exposes to Windows.
const biosKey = `HARDWARE\DESCRIPTION\System\BIOS`

func collectBIOS(ctx context.Context) BIOSInfo {
	var info BIOSInfo

	k, err := registry.OpenKey(registry.LOCAL_MACHINE, biosKey, registry.QUERY_VALUE)
	if err == nil {
		info.Version, _, _ = k.GetStringValue("BIOSVersion")
		info.Manufacturer, _, _ = k.GetStringValue("BIOSVendor")
		info.ReleaseDate, _, _ = k.GetStringValue("BIOSReleaseDate")
		k.Close()
	} else {
		log.Warn("bios registry key unavailable", "error", err)
	}

	// The serial number is not mirrored into the registry.
	info.SerialNumber = wmicGet(ctx, []string{"bios"}, "SerialNumber")
	if info.Version == "" {
		info.Version = wmicGet(ctx, []string{"bios"}, "SMBIOSBIOSVersion")
	}
	if info.Manufacturer == "" {
		info.Manufacturer = wmicGet(ctx, []string{"bios"}, "Manufacturer")
	}
	return info
}

// wmicGet runs a wmic /format:list query and returns one property.
func wmicGet(ctx context.Context, args []string, property string) string {
	ctx, cancel := context.WithTimeout(ctx, wmicTimeout)
	defer cancel()

	cmdArgs := append(append([]string(nil), args...), "get", property, "/format:list")
	out, err := exec.CommandContext(ctx, "wmic", cmdArgs...).Output()
	if err != nil {
		log.Warn("wmic query failed", "query", strings.Join(args, " "), "error", err)
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, property+"="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
