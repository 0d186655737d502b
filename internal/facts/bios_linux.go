package facts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

var dmiRoot = "/sys/class/dmi/id"

// readDMI reads a value from the sysfs DMI table. product_serial is usually
// root-only, in which case it comes back empty.
func readDMI(name string) string {
	data, err := os.ReadFile(filepath.Join(dmiRoot, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func collectBIOS(_ context.Context) BIOSInfo {
	serial := readDMI("product_serial")
	if serial == "" {
		serial = readDMI("board_serial")
	}
	return BIOSInfo{
		SerialNumber: serial,
		Version:      readDMI("bios_version"),
		Manufacturer: readDMI("bios_vendor"),
		ReleaseDate:  readDMI("bios_date"),
	}
}
