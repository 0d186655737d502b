package facts

import (
	"context"
	"encoding/json"
	"os/exec"
)

type spHardware struct {
	Items []struct {
		SerialNumber string `json:"serial_number"`
		BootROM      string `json:"boot_rom_version"`
	} `json:"SPHardwareDataType"`
}

func collectBIOS(ctx context.Context) BIOSInfo {
	info := BIOSInfo{Manufacturer: "Apple"}

	out, err := exec.CommandContext(ctx, "system_profiler", "SPHardwareDataType", "-json").Output()
	if err != nil {
		log.Warn("system_profiler failed", "error", err)
		return info
	}
	var data spHardware
	if err := json.Unmarshal(out, &data); err != nil || len(data.Items) == 0 {
		return info
	}
	info.SerialNumber = data.Items[0].SerialNumber
	info.Version = data.Items[0].BootROM
	return info
}
