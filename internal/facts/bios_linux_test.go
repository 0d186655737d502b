package facts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCollectBIOSFromDMI(t *testing.T) {
	dir := t.TempDir()
	for name, value := range map[string]string{
		"board_serial": "BRD-77\n",
		"bios_version": "1.14.2\n",
		"bios_vendor":  "Dell Inc.\n",
		"bios_date":    "03/14/2024\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	prev := dmiRoot
	dmiRoot = dir
	t.Cleanup(func() { dmiRoot = prev })

	got := collectBIOS(context.Background())
	want := BIOSInfo{SerialNumber: "BRD-77", Version: "1.14.2", Manufacturer: "Dell Inc.", ReleaseDate: "03/14/2024"}
	if got != want {
		t.Fatalf("collectBIOS() = %+v, want %+v", got, want)
	}
}
