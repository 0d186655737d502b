//go:build windows

package inventory

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/windows/registry"
)

// wmicTimeout bounds the product query, which walks every MSI package and
// can take minutes on a loaded host.
const wmicTimeout = 30 * time.Second

var uninstallKeys = []struct {
	root registry.Key
	path string
}{
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
}

func platformSources() []Source {
	return []Source{
		SourceFunc{Label: SourceRegistry, Fn: listRegistry},
		SourceFunc{Label: SourceWMIC, Fn: listWMIC},
	}
}

func listRegistry(ctx context.Context) ([]SoftwareEntry, error) {
	var (
		entries []SoftwareEntry
		opened  int
		lastErr error
	)
	for _, u := range uninstallKeys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, err := readUninstallKey(u.root, u.path)
		if err != nil {
			lastErr = err
			continue
		}
		opened++
		entries = append(entries, list...)
	}
	if opened == 0 {
		return nil, fmt.Errorf("open uninstall keys: %w", lastErr)
	}
	return entries, nil
}

func readUninstallKey(root registry.Key, path string) ([]SoftwareEntry, error) {
	key, err := registry.OpenKey(root, path, registry.READ)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return nil, err
	}

	var entries []SoftwareEntry
	for _, name := range names {
		sub, err := registry.OpenKey(key, name, registry.READ)
		if err != nil {
			continue
		}
		if e, ok := readProduct(sub); ok {
			entries = append(entries, e)
		}
		sub.Close()
	}
	return entries, nil
}

func readProduct(key registry.Key) (SoftwareEntry, bool) {
	display, _, err := key.GetStringValue("DisplayName")
	if err != nil || strings.TrimSpace(display) == "" {
		return SoftwareEntry{}, false
	}
	e := SoftwareEntry{Name: strings.TrimSpace(display), Source: SourceRegistry}
	e.Version = stringValue(key, "DisplayVersion")
	e.Vendor = stringValue(key, "Publisher")
	if v := stringValue(key, "InstallDate"); v != nil {
		e.InstallDate = parseInstallDate(*v)
	}
	if info, err := key.Stat(); err == nil {
		e.UpdateDate = formatUpdateTime(info.ModTime())
	}
	return e, true
}

func stringValue(key registry.Key, name string) *string {
	v, _, err := key.GetStringValue(name)
	if err != nil {
		return nil
	}
	return optional(v)
}

func listWMIC(ctx context.Context) ([]SoftwareEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, wmicTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "wmic", "product", "get", "Name,Version,Vendor,InstallDate", "/format:csv").Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("wmic product query timed out after %s", wmicTimeout)
	}
	if err != nil {
		return nil, err
	}
	return parseWMICCSV(out)
}
