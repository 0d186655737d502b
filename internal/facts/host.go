package facts

import (
	"context"
	"math"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

const (
	lookupTimeout = 2 * time.Second
	// routeProbe is only used to pick the outbound interface; a UDP
	// "connect" sends no packets.
	routeProbe = "8.8.8.8:80"
)

// GatherHost reads facts from the running host. Every probe is best
// effort: a failing probe leaves its fields empty and is logged.
func GatherHost(ctx context.Context) *Bundle {
	b := &Bundle{CollectionTimestamp: time.Now().UTC()}
	b.System = gatherSystem(ctx)
	b.Hardware = gatherHardware(ctx)
	b.Network = gatherNetwork(ctx, b.System.Hostname)
	b.BIOS = collectBIOS(ctx)
	return b
}

func gatherSystem(ctx context.Context) SystemInfo {
	info := SystemInfo{
		Platform:     platformName(runtime.GOOS),
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
	}

	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Warn("host info unavailable", "error", err)
	} else {
		info.Hostname = hi.Hostname
		info.PlatformRelease = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
		info.PlatformVersion = hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
		if hi.KernelArch != "" {
			info.Architecture = hi.KernelArch
		}
	}
	if info.Hostname == "" {
		info.Hostname, _ = os.Hostname()
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.Processor = cpus[0].ModelName
	}
	return info
}

func platformName(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "darwin":
		return "Darwin"
	case "linux":
		return "Linux"
	default:
		return goos
	}
}

func gatherHardware(ctx context.Context) HardwareInfo {
	hw := HardwareInfo{CPU: CPUInfo{Architecture: runtime.GOARCH}}

	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		log.Warn("cpu info unavailable", "error", err)
	} else if len(cpus) > 0 {
		hw.CPU.Name = cpus[0].ModelName
		hw.CPU.MHz = cpus[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		hw.CPU.PhysicalCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		hw.CPU.LogicalCores = n
	}
	if hw.CPU.LogicalCores == 0 {
		hw.CPU.LogicalCores = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Warn("memory info unavailable", "error", err)
	} else {
		hw.Memory = MemoryInfo{TotalBytes: vm.Total, TotalGB: toGB(vm.Total)}
	}

	hw.Disks = gatherDisks(ctx)
	return hw
}

func gatherDisks(ctx context.Context) []DiskInfo {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		log.Warn("disk partitions unavailable", "error", err)
		return nil
	}

	seen := make(map[string]bool)
	disks := make([]DiskInfo, 0, len(parts))
	for _, p := range parts {
		if seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true

		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		disks = append(disks, DiskInfo{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			SizeBytes:  usage.Total,
			FreeBytes:  usage.Free,
			SizeGB:     toGB(usage.Total),
			FreeGB:     toGB(usage.Free),
		})
	}
	sort.Slice(disks, func(i, j int) bool { return disks[i].Mountpoint < disks[j].Mountpoint })
	return disks
}

func gatherNetwork(ctx context.Context, hostname string) NetworkInfo {
	info := NetworkInfo{Hostname: hostname, FQDN: hostname}
	info.IPAddress = outboundIP(ctx)

	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		log.Warn("network interfaces unavailable", "error", err)
	}
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") {
			continue
		}
		ii := InterfaceInfo{
			Name:       iface.Name,
			MACAddress: strings.ToUpper(iface.HardwareAddr),
			MTU:        iface.MTU,
			Flags:      iface.Flags,
		}
		for _, a := range iface.Addrs {
			ii.Addresses = append(ii.Addresses, a.Addr)
			if info.IPAddress != "" && addrIP(a.Addr) == info.IPAddress && ii.MACAddress != "" {
				info.MACAddress = ii.MACAddress
			}
		}
		info.Interfaces = append(info.Interfaces, ii)
	}
	if info.MACAddress == "" {
		for _, ii := range info.Interfaces {
			if ii.MACAddress != "" && hasFlag(ii.Flags, "up") {
				info.MACAddress = ii.MACAddress
				break
			}
		}
	}

	if info.IPAddress != "" {
		lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()
		if names, err := net.DefaultResolver.LookupAddr(lctx, info.IPAddress); err == nil && len(names) > 0 {
			info.FQDN = strings.TrimSuffix(names[0], ".")
		}
	}
	return info
}

// outboundIP returns the local address the kernel would use to reach the
// internet, or "" when there is no route.
func outboundIP(ctx context.Context) string {
	var d net.Dialer
	dctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	conn, err := d.DialContext(dctx, "udp4", routeProbe)
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

func addrIP(cidr string) string {
	if ip, _, err := net.ParseCIDR(cidr); err == nil {
		return ip.String()
	}
	return cidr
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func toGB(b uint64) float64 {
	return math.Round(float64(b)/(1<<30)*100) / 100
}
