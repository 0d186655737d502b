// Package facts gathers hardware and operating system facts about the host.
// A Collector gathers them once and serves the same Bundle until refreshed.
package facts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var log = logging.L("facts")

type Bundle struct {
	System              SystemInfo   `json:"system" yaml:"system"`
	Hardware            HardwareInfo `json:"hardware" yaml:"hardware"`
	Network             NetworkInfo  `json:"network" yaml:"network"`
	BIOS                BIOSInfo     `json:"bios" yaml:"bios"`
	CollectionTimestamp time.Time    `json:"collection_timestamp" yaml:"collection_timestamp"`
}

type SystemInfo struct {
	Platform        string `json:"platform" yaml:"platform"`
	PlatformRelease string `json:"platform_release" yaml:"platform_release"`
	PlatformVersion string `json:"platform_version" yaml:"platform_version"`
	KernelVersion   string `json:"kernel_version,omitempty" yaml:"kernel_version,omitempty"`
	Architecture    string `json:"architecture" yaml:"architecture"`
	Hostname        string `json:"hostname" yaml:"hostname"`
	Processor       string `json:"processor" yaml:"processor"`
	GoVersion       string `json:"go_version" yaml:"go_version"`
}

type HardwareInfo struct {
	CPU    CPUInfo    `json:"cpu" yaml:"cpu"`
	Memory MemoryInfo `json:"memory" yaml:"memory"`
	Disks  []DiskInfo `json:"disks" yaml:"disks"`
}

type CPUInfo struct {
	Name          string  `json:"name" yaml:"name"`
	PhysicalCores int     `json:"physical_cores" yaml:"physical_cores"`
	LogicalCores  int     `json:"logical_cores" yaml:"logical_cores"`
	Architecture  string  `json:"architecture" yaml:"architecture"`
	MHz           float64 `json:"mhz,omitempty" yaml:"mhz,omitempty"`
}

type MemoryInfo struct {
	TotalBytes uint64  `json:"total_physical_memory_bytes" yaml:"total_physical_memory_bytes"`
	TotalGB    float64 `json:"total_physical_memory_gb" yaml:"total_physical_memory_gb"`
}

type DiskInfo struct {
	Device     string  `json:"device_id" yaml:"device_id"`
	Mountpoint string  `json:"mountpoint" yaml:"mountpoint"`
	Fstype     string  `json:"fstype" yaml:"fstype"`
	SizeBytes  uint64  `json:"size_bytes" yaml:"size_bytes"`
	FreeBytes  uint64  `json:"free_space_bytes" yaml:"free_space_bytes"`
	SizeGB     float64 `json:"size_gb" yaml:"size_gb"`
	FreeGB     float64 `json:"free_space_gb" yaml:"free_space_gb"`
}

type NetworkInfo struct {
	Hostname   string          `json:"hostname" yaml:"hostname"`
	FQDN       string          `json:"fqdn" yaml:"fqdn"`
	MACAddress string          `json:"mac_address" yaml:"mac_address"`
	IPAddress  string          `json:"ip_address" yaml:"ip_address"`
	Interfaces []InterfaceInfo `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
}

type InterfaceInfo struct {
	Name       string   `json:"name" yaml:"name"`
	MACAddress string   `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	Addresses  []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	MTU        int      `json:"mtu" yaml:"mtu"`
	Flags      []string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

type BIOSInfo struct {
	SerialNumber string `json:"serial_number" yaml:"serial_number"`
	Version      string `json:"version" yaml:"version"`
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	ReleaseDate  string `json:"release_date,omitempty" yaml:"release_date,omitempty"`
}

// GatherFunc produces a fresh Bundle. It should fill what it can and never
// fail outright.
type GatherFunc func(ctx context.Context) *Bundle

// Collector memoizes a Bundle for its lifetime.
type Collector struct {
	mu     sync.Mutex
	cached *Bundle
	gather GatherFunc
}

// NewCollector returns a Collector that reads facts from the running host.
func NewCollector() *Collector {
	return &Collector{gather: GatherHost}
}

// NewCollectorWith returns a Collector backed by a custom gather function.
func NewCollectorWith(gather GatherFunc) *Collector {
	return &Collector{gather: gather}
}

// Collect returns the memoized Bundle, gathering it on first use.
func (c *Collector) Collect(ctx context.Context) (*Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil {
		return c.cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	c.cached = c.gather(ctx)
	log.Debug("collected host facts", logging.KeyDurationMs, time.Since(start).Milliseconds())
	return c.cached, nil
}

// Clear drops the memoized Bundle.
func (c *Collector) Clear() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// Refresh discards the memoized Bundle and gathers a new one.
func (c *Collector) Refresh(ctx context.Context) (*Bundle, error) {
	c.Clear()
	return c.Collect(ctx)
}

var placeholderSerials = map[string]bool{
	"":                       true,
	"unknown":                true,
	"to be filled by o.e.m.": true,
	"default string":         true,
	"system serial number":   true,
	"0":                      true,
}

// UniqueIdentifier derives a stable 32 hex character host id from the BIOS
// serial (when it is a real one), the primary MAC and the hostname.
func (c *Collector) UniqueIdentifier(ctx context.Context) (string, error) {
	b, err := c.Collect(ctx)
	if err != nil {
		return "", err
	}
	return Identifier(b), nil
}

// Identifier is the id UniqueIdentifier would compute for b.
func Identifier(b *Bundle) string {
	var parts []string
	if serial := strings.TrimSpace(b.BIOS.SerialNumber); !placeholderSerials[strings.ToLower(serial)] {
		parts = append(parts, serial)
	}
	if mac := b.Network.MACAddress; mac != "" && !strings.EqualFold(mac, "unknown") {
		parts = append(parts, mac)
	}
	parts = append(parts, b.System.Hostname)

	sum := sha256.Sum256([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])[:32]
}
