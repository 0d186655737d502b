// Package api defines the agent/collector wire contract and a client for
// it.
package api

// Routes served by the collector.
const (
	DataPath   = "/api/v1/agent/data"
	HealthPath = "/health"
	RootPath   = "/"
)

// HeaderRequestID carries a per-delivery correlation id.
const HeaderRequestID = "X-Request-ID"

// Ack is the collector's reply to an accepted report.
type Ack struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	ReceivedTimestamp string `json:"received_timestamp"`

	// RequestID is the id the client sent; it is not part of the body.
	RequestID string `json:"-"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	ReceivedReports int64  `json:"received_reports"`
}

type RootResponse struct {
	Message  string `json:"message"`
	Endpoint string `json:"endpoint"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// AgentData is the subset of a report the collector inspects. Decoding into
// it checks that the fields present have the right JSON types; absent
// fields are allowed.
type AgentData struct {
	SystemInfo    *SystemInfo    `json:"system_info"`
	ScanTimestamp string         `json:"scan_timestamp"`
	SoftwareCount *int           `json:"software_count"`
	SoftwareList  []SoftwareItem `json:"software_list"`
}

type SystemInfo struct {
	System struct {
		Hostname        string `json:"hostname"`
		Platform        string `json:"platform"`
		PlatformRelease string `json:"platform_release"`
		Architecture    string `json:"architecture"`
	} `json:"system"`
	Hardware struct {
		CPU struct {
			Name         string `json:"name"`
			LogicalCores int    `json:"logical_cores"`
		} `json:"cpu"`
		Memory struct {
			TotalGB float64 `json:"total_physical_memory_gb"`
		} `json:"memory"`
	} `json:"hardware"`
	Network struct {
		IPAddress  string `json:"ip_address"`
		MACAddress string `json:"mac_address"`
	} `json:"network"`
	BIOS struct {
		SerialNumber string `json:"serial_number"`
		Manufacturer string `json:"manufacturer"`
	} `json:"bios"`
}

type SoftwareItem struct {
	Name        string  `json:"name"`
	Version     *string `json:"version"`
	Vendor      *string `json:"vendor"`
	InstallDate *string `json:"install_date"`
	UpdateDate  *string `json:"update_date"`
	Source      string  `json:"source"`
}

// Hostname returns the reporting host's name, or "" when absent.
func (d *AgentData) Hostname() string {
	if d.SystemInfo == nil {
		return ""
	}
	return d.SystemInfo.System.Hostname
}
