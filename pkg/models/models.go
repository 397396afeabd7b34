package models

import (
	"math"
	"time"
)

// ProcessRecord is the per-process result of one collection pass.
// Optional text fields use "" for absent.
type ProcessRecord struct {
	PID            int     `json:"pid" yaml:"pid"`
	Name           string  `json:"name" yaml:"name"`
	User           string  `json:"user" yaml:"user"`
	CPUPercent     float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryMegabyte float64 `json:"memory_megabyte" yaml:"memory_megabyte"`
	Status         string  `json:"status" yaml:"status"`
	Accessible     bool    `json:"accessible" yaml:"accessible"`
	Error          string  `json:"error" yaml:"error"`
}

// Denied builds an inaccessible record for pid.
func Denied(pid int, name, reason string) ProcessRecord {
	return ProcessRecord{PID: pid, Name: name, Accessible: false, Error: reason}
}

// Finalized returns a copy with metrics clamped to >= 0 and rounded to two
// decimals. Inaccessible records always carry a non-empty error.
func (r ProcessRecord) Finalized() ProcessRecord {
	r.CPUPercent = Round2(r.CPUPercent)
	r.MemoryMegabyte = Round2(r.MemoryMegabyte)
	if r.Accessible {
		r.Error = ""
	} else if r.Error == "" {
		r.Error = "process not accessible"
	}
	return r
}

// Round2 rounds v to two decimal places. Negative and NaN values become 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Round(v*100) / 100
}

// DeniedProcess is one entry of the optional denied-details list.
type DeniedProcess struct {
	PID   int    `json:"pid" yaml:"pid"`
	Name  string `json:"name" yaml:"name"` // process name or "pid_<N>"
	Error string `json:"error" yaml:"error"`
}

// AccessSummary partitions the probed PIDs of one pass.
type AccessSummary struct {
	TotalFound      int             `json:"total_found" yaml:"total_found"`
	AccessibleCount int             `json:"accessible_count" yaml:"accessible_count"`
	DeniedCount     int             `json:"denied_count" yaml:"denied_count"`
	DeniedDetails   []DeniedProcess `json:"denied_details,omitempty" yaml:"denied_details,omitempty"`
	CollectedAt     time.Time       `json:"collected_at" yaml:"collected_at"`
}

// Probed returns the number of PIDs actually resolved.
func (s AccessSummary) Probed() int {
	return s.AccessibleCount + s.DeniedCount
}

// Metadata describes a pass in the exported report.
type Metadata struct {
	CollectionTimestamp string `json:"collection_timestamp" yaml:"collection_timestamp"`
	TotalProcessesFound int    `json:"total_processes_found" yaml:"total_processes_found"`
	AccessibleProcesses int    `json:"accessible_processes" yaml:"accessible_processes"`
	PermissionDenied    int    `json:"permission_denied" yaml:"permission_denied"`
	HostMemoryBytes     uint64 `json:"host_memory_bytes" yaml:"host_memory_bytes"`
	CPUCount            int    `json:"cpu_count" yaml:"cpu_count"`
}

// Report is the input to the formatters.
type Report struct {
	Processes       []ProcessRecord
	Metadata        Metadata
	SystemInfo      *SystemSummary
	SystemInfoError string
	DeniedProcesses []DeniedProcess
}

// SystemSummary is the host enrichment block.
type SystemSummary struct {
	System  SystemInfo    `json:"system_info" yaml:"system_info"`
	Disks   []DiskInfo    `json:"disk_info" yaml:"disk_info"`
	Network []NetworkInfo `json:"network_info" yaml:"network_info"`
}

// SystemInfo represents host identity and memory figures
type SystemInfo struct {
	OS                string  `json:"os" yaml:"os"`
	OSVersion         string  `json:"os_version" yaml:"os_version"`
	KernelVersion     string  `json:"kernel_version" yaml:"kernel_version"`
	Hostname          string  `json:"hostname" yaml:"hostname"`
	BootTime          string  `json:"boot_time" yaml:"boot_time"`
	MemoryTotalGB     float64 `json:"memory_total_gb" yaml:"memory_total_gb"`
	MemoryAvailableGB float64 `json:"memory_available_gb" yaml:"memory_available_gb"`
	MemoryUsedGB      float64 `json:"memory_used_gb" yaml:"memory_used_gb"`
}

// DiskInfo represents one mounted partition
type DiskInfo struct {
	Device      string  `json:"device" yaml:"device"`
	MountPoint  string  `json:"mountpoint" yaml:"mountpoint"`
	FSType      string  `json:"filesystem_type" yaml:"filesystem_type"`
	TotalGB     float64 `json:"total_size_gb" yaml:"total_size_gb"`
	UsedGB      float64 `json:"used_size_gb" yaml:"used_size_gb"`
	FreeGB      float64 `json:"free_size_gb" yaml:"free_size_gb"`
	UsedPercent float64 `json:"percent" yaml:"percent"`
}

// NetworkInfo represents one interface address
type NetworkInfo struct {
	Interface string `json:"interface" yaml:"interface"`
	IPAddress string `json:"ip_address" yaml:"ip_address"`
	Netmask   string `json:"netmask" yaml:"netmask"`
	Broadcast string `json:"broadcast" yaml:"broadcast"`
}
