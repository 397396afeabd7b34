package collector

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

const gib = 1 << 30

// SystemCollector gathers the host summary that can accompany a snapshot:
// identity and memory, mounted disks and interface addresses.
type SystemCollector struct {
	BaseCollector
}

// NewSystemCollector creates a new SystemCollector with the given logger
func NewSystemCollector(logger *zap.Logger) *SystemCollector {
	return &SystemCollector{BaseCollector: NewBaseCollector(logger, "system")}
}

// Collect gathers the summary. Partial failures are logged as warnings; an
// error is returned only if every part failed.
func (s *SystemCollector) Collect(ctx context.Context) (*models.SystemSummary, error) {
	summary := &models.SystemSummary{
		Disks:   []models.DiskInfo{},
		Network: []models.NetworkInfo{},
	}
	var failures []string

	if info, err := s.collectSystem(ctx); err != nil {
		s.LogWarning("Failed to collect system info", zap.Error(err))
		failures = append(failures, fmt.Sprintf("system: %v", err))
	} else {
		summary.System = info
	}

	if disks, err := s.collectDisks(ctx); err != nil {
		s.LogWarning("Failed to collect disk info", zap.Error(err))
		failures = append(failures, fmt.Sprintf("disk: %v", err))
	} else {
		summary.Disks = disks
	}

	if ifaces, err := s.collectNetwork(ctx); err != nil {
		s.LogWarning("Failed to collect network info", zap.Error(err))
		failures = append(failures, fmt.Sprintf("network: %v", err))
	} else {
		summary.Network = ifaces
	}

	s.LogDebug("System collection completed",
		zap.Int("disks", len(summary.Disks)),
		zap.Int("addresses", len(summary.Network)),
		zap.Int("errors", len(failures)))

	if len(failures) == 3 {
		return summary, fmt.Errorf("all system collectors failed: %s", strings.Join(failures, "; "))
	}
	return summary, nil
}

func (s *SystemCollector) collectSystem(ctx context.Context) (models.SystemInfo, error) {
	info := models.SystemInfo{}

	hostInfo, hostErr := host.InfoWithContext(ctx)
	if hostErr != nil {
		s.LogWarning("Failed to get host info", zap.Error(hostErr))
	} else {
		info.OS = hostInfo.OS
		info.OSVersion = strings.TrimSpace(hostInfo.Platform + " " + hostInfo.PlatformVersion)
		info.KernelVersion = hostInfo.KernelVersion
		info.Hostname = hostInfo.Hostname
		if hostInfo.BootTime > 0 {
			info.BootTime = time.Unix(int64(hostInfo.BootTime), 0).UTC().Format(time.RFC3339)
		}
	}

	vmem, memErr := mem.VirtualMemoryWithContext(ctx)
	if memErr != nil {
		s.LogWarning("Failed to get memory info", zap.Error(memErr))
	} else {
		info.MemoryTotalGB = toGB(vmem.Total)
		info.MemoryAvailableGB = toGB(vmem.Available)
		info.MemoryUsedGB = toGB(vmem.Used)
	}

	if hostErr != nil && memErr != nil {
		return info, fmt.Errorf("host: %v; memory: %v", hostErr, memErr)
	}
	return info, nil
}

func (s *SystemCollector) collectDisks(ctx context.Context) ([]models.DiskInfo, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk partitions: %w", err)
	}

	disks := make([]models.DiskInfo, 0, len(partitions))
	for _, partition := range partitions {
		if shouldSkipPartition(partition.Fstype) {
			continue
		}

		d := models.DiskInfo{
			Device:     partition.Device,
			MountPoint: partition.Mountpoint,
			FSType:     partition.Fstype,
		}
		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			s.LogWarning("Failed to get disk usage",
				zap.String("device", partition.Device),
				zap.String("mountpoint", partition.Mountpoint),
				zap.Error(err))
		} else {
			d.TotalGB = toGB(usage.Total)
			d.UsedGB = toGB(usage.Used)
			d.FreeGB = toGB(usage.Free)
			d.UsedPercent = models.Round2(usage.UsedPercent)
		}
		disks = append(disks, d)
	}

	if len(disks) == 0 {
		return disks, fmt.Errorf("no disks found")
	}
	return disks, nil
}

var pseudoFilesystems = map[string]bool{
	"devfs":       true,
	"devtmpfs":    true,
	"tmpfs":       true,
	"squashfs":    true,
	"overlay":     true,
	"aufs":        true,
	"proc":        true,
	"sysfs":       true,
	"cgroup":      true,
	"cgroup2":     true,
	"debugfs":     true,
	"securityfs":  true,
	"pstore":      true,
	"configfs":    true,
	"fusectl":     true,
	"mqueue":      true,
	"hugetlbfs":   true,
	"binfmt_misc": true,
}

func shouldSkipPartition(fstype string) bool {
	return pseudoFilesystems[fstype]
}

func (s *SystemCollector) collectNetwork(ctx context.Context) ([]models.NetworkInfo, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	out := make([]models.NetworkInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			entry, ok := addressInfo(iface.Name, addr.Addr)
			if !ok {
				s.LogDebug("Skipping unparsable interface address",
					zap.String("interface", iface.Name),
					zap.String("addr", addr.Addr))
				continue
			}
			out = append(out, entry)
		}
	}

	if len(out) == 0 {
		return out, fmt.Errorf("no network addresses found")
	}
	return out, nil
}

// addressInfo expands a CIDR address into ip, netmask and (IPv4 only) broadcast.
func addressInfo(iface, cidr string) (models.NetworkInfo, bool) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		ip = net.ParseIP(cidr)
		if ip == nil {
			return models.NetworkInfo{}, false
		}
		return models.NetworkInfo{Interface: iface, IPAddress: ip.String()}, true
	}

	info := models.NetworkInfo{Interface: iface, IPAddress: ip.String()}
	if v4 := ip.To4(); v4 != nil && len(ipnet.Mask) == net.IPv4len {
		mask := ipnet.Mask
		info.Netmask = net.IP(mask).String()
		bcast := make(net.IP, net.IPv4len)
		for i := range v4 {
			bcast[i] = v4[i] | ^mask[i]
		}
		info.Broadcast = bcast.String()
	} else {
		info.Netmask = net.IP(ipnet.Mask).String()
	}
	return info, true
}

func toGB(b uint64) float64 {
	return models.Round2(float64(b) / gib)
}
