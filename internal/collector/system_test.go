package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAddressInfoIPv4(t *testing.T) {
	info, ok := addressInfo("eth0", "192.168.1.10/24")
	assert.True(t, ok)
	assert.Equal(t, "eth0", info.Interface)
	assert.Equal(t, "192.168.1.10", info.IPAddress)
	assert.Equal(t, "255.255.255.0", info.Netmask)
	assert.Equal(t, "192.168.1.255", info.Broadcast)
}

func TestAddressInfoIPv6(t *testing.T) {
	info, ok := addressInfo("eth0", "fe80::1/64")
	assert.True(t, ok)
	assert.Equal(t, "fe80::1", info.IPAddress)
	assert.Equal(t, "ffff:ffff:ffff:ffff::", info.Netmask)
	assert.Empty(t, info.Broadcast)
}

func TestAddressInfoBareAndInvalid(t *testing.T) {
	info, ok := addressInfo("lo", "127.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1", info.IPAddress)

	_, ok = addressInfo("lo", "not-an-ip")
	assert.False(t, ok)
}

func TestShouldSkipPartition(t *testing.T) {
	assert.True(t, shouldSkipPartition("tmpfs"))
	assert.True(t, shouldSkipPartition("proc"))
	assert.False(t, shouldSkipPartition("ext4"))
	assert.False(t, shouldSkipPartition("apfs"))
}

func TestToGB(t *testing.T) {
	assert.Equal(t, 1.5, toGB(3<<29))
	assert.Equal(t, 0.0, toGB(0))
}

func TestSystemCollectorNeverBlocks(t *testing.T) {
	sc := NewSystemCollector(zap.NewNop())

	summary, err := sc.Collect(context.Background())
	if !assert.NotNil(t, summary) {
		return
	}
	assert.NotNil(t, summary.Disks)
	assert.NotNil(t, summary.Network)
	if err == nil {
		assert.True(t, summary.System.Hostname != "" || summary.System.MemoryTotalGB > 0 ||
			len(summary.Disks) > 0 || len(summary.Network) > 0)
	}
}
