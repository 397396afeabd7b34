package procsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePowerShellProcess(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		wantErr  error
		wantName string
		wantUser string
		wantMB   float64
	}{
		{
			name:     "object",
			out:      `{"Id":4242,"Name":"explorer","User":"DESKTOP\\alice","WorkingSet":104857600}`,
			wantName: "explorer",
			wantUser: `DESKTOP\alice`,
			wantMB:   100,
		},
		{
			name:     "array with null owner",
			out:      `[{"Id":1,"Name":"other","User":null,"WorkingSet":0},{"Id":4242,"Name":"svchost","User":null,"WorkingSet":1048576}]`,
			wantName: "svchost",
			wantMB:   1,
		},
		{name: "empty", out: "  \r\n", wantErr: ErrProcessNotFound},
		{name: "garbage", out: "Get-Process : Cannot find a process", wantErr: ErrMalformedOutput},
		{name: "no name", out: `{"Id":4242,"Name":"","User":null,"WorkingSet":1}`, wantErr: ErrNoName},
		{name: "other pid", out: `{"Id":7,"Name":"x","User":null,"WorkingSet":1}`, wantErr: ErrNoName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := parsePowerShellProcess([]byte(tt.out), 4242)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, rec.Accessible)
			assert.Equal(t, tt.wantName, rec.Name)
			assert.Equal(t, tt.wantUser, rec.User)
			assert.Equal(t, "running", rec.Status)
			assert.InDelta(t, tt.wantMB, rec.MemoryMegabyte, 1e-9)
		})
	}
}

func TestPowerShellSourceUsesSampler(t *testing.T) {
	runner := newFakeRunner()
	runner.on(`{"Id":9,"Name":"code","User":null,"WorkingSet":2097152}`, nil, powershell, powershellArgs(processQuery(9))...)
	runner.on("", &CommandError{Name: powershell, ExitCode: 1, Stderr: "Cannot find a process with the process identifier 10."}, powershell, powershellArgs(processQuery(10))...)

	src := NewPowerShellSource(runner, fixedSampler(3.25), nil)

	rec := src.Resolve(context.Background(), 9)
	assert.True(t, rec.Accessible)
	assert.InDelta(t, 3.25, rec.CPUPercent, 1e-9)
	assert.InDelta(t, 2.0, rec.MemoryMegabyte, 1e-9)

	gone := src.Resolve(context.Background(), 10)
	assert.False(t, gone.Accessible)
	assert.Contains(t, gone.Error, "Cannot find a process")
}

func TestPowerShellEnumeratorAndMemoryProbe(t *testing.T) {
	runner := newFakeRunner()
	runner.on("0\r\n4\r\n1200\r\n88\r\n", nil, powershell, powershellArgs("Get-Process | Select-Object -ExpandProperty Id")...)
	runner.on("17179869184\r\n", nil, powershell, powershellArgs("(Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory")...)

	pids, err := NewPowerShellEnumerator(runner).ListPIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1200, 88, 4}, pids)

	total, err := PowerShellMemoryProbe(runner)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16<<30), total)

	bad := newFakeRunner()
	bad.on("n/a", nil, powershell, powershellArgs("(Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory")...)
	_, err = PowerShellMemoryProbe(bad)(context.Background())
	assert.ErrorIs(t, err, ErrMalformedOutput)
}
