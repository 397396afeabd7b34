package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/export"
	"github.com/breeze-rmm/process-watcher/internal/procsource"
	"github.com/breeze-rmm/process-watcher/pkg/models"
)

type fakeEngine struct {
	calls      int
	lastLimit  int
	lastDenied bool
}

func (f *fakeEngine) Collect(_ context.Context, maxResults int, includeDeniedDetail bool) ([]models.ProcessRecord, models.AccessSummary) {
	f.calls++
	f.lastLimit = maxResults
	f.lastDenied = includeDeniedDetail

	summary := models.AccessSummary{
		TotalFound:      4,
		AccessibleCount: 2,
		DeniedCount:     1,
		CollectedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if includeDeniedDetail {
		summary.DeniedDetails = []models.DeniedProcess{{PID: 3, Name: "pid_3", Error: "access denied"}}
	}
	return []models.ProcessRecord{
		{PID: 4, Name: "small", User: "root", CPUPercent: 1, MemoryMegabyte: 5, Status: "sleeping", Accessible: true},
		{PID: 2, Name: "large", User: "root", CPUPercent: 2, MemoryMegabyte: 500, Status: "running", Accessible: true},
	}, summary
}

func (f *fakeEngine) Host() procsource.Host {
	return procsource.Host{TotalMemoryBytes: 8 << 30, CPUCount: 2}
}

type fakeSystem struct {
	err error
}

func (f fakeSystem) Collect(context.Context) (*models.SystemSummary, error) {
	if f.err != nil {
		return &models.SystemSummary{}, f.err
	}
	return &models.SystemSummary{System: models.SystemInfo{Hostname: "test-host"}}, nil
}

type harness struct {
	engine *fakeEngine
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	deps   deps
}

func newHarness(stdin string, sys fakeSystem) *harness {
	h := &harness{engine: &fakeEngine{}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.deps = deps{
		stdin:  strings.NewReader(stdin),
		stdout: h.stdout,
		stderr: h.stderr,
		viper:  viper.New(),
		newEngine: func(context.Context, *zap.Logger, int) snapshotter {
			return h.engine
		},
		newSystem: func(*zap.Logger) summarizer { return sys },
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cmd := newRootCmd(h.deps)
	cmd.SetArgs(args)
	cmd.SetOut(h.stdout)
	cmd.SetErr(h.stderr)
	return cmd.Execute()
}

func TestAutomationWritesRankedJSONToConsole(t *testing.T) {
	h := newHarness("", fakeSystem{})
	require.NoError(t, h.run(t, "--automation", "--limit", "3"))

	var doc struct {
		Processes []map[string]any `json:"processes"`
		Metadata  models.Metadata  `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &doc))
	require.Len(t, doc.Processes, 2)
	assert.Equal(t, "large", doc.Processes[0]["name"])
	assert.Len(t, doc.Processes[0], 5)
	assert.Equal(t, 4, doc.Metadata.TotalProcessesFound)
	assert.Equal(t, 1, doc.Metadata.PermissionDenied)
	assert.Equal(t, "2024-01-02T03:04:05Z", doc.Metadata.CollectionTimestamp)
	assert.Equal(t, 3, h.engine.lastLimit)
	assert.False(t, h.engine.lastDenied)
}

func TestAutomationValidationFailure(t *testing.T) {
	h := newHarness("", fakeSystem{})
	err := h.run(t, "--automation", "--limit", "0")

	assert.ErrorIs(t, err, errValidation)
	assert.Contains(t, h.stderr.String(), "Validation errors:")
	assert.Contains(t, h.stderr.String(), "limit must be greater than 0")
	assert.Zero(t, h.engine.calls, "validation must fail before collection")
}

func TestAutomationWritesFileWithOptionalSections(t *testing.T) {
	h := newHarness("", fakeSystem{})
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, h.run(t, "--automation", "-f", dir, "--show-denied", "--include-system-info", "-a"))

	data, err := os.ReadFile(filepath.Join(dir, export.DefaultFileName))
	require.NoError(t, err)

	var doc struct {
		Processes       []models.ProcessRecord `json:"processes"`
		SystemInfo      models.SystemSummary   `json:"system_info"`
		DeniedProcesses []models.DeniedProcess `json:"denied_processes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "test-host", doc.SystemInfo.System.Hostname)
	require.Len(t, doc.DeniedProcesses, 1)
	assert.Equal(t, "pid_3", doc.DeniedProcesses[0].Name)
	assert.Equal(t, "running", doc.Processes[0].Status)
	assert.Empty(t, h.stdout.String())
}

func TestAutomationSystemInfoFailureDoesNotBlock(t *testing.T) {
	h := newHarness("", fakeSystem{err: errors.New("all system collectors failed")})
	require.NoError(t, h.run(t, "--automation", "--include-system-info"))

	var doc struct {
		SystemInfo map[string]any `json:"system_info"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &doc))
	assert.Equal(t, "all system collectors failed", doc.SystemInfo["error"])
}

func TestAutomationCSV(t *testing.T) {
	h := newHarness("", fakeSystem{})
	require.NoError(t, h.run(t, "--automation", "-o", "csv"))

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "pid,name,user,cpu_percent,memory_megabyte", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2,large,"))
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("PROCWATCH_OUTPUT", "yaml")
	h := newHarness("", fakeSystem{})
	require.NoError(t, h.run(t, "--automation"))
	assert.Contains(t, h.stdout.String(), "processes:")
}

func TestHelpVisualization(t *testing.T) {
	h := newHarness("", fakeSystem{})
	require.NoError(t, h.run(t, "--help-visualization"))
	assert.Contains(t, h.stdout.String(), "VISUALIZATION GUIDE")
	assert.Zero(t, h.engine.calls)
}

func TestVersion(t *testing.T) {
	h := newHarness("", fakeSystem{})
	require.NoError(t, h.run(t, "version"))
	assert.Contains(t, h.stdout.String(), "process-watcher dev")
}
