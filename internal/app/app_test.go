package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"sdetails/internal/config"
	"sdetails/internal/export"
	"sdetails/internal/monitor"
	"sdetails/internal/slurm"
	"sdetails/internal/transport"
)

type fakeTransport struct {
	result transport.RunResult
	err    error
}

func (f fakeTransport) Run(context.Context, string) (transport.RunResult, error) {
	return f.result, f.err
}

func (f fakeTransport) Describe() string {
	return "fake"
}

type scriptedTransport struct {
	calls     int
	responses []transportResponse
}

type transportResponse struct {
	result transport.RunResult
	err    error
}

func (s *scriptedTransport) Run(context.Context, string) (transport.RunResult, error) {
	idx := s.calls
	s.calls++
	if len(s.responses) == 0 {
		return transport.RunResult{}, nil
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	r := s.responses[idx]
	return r.result, r.err
}

func (s *scriptedTransport) Describe() string {
	return "scripted"
}

func transientErr() error {
	return &transport.RunError{Target: "scripted", ExitCode: 255, Err: errors.New("connection reset")}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCheckSchedulerAvailabilityMissingCommands(t *testing.T) {
	tr := fakeTransport{
		result: transport.RunResult{Stdout: " sinfo squeue"},
		err:    errors.New("exit 7"),
	}
	err := checkSchedulerAvailability(context.Background(), tr, 2*time.Second)
	if err == nil {
		t.Fatalf("expected error")
	}
	var missingErr *missingSchedulerCommandsError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected missingSchedulerCommandsError, got %T: %v", err, err)
	}
}

func TestCheckSchedulerAvailabilityPasses(t *testing.T) {
	if err := checkSchedulerAvailability(context.Background(), fakeTransport{}, 2*time.Second); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestAwaitSchedulerAvailabilityRetriesThenPasses(t *testing.T) {
	tr := &scriptedTransport{
		responses: []transportResponse{
			{err: transientErr()},
			{err: transientErr()},
			{},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := awaitSchedulerAvailabilityWithBackoff(ctx, tr, 50*time.Millisecond, 5*time.Millisecond, 10*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if tr.calls < 3 {
		t.Fatalf("expected at least 3 attempts, got %d", tr.calls)
	}
}

func TestAwaitSchedulerAvailabilityStopsOnMissingCommands(t *testing.T) {
	tr := &scriptedTransport{
		responses: []transportResponse{
			{
				result: transport.RunResult{Stdout: " sinfo"},
				err:    errors.New("exit 7"),
			},
			{},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := awaitSchedulerAvailabilityWithBackoff(ctx, tr, 50*time.Millisecond, 5*time.Millisecond, 10*time.Millisecond, testLogger())
	if err == nil {
		t.Fatalf("expected missing-command error")
	}
	if tr.calls != 1 {
		t.Fatalf("expected no retries for missing commands, got %d calls", tr.calls)
	}
}

func TestAwaitSchedulerAvailabilityStopsOnPermanentFailure(t *testing.T) {
	tr := &scriptedTransport{
		responses: []transportResponse{
			{err: &transport.RunError{Target: "scripted", ExitCode: 2, Stderr: "bash: command parse error"}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := awaitSchedulerAvailabilityWithBackoff(ctx, tr, 50*time.Millisecond, 5*time.Millisecond, 10*time.Millisecond, testLogger())
	if err == nil {
		t.Fatalf("expected permanent failure to surface")
	}
	if tr.calls != 1 {
		t.Fatalf("expected no retries for non-retryable failure, got %d calls", tr.calls)
	}
}

func TestAwaitSchedulerAvailabilityHonorsContextCancellation(t *testing.T) {
	tr := &scriptedTransport{
		responses: []transportResponse{
			{err: transientErr()},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := awaitSchedulerAvailabilityWithBackoff(ctx, tr, 20*time.Millisecond, 10*time.Millisecond, 20*time.Millisecond, testLogger())
	if err == nil {
		t.Fatalf("expected context cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}

func TestAwaitSchedulerAvailabilityRetriesAfterTimeout(t *testing.T) {
	tr := &scriptedTransport{
		responses: []transportResponse{
			{err: &transport.RunError{Target: "scripted", Timeout: true, Err: context.DeadlineExceeded}},
			{},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := awaitSchedulerAvailabilityWithBackoff(ctx, tr, 50*time.Millisecond, 5*time.Millisecond, 10*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("expected timeout to be retried, got %v", err)
	}
	if tr.calls < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", tr.calls)
	}
}

// schedulerTransport serves a fixed two-partition cluster for pipeline tests.
type schedulerTransport struct{}

func (schedulerTransport) Describe() string { return "fixture" }

func (schedulerTransport) Run(_ context.Context, command string) (transport.RunResult, error) {
	if strings.Contains(command, "squeue") {
		return transport.RunResult{Stdout: "7 R gpu node-g1\n8 PD gpu\n"}, nil
	}
	inventory := "PARTITION HOSTNAMES STATE CPUS(A/I/O/T) ALLOCMEM MEMORY GRES GRES_USED\n" +
		"gpu node-g1 mix 4/12/0/16 1000 4000 gpu:2 gpu:(IDX):1\n" +
		"cpu node-c1 idle 0/16/0/16 0 8000 (null) (null)\n" +
		"__SDETAILS_SPLIT__\n" +
		"gpu 1\ncpu 1\n"
	return transport.RunResult{Stdout: inventory}, nil
}

func TestRunOnceExportsFullNodeSetDespitePartitionFilter(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "snap.json")
	cfg := config.Config{
		Mode:           config.ModeLocal,
		Partition:      "gpu",
		SortKey:        slurm.SortByNodeName,
		UsageThreshold: slurm.DefaultUsageThreshold,
		NoColor:        true,
		NoSummary:      true,
		ExportPath:     exportPath,
		CommandTimeout: 2 * time.Second,
	}
	collector := slurm.NewCollector(schedulerTransport{}, cfg.CommandTimeout, testLogger())

	if err := runOnce(context.Background(), collector, cfg, testLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	var doc export.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("export must carry the full node set, got %d nodes", len(doc.Nodes))
	}
	if doc.Nodes[0].NodeName != "node-c1" || doc.Nodes[1].NodeName != "node-g1" {
		t.Fatalf("unexpected export order: %+v", doc.Nodes)
	}
}

func TestExportEachSnapshotWritesEveryPass(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "watch.json")
	cfg := config.Config{
		SortKey:    slurm.SortByNodeName,
		ExportPath: exportPath,
	}

	snap := slurm.Snapshot{
		CollectedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Nodes: []slurm.Node{
			{Partition: "gpu", Name: "node-g1", State: "idle",
				CPU: slurm.CPUState{Idle: 16, Total: 16}, TotalMemMB: 4000},
		},
		Queue:      slurm.QueueSnapshot{RunningByNode: map[string]int{}, PendingByPartition: map[string]int{}},
		Partitions: slurm.PartitionIndex{},
	}

	in := make(chan monitor.Update, 2)
	in <- monitor.Update{Snapshot: &snap, State: monitor.StateConnected, LastSuccess: snap.CollectedAt}
	in <- monitor.Update{State: monitor.StateReconnecting, LastError: "transient"}
	close(in)

	var relayed []monitor.Update
	for update := range exportEachSnapshot(in, cfg, testLogger()) {
		relayed = append(relayed, update)
	}
	if len(relayed) != 2 {
		t.Fatalf("expected both updates relayed, got %d", len(relayed))
	}
	if relayed[1].LastError != "transient" {
		t.Fatalf("expected failed pass forwarded unchanged, got %+v", relayed[1])
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("expected export written during watch pass: %v", err)
	}
	var doc export.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].NodeName != "node-g1" {
		t.Fatalf("unexpected export contents: %+v", doc.Nodes)
	}
}

func TestBuildTransportModes(t *testing.T) {
	tr, err := buildTransport(config.Config{Mode: config.ModeLocal})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tr.Describe() != "local" {
		t.Fatalf("unexpected local transport: %s", tr.Describe())
	}

	tr, err = buildTransport(config.Config{Mode: config.ModeRemote, Target: "user@login"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tr.Describe() != "ssh:user@login" {
		t.Fatalf("unexpected remote transport: %s", tr.Describe())
	}
}
