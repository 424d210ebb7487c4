package render

import (
	"strings"
	"testing"

	"sdetails/internal/slurm"
)

func renderFixture() []slurm.Row {
	return []slurm.Row{
		{
			Node: slurm.Node{
				Partition: "main*", Name: "node1", State: "mixed",
				CPU:        slurm.CPUState{Allocated: 8, Idle: 8, Other: 0, Total: 16},
				AllocMemMB: 2048, TotalMemMB: 8192,
			},
			FreeCPUs: 8, TotalCPUs: 16,
			FreeMemMB: 6144, TotalMemMB: 8192,
			Running:   1, Pending: 3,
			SharedPending: true,
		},
		{
			Node: slurm.Node{
				Partition: "gpu", Name: "node2", State: "idle",
				CPU:        slurm.CPUState{Allocated: 0, Idle: 16, Other: 0, Total: 16},
				AllocMemMB: 0, TotalMemMB: 8192,
			},
			FreeCPUs: 16, TotalCPUs: 16,
			FreeMemMB: 8192, TotalMemMB: 8192,
			UsedGPUs: 1, TotalGPUs: 2,
			Running:  0, Pending: 0,
		},
	}
}

func TestTableLayoutNoColor(t *testing.T) {
	r := New(true, 0)
	out := r.Table(renderFixture())

	for _, want := range []string{
		"┌", "┘", "│",
		"Partition", "NodeName", "State",
		"node1", "node2",
		"8/16",   // node1 free/total cpu
		"6G/8G",  // node1 free/total memory
		"N/A",    // node1 has no GPUs
		"1/2",    // node2 gpu used/total
		"1/3**",  // shared partition pending marker
		"* --- Default Partition",
		"** --- Queued job counts",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTableRowsAlign(t *testing.T) {
	r := New(true, 0)
	out := r.Table(renderFixture())

	var widths []int
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "│") {
			widths = append(widths, displayWidth(line))
		}
	}
	if len(widths) < 3 {
		t.Fatalf("expected header plus data rows, got %d", len(widths))
	}
	for i := 1; i < len(widths); i++ {
		if widths[i] != widths[0] {
			t.Fatalf("row %d width %d != header width %d:\n%s", i, widths[i], widths[0], out)
		}
	}
}

func TestTableSharedFootnoteOnlyWhenNeeded(t *testing.T) {
	r := New(true, 0)
	rows := renderFixture()[1:2]
	out := r.Table(rows)
	if strings.Contains(out, "** ---") {
		t.Fatalf("unexpected shared footnote:\n%s", out)
	}
	if !strings.Contains(out, "* --- Default Partition") {
		t.Fatalf("expected default partition footnote")
	}
}

func TestTableEmpty(t *testing.T) {
	r := New(true, 0)
	if out := r.Table(nil); !strings.Contains(out, "No data available") {
		t.Fatalf("unexpected empty output: %q", out)
	}
}

func TestSummaryIncludesGPULineOnlyWithGPUs(t *testing.T) {
	r := New(true, 0)

	withGPU := slurm.Summary{
		TotalNodes: 2, IdleNodes: 1, MixNodes: 1,
		IdleCPUs: 24, TotalCPUs: 32,
		FreeMemMB: 14336, TotalMemMB: 16384,
		UsedGPUs: 1, TotalGPUs: 2,
		RunningJobs: 1, PendingJobs: 3,
	}
	out := r.Summary(withGPU)
	for _, want := range []string{
		"=== Cluster Summary ===",
		"Nodes: 2",
		"CPUs: 24/32 available",
		"Memory: 14.0G/16.0G available",
		"GPUs: 1/2 available",
		"Jobs: 1 running, 3 queued",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}

	withGPU.UsedGPUs = 0
	withGPU.TotalGPUs = 0
	out = r.Summary(withGPU)
	if strings.Contains(out, "GPUs:") {
		t.Fatalf("unexpected GPU line without GPUs:\n%s", out)
	}
}
