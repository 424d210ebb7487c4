// Package render turns aggregated snapshot data into the summary block and
// the box-drawing node table printed in one-shot mode. All color decisions go
// through the slurm classifier tiers, so the table and the export stay in
// agreement about severity.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sdetails/internal/slurm"
	"sdetails/internal/uifmt"
)

var tableHeaders = []string{
	"Partition",
	"NodeName",
	"State",
	"CPU (Free/Total)",
	"Memory (Free/Total)",
	"GPU (Used/Total)",
	"Jobs (Run/Queue)",
}

type Renderer struct {
	NoColor   bool
	Threshold float64

	styles styles
}

type styles struct {
	nominal  lipgloss.Style
	caution  lipgloss.Style
	critical lipgloss.Style
	neutral  lipgloss.Style
	heading  lipgloss.Style
	bold     lipgloss.Style
}

func New(noColor bool, threshold float64) *Renderer {
	if threshold <= 0 {
		threshold = slurm.DefaultUsageThreshold
	}
	r := &Renderer{NoColor: noColor, Threshold: threshold}
	if noColor {
		plain := lipgloss.NewStyle()
		r.styles = styles{
			nominal:  plain,
			caution:  plain,
			critical: plain,
			neutral:  plain,
			heading:  plain,
			bold:     plain,
		}
		return r
	}
	r.styles = styles{
		nominal:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		caution:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		critical: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		neutral:  lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		heading:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		bold:     lipgloss.NewStyle().Bold(true),
	}
	return r
}

func (r *Renderer) tierStyle(tier slurm.Tier) lipgloss.Style {
	switch tier {
	case slurm.TierNominal:
		return r.styles.nominal
	case slurm.TierCaution:
		return r.styles.caution
	case slurm.TierCritical:
		return r.styles.critical
	default:
		return r.styles.neutral
	}
}

// Summary renders the cluster-wide block shown above the table. The GPU line
// appears only when at least one node advertises GPUs.
func (r *Renderer) Summary(s slurm.Summary) string {
	var b strings.Builder

	b.WriteString(r.styles.heading.Render("=== Cluster Summary ==="))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Nodes: %s (Idle: %s, Mix: %s, Allocated: %s, Down: %s)\n",
		r.styles.bold.Render(fmt.Sprint(s.TotalNodes)),
		r.styles.nominal.Render(fmt.Sprint(s.IdleNodes)),
		r.styles.caution.Render(fmt.Sprint(s.MixNodes)),
		r.styles.caution.Render(fmt.Sprint(s.AllocNodes)),
		r.styles.critical.Render(fmt.Sprint(s.DownNodes)),
	)

	cpuPct := percent(s.IdleCPUs, s.TotalCPUs)
	cpuStyle := r.tierStyle(slurm.UsageTier(s.TotalCPUs-s.IdleCPUs, s.TotalCPUs, r.Threshold))
	fmt.Fprintf(&b, "CPUs: %d/%d available (%s)\n", s.IdleCPUs, s.TotalCPUs, cpuStyle.Render(cpuPct))

	memPct := percent(s.FreeMemMB, s.TotalMemMB)
	memStyle := r.tierStyle(slurm.UsageTier(s.TotalMemMB-s.FreeMemMB, s.TotalMemMB, r.Threshold))
	fmt.Fprintf(&b, "Memory: %s/%s available (%s)\n",
		uifmt.MemMB(s.FreeMemMB), uifmt.MemMB(s.TotalMemMB), memStyle.Render(memPct))

	if s.HasGPUs() {
		gpuPct := percent(s.FreeGPUs(), s.TotalGPUs)
		gpuStyle := r.tierStyle(slurm.UsageTier(s.UsedGPUs, s.TotalGPUs, r.Threshold))
		fmt.Fprintf(&b, "GPUs: %d/%d available (%s)\n", s.FreeGPUs(), s.TotalGPUs, gpuStyle.Render(gpuPct))
	}

	fmt.Fprintf(&b, "Jobs: %s running, %s queued\n",
		r.styles.bold.Render(fmt.Sprint(s.RunningJobs)),
		r.styles.bold.Render(fmt.Sprint(s.PendingJobs)),
	)
	return b.String()
}

// Table renders the per-node box-drawing table. Rows must already be filtered
// and sorted by the caller.
func (r *Renderer) Table(rows []slurm.Row) string {
	if len(rows) == 0 {
		return "No data available\n"
	}

	cells := make([][]string, len(rows))
	anyShared := false
	for i, row := range rows {
		cells[i] = r.rowCells(row)
		if row.SharedPending {
			anyShared = true
		}
	}

	widths := make([]int, len(tableHeaders))
	for i, h := range tableHeaders {
		widths[i] = runewidth.StringWidth(h) + 2
	}
	for _, row := range cells {
		for i, cell := range row {
			if w := displayWidth(cell) + 2; w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRule(&b, widths, "┌", "┬", "┐")
	writeCells(&b, tableHeaders, widths)
	writeRule(&b, widths, "├", "┼", "┤")
	for _, row := range cells {
		writeCells(&b, row, widths)
	}
	writeRule(&b, widths, "└", "┴", "┘")

	b.WriteString(" * --- Default Partition\n")
	if anyShared {
		b.WriteString(" ** --- Queued job counts for this partition reflect the total before jobs are assigned to individual nodes\n")
	}
	return b.String()
}

func (r *Renderer) rowCells(row slurm.Row) []string {
	n := row.Node

	state := r.tierStyle(slurm.ClassifyState(n.State)).Render(n.State)

	cpu := uifmt.Ratio(row.FreeCPUs, row.TotalCPUs)
	cpu = r.tierStyle(slurm.UsageTier(n.CPU.Allocated, row.TotalCPUs, r.Threshold)).Render(cpu)

	mem := fmt.Sprintf("%dG/%dG", row.FreeMemMB/1024, row.TotalMemMB/1024)
	mem = r.tierStyle(slurm.UsageTier(n.AllocMemMB, n.TotalMemMB, r.Threshold)).Render(mem)

	gpu := "N/A"
	if row.TotalGPUs > 0 {
		gpu = uifmt.Ratio(row.UsedGPUs, row.TotalGPUs)
		gpu = r.tierStyle(slurm.UsageTier(row.UsedGPUs, row.TotalGPUs, r.Threshold)).Render(gpu)
	}

	jobs := uifmt.Ratio(row.Running, row.Pending)
	if row.SharedPending {
		jobs += "**"
	}

	return []string{n.Partition, n.Name, state, cpu, mem, gpu, jobs}
}

func writeRule(b *strings.Builder, widths []int, left, mid, right string) {
	b.WriteString(left)
	for i, w := range widths {
		if i > 0 {
			b.WriteString(mid)
		}
		b.WriteString(strings.Repeat("─", w))
	}
	b.WriteString(right)
	b.WriteString("\n")
}

func writeCells(b *strings.Builder, cells []string, widths []int) {
	b.WriteString("│")
	for i, cell := range cells {
		b.WriteString(padCell(cell, widths[i]))
		b.WriteString("│")
	}
	b.WriteString("\n")
}

// padCell left-aligns a possibly styled cell inside a fixed display width.
func padCell(cell string, width int) string {
	pad := width - displayWidth(cell)
	if pad <= 0 {
		return cell
	}
	return cell + strings.Repeat(" ", pad)
}

// displayWidth measures the on-screen width of a cell, ignoring any ANSI
// styling lipgloss applied.
func displayWidth(cell string) int {
	return lipgloss.Width(cell)
}

func percent(part, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100.0)
}
