package slurm

import "strings"

// Summarize folds one snapshot into cluster-wide totals. State-tier counts use
// case-insensitive substring matching and are not mutually exclusive: a node
// reporting "mixed+drain" counts toward both the mix and down tallies.
func Summarize(snap Snapshot) Summary {
	s := Summary{
		TotalNodes:  len(snap.Nodes),
		RunningJobs: snap.Queue.TotalRunning(),
		PendingJobs: snap.Queue.TotalPending(),
	}
	for _, node := range snap.Nodes {
		state := strings.ToLower(node.State)
		if strings.Contains(state, "idle") {
			s.IdleNodes++
		}
		if strings.Contains(state, "mix") {
			s.MixNodes++
		}
		if strings.Contains(state, "alloc") {
			s.AllocNodes++
		}
		if strings.Contains(state, "down") || strings.Contains(state, "drain") {
			s.DownNodes++
		}

		s.IdleCPUs += node.CPU.Idle
		s.TotalCPUs += node.CPU.Total

		s.FreeMemMB += node.FreeMemMB()
		s.TotalMemMB += node.TotalMemMB

		used, total := ParseGPUInfo(node.GPUSpec, node.GPUUsed)
		s.UsedGPUs += used
		s.TotalGPUs += total
	}
	return s
}

// BuildRows derives the per-node display records for one snapshot. Free
// quantities are computed exactly as in Summarize, keeping the per-node sums
// equal to the cluster totals. Pending counts are always looked up by
// partition; for a partition spanning more than one node the count is the
// cluster-wide total for that partition and the row is flagged accordingly.
func BuildRows(snap Snapshot) []Row {
	rows := make([]Row, 0, len(snap.Nodes))
	for _, node := range snap.Nodes {
		used, total := ParseGPUInfo(node.GPUSpec, node.GPUUsed)
		rows = append(rows, Row{
			Node:          node,
			FreeCPUs:      node.CPU.Idle,
			TotalCPUs:     node.CPU.Total,
			FreeMemMB:     node.FreeMemMB(),
			TotalMemMB:    node.TotalMemMB,
			UsedGPUs:      used,
			TotalGPUs:     total,
			Running:       snap.Queue.RunningByNode[node.Name],
			Pending:       snap.Queue.PendingFor(node.Partition),
			SharedPending: snap.Partitions.Shared(node.Partition),
		})
	}
	return rows
}

// FilterRows keeps rows whose partition matches exactly (case-sensitive).
// An empty filter keeps everything.
func FilterRows(rows []Row, partition string) []Row {
	if partition == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.Node.Partition == partition {
			out = append(out, row)
		}
	}
	return out
}
