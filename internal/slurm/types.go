package slurm

import "time"

// Node is one compute node as reported by a single sinfo line. A node that is
// advertised under several partitions appears once per partition name.
type Node struct {
	Partition string
	Name      string
	State     string

	CPU CPUState

	AllocMemMB int
	TotalMemMB int

	// Raw GRES descriptors, parsed on demand via ParseGPUInfo.
	GPUSpec string
	GPUUsed string
}

// CPUState is the sinfo CPUsState quadruple.
type CPUState struct {
	Allocated int
	Idle      int
	Other     int
	Total     int
}

// FreeMemMB returns total minus allocated without clamping; the scheduler is
// trusted to keep the invariant, violations pass through as reported.
func (n Node) FreeMemMB() int {
	return n.TotalMemMB - n.AllocMemMB
}

// PartitionIndex records which partition names span more than one node. Names
// are stored with the default-partition marker stripped, so lookups normalize
// the same way on both sides.
type PartitionIndex map[string]struct{}

// Shared reports whether the partition name maps to more than one node.
func (idx PartitionIndex) Shared(partition string) bool {
	_, ok := idx[trimDefaultMarker(partition)]
	return ok
}

// QueueSnapshot holds job counts derived from one squeue report.
type QueueSnapshot struct {
	RunningByNode      map[string]int
	PendingByPartition map[string]int
}

func emptyQueueSnapshot() QueueSnapshot {
	return QueueSnapshot{
		RunningByNode:      make(map[string]int),
		PendingByPartition: make(map[string]int),
	}
}

// PendingFor returns the pending count for a partition, normalizing the
// default-partition marker before lookup.
func (q QueueSnapshot) PendingFor(partition string) int {
	return q.PendingByPartition[trimDefaultMarker(partition)]
}

// TotalRunning counts running jobs once per occupied node, matching how
// RunningByNode is populated.
func (q QueueSnapshot) TotalRunning() int {
	total := 0
	for _, c := range q.RunningByNode {
		total += c
	}
	return total
}

func (q QueueSnapshot) TotalPending() int {
	total := 0
	for _, c := range q.PendingByPartition {
		total += c
	}
	return total
}

// Snapshot is the full result of one collection pass. All fields are built
// fresh per pass and never shared across passes.
type Snapshot struct {
	Nodes       []Node
	Queue       QueueSnapshot
	Partitions  PartitionIndex
	CollectedAt time.Time
}

// Summary holds cluster-wide totals for one snapshot.
type Summary struct {
	TotalNodes int
	IdleNodes  int
	MixNodes   int
	AllocNodes int
	DownNodes  int

	IdleCPUs  int
	TotalCPUs int

	FreeMemMB  int
	TotalMemMB int

	UsedGPUs  int
	TotalGPUs int

	RunningJobs int
	PendingJobs int
}

func (s Summary) FreeGPUs() int {
	return s.TotalGPUs - s.UsedGPUs
}

// HasGPUs reports whether any node advertises GPUs; GPU totals are only
// meaningful when true.
func (s Summary) HasGPUs() bool {
	return s.TotalGPUs > 0
}

// Row is one per-node display record. Free quantities are derived exactly as
// in Summary, so summing rows reproduces the cluster-wide figures.
type Row struct {
	Node Node

	FreeCPUs  int
	TotalCPUs int

	FreeMemMB  int
	TotalMemMB int

	UsedGPUs  int
	TotalGPUs int

	Running int
	Pending int

	// SharedPending marks a pending count that is a cluster-wide total for a
	// shared partition, not a per-node figure.
	SharedPending bool
}
