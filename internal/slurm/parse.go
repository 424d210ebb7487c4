package slurm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// minNodeFields is the field count of one well-formed sinfo inventory line:
// partition, nodename, state, cpus-state, alloc-mem, total-mem, gres, gres-used.
const minNodeFields = 8

var (
	gpuSpecRe      = regexp.MustCompile(`gpu:(\d+)`)
	gpuUsedTotalRe = regexp.MustCompile(`gpu:\(.*?\):(\d+)`)
	gpuUsedTypedRe = regexp.MustCompile(`gpu:.*?:(\d+)`)
)

// FieldError reports a single compound field that did not match its expected
// shape. Callers decide whether to surface it or absorb it to a zero value;
// the record builder always absorbs, so one malformed field never drops a
// snapshot.
type FieldError struct {
	Field string
	Value string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("malformed %s field %q", e.Field, e.Value)
}

// ParseCPUState parses a CPUsState string of exactly four slash-separated
// non-negative integers ordered allocated/idle/other/total.
func ParseCPUState(raw string) (CPUState, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 4 {
		return CPUState{}, &FieldError{Field: "cpu-state", Value: raw}
	}
	values := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return CPUState{}, &FieldError{Field: "cpu-state", Value: raw}
		}
		values[i] = n
	}
	return CPUState{
		Allocated: values[0],
		Idle:      values[1],
		Other:     values[2],
		Total:     values[3],
	}, nil
}

// ParseGPUInfo extracts (used, total) GPU counts from a GRES spec string and a
// GRES-used string. The total comes from the first gpu:<n> pattern in spec.
// The used count prefers the aggregate gpu:(...):<n> form; otherwise every
// typed gpu:<type>:<n> match is summed, since a node may carry several GPU
// models allocated at once. Inputs without a gpu: substring yield zero.
func ParseGPUInfo(spec, used string) (usedGPUs, totalGPUs int) {
	if strings.Contains(spec, "gpu:") {
		if m := gpuSpecRe.FindStringSubmatch(spec); m != nil {
			totalGPUs, _ = strconv.Atoi(m[1])
		}
	}
	if strings.Contains(used, "gpu:") {
		if m := gpuUsedTotalRe.FindStringSubmatch(used); m != nil {
			usedGPUs, _ = strconv.Atoi(m[1])
		} else {
			for _, m := range gpuUsedTypedRe.FindAllStringSubmatch(used, -1) {
				n, _ := strconv.Atoi(m[1])
				usedGPUs += n
			}
		}
	}
	return usedGPUs, totalGPUs
}

// parseNodeLines converts a raw inventory report into Node records. The first
// line is the sinfo header and is discarded; lines with fewer than
// minNodeFields fields are dropped without error, since scheduler reports may
// interleave blank or continuation lines.
func parseNodeLines(raw string) []Node {
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	out := make([]Node, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < minNodeFields {
			continue
		}
		out = append(out, buildNode(fields))
	}
	return out
}

// buildNode maps one split inventory line onto a Node. Malformed compound
// fields are downgraded to zero values here, keeping the best-effort policy in
// one auditable place.
func buildNode(fields []string) Node {
	cpu, err := ParseCPUState(fields[3])
	if err != nil {
		cpu = CPUState{}
	}
	return Node{
		Partition:  fields[0],
		Name:       fields[1],
		State:      fields[2],
		CPU:        cpu,
		AllocMemMB: parseCount(fields[4]),
		TotalMemMB: parseCount(fields[5]),
		GPUSpec:    fields[6],
		GPUUsed:    fields[7],
	}
}

// parsePartitionSizes builds the membership index from "%P %D" sinfo output:
// one line per partition with its node count. Only partitions spanning more
// than one node are indexed. Names are normalized before insertion so the
// default partition is found under its unmarked name.
func parsePartitionSizes(raw string) PartitionIndex {
	idx := make(PartitionIndex)
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		count := parseCount(fields[1])
		if count > 1 {
			idx[trimDefaultMarker(fields[0])] = struct{}{}
		}
	}
	return idx
}

// parseQueueLines attributes squeue report lines ("%i %t %P %N") to nodes and
// partitions. A running job increments every node in its comma-separated node
// list; a pending job increments the partition it requests. Some squeue builds
// omit the node list for pending jobs, leaving only three fields; the
// partition field then doubles as the location token.
func parseQueueLines(raw string) QueueSnapshot {
	q := emptyQueueSnapshot()
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		state := fields[1]
		partition := fields[2]
		nodeList := partition
		if len(fields) > 3 {
			nodeList = fields[3]
		}

		switch state {
		case "R":
			for _, node := range strings.Split(nodeList, ",") {
				node = strings.TrimSpace(node)
				if node != "" {
					q.RunningByNode[node]++
				}
			}
		case "PD":
			q.PendingByPartition[trimDefaultMarker(partition)]++
		}
	}
	return q
}

// parseCount parses a strictly numeric field. Scheduler text occasionally
// carries a token such as "N/A" where a number is expected; those become 0.
func parseCount(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// trimDefaultMarker strips the trailing "*" sinfo uses to flag the default
// partition, so marked and unmarked spellings key identically.
func trimDefaultMarker(partition string) string {
	return strings.TrimSuffix(partition, "*")
}
