package slurm

import "sort"

// SortKey selects the ordering of the node table.
type SortKey string

const (
	SortByNodeName  SortKey = "nodename"
	SortByPartition SortKey = "partition"
	SortByState     SortKey = "state"
	SortByFreeCPU   SortKey = "cpu"
)

// SortKeys lists the accepted sort keys in their documented order.
var SortKeys = []SortKey{SortByNodeName, SortByPartition, SortByState, SortByFreeCPU}

// ValidSortKey reports whether key names a supported ordering.
func ValidSortKey(key string) bool {
	for _, k := range SortKeys {
		if string(k) == key {
			return true
		}
	}
	return false
}

// SortRows orders rows in place. Every ordering falls back to node name so
// repeated renders of the same snapshot are stable.
func SortRows(rows []Row, key SortKey) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch key {
		case SortByPartition:
			if a.Node.Partition != b.Node.Partition {
				return a.Node.Partition < b.Node.Partition
			}
		case SortByState:
			if a.Node.State != b.Node.State {
				return a.Node.State < b.Node.State
			}
		case SortByFreeCPU:
			if a.FreeCPUs != b.FreeCPUs {
				return a.FreeCPUs > b.FreeCPUs
			}
		}
		return a.Node.Name < b.Node.Name
	})
}
