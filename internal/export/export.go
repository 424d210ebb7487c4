// Package export writes the machine-readable snapshot consumed by external
// tooling. The document mirrors the table's derived quantities so both views
// of one snapshot agree.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sdetails/internal/slurm"
)

type Document struct {
	Timestamp string    `json:"timestamp"`
	Nodes     []NodeDoc `json:"nodes"`
}

type NodeDoc struct {
	Partition string    `json:"partition"`
	NodeName  string    `json:"nodename"`
	State     string    `json:"state"`
	CPU       CPUDoc    `json:"cpu"`
	Memory    MemoryDoc `json:"memory"`
	GPU       GPUDoc    `json:"gpu"`
	Running   int       `json:"running_jobs"`
	Queued    int       `json:"queued_jobs"`
}

type CPUDoc struct {
	Allocated int `json:"allocated"`
	Idle      int `json:"idle"`
	Other     int `json:"other"`
	Total     int `json:"total"`
}

type MemoryDoc struct {
	AllocatedMB int `json:"allocated_mb"`
	TotalMB     int `json:"total_mb"`
	FreeMB      int `json:"free_mb"`
}

type GPUDoc struct {
	Used  int `json:"used"`
	Total int `json:"total"`
	Free  int `json:"free"`
}

// Build assembles the export document from per-node display rows.
func Build(rows []slurm.Row, collectedAt time.Time) Document {
	doc := Document{
		Timestamp: collectedAt.Format(time.RFC3339),
		Nodes:     make([]NodeDoc, 0, len(rows)),
	}
	for _, row := range rows {
		n := row.Node
		doc.Nodes = append(doc.Nodes, NodeDoc{
			Partition: n.Partition,
			NodeName:  n.Name,
			State:     n.State,
			CPU: CPUDoc{
				Allocated: n.CPU.Allocated,
				Idle:      n.CPU.Idle,
				Other:     n.CPU.Other,
				Total:     n.CPU.Total,
			},
			Memory: MemoryDoc{
				AllocatedMB: n.AllocMemMB,
				TotalMB:     n.TotalMemMB,
				FreeMB:      row.FreeMemMB,
			},
			GPU: GPUDoc{
				Used:  row.UsedGPUs,
				Total: row.TotalGPUs,
				Free:  row.TotalGPUs - row.UsedGPUs,
			},
			Running: row.Running,
			Queued:  row.Pending,
		})
	}
	return doc
}

// WriteFile writes the document as pretty-printed UTF-8 JSON. A failure here
// is reported to the caller but must not undo the render that already
// happened.
func WriteFile(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
